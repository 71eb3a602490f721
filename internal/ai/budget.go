package ai

import (
	"sync"
	"time"
)

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

// Budget enforces per-minute and per-day request and token quotas. Callers
// reserve an estimate before a request and settle it with the real usage
// afterwards, so concurrent callers cannot overshoot the quota together.
type Budget struct {
	mu     sync.Mutex
	limits RateLimits
	now    func() time.Time

	minuteStart    time.Time
	dayStart       time.Time
	minuteTokens   int
	minuteRequests int
	dayRequests    int
}

func NewBudget(limits RateLimits) *Budget {
	b := &Budget{limits: limits, now: time.Now}
	b.minuteStart = b.now()
	b.dayStart = b.minuteStart
	return b
}

func (b *Budget) roll(now time.Time) {
	if now.Sub(b.minuteStart) >= time.Minute {
		b.minuteStart, b.minuteTokens, b.minuteRequests = now, 0, 0
	}
	if now.Sub(b.dayStart) >= 24*time.Hour {
		b.dayStart, b.dayRequests = now, 0
	}
}

// Reserve books one request and tokens if both fit in the current windows.
func (b *Budget) Reserve(tokens int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll(b.now())

	if b.minuteRequests+1 > b.limits.RPM ||
		b.dayRequests+1 > b.limits.RPD ||
		b.minuteTokens+tokens > b.limits.TPM {
		return false
	}
	b.minuteRequests++
	b.dayRequests++
	b.minuteTokens += tokens
	return true
}

// Settle replaces a reserved token estimate with the tokens actually used.
// It is a no-op once the minute window the reservation belonged to has rolled.
func (b *Budget) Settle(reserved, actual int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.now().Sub(b.minuteStart) >= time.Minute {
		return
	}
	b.minuteTokens = max(b.minuteTokens+actual-reserved, 0)
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 15, TPM: 250000, RPD: 1500}
	}
}
