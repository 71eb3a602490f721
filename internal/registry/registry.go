package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/index"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
)

type entry struct {
	mu       sync.RWMutex
	pair     *index.Pair
	dead     bool
	lastUsed atomic.Int64
}

// Options tunes a Registry.
type Options struct {
	// MaxDocuments caps the number of documents per user; 0 means unlimited.
	MaxDocuments int
	// OnEvict is called after a user's pair was torn down by EvictIdle.
	OnEvict func(userID string, documents []index.DocumentInfo)
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Registry owns every resident user index pair. Each user has a reader/writer
// lock: retrieval holds the read side, upload/remove/clear hold the write side.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	opts    Options
}

func New(opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		entries: make(map[string]*entry),
		opts:    opts,
	}
}

func (r *Registry) lookup(userID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		e = &entry{pair: index.Empty(userID)}
		r.entries[userID] = e
	}
	e.lastUsed.Store(r.opts.Now().UnixNano())
	return e
}

// read runs fn while holding userID's read lock. A torn-down entry is retried
// against a fresh one.
func (r *Registry) read(userID string, fn func(e *entry) error) error {
	for {
		e := r.lookup(userID)
		e.mu.RLock()
		if e.dead {
			e.mu.RUnlock()
			continue
		}
		err := fn(e)
		e.lastUsed.Store(r.opts.Now().UnixNano())
		e.mu.RUnlock()
		return err
	}
}

// write runs fn while holding userID's write lock.
func (r *Registry) write(userID string, fn func(e *entry) error) error {
	for {
		e := r.lookup(userID)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		err := fn(e)
		e.lastUsed.Store(r.opts.Now().UnixNano())
		e.mu.Unlock()
		return err
	}
}

// GetOrCreate returns userID's current pair, creating an empty one on first use.
func (r *Registry) GetOrCreate(userID string) *index.Pair {
	var p *index.Pair
	_ = r.read(userID, func(e *entry) error {
		p = e.pair
		return nil
	})
	return p
}

// View calls fn with userID's pair while holding the read lock, so no
// mutation or eviction of that user can happen until fn returns.
func (r *Registry) View(userID string, fn func(*index.Pair) error) error {
	return r.read(userID, func(e *entry) error {
		return fn(e.pair)
	})
}

// AddDocument indexes chunks under filename and returns the number of chunks added.
// The replacement pair is fully built before it becomes visible.
func (r *Registry) AddDocument(ctx context.Context, userID, filename string, chunks []index.Chunk) (int, error) {
	err := r.write(userID, func(e *entry) error {
		if e.pair.HasDocument(filename) {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateFilename, filename)
		}
		if limit := r.opts.MaxDocuments; limit > 0 && len(e.pair.Documents()) >= limit {
			return fmt.Errorf("%w: at most %d documents per user", apperr.ErrDocumentLimitExceeded, limit)
		}

		next, err := e.pair.WithDocument(filename, chunks)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return apperr.FromContext(err)
		}
		e.pair = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info("Document indexed", "user_id", userID, "filename", filename, "chunks", len(chunks))
	return len(chunks), nil
}

// RemoveDocument drops filename and rebuilds both indices from the remaining chunks.
func (r *Registry) RemoveDocument(ctx context.Context, userID, filename string) error {
	err := r.write(userID, func(e *entry) error {
		next, err := e.pair.WithoutDocument(filename)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return apperr.FromContext(err)
		}
		e.pair = next
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Document removed, index rebuilt", "user_id", userID, "filename", filename)
	return nil
}

// ClearAll resets userID to an empty pair.
func (r *Registry) ClearAll(userID string) {
	_ = r.write(userID, func(e *entry) error {
		e.pair = index.Empty(userID)
		return nil
	})
}

// Drop tears userID's entry down entirely, waiting for in-flight use to finish.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if ok {
		delete(r.entries, userID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.dead = true
	e.pair = nil
	e.mu.Unlock()
}

// Documents lists userID's documents.
func (r *Registry) Documents(userID string) []index.DocumentInfo {
	var docs []index.DocumentInfo
	_ = r.View(userID, func(p *index.Pair) error {
		docs = p.Documents()
		return nil
	})
	return docs
}

// EvictIdle tears down pairs untouched for longer than maxIdle. A pair that is
// being read or mutated is skipped and considered again on the next sweep.
// It returns the evicted user ids.
func (r *Registry) EvictIdle(maxIdle time.Duration) []string {
	cutoff := r.opts.Now().Add(-maxIdle).UnixNano()

	type victim struct {
		userID string
		docs   []index.DocumentInfo
	}
	var victims []victim

	r.mu.Lock()
	for userID, e := range r.entries {
		if e.lastUsed.Load() > cutoff {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		victims = append(victims, victim{userID: userID, docs: e.pair.Documents()})
		e.dead = true
		e.pair = nil
		delete(r.entries, userID)
		e.mu.Unlock()
	}
	r.mu.Unlock()

	evicted := make([]string, 0, len(victims))
	for _, v := range victims {
		evicted = append(evicted, v.userID)
		if r.opts.OnEvict != nil {
			r.opts.OnEvict(v.userID, v.docs)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Stats reports how many users have a resident pair and how many chunks they hold.
type Stats struct {
	ActiveUsers int `json:"active_users"`
	Chunks      int `json:"chunks"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	s := Stats{ActiveUsers: len(entries)}
	for _, e := range entries {
		e.mu.RLock()
		if !e.dead {
			s.Chunks += e.pair.Len()
		}
		e.mu.RUnlock()
	}
	return s
}
