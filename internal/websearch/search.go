package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"golang.org/x/net/publicsuffix"
)

// Result is one web search hit. Score is the provider's relevance in [0,1]
// when HasScore is set; otherwise only the position is meaningful.
type Result struct {
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
	HasScore bool    `json:"has_score"`
	Provider string  `json:"provider"`
}

// Searcher runs one web search.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Fallback tries each searcher in order and returns the first non-empty
// answer. When no searcher has results but at least one answered without
// error, the search succeeds with no results.
type Fallback struct {
	searchers []namedSearcher
}

type namedSearcher struct {
	name string
	s    Searcher
}

func NewFallback() *Fallback {
	return &Fallback{}
}

// Add appends a searcher to the chain. Nil searchers are ignored.
func (f *Fallback) Add(name string, s Searcher) *Fallback {
	if s != nil {
		f.searchers = append(f.searchers, namedSearcher{name: name, s: s})
	}
	return f
}

func (f *Fallback) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if len(f.searchers) == 0 {
		return nil, fmt.Errorf("%w: no web search provider configured", apperr.ErrUnavailable)
	}

	var errs []error
	answered := false
	for _, ns := range f.searchers {
		results, err := ns.s.Search(ctx, query, maxResults)
		if err == nil && len(results) > 0 {
			return results, nil
		}
		if err == nil {
			answered = true
			logger.Debug("Web search provider returned no results", "provider", ns.name)
		} else {
			logger.Warn("Web search provider failed", "provider", ns.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ns.name, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	if answered {
		return []Result{}, nil
	}
	return nil, fmt.Errorf("%w: %w", apperr.ErrUnavailable, errors.Join(errs...))
}

// Domain returns the registrable domain of rawURL (e.g. "bbc.co.uk"), falling
// back to the host when the public suffix list cannot answer.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return strings.TrimPrefix(host, "www.")
}
