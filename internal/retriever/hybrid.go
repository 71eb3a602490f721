package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/index"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/internal/websearch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexView gives read access to a user's index pair.
type IndexView interface {
	View(userID string, fn func(*index.Pair) error) error
}

type Config struct {
	TopK          int
	WebMaxResults int
	WebTimeout    time.Duration
	Weights       Weights
}

// Outcome describes how a retrieval went beyond its results.
type Outcome struct {
	DocumentsSearched bool     `json:"documents_searched"`
	WebDegraded       bool     `json:"web_degraded"`
	DocumentHits      int      `json:"document_hits"`
	WebHits           int      `json:"web_hits"`
	Notes             []string `json:"notes,omitempty"`
}

// Retriever fuses a user's document indices with web search.
type Retriever struct {
	indexes  IndexView
	embedder Embedder
	web      websearch.Searcher
	cfg      Config
}

func New(indexes IndexView, embedder Embedder, web websearch.Searcher, cfg Config) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.WebMaxResults <= 0 {
		cfg.WebMaxResults = 5
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	return &Retriever{indexes: indexes, embedder: embedder, web: web, cfg: cfg}
}

// Retrieve returns the ranked, deduplicated sources for query. Web search
// always runs; document search runs when useDocuments is set and the user has
// indexed documents. Losing the web path degrades to documents only; losing
// both is ErrRetrievalUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, userID, query string, useDocuments bool) ([]Result, Outcome, error) {
	ctx, span := otel.Tracer("retriever").Start(ctx, "retriever.retrieve")
	defer span.End()

	var (
		outcome    Outcome
		docResults []Result
		docNotes   []string
		webResults []Result
		webErr     error
		g          errgroup.Group
	)

	if useDocuments {
		g.Go(func() error {
			docResults, docNotes, outcome.DocumentsSearched = r.searchDocuments(ctx, userID, query)
			return nil
		})
	}
	g.Go(func() error {
		webResults, webErr = r.searchWeb(ctx, query)
		return nil
	})
	_ = g.Wait()

	outcome.Notes = append(outcome.Notes, docNotes...)
	outcome.DocumentHits = len(docResults)
	outcome.WebHits = len(webResults)
	span.SetAttributes(
		attribute.Int("retriever.document_hits", len(docResults)),
		attribute.Int("retriever.web_hits", len(webResults)),
		attribute.Bool("retriever.use_documents", useDocuments),
	)

	if webErr != nil {
		if len(docResults) == 0 {
			span.SetAttributes(attribute.Bool("retriever.unavailable", true))
			return nil, outcome, fmt.Errorf("%w: %w", apperr.ErrRetrievalUnavailable, webErr)
		}
		outcome.WebDegraded = true
		outcome.Notes = append(outcome.Notes, "Web search unavailable; answering from your documents only.")
		logger.Warn("Web search failed, continuing with documents", "user_id", userID, "error", webErr)
	}

	all := make([]Result, 0, len(docResults)+len(webResults))
	all = append(all, docResults...)
	all = append(all, webResults...)
	return Rank(all), outcome, nil
}

func (r *Retriever) searchWeb(ctx context.Context, query string) ([]Result, error) {
	if r.web == nil {
		return nil, fmt.Errorf("%w: web search not configured", apperr.ErrUnavailable)
	}
	if r.cfg.WebTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.WebTimeout)
		defer cancel()
	}
	hits, err := r.web.Search(ctx, query, r.cfg.WebMaxResults)
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	return WebResults(hits), nil
}

// searchDocuments scores the user's pair. An empty pair yields no results and
// no notes. The query is embedded outside the lock; scoring happens under it.
func (r *Retriever) searchDocuments(ctx context.Context, userID, query string) ([]Result, []string, bool) {
	var empty bool
	_ = r.indexes.View(userID, func(p *index.Pair) error {
		empty = p.IsEmpty()
		return nil
	})
	if empty {
		return nil, nil, false
	}

	var notes []string
	var embedding []float32
	if r.embedder != nil {
		var err error
		embedding, err = r.embedder.Embed(ctx, query)
		if err != nil {
			logger.Warn("Query embedding failed, using keyword search only", "user_id", userID, "error", err)
			notes = append(notes, "Semantic document search unavailable; used keyword matching only.")
			embedding = nil
		}
	}

	var results []Result
	_ = r.indexes.View(userID, func(p *index.Pair) error {
		if p.IsEmpty() {
			return nil
		}
		var vector []index.Hit
		if embedding != nil {
			hits, err := p.SearchVector(embedding, r.cfg.TopK)
			if err != nil {
				logger.Warn("Vector search failed", "user_id", userID, "error", err)
			} else {
				vector = hits
			}
		}
		lexical := p.SearchLexical(query, r.cfg.TopK)
		results = FuseDocuments(vector, lexical, r.cfg.Weights)
		return nil
	})
	return results, notes, true
}
