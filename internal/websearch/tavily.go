package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultTavilyURL = "https://api.tavily.com/search"

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Tavily queries the Tavily search API.
type Tavily struct {
	apiKey  string
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewTavily(apiKey, endpoint string, timeout time.Duration) *Tavily {
	if endpoint == "" {
		endpoint = DefaultTavilyURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TavilySearch",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Tavily{
		apiKey:  apiKey,
		url:     endpoint,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	ctx, span := otel.Tracer("websearch").Start(ctx, "tavily.search")
	defer span.End()
	span.SetAttributes(attribute.Int("websearch.max_results", maxResults))

	out, err := t.breaker.Execute(func() (interface{}, error) {
		return t.do(ctx, query, maxResults)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("websearch.error", true))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: tavily circuit open", apperr.ErrUnavailable)
		}
		return nil, apperr.FromContext(err)
	}

	results := out.([]Result)
	span.SetAttributes(attribute.Int("websearch.results", len(results)))
	return results, nil
}

func (t *Tavily) do(ctx context.Context, query string, maxResults int) ([]Result, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		SearchDepth: "advanced",
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read tavily response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tavily returned status %d", apperr.ErrUnavailable, resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode tavily response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, Result{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  r.Content,
			Score:    r.Score,
			HasScore: true,
			Provider: "tavily",
		})
	}
	return results, nil
}
