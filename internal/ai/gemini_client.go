package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GeminiClient struct {
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	budget      *Budget
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

func NewGeminiClient(apiKey, model, tier string) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(limits.RPM/10, 1))

	return &GeminiClient{
		breaker:     breaker,
		rateLimiter: rateLimiter,
		budget:      NewBudget(limits),
		client:      client,
		model:       model,
		temperature: 0.3,
		maxTokens:   2048,
	}, nil
}

// Generate sends prompt to Gemini and returns the text of the first candidate.
// Failures map to ErrUnavailable, ErrTimeout or ErrRateLimited.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.model),
	)

	if !gc.budget.Reserve(estimatedTokens) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", fmt.Errorf("%w: gemini budget exhausted, wait before retry", apperr.ErrRateLimited)
	}
	actualTokens := estimatedTokens
	defer func() { gc.budget.Settle(estimatedTokens, actualTokens) }()

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", apperr.FromContext(err)
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(gc.temperature)
		model.SetMaxOutputTokens(gc.maxTokens)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
			return nil, err
		}

		actualTokens = extractTokenUsage(resp)
		span.SetAttributes(attribute.Int("gemini.actual_tokens", actualTokens))
		return resp, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", fmt.Errorf("%w: gemini circuit open", apperr.ErrUnavailable)
		case errors.Is(err, context.DeadlineExceeded):
			return "", fmt.Errorf("%w: gemini: %v", apperr.ErrTimeout, err)
		case errors.Is(err, context.Canceled):
			return "", err
		default:
			return "", fmt.Errorf("%w: gemini: %v", apperr.ErrUnavailable, err)
		}
	}

	text := responseText(result.(*genai.GenerateContentResponse))
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned an empty response", apperr.ErrUnavailable)
	}
	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

// 1 token is roughly 4 characters for Gemini
func estimateTokens(prompt string) int {
	return max(len(prompt)/4, 1)
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return estimateTokens(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return strings.TrimSpace(sb.String())
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
