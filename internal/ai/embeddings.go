package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	gogenai "github.com/google/generative-ai-go/genai"
	"google.golang.org/genai"
)

// Embedder turns text into fixed width vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// NewEmbedder returns the embedder selected by EMBEDDINGS_PROVIDER.
// Default provider is Google Generative AI (text-embedding-004).
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	switch cfg.EmbeddingsProvider {
	case "google", "":
		return NewGoogleEmbedder(ctx, cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
	case "genai":
		return NewGenAIEmbedder(ctx, cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// batchLimit is the maximum number of texts per BatchEmbedContents call.
const batchLimit = 100

// GoogleEmbedder uses the generative-ai-go SDK.
type GoogleEmbedder struct {
	client *gogenai.Client
	model  string
}

func NewGoogleEmbedder(ctx context.Context, apiKey, model string) (*GoogleEmbedder, error) {
	client, err := gogenai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &GoogleEmbedder{client: client, model: model}, nil
}

// Embed embeds a search query.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("embeddings").Start(ctx, "embeddings.query")
	defer span.End()

	em := e.client.EmbeddingModel(e.model)
	em.TaskType = gogenai.TaskTypeRetrievalQuery
	resp, err := em.EmbedContent(ctx, gogenai.Text(text))
	if err != nil {
		return nil, wrapEmbedErr(err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", apperr.ErrUnavailable)
	}
	return resp.Embedding.Values, nil
}

// EmbedDocuments embeds document chunks in batches, preserving order.
func (e *GoogleEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer("embeddings").Start(ctx, "embeddings.documents")
	defer span.End()
	span.SetAttributes(attribute.Int("embeddings.count", len(texts)))

	em := e.client.EmbeddingModel(e.model)
	em.TaskType = gogenai.TaskTypeRetrievalDocument

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchLimit {
		end := min(start+batchLimit, len(texts))
		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(gogenai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, wrapEmbedErr(err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", apperr.ErrUnavailable, end-start, len(resp.Embeddings))
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

func (e *GoogleEmbedder) Close() error {
	return e.client.Close()
}

// GenAIEmbedder uses the google.golang.org/genai SDK.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

func (e *GenAIEmbedder) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: taskType})
	if err != nil {
		return nil, wrapEmbedErr(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", apperr.ErrUnavailable, len(texts), len(resp.Embeddings))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *GenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchLimit {
		end := min(start+batchLimit, len(texts))
		part, err := e.embed(ctx, texts[start:end], "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

func (e *GenAIEmbedder) Close() error {
	return nil
}

func wrapEmbedErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: embeddings: %v", apperr.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: embeddings: %v", apperr.ErrUnavailable, err)
	}
}
