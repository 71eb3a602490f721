package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/index"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DocumentEmbedder embeds chunk texts in order.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type Config struct {
	MaxBytes     int64
	Words        int
	OverlapWords int
}

// Chunker turns uploaded files into embedded chunks.
type Chunker struct {
	embedder DocumentEmbedder
	cfg      Config
}

// Document is a chunked upload. Chunks carry ids, filename and ordinals but no user.
type Document struct {
	Filename string
	Pages    int
	Chunks   []index.Chunk
}

func New(embedder DocumentEmbedder, cfg Config) *Chunker {
	if cfg.Words <= 0 {
		cfg.Words = 300
	}
	if cfg.OverlapWords < 0 || cfg.OverlapWords >= cfg.Words {
		cfg.OverlapWords = 50
	}
	return &Chunker{embedder: embedder, cfg: cfg}
}

// Chunk extracts, splits and embeds content. It fails with ErrTooLarge,
// ErrUnsupportedFormat, or ErrValidation when the file holds no text.
func (c *Chunker) Chunk(ctx context.Context, filename string, content []byte) (*Document, error) {
	ctx, span := otel.Tracer("chunker").Start(ctx, "chunker.chunk")
	defer span.End()
	span.SetAttributes(attribute.String("filename", filename), attribute.Int("bytes", len(content)))

	if c.cfg.MaxBytes > 0 && int64(len(content)) > c.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", apperr.ErrTooLarge, len(content), c.cfg.MaxBytes)
	}

	extraction, err := ExtractPDF(content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(extraction.Text) == "" {
		return nil, apperr.Validation("no extractable text in %s", filename)
	}

	texts := SplitWords(extraction.Text, c.cfg.Words, c.cfg.OverlapWords)
	embeddings, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", filename, err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", apperr.ErrUnavailable, len(embeddings), len(texts))
	}

	chunks := make([]index.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = index.Chunk{
			ID:             uuid.NewString(),
			SourceFilename: filename,
			Text:           text,
			Embedding:      embeddings[i],
			Ordinal:        i,
		}
	}
	span.SetAttributes(attribute.Int("pages", extraction.Pages), attribute.Int("chunks", len(chunks)))
	return &Document{Filename: filename, Pages: extraction.Pages, Chunks: chunks}, nil
}
