package index

import (
	"fmt"
	"sort"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
)

// DocumentInfo describes one uploaded document held by a pair.
type DocumentInfo struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

// Pair is a user's lexical and vector index over the same chunks plus the
// filename -> chunk id registry. A Pair is never mutated after construction;
// adding or removing a document produces a new Pair.
type Pair struct {
	UserID    string
	lexical   *Lexical
	vector    *Vector
	chunks    []Chunk
	documents map[string][]string
}

// NewPair builds both indices over chunks. Chunks are laid out in filename/ordinal
// order and ordinals are renumbered to be contiguous per filename.
func NewPair(userID string, chunks []Chunk) (*Pair, error) {
	owned := make([]Chunk, len(chunks))
	copy(owned, chunks)
	canonicalOrder(owned)

	seen := make(map[string]struct{}, len(owned))
	documents := make(map[string][]string)
	for i := range owned {
		c := &owned[i]
		if c.UserID != "" && c.UserID != userID {
			return nil, fmt.Errorf("chunk %s belongs to user %s, not %s", c.ID, c.UserID, userID)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = struct{}{}
		c.UserID = userID
		c.Ordinal = len(documents[c.SourceFilename])
		documents[c.SourceFilename] = append(documents[c.SourceFilename], c.ID)
	}

	vec, err := NewVector(owned)
	if err != nil {
		return nil, err
	}

	return &Pair{
		UserID:    userID,
		lexical:   NewLexical(owned),
		vector:    vec,
		chunks:    owned,
		documents: documents,
	}, nil
}

// Empty returns a pair with no documents.
func Empty(userID string) *Pair {
	p, _ := NewPair(userID, nil)
	return p
}

// IsEmpty reports whether the pair holds no chunks.
func (p *Pair) IsEmpty() bool {
	return len(p.chunks) == 0
}

// Len returns the number of chunks in the pair.
func (p *Pair) Len() int {
	return len(p.chunks)
}

// HasDocument reports whether filename is registered.
func (p *Pair) HasDocument(filename string) bool {
	_, ok := p.documents[filename]
	return ok
}

// Documents lists the registered documents sorted by filename.
func (p *Pair) Documents() []DocumentInfo {
	out := make([]DocumentInfo, 0, len(p.documents))
	for name, ids := range p.documents {
		out = append(out, DocumentInfo{Filename: name, Chunks: len(ids)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// ChunkIDs returns the chunk ids recorded for filename.
func (p *Pair) ChunkIDs(filename string) []string {
	ids := p.documents[filename]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Chunks returns a copy of every chunk in canonical order.
func (p *Pair) Chunks() []Chunk {
	out := make([]Chunk, len(p.chunks))
	copy(out, p.chunks)
	return out
}

// WithDocument returns a new pair that also contains filename's chunks.
func (p *Pair) WithDocument(filename string, chunks []Chunk) (*Pair, error) {
	if p.HasDocument(filename) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrDuplicateFilename, filename)
	}
	if len(chunks) == 0 {
		return nil, apperr.Validation("document %s produced no chunks", filename)
	}

	next := make([]Chunk, 0, len(p.chunks)+len(chunks))
	next = append(next, p.chunks...)
	for i, c := range chunks {
		c.SourceFilename = filename
		c.Ordinal = i
		next = append(next, c)
	}
	return NewPair(p.UserID, next)
}

// WithoutDocument returns a new pair rebuilt from every chunk not belonging to filename.
func (p *Pair) WithoutDocument(filename string) (*Pair, error) {
	if !p.HasDocument(filename) {
		return nil, fmt.Errorf("%w: document %s", apperr.ErrNotFound, filename)
	}

	remaining := make([]Chunk, 0, len(p.chunks))
	for _, c := range p.chunks {
		if c.SourceFilename != filename {
			remaining = append(remaining, c)
		}
	}
	return NewPair(p.UserID, remaining)
}

// SearchLexical runs a BM25 query against the pair.
func (p *Pair) SearchLexical(query string, topK int) []Hit {
	return p.lexical.Search(query, topK)
}

// SearchVector runs a cosine similarity query against the pair.
func (p *Pair) SearchVector(embedding []float32, topK int) ([]Hit, error) {
	return p.vector.Search(embedding, topK)
}
