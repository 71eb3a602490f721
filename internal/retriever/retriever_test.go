package retriever

import (
	"context"
	"errors"
	"hash/fnv"
	"testing"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/index"
	"github.com/baibhavbaidya/researchmind-backend/internal/registry"
	"github.com/baibhavbaidya/researchmind-backend/internal/websearch"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// bagEmbedder hashes tokens into a small dense vector.
type bagEmbedder struct{ err error }

func (b bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	return bag(text), nil
}

func bag(text string) []float32 {
	v := make([]float32, 16)
	for _, tok := range index.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%16]++
	}
	v[15] += 0.01
	return v
}

type stubWeb struct {
	results []websearch.Result
	err     error
}

func (s stubWeb) Search(context.Context, string, int) ([]websearch.Result, error) {
	return s.results, s.err
}

func webHits() []websearch.Result {
	return []websearch.Result{
		{Title: "Wiki", URL: "https://en.wikipedia.org/wiki/X", Snippet: "x is a thing", Score: 0.8, HasScore: true},
		{Title: "Blog", URL: "https://blog.example.com/x", Snippet: "more about x", Score: 0.3, HasScore: true},
	}
}

func uploadPaper(t *testing.T, reg *registry.Registry, userID string) {
	t.Helper()
	texts := []string{
		"Paper introduction: attention mechanisms improve translation quality.",
		"Methods: we train transformers on parallel corpora for translation.",
		"Results: photosynthesis is unrelated to this paper.",
	}
	chunks := make([]index.Chunk, len(texts))
	for i, txt := range texts {
		chunks[i] = index.Chunk{ID: uuid.NewString(), Text: txt, Embedding: bag(txt)}
	}
	_, err := reg.AddDocument(context.Background(), userID, "paper.pdf", chunks)
	require.NoError(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []float64{}, Normalize(nil))
	assert.Equal(t, []float64{1}, Normalize([]float64{0.42}))
	assert.Equal(t, []float64{1, 1}, Normalize([]float64{3, 3}))
	assert.InDeltaSlice(t, []float64{1, 0.5, 0}, Normalize([]float64{10, 6, 2}), 1e-9)
}

func hit(id, file string, score float64, rank int) index.Hit {
	return index.Hit{Chunk: index.Chunk{ID: id, SourceFilename: file, Text: id}, Score: score, Rank: rank}
}

func TestFuseDocumentsWeightsOverlap(t *testing.T) {
	vector := []index.Hit{hit("a", "a.pdf", 0.9, 0), hit("b", "b.pdf", 0.5, 1), hit("c", "c.pdf", 0.1, 2)}
	lexical := []index.Hit{hit("c", "c.pdf", 8, 0), hit("d", "d.pdf", 2, 1)}

	fused := FuseDocuments(vector, lexical, Weights{Vector: 0.7, Lexical: 0.3})
	byID := map[string]Result{}
	for _, r := range fused {
		byID[r.ChunkID] = r
	}
	require.Len(t, byID, 4)
	assert.InDelta(t, 1.0, byID["a"].Score, 1e-9)
	assert.InDelta(t, 0.5, byID["b"].Score, 1e-9)
	assert.InDelta(t, 0.7*0+0.3*1, byID["c"].Score, 1e-9)
	assert.Equal(t, OriginVector, byID["c"].Origin)
	assert.InDelta(t, 0.0, byID["d"].Score, 1e-9)
	assert.Equal(t, OriginLexical, byID["d"].Origin)
}

func TestRankTieBreaksAndDedup(t *testing.T) {
	ranked := Rank([]Result{
		{URLOrFilename: "lex.pdf", Score: 1, Origin: OriginLexical, Rank: 0},
		{URLOrFilename: "vec.pdf", Score: 1, Origin: OriginVector, Rank: 1},
		{URLOrFilename: "vec2.pdf", Score: 1, Origin: OriginVector, Rank: 0},
		{URLOrFilename: "https://w", Score: 1, Origin: OriginWeb, Rank: 3},
		{URLOrFilename: "https://w", Score: 0.2, Origin: OriginWeb, Rank: 4},
		{URLOrFilename: "low.pdf", Score: 0.1, Origin: OriginVector, Rank: 2},
	})

	var order []string
	for _, r := range ranked {
		order = append(order, r.URLOrFilename)
	}
	assert.Equal(t, []string{"https://w", "vec2.pdf", "vec.pdf", "lex.pdf", "low.pdf"}, order)
	assert.Equal(t, 1.0, ranked[0].Score, "higher scored duplicate wins")
	assert.Equal(t, "Source 1", ranked[0].SourceLabel)
	assert.Equal(t, "Source 5", ranked[4].SourceLabel)
}

func TestWebResultsWithoutScoresUsePosition(t *testing.T) {
	res := WebResults([]websearch.Result{{URL: "https://a.org"}, {URL: "https://b.org"}, {URL: "https://c.org"}})
	require.Len(t, res, 3)
	assert.Equal(t, 1.0, res[0].Score)
	assert.Equal(t, 0.5, res[1].Score)
	assert.Equal(t, 0.0, res[2].Score)
	assert.Equal(t, "a.org", res[0].Title)
}

func position(results []Result, chunkID string) int {
	for i, r := range results {
		if r.ChunkID == chunkID {
			return i
		}
	}
	return len(results)
}

func TestFusionIsMonotonicInVectorScore(t *testing.T) {
	lexical := []index.Hit{hit("l1", "l1.pdf", 5, 0), hit("v2", "v2.pdf", 3, 1), hit("l2", "l2.pdf", 1, 2)}
	web := WebResults(webHits())

	for _, target := range []string{"v1", "v2", "v3"} {
		prev := -1
		for boost := 0.0; boost <= 1.0; boost += 0.05 {
			scores := map[string]float64{"v1": 0.6, "v2": 0.4, "v3": 0.2}
			scores[target] += boost
			vector := []index.Hit{
				hit("v1", "v1.pdf", scores["v1"], 0),
				hit("v2", "v2.pdf", scores["v2"], 1),
				hit("v3", "v3.pdf", scores["v3"], 2),
			}
			// rank reflects the order an index would report
			sortHits(vector)

			all := append(FuseDocuments(vector, lexical, DefaultWeights), web...)
			pos := position(Rank(all), target)
			if prev >= 0 {
				assert.LessOrEqual(t, pos, prev, "target %s boost %.2f moved down", target, boost)
			}
			prev = pos
		}
	}
}

func sortHits(hits []index.Hit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	for i := range hits {
		hits[i].Rank = i
	}
}

func TestRetrieveWithoutDocumentsIsWebOnly(t *testing.T) {
	reg := registry.New(registry.Options{})
	r := New(reg, bagEmbedder{}, stubWeb{results: webHits()}, Config{})

	results, outcome, err := r.Retrieve(context.Background(), "nobody", "anything at all", true)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.Equal(t, OriginWeb, res.Origin)
	}
	assert.False(t, outcome.DocumentsSearched)
	assert.Empty(t, outcome.Notes)
}

func TestRetrieveIncludesUploadedPaper(t *testing.T) {
	reg := registry.New(registry.Options{})
	uploadPaper(t, reg, "u1")
	r := New(reg, bagEmbedder{}, stubWeb{results: webHits()}, Config{})

	results, outcome, err := r.Retrieve(context.Background(), "u1", "what does paper.pdf say about translation", true)
	require.NoError(t, err)
	assert.True(t, outcome.DocumentsSearched)

	found := false
	for _, res := range results {
		if res.URLOrFilename == "paper.pdf" {
			found = true
			assert.Contains(t, []Origin{OriginVector, OriginLexical}, res.Origin)
		}
	}
	assert.True(t, found)
}

func TestRetrieveIgnoresDocumentsWhenNotRequested(t *testing.T) {
	reg := registry.New(registry.Options{})
	uploadPaper(t, reg, "u1")
	r := New(reg, bagEmbedder{}, stubWeb{results: webHits()}, Config{})

	results, _, err := r.Retrieve(context.Background(), "u1", "translation", false)
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, OriginWeb, res.Origin)
	}
}

func TestRetrieveDegradesWhenWebFails(t *testing.T) {
	reg := registry.New(registry.Options{})
	uploadPaper(t, reg, "u1")
	r := New(reg, bagEmbedder{}, stubWeb{err: apperr.ErrUnavailable}, Config{})

	results, outcome, err := r.Retrieve(context.Background(), "u1", "translation transformers", true)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.True(t, outcome.WebDegraded)
	assert.NotEmpty(t, outcome.Notes)
	for _, res := range results {
		assert.NotEqual(t, OriginWeb, res.Origin)
	}
}

func TestRetrieveUnavailableWhenBothFail(t *testing.T) {
	reg := registry.New(registry.Options{})
	r := New(reg, bagEmbedder{}, stubWeb{err: errors.New("dns")}, Config{})

	_, _, err := r.Retrieve(context.Background(), "u1", "translation", true)
	assert.ErrorIs(t, err, apperr.ErrRetrievalUnavailable)
}

func TestRetrieveFallsBackToKeywordsWhenEmbeddingFails(t *testing.T) {
	reg := registry.New(registry.Options{})
	uploadPaper(t, reg, "u1")
	r := New(reg, bagEmbedder{err: apperr.ErrUnavailable}, stubWeb{results: webHits()}, Config{})

	results, outcome, err := r.Retrieve(context.Background(), "u1", "photosynthesis", true)
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Notes)

	var origins []Origin
	for _, res := range results {
		if res.URLOrFilename == "paper.pdf" {
			origins = append(origins, res.Origin)
		}
	}
	assert.Equal(t, []Origin{OriginLexical}, origins)
}
