package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/index"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct{ t atomic.Int64 }

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.t.Store(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time          { return time.Unix(0, c.t.Load()) }
func (c *fakeClock) Advance(d time.Duration) { c.t.Add(int64(d)) }

func chunks(texts ...string) []index.Chunk {
	out := make([]index.Chunk, len(texts))
	for i, t := range texts {
		out[i] = index.Chunk{ID: uuid.NewString(), Text: t, Embedding: []float32{float32(len(t)), 1, float32(i)}}
	}
	return out
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := New(Options{})
	p1 := r.GetOrCreate("u1")
	p2 := r.GetOrCreate("u1")
	assert.Same(t, p1, p2)
	assert.True(t, p1.IsEmpty())
	assert.Equal(t, 1, r.Stats().ActiveUsers)
}

func TestAddRemoveDocument(t *testing.T) {
	r := New(Options{})
	ctx := context.Background()

	n, err := r.AddDocument(ctx, "u1", "paper.pdf", chunks("one", "two", "three"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = r.AddDocument(ctx, "u1", "paper.pdf", chunks("again"))
	assert.ErrorIs(t, err, apperr.ErrDuplicateFilename)

	assert.Equal(t, []index.DocumentInfo{{Filename: "paper.pdf", Chunks: 3}}, r.Documents("u1"))
	assert.Empty(t, r.Documents("u2"), "users never see each other's documents")

	require.NoError(t, r.RemoveDocument(ctx, "u1", "paper.pdf"))
	assert.ErrorIs(t, r.RemoveDocument(ctx, "u1", "paper.pdf"), apperr.ErrNotFound)
	assert.True(t, r.GetOrCreate("u1").IsEmpty())
}

func TestAddDocumentRespectsLimit(t *testing.T) {
	r := New(Options{MaxDocuments: 2})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := r.AddDocument(ctx, "u1", fmt.Sprintf("f%d.pdf", i), chunks("text"))
		require.NoError(t, err)
	}
	_, err := r.AddDocument(ctx, "u1", "f2.pdf", chunks("text"))
	assert.ErrorIs(t, err, apperr.ErrDocumentLimitExceeded)
}

func TestCanceledUploadLeavesNoTrace(t *testing.T) {
	r := New(Options{})
	_, err := r.AddDocument(context.Background(), "u1", "keep.pdf", chunks("keep"))
	require.NoError(t, err)
	before := r.GetOrCreate("u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.AddDocument(ctx, "u1", "half.pdf", chunks("a", "b"))
	require.Error(t, err)

	assert.Same(t, before, r.GetOrCreate("u1"))
	assert.False(t, r.GetOrCreate("u1").HasDocument("half.pdf"))
}

func TestFailedAddKeepsPreviousPair(t *testing.T) {
	r := New(Options{})
	_, err := r.AddDocument(context.Background(), "u1", "a.pdf", chunks("alpha"))
	require.NoError(t, err)
	before := r.GetOrCreate("u1")

	bad := []index.Chunk{{ID: uuid.NewString(), Text: "x", Embedding: []float32{1}}}
	_, err = r.AddDocument(context.Background(), "u1", "b.pdf", bad)
	require.Error(t, err, "dimension mismatch must be rejected")
	assert.Same(t, before, r.GetOrCreate("u1"))
}

func TestClearAll(t *testing.T) {
	r := New(Options{})
	_, err := r.AddDocument(context.Background(), "u1", "a.pdf", chunks("alpha"))
	require.NoError(t, err)
	r.ClearAll("u1")
	assert.True(t, r.GetOrCreate("u1").IsEmpty())
}

func TestDrop(t *testing.T) {
	r := New(Options{})
	_, err := r.AddDocument(context.Background(), "u1", "a.pdf", chunks("alpha"))
	require.NoError(t, err)
	r.Drop("u1")
	assert.Equal(t, 0, r.Stats().ActiveUsers)
	assert.True(t, r.GetOrCreate("u1").IsEmpty())
}

func TestEvictIdle(t *testing.T) {
	clock := newFakeClock()
	var evicted []string
	r := New(Options{Now: clock.Now, OnEvict: func(userID string, _ []index.DocumentInfo) {
		evicted = append(evicted, userID)
	}})

	r.GetOrCreate("idle")
	clock.Advance(20 * time.Minute)
	r.GetOrCreate("fresh")

	assert.Equal(t, []string{"idle"}, r.EvictIdle(10*time.Minute))
	assert.Equal(t, []string{"idle"}, evicted)
	assert.Equal(t, 1, r.Stats().ActiveUsers)
}

func TestEvictIdleSkipsInFlightReaders(t *testing.T) {
	clock := newFakeClock()
	r := New(Options{Now: clock.Now})
	_, err := r.AddDocument(context.Background(), "u1", "a.pdf", chunks("alpha"))
	require.NoError(t, err)

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.View("u1", func(p *index.Pair) error {
			close(inside)
			<-release
			assert.True(t, p.HasDocument("a.pdf"))
			return nil
		})
	}()

	<-inside
	clock.Advance(time.Hour)
	assert.Empty(t, r.EvictIdle(time.Minute), "pair in use must not be evicted")
	close(release)
	<-done

	clock.Advance(time.Hour)
	assert.Equal(t, []string{"u1"}, r.EvictIdle(time.Minute))
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	r := New(Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("doc-%02d.pdf", i)
			_, err := r.AddDocument(ctx, "u1", name, chunks("body of "+name))
			assert.NoError(t, err)
			if i%2 == 0 {
				assert.NoError(t, r.RemoveDocument(ctx, "u1", name))
			}
		}(i)
	}

	var dupWins atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.AddDocument(ctx, "u1", "same.pdf", chunks("same")); err == nil {
				dupWins.Add(1)
			} else {
				assert.ErrorIs(t, err, apperr.ErrDuplicateFilename)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), dupWins.Load())
	docs := r.Documents("u1")
	assert.Len(t, docs, 21)
	for _, d := range docs {
		assert.Equal(t, 1, d.Chunks)
	}
}

func TestRemoveThenReAddKeepsRanking(t *testing.T) {
	r := New(Options{})
	ctx := context.Background()

	texts := map[string][]string{
		"a.pdf": {"neural networks learn representations", "gradient descent optimizes loss"},
		"b.pdf": {"transformers use attention", "attention scales quadratically"},
		"c.pdf": {"convolutional networks for vision"},
	}
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		_, err := r.AddDocument(ctx, "u1", name, chunks(texts[name]...))
		require.NoError(t, err)
	}

	type ranked struct {
		file    string
		ordinal int
		score   float64
	}
	snapshot := func() ([]ranked, []ranked) {
		p := r.GetOrCreate("u1")
		var lex, vec []ranked
		for _, h := range p.SearchLexical("attention networks", 10) {
			lex = append(lex, ranked{h.Chunk.SourceFilename, h.Chunk.Ordinal, h.Score})
		}
		hits, err := p.SearchVector([]float32{30, 1, 0}, 10)
		require.NoError(t, err)
		for _, h := range hits {
			vec = append(vec, ranked{h.Chunk.SourceFilename, h.Chunk.Ordinal, h.Score})
		}
		return lex, vec
	}

	lexBefore, vecBefore := snapshot()
	require.NoError(t, r.RemoveDocument(ctx, "u1", "b.pdf"))
	_, err := r.AddDocument(ctx, "u1", "b.pdf", chunks(texts["b.pdf"]...))
	require.NoError(t, err)
	lexAfter, vecAfter := snapshot()

	assert.Equal(t, lexBefore, lexAfter)
	assert.Equal(t, vecBefore, vecAfter)
}
