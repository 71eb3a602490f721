package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liteFixture = `<html><body><table>
<tr><td>1.</td><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Fpaper&amp;rut=abc" class="result-link">Example Paper</a></td></tr>
<tr><td></td><td class="result-snippet">A study of   retrieval augmented generation.</td></tr>
<tr><td>2.</td><td><a rel="nofollow" href="https://news.bbc.co.uk/story" class="result-link">BBC Story</a></td></tr>
<tr><td></td><td class="result-snippet">Second snippet.</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	results, err := parseLiteResults([]byte(liteFixture), 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Example Paper", results[0].Title)
	assert.Equal(t, "https://example.org/paper", results[0].URL)
	assert.Equal(t, "A study of retrieval augmented generation.", results[0].Snippet)
	assert.False(t, results[0].HasScore)
	assert.Equal(t, "Second snippet.", results[1].Snippet)

	limited, err := parseLiteResults([]byte(liteFixture), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDuckDuckGoSearchOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "quantum computing", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(liteFixture))
	}))
	defer srv.Close()

	results, err := NewDuckDuckGo(srv.URL+"/lite/", time.Second).Search(context.Background(), "quantum computing", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "key", req.APIKey)
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.Equal(t, 3, req.MaxResults)
		_, _ = w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a.com","content":"alpha","score":0.9},
			{"title":"no url","url":"","content":"skip","score":0.8},
			{"title":"B","url":"https://b.com","content":"beta","score":0.4}]}`))
	}))
	defer srv.Close()

	results, err := NewTavily("key", srv.URL, time.Second).Search(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0.9, results[0].Score)
	assert.True(t, results[0].HasScore)
	assert.Equal(t, "tavily", results[1].Provider)
}

func TestTavilyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewTavily("key", srv.URL, time.Second).Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

type stubSearcher struct {
	results []Result
	err     error
	calls   int
}

func (s *stubSearcher) Search(context.Context, string, int) ([]Result, error) {
	s.calls++
	return s.results, s.err
}

func TestFallbackUsesNextProvider(t *testing.T) {
	primary := &stubSearcher{err: errors.New("down")}
	secondary := &stubSearcher{results: []Result{{URL: "https://x.org"}}}

	results, err := NewFallback().Add("primary", primary).Add("secondary", secondary).Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, primary.calls)
}

func TestFallbackEmptyAnswerIsNotAFailure(t *testing.T) {
	empty := &stubSearcher{}
	other := &stubSearcher{}
	results, err := NewFallback().Add("a", empty).Add("b", other).Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, other.calls, "empty answers still fall through")

	results, err = NewFallback().Add("a", &stubSearcher{err: errors.New("down")}).Add("b", &stubSearcher{}).
		Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFallbackAllFail(t *testing.T) {
	_, err := NewFallback().Add("a", &stubSearcher{err: errors.New("down")}).Add("b", &stubSearcher{err: errors.New("quota")}).
		Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	_, err = NewFallback().Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  time.Duration
}

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.([]byte)
	m.ttl = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestCachedSearchHitsOnce(t *testing.T) {
	next := &stubSearcher{results: []Result{{Title: "T", URL: "https://t.io", Score: 0.5, HasScore: true}}}
	kv := &memKV{data: map[string][]byte{}}
	c := NewCached(next, kv, time.Hour)

	first, err := c.Search(context.Background(), "Large  Language Models", 5)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "large language models", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, time.Hour, kv.ttl)
}

func TestCachedSearchDoesNotCacheErrors(t *testing.T) {
	next := &stubSearcher{err: apperr.ErrUnavailable}
	kv := &memKV{data: map[string][]byte{}}
	c := NewCached(next, kv, time.Hour)

	_, err := c.Search(context.Background(), "q", 5)
	assert.Error(t, err)
	assert.Empty(t, kv.data)
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "bbc.co.uk", Domain("https://news.bbc.co.uk/story"))
	assert.Equal(t, "example.org", Domain("https://www.example.org/a?b=c"))
	assert.Equal(t, "", Domain("not a url"))
}
