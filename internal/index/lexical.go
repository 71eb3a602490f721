package index

import (
	"math"
	"regexp"
	"strings"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "don", "should", "now", "what", "does", "do", "say", "says",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Tokenize lowercases text and splits it into letter/number runs without stopwords.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Lexical is an Okapi BM25 index over a fixed set of chunks. It is immutable once built.
type Lexical struct {
	chunks   []Chunk
	termFreq []map[string]int
	docLen   []int
	avgLen   float64
	docFreq  map[string]int
}

// NewLexical builds a BM25 index over chunks in the given order.
func NewLexical(chunks []Chunk) *Lexical {
	l := &Lexical{
		chunks:   chunks,
		termFreq: make([]map[string]int, len(chunks)),
		docLen:   make([]int, len(chunks)),
		docFreq:  make(map[string]int),
	}

	total := 0
	for i, c := range chunks {
		tf := make(map[string]int)
		tokens := Tokenize(c.Text)
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			l.docFreq[tok]++
		}
		l.termFreq[i] = tf
		l.docLen[i] = len(tokens)
		total += len(tokens)
	}
	if len(chunks) > 0 {
		l.avgLen = float64(total) / float64(len(chunks))
	}
	return l
}

// Len returns the number of indexed chunks.
func (l *Lexical) Len() int {
	return len(l.chunks)
}

func (l *Lexical) idf(term string) float64 {
	n := float64(len(l.chunks))
	df := float64(l.docFreq[term])
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// Search scores every chunk against query and returns up to topK chunks with a positive score.
func (l *Lexical) Search(query string, topK int) []Hit {
	if len(l.chunks) == 0 {
		return nil
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	scores := make([]float64, len(l.chunks))
	for i := range l.chunks {
		norm := 1.0
		if l.avgLen > 0 {
			norm = 1 - bm25B + bm25B*float64(l.docLen[i])/l.avgLen
		}
		var s float64
		for _, term := range terms {
			f := float64(l.termFreq[i][term])
			if f == 0 {
				continue
			}
			s += l.idf(term) * (f * (bm25K1 + 1)) / (f + bm25K1*norm)
		}
		scores[i] = s
	}

	return rankHits(l.chunks, scores, func(s float64) bool { return s > 0 }, topK)
}
