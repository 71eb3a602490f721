package retriever

import (
	"fmt"
	"sort"

	"github.com/baibhavbaidya/researchmind-backend/internal/index"
	"github.com/baibhavbaidya/researchmind-backend/internal/websearch"
)

// Origin says which retrieval path produced a result.
type Origin string

const (
	OriginWeb     Origin = "web"
	OriginVector  Origin = "vector"
	OriginLexical Origin = "lexical"
)

// priority is used to break score ties: lower sorts first.
func (o Origin) priority() int {
	switch o {
	case OriginWeb:
		return 0
	case OriginVector:
		return 1
	default:
		return 2
	}
}

// Result is one fused search result.
type Result struct {
	SourceLabel   string  `json:"source_label"`
	URLOrFilename string  `json:"url_or_filename"`
	Title         string  `json:"title"`
	RawText       string  `json:"raw_text"`
	Score         float64 `json:"relevance_score"`
	Origin        Origin  `json:"origin"`
	Rank          int     `json:"rank"`
	ChunkID       string  `json:"chunk_id,omitempty"`
}

// Weights are the fusion weights applied to chunks found by both document indices.
type Weights struct {
	Vector  float64
	Lexical float64
}

// DefaultWeights weighs semantic and keyword evidence equally.
var DefaultWeights = Weights{Vector: 0.5, Lexical: 0.5}

// Normalize min-max scales scores into [0,1]. A list whose scores are all equal
// maps to 1.0 so a lone hit is treated as a full-strength match.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	for i, s := range scores {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

func hitScores(hits []index.Hit) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = h.Score
	}
	return out
}

// FuseDocuments unions vector and lexical hits by chunk id. Chunks present in
// both lists get the weighted sum of their normalized scores; the rest keep the
// normalized score of the list they came from.
func FuseDocuments(vector, lexical []index.Hit, w Weights) []Result {
	vn := Normalize(hitScores(vector))
	ln := Normalize(hitScores(lexical))

	lexByID := make(map[string]int, len(lexical))
	for i, h := range lexical {
		lexByID[h.Chunk.ID] = i
	}

	out := make([]Result, 0, len(vector)+len(lexical))
	used := make(map[string]bool, len(vector))
	for i, h := range vector {
		score := vn[i]
		if j, ok := lexByID[h.Chunk.ID]; ok {
			score = w.Vector*vn[i] + w.Lexical*ln[j]
		}
		used[h.Chunk.ID] = true
		out = append(out, documentResult(h, score, OriginVector))
	}
	for j, h := range lexical {
		if used[h.Chunk.ID] {
			continue
		}
		out = append(out, documentResult(h, ln[j], OriginLexical))
	}
	return out
}

func documentResult(h index.Hit, score float64, origin Origin) Result {
	return Result{
		URLOrFilename: h.Chunk.SourceFilename,
		Title:         fmt.Sprintf("%s (part %d)", h.Chunk.SourceFilename, h.Chunk.Ordinal+1),
		RawText:       h.Chunk.Text,
		Score:         score,
		Origin:        origin,
		Rank:          h.Rank,
		ChunkID:       h.Chunk.ID,
	}
}

// WebResults converts provider hits into fused results. Provider scores are
// min-max normalized; providers without scores are ranked by position.
func WebResults(hits []websearch.Result) []Result {
	scored := len(hits) > 0
	for _, h := range hits {
		if !h.HasScore {
			scored = false
			break
		}
	}

	raw := make([]float64, len(hits))
	for i, h := range hits {
		if scored {
			raw[i] = h.Score
		} else {
			raw[i] = float64(len(hits) - i)
		}
	}
	norm := Normalize(raw)

	out := make([]Result, len(hits))
	for i, h := range hits {
		title := h.Title
		if title == "" {
			title = websearch.Domain(h.URL)
		}
		out[i] = Result{
			URLOrFilename: h.URL,
			Title:         title,
			RawText:       h.Snippet,
			Score:         norm[i],
			Origin:        OriginWeb,
			Rank:          i,
		}
	}
	return out
}

// Rank orders results by score, then origin priority (web, vector, lexical),
// then original rank; drops later duplicates of the same url or filename; and
// assigns sequential source labels.
func Rank(results []Result) []Result {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Origin.priority() != b.Origin.priority() {
			return a.Origin.priority() < b.Origin.priority()
		}
		return a.Rank < b.Rank
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, r := range sorted {
		if seen[r.URLOrFilename] {
			continue
		}
		seen[r.URLOrFilename] = true
		out = append(out, r)
	}
	for i := range out {
		out[i].SourceLabel = fmt.Sprintf("Source %d", i+1)
	}
	return out
}
