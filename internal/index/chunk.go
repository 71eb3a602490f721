package index

import "sort"

// Chunk is one bounded slice of an uploaded document together with its embedding.
type Chunk struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	SourceFilename string    `json:"source_filename"`
	Text           string    `json:"text"`
	Embedding      []float32 `json:"-"`
	Ordinal        int       `json:"ordinal"`
}

// Hit is a chunk matched by one of the indices. Rank is the 0-based position in that index's result list.
type Hit struct {
	Chunk Chunk
	Score float64
	Rank  int
}

// canonicalOrder sorts chunks by filename then ordinal so that a pair built from
// the same chunks always has the same internal layout regardless of upload order.
func canonicalOrder(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].SourceFilename != chunks[j].SourceFilename {
			return chunks[i].SourceFilename < chunks[j].SourceFilename
		}
		return chunks[i].Ordinal < chunks[j].Ordinal
	})
}

// rankHits orders scored positions by score desc, breaking ties on canonical position, and keeps topK.
func rankHits(chunks []Chunk, scores []float64, keep func(float64) bool, topK int) []Hit {
	idxs := make([]int, 0, len(scores))
	for i, s := range scores {
		if keep(s) {
			idxs = append(idxs, i)
		}
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})
	if topK > 0 && len(idxs) > topK {
		idxs = idxs[:topK]
	}

	hits := make([]Hit, len(idxs))
	for rank, i := range idxs {
		hits[rank] = Hit{Chunk: chunks[i], Score: scores[i], Rank: rank}
	}
	return hits
}
