package chunker

import "strings"

// SplitWords cuts text into windows of size words, each starting size-overlap
// words after the previous one. The last window may be shorter.
func SplitWords(text string, size, overlap int) []string {
	if size <= 0 {
		size = 300
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	words := strings.Fields(text)
	var chunks []string
	for i := 0; i < len(words); {
		end := min(i+size, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
		// Move forward with overlap
		i = end - overlap
	}
	return chunks
}
