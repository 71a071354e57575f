package extract

// DefaultChunkWidth is the segment width used when callers pass a non-positive width.
const DefaultChunkWidth = 80

// Chunk splits text into segments of at most width runes, cutting on spaces.
// A token longer than width is cut at exactly width runes.
func Chunk(text string, width int) []string {
	if width <= 0 {
		width = DefaultChunkWidth
	}
	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for start < n {
		end := min(start+width, n)
		if end < n && runes[end] != ' ' {
			for i := end - 1; i > start; i-- {
				if runes[i] == ' ' {
					end = i
					break
				}
			}
		}
		chunks = append(chunks, string(runes[start:end]))

		// The boundary space is consumed; a hard cut keeps the next rune.
		if end < n && runes[end] == ' ' {
			start = end + 1
		} else {
			start = end
		}
	}
	return chunks
}

// ChunkAll applies Chunk to every paragraph and flattens the result.
func ChunkAll(paragraphs []string, width int) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		out = append(out, Chunk(p, width)...)
	}
	return out
}
