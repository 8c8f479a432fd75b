package knowledge

import "strings"

// Chunk splits text on whitespace into chunks of at most size characters,
// counting one separator per word. A single word longer than size gets a
// chunk of its own. Text without words comes back as a single chunk.
func Chunk(text string, size int) []string {
	words := strings.Fields(text)
	var chunks []string
	var current []string
	length := 0

	for _, w := range words {
		wl := len(w) + 1
		if length+wl > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{w}
			length = wl
			continue
		}
		current = append(current, w)
		length += wl
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
