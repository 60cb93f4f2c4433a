package chunking

import "strings"

// Splitter cuts text into overlapping rune windows. A window ends at the
// last line or sentence break in its final quarter when one exists, so
// spec rows and sentences stay whole.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.ReplaceAll(text, "\r\n", "\n"))
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := min(start+s.ChunkSize, len(runes))
		if end < len(runes) {
			end = breakPoint(runes, start, end)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint returns the index just past the last boundary rune in the
// final quarter of runes[start:end], or end when there is none.
func breakPoint(runes []rune, start, end int) int {
	floor := end - (end-start)/4
	for i := end - 1; i >= floor && i > start; i-- {
		if isBoundary(runes[i]) {
			return i + 1
		}
	}
	return end
}

func isBoundary(r rune) bool {
	switch r {
	case '\n', '。', '！', '？', '；', '.', '!', '?', ';':
		return true
	}
	return false
}
