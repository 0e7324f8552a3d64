package linking

import "strings"

const (
	maxParagraphChunk = 800
	windowSize        = 512
	windowOverlap     = 50
)

// chunkText splits text into paragraph chunks (spec §4.6): a paragraph
// under maxParagraphChunk chars is kept whole; longer text (including an
// over-long paragraph) falls back to fixed-size overlapping windows.
func chunkText(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	var out []string
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) <= maxParagraphChunk {
			out = append(out, p)
			continue
		}
		out = append(out, windowChunks(p)...)
	}
	if len(out) == 0 && len(text) > 0 {
		out = windowChunks(text)
	}
	return out
}

func windowChunks(text string) []string {
	var out []string
	step := windowSize - windowOverlap
	for start := 0; start < len(text); start += step {
		end := start + windowSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
		if end == len(text) {
			break
		}
	}
	return out
}
