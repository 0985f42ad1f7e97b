package runtime

import (
	"unicode"

	"github.com/aretw0/arbor/pkg/domain"
)

// SplitMessage splits text into chunks of at most limit characters.
//
// Policy: if the remainder fits, it is emitted as the final chunk; otherwise
// the split point is the last newline before the boundary, falling back to the
// last space, falling back to a hard cut at the boundary. The separator stays
// with the remainder, which is left-trimmed of leading whitespace before the
// next round. A limit <= 0 means domain.MaxChunkSize.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = domain.MaxChunkSize
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	remaining := runes
	for len(remaining) > 0 {
		if len(remaining) <= limit {
			parts = append(parts, string(remaining))
			break
		}

		window := remaining[:limit]
		split := lastIndex(window, '\n')
		if split < 0 {
			split = lastIndex(window, ' ')
		}
		if split < 0 {
			split = limit
		}

		parts = append(parts, string(remaining[:split]))
		remaining = trimLeadingSpace(remaining[split:])
	}
	return parts
}

func lastIndex(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func trimLeadingSpace(runes []rune) []rune {
	for len(runes) > 0 && unicode.IsSpace(runes[0]) {
		runes = runes[1:]
	}
	return runes
}
