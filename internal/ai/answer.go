package ai

import "strings"

// ExtractFinalAnswer returns the text following the last occurrence of
// marker, trimmed. Content without the marker is returned trimmed.
func ExtractFinalAnswer(content, marker string) string {
	if marker == "" {
		return strings.TrimSpace(content)
	}
	idx := strings.LastIndex(content, marker)
	if idx < 0 {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(content[idx+len(marker):])
}
