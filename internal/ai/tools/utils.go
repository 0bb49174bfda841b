package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"evalbot/internal/logger"
)

// GetEnvToken returns the first non-empty environment variable value from the provided keys
func GetEnvToken(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			logger.Debugf("Using token from environment variable: %s", key)
			return value
		}
	}
	return ""
}

// TruncateString shortens a string to at most maxLen runes. No ellipsis is
// added: truncated documents are fed back to the model verbatim.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

var multipleNewlines = regexp.MustCompile(`\n{3,}`)

// CleanString normalizes whitespace and line endings in a string
func CleanString(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = multipleNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

type queryArgs struct {
	Query string `json:"query"`
}

func parseQuery(args string) (string, error) {
	var params queryArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	return query, nil
}
