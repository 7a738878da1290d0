// Package workers implements the five pipeline worker roles on top of the
// shared agent loop.
package workers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	fencedSQLRe  = regexp.MustCompile("```(?:sql)?\\s*([\\s\\S]*?)```")
)

// extractJSON pulls a JSON payload out of model text. Handles payloads
// wrapped in fenced code blocks as well as plain JSON.
func extractJSON(content string) string {
	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

// extractSQL pulls query text out of model text. Layered: a structured
// "sql" field first, then a fenced code block, then raw text starting with
// a query keyword. Failing all three is an extraction error.
func extractSQL(content string) (string, error) {
	jsonStr := extractJSON(content)
	var payload struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &payload); err == nil && payload.SQL != "" {
		return payload.SQL, nil
	}

	if m := fencedSQLRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1]), nil
	}

	trimmed := strings.TrimSpace(content)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") {
		return trimmed, nil
	}

	return "", fmt.Errorf("could not extract SQL from response")
}
