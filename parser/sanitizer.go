package parser

import (
	"regexp"
	"strings"
)

// fenceMarker matches a markdown code fence with an optional language tag
var fenceMarker = regexp.MustCompile("(?i)```[a-z0-9_+-]*")

// Sanitize narrows raw model output to the substring most likely to be the
// JSON record: fence markers are removed, narrative before the first "{" and
// after the last "}" is cut. It never fails; when no brace span exists the
// best partial narrowing is returned and the caller's JSON decode decides.
// Sanitize is idempotent.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripFences(s)

	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndex(s, "}"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// stripFences removes fence markers until none remain, leaving fenced content in place
func stripFences(s string) string {
	for fenceMarker.MatchString(s) {
		s = fenceMarker.ReplaceAllString(s, "")
	}
	return s
}

// HasRecordSpan reports whether s contains an opening brace followed later by a closing one
func HasRecordSpan(s string) bool {
	start := strings.Index(s, "{")
	return start >= 0 && strings.LastIndex(s, "}") > start
}

// SanitizeArray narrows raw model output to a bare JSON array span when a "["
// opens before any "{". ok is false when the output is not array-shaped.
func SanitizeArray(raw string) (string, bool) {
	s := stripFences(strings.TrimSpace(raw))

	start := strings.Index(s, "[")
	if start < 0 {
		return "", false
	}
	if obj := strings.Index(s, "{"); obj >= 0 && obj < start {
		return "", false
	}
	end := strings.LastIndex(s, "]")
	if end < start {
		return "", false
	}
	return s[start : end+1], true
}
