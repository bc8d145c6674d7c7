package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// extractJSON pulls a JSON object out of a model response that may wrap it
// in prose or code fences. The last fenced object wins since models tend to
// correct themselves in a second block; otherwise the first brace that starts
// a complete object is used and any text after it is ignored.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	if obj := lastFencedObject(response); obj != "" {
		return obj
	}
	return firstObject(response)
}

// lastFencedObject returns the last ``` block whose body is a valid object.
func lastFencedObject(s string) string {
	parts := strings.Split(s, "```")
	var found string
	// Odd indices sit between an opening and a closing fence.
	for i := 1; i < len(parts)-1; i += 2 {
		body := strings.TrimPrefix(parts[i], "json")
		body = strings.TrimSpace(body)
		if strings.HasPrefix(body, "{") && json.Valid([]byte(body)) {
			found = body
		}
	}
	return found
}

// firstObject decodes from each '{' in turn and returns the raw bytes of the
// first one that parses. Unbalanced input yields "".
func firstObject(s string) string {
	for i := strings.IndexByte(s, '{'); i != -1; {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&raw); err == nil {
			return string(raw)
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next == -1 {
			break
		}
		i += next + 1
	}
	return ""
}

// marshalPayload encodes v without HTML escaping so non-ASCII text and
// symbols reach the model untouched.
func marshalPayload(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// truncateString truncates to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
