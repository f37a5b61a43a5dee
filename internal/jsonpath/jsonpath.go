// Package jsonpath pulls the transcript out of a speech server's JSON reply.
//
// Paths use dots for keys and brackets for array indexes, for example
// "results[0].alternatives[0].transcript". They are translated to gjson
// syntax before lookup.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractTextFromResponse extracts text from a JSON response using textPath,
// falling back to a top-level "text" field and then to the first non-empty
// top-level string.
func ExtractTextFromResponse(body []byte, textPath string) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	if textPath != "" {
		if v, ok := ExtractByPath(body, textPath); ok {
			return v
		}
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return ""
	}
	if v, ok := scalar(root.Get("text")); ok {
		return v
	}
	var first string
	root.ForEach(func(_, value gjson.Result) bool {
		if value.Type == gjson.String && value.Str != "" {
			first = value.Str
			return false
		}
		return true
	})
	return first
}

// ExtractByPath extracts a scalar value from body at path.
func ExtractByPath(body []byte, path string) (string, bool) {
	gpath, err := ToGJSON(path)
	if err != nil {
		return "", false
	}
	return scalar(gjson.GetBytes(body, gpath))
}

func scalar(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		return r.Str, true
	case gjson.Number:
		return r.Raw, true
	case gjson.True, gjson.False:
		return strconv.FormatBool(r.Bool()), true
	default:
		return "", false
	}
}

// ToGJSON converts a dotted/bracketed path into a gjson path.
func ToGJSON(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	var parts []string
	for _, token := range strings.Split(path, ".") {
		key, idxs, err := ParseKeyAndIndexes(token)
		if err != nil {
			return "", err
		}
		if key != "" {
			parts = append(parts, escapeKey(key))
		}
		for _, idx := range idxs {
			if idx < 0 {
				return "", fmt.Errorf("negative index in %s", token)
			}
			parts = append(parts, strconv.Itoa(idx))
		}
	}
	return strings.Join(parts, "."), nil
}

func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseKeyAndIndexes parses a token like "foo[0][1]" or "[0]" or "bar" into base key and indexes.
func ParseKeyAndIndexes(token string) (string, []int, error) {
	if token == "" {
		return "", nil, fmt.Errorf("empty token")
	}
	br := strings.Index(token, "[")
	if br == -1 {
		return token, nil, nil
	}
	key := token[:br]
	rest := token[br:]
	var idxs []int
	for len(rest) > 0 {
		if !strings.HasPrefix(rest, "[") {
			return "", nil, fmt.Errorf("invalid index syntax in %s", token)
		}
		closePos := strings.Index(rest, "]")
		if closePos == -1 {
			return "", nil, fmt.Errorf("missing closing ] in %s", token)
		}
		numStr := rest[1:closePos]
		if numStr == "" {
			return "", nil, fmt.Errorf("empty index in %s", token)
		}
		n, err := strconv.Atoi(numStr)
		if err != nil {
			return "", nil, fmt.Errorf("invalid index '%s' in %s", numStr, token)
		}
		idxs = append(idxs, n)
		rest = rest[closePos+1:]
	}
	return key, idxs, nil
}
