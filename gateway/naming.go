package gateway

import (
	"strings"
)

// camelize converts every snake_case map key in a decoded JSON value to
// camelCase, recursively. The gateway speaks snake_case; callbacks receive
// the library's naming convention.
func camelize(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[toCamelCase(k)] = camelize(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = camelize(item)
		}
		return out
	}
	return v
}

func toCamelCase(s string) string {
	if !strings.ContainsRune(s, '_') {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// camelizeRaw decodes a raw payload and camelizes its keys. Undecodable
// payloads pass through as nil.
func camelizeRaw(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return camelize(v)
}
