package threat

import "strings"

var sanitizer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize HTML-escapes the characters that matter in markup contexts, for
// callers that prefer escaping over rejection.
func Sanitize(value string) string {
	return sanitizer.Replace(value)
}

// SanitizeJSON walks decoded JSON data and escapes every string leaf,
// returning a structure of the same shape.
func SanitizeJSON(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = SanitizeJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = SanitizeJSON(item)
		}
		return out
	case string:
		return Sanitize(v)
	default:
		return data
	}
}
