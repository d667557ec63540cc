package audit

import "strings"

var sensitiveFragments = []string{
	"token", "secret", "password", "api_key", "apikey",
	"authorization", "card", "email", "phone",
}

func sensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range sensitiveFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// Redact masks values under secret-bearing keys before a payload is persisted.
// Nested maps are walked; the input is not mutated.
func Redact(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if sensitiveKey(k) {
			out[k] = "***"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}
