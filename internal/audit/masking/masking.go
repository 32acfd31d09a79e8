package masking

import "strings"

const Masked = "***"

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"secret":        {},
	"token":         {},
	"api_key":       {},
}

// Snapshot returns a copy of the snapshot with credential-like values
// replaced, so password hashes never land in the audit trail.
func Snapshot(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	masked := make(map[string]any, len(data))
	for key, value := range data {
		if isSensitive(key) {
			masked[key] = Masked
			continue
		}
		masked[key] = value
	}
	return masked
}

func isSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if _, ok := sensitiveKeys[normalized]; ok {
		return true
	}
	return strings.HasSuffix(normalized, "_password") || strings.HasSuffix(normalized, "_secret")
}
