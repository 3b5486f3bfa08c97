package logger

import (
	"regexp"
	"strings"
)

// sensitiveDataPatterns match secrets that must not reach log files
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|passw(or)?d)[0-9a-z\-_.]*["']?\s*[:=]\s*["']?)([^;,\s"']{5,})`),
	regexp.MustCompile(`(?i)(://[^:/\s]+:)([^@\s]+)(@)`),
}

// sensitiveKeywords mark field keys whose values are always redacted
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "authorization", "api_key", "apikey", "dsn",
}

// RedactSensitiveData replaces credentials in free text with "[REDACTED]".
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for i, pattern := range sensitiveDataPatterns {
		if i == len(sensitiveDataPatterns)-1 {
			// user:password@host keeps the user and host
			input = pattern.ReplaceAllString(input, "${1}[REDACTED]${3}")
			continue
		}
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]")
	}
	return input
}

// IsSensitiveKey reports whether a field key names a secret.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

// Redacted returns a string field whose value is hidden when the key is sensitive
// and scrubbed of embedded credentials otherwise.
func Redacted(key, value string) Field {
	if value != "" && IsSensitiveKey(key) {
		return String(key, "[REDACTED]")
	}
	return String(key, RedactSensitiveData(value))
}
