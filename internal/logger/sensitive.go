package logger

import (
	"regexp"
	"strings"
)

// sensitiveDataPatterns match values that must never reach a log line
var sensitiveDataPatterns = []*regexp.Regexp{
	// Bearer tokens
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	// API keys, tokens and secrets in key=value form
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|key|passw(or)?d)[0-9a-z\-_.]*[\s:=]+)([^;,&\s]{5,})`),
	// Ciphertext handles, proofs and signatures
	regexp.MustCompile(`(0x)([0-9a-fA-F]{64,})`),
}

// sensitiveKeywords mark field keys whose values are redacted outright
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "api-key", "apikey", "authorization",
	"cookie", "proof", "signature", "ciphertext", "gene",
}

// RedactSensitiveData replaces secrets and hex blobs in input with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]")
	}
	return input
}

// IsSensitiveKey reports whether a header or field name names material
// that should be redacted.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}
