package logging

import (
	"regexp"
	"strings"
)

// Redacted replaces masked values.
const Redacted = "***"

// Redactor masks secrets in log attribute values.
type Redactor struct {
	patterns []redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// sensitiveKeys are matched as substrings of lowercased attribute keys.
var sensitiveKeys = []string{
	"access_token", "accesstoken",
	"refresh_token", "refreshtoken",
	"client_secret", "clientsecret",
	"authorization",
	"api_key", "apikey", "x-api-key",
	"password", "secret",
	"credentials",
}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: []redactPattern{
		{regexp.MustCompile(`(?i)Bearer\s+[a-zA-Z0-9\-._~+/:]+=*`), "Bearer " + Redacted},
		{regexp.MustCompile(`"(accessToken|refreshToken|clientSecret)"\s*:\s*"[^"]*"`), `"$1":"` + Redacted + `"`},
		{regexp.MustCompile(`aoa[A-Za-z0-9]{20,}[A-Za-z0-9:\-_]*`), Redacted},
	}}
}

// RedactString masks secrets embedded in a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether a key name indicates secret material.
func IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lowerKey, s) {
			return true
		}
	}
	return false
}

// MaskValue keeps a four character hint of a secret.
func MaskValue(v string) string {
	if len(v) <= 8 {
		return Redacted
	}
	return v[:4] + Redacted
}
