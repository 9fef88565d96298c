package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks PII in log output. Car listings carry seller phone
// numbers and VIN codes, and the service configuration carries OAuth
// credentials; none of those belong in logs.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names for the built-in redactions.
const (
	PatternPhone       = "phone"
	PatternVIN         = "vin"
	PatternBearerToken = "bearer_token"
	PatternSecret      = "secret"
)

// NewRedactor creates a redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactPattern{
			{
				// Russian phone numbers: +7/8 followed by ten digits with
				// optional separators.
				name:        PatternPhone,
				regex:       regexp.MustCompile(`(?:\+7|\b8)[\s(-]*\d{3}[\s)-]*\d{3}[\s-]*\d{2}[\s-]*\d{2}\b`),
				replacement: "+7***",
			},
			{
				// VIN codes: 17 characters, no I, O, or Q.
				name:        PatternVIN,
				regex:       regexp.MustCompile(`\b[A-HJ-NPR-Za-hj-npr-z0-9]{17}\b`),
				replacement: "VIN***",
			},
			{
				name:        PatternBearerToken,
				regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
				replacement: "Bearer ***",
			},
			{
				name:        PatternSecret,
				regex:       regexp.MustCompile(`(?i)(client_secret|secret|password)[:=]\s*\S+`),
				replacement: "$1: ***",
			},
		},
	}
}

// RedactString masks PII in a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, p := range r.patterns {
		redacted = p.regex.ReplaceAllString(redacted, p.replacement)
	}

	return redacted
}

// RedactAttr masks PII in a log attribute. String values under sensitive
// key names are masked entirely; other string values are pattern-redacted.
// Non-string values (token counts, durations, levels) pass through
// unchanged.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}

	return slog.String(a.Key, r.RedactString(a.Value.String()))
}

// isSensitiveKey reports whether a key name indicates a credential.
// The singular "token" segment marks a credential (access_token,
// refresh_token); the plural forms are accounting counters
// (tokens, estimated_tokens) and stay visible.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{
		"password", "secret", "api_key", "apikey",
		"authorization", "client_secret",
	} {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	for _, part := range strings.FieldsFunc(lower, isKeySeparator) {
		if part == "token" {
			return true
		}
	}
	return false
}

func isKeySeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.'
}
