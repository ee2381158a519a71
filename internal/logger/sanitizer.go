package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSensitiveFields are the column names masked when no list is given.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// Mask replaces sensitive values in log output.
const Mask = "***REDACTED***"

// Sanitizer masks bound values of sensitive columns before they are logged.
// It is safe for concurrent use.
type Sanitizer struct {
	fields   map[string]bool
	patterns []*regexp.Regexp
}

// NewSanitizer creates a sanitizer for the given column names, or
// DefaultSensitiveFields when none are given.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}
	s := &Sanitizer{fields: make(map[string]bool, len(sensitiveFields))}
	for _, field := range sensitiveFields {
		field = strings.ToLower(field)
		s.fields[field] = true
		s.patterns = append(s.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
	}
	return s
}

// IsSensitive reports whether a possibly qualified column name is sensitive.
func (s *Sanitizer) IsSensitive(field string) bool {
	if field == "" {
		return false
	}
	field = strings.ToLower(field)
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	return s.fields[strings.Trim(field, "`\"[]")]
}

// MaskFields masks values[i] when fields[i] names a sensitive column.
// Values without a known field are masked when the SQL mentions a sensitive
// column, since their position cannot be attributed. The input is not modified.
func (s *Sanitizer) MaskFields(sql string, fields []string, values []any) []any {
	masked := make([]any, len(values))
	unknownSensitive := s.mentionsSensitive(sql)
	for i, v := range values {
		field := ""
		if i < len(fields) {
			field = fields[i]
		}
		switch {
		case s.IsSensitive(field):
			masked[i] = Mask
		case field == "" && unknownSensitive:
			masked[i] = Mask
		default:
			masked[i] = v
		}
	}
	return masked
}

// MaskParams masks every value of a statement whose SQL mentions a
// sensitive column. It is used for raw SQL where values carry no field.
func (s *Sanitizer) MaskParams(sql string, params []any) []any {
	return s.MaskFields(sql, nil, params)
}

func (s *Sanitizer) mentionsSensitive(sql string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(sql) {
			return true
		}
	}
	return false
}

// FormatParams renders values for a log line. Long values are truncated.
func (s *Sanitizer) FormatParams(params []any) string {
	if len(params) == 0 {
		return "[]"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	str := fmt.Sprintf("%v", v)
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
