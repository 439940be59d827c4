// Package logging provides zerolog helpers for CORTEX.
//
// Thought content, task descriptions and handler parameters are free text
// supplied by whoever queued the task. They reach the log through Preview,
// and the log file itself is wrapped in a FilteringWriter, so credentials
// pasted into a task never land on disk.
package logging

import (
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

// DefaultPreviewLength is the rune budget Preview uses when given a
// non-positive limit.
const DefaultPreviewLength = 80

// sensitivePatterns match common key, token and credential formats.
var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // Package-level patterns for reuse
	// Vendor API keys (sk-ant-..., sk-...)
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),

	// GitHub tokens (ghp_, gho_, ghu_, ghs_, ghr_)
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),

	// key=value style credentials
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`),
	regexp.MustCompile(`(?i)(secret|password|credential|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`),
	regexp.MustCompile(`(?i)(token|auth)\s*[:=]\s*["']?[a-zA-Z0-9+/=_-]{32,}["']?`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_.-]{20,}`),

	// PEM private key headers
	regexp.MustCompile(`-----BEGIN[A-Z\s]+PRIVATE KEY-----`),
}

// sensitiveFieldNames are field names whose values are always redacted.
var sensitiveFieldNames = []string{ //nolint:gochecknoglobals // Package-level patterns for reuse
	"api_key",
	"apikey",
	"password",
	"passwd",
	"secret",
	"credential",
	"private_key",
	"access_token",
	"refresh_token",
	"auth_token",
	"authorization",
}

// SensitiveDataHook flags log events whose message matches a sensitive
// pattern. zerolog hooks cannot rewrite the message; the FilteringWriter on
// the log file does the actual redaction.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a new SensitiveDataHook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s matches any sensitive pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces every sensitive match in value with RedactedValue.
func FilterSensitiveValue(value string) string {
	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// IsSensitiveFieldName reports whether a field name indicates sensitive data.
// Matching is case-insensitive; dashes count as underscores.
func IsSensitiveFieldName(fieldName string) bool {
	name := strings.ReplaceAll(strings.ToLower(fieldName), "-", "_")
	for _, sensitive := range sensitiveFieldNames {
		if strings.Contains(name, sensitive) {
			return true
		}
	}
	return false
}

// SafeValue redacts value entirely when the field name is sensitive and
// filters it otherwise.
//
//	log.Info().Str(k, logging.SafeValue(k, v)).Msg("handler parameter")
func SafeValue(fieldName, value string) string {
	if IsSensitiveFieldName(fieldName) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// Preview returns content fit for a log line: filtered, newlines flattened and
// cut to maxRunes with an ellipsis.
func Preview(content string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultPreviewLength
	}
	s := strings.Join(strings.Fields(FilterSensitiveValue(content)), " ")
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "…"
}

// FilteringWriter wraps an io.Writer and redacts sensitive data on the way through.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter creates a FilteringWriter around w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports len(p) on success so callers do not
// see the redaction as a short write.
func (fw *FilteringWriter) Write(p []byte) (n int, err error) {
	filtered := FilterSensitiveValue(string(p))
	if _, err = fw.w.Write([]byte(filtered)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// FilteringWriteCloser is a FilteringWriter that also closes the wrapped
// writer, for rotating log files.
type FilteringWriteCloser struct {
	*FilteringWriter

	closer io.Closer
}

// NewFilteringWriteCloser wraps wc with redaction.
func NewFilteringWriteCloser(wc io.WriteCloser) *FilteringWriteCloser {
	return &FilteringWriteCloser{FilteringWriter: NewFilteringWriter(wc), closer: wc}
}

// Close closes the wrapped writer.
func (fwc *FilteringWriteCloser) Close() error {
	return fwc.closer.Close()
}
