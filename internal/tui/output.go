package tui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mrz1836/cortex/internal/errors"
)

// Output writes the operator-facing messages of a command. Text output is
// styled; JSON output keeps the stream machine readable and drops messages.
type Output interface {
	// Success prints a success message.
	Success(msg string)
	// Error prints err and the suggested fix, when one is known.
	Error(err error)
	// Warning prints a warning message.
	Warning(msg string)
	// Info prints a progress message. Quiet output drops it.
	Info(msg string)
	// JSON outputs a value as formatted JSON.
	JSON(v any) error
	// IsJSON reports whether the output is machine readable.
	IsJSON() bool
}

// OutputOption configures NewOutput.
type OutputOption func(*TTYOutput)

// WithQuiet drops Info messages from text output.
func WithQuiet(quiet bool) OutputOption {
	return func(o *TTYOutput) { o.quiet = quiet }
}

// NewOutput returns JSON output for format "json" and styled text otherwise.
func NewOutput(w io.Writer, format string, opts ...OutputOption) Output {
	if format == "json" {
		return NewJSONOutput(w)
	}
	o := NewTTYOutput(w)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TTYOutput writes lipgloss styled lines.
type TTYOutput struct {
	w      io.Writer
	styles *OutputStyles
	quiet  bool
}

// NewTTYOutput creates a new TTYOutput.
func NewTTYOutput(w io.Writer) *TTYOutput {
	return &TTYOutput{w: w, styles: NewOutputStyles()}
}

func (o *TTYOutput) line(style func(...string) string, text string) {
	_, _ = fmt.Fprintln(o.w, style(text))
}

// Success prints a success message.
func (o *TTYOutput) Success(msg string) { o.line(o.styles.Success.Render, "✓ "+msg) }

// Warning prints a warning message.
func (o *TTYOutput) Warning(msg string) { o.line(o.styles.Warning.Render, "⚠ "+msg) }

// Info prints a progress message unless the output is quiet.
func (o *TTYOutput) Info(msg string) {
	if o.quiet {
		return
	}
	o.line(o.styles.Info.Render, msg)
}

// Error prints err followed by an indented hint when errors.Actionable knows one.
func (o *TTYOutput) Error(err error) {
	if err == nil {
		return
	}
	o.line(o.styles.Error.Render, "✗ "+err.Error())
	if _, action := errors.Actionable(err); action != "" {
		o.line(o.styles.Dim.Render, "  "+action)
	}
}

// JSON outputs a value as formatted JSON.
func (o *TTYOutput) JSON(v any) error { return encodeJSON(o.w, v) }

// IsJSON implements Output.
func (o *TTYOutput) IsJSON() bool { return false }

// JSONOutput writes JSON documents only.
type JSONOutput struct {
	w io.Writer
}

// NewJSONOutput creates a new JSONOutput.
func NewJSONOutput(w io.Writer) *JSONOutput {
	return &JSONOutput{w: w}
}

// errorDocument is the JSON shape of a reported error.
type errorDocument struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
}

// Success is a no-op for JSON output.
func (o *JSONOutput) Success(string) {}

// Warning is a no-op for JSON output.
func (o *JSONOutput) Warning(string) {}

// Info is a no-op for JSON output.
func (o *JSONOutput) Info(string) {}

// Error outputs err as an errorDocument.
func (o *JSONOutput) Error(err error) {
	if err == nil {
		return
	}
	_, action := errors.Actionable(err)
	_ = encodeJSON(o.w, errorDocument{Error: err.Error(), Action: action})
}

// JSON outputs a value as formatted JSON.
func (o *JSONOutput) JSON(v any) error { return encodeJSON(o.w, v) }

// IsJSON implements Output.
func (o *JSONOutput) IsJSON() bool { return true }

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}
