// Package logger builds the charmbracelet/log loggers used across cooccur.
package logger

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// NewWithConfig creates a logger writing to w with explicit settings.
func NewWithConfig(w io.Writer, prefix string, level log.Level, formatter log.Formatter) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportTimestamp: true,
		Formatter:       formatter,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// ParseFormatter maps "text", "json" and "logfmt" to a formatter, defaulting
// to text.
func ParseFormatter(s string) log.Formatter {
	switch strings.ToLower(s) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
