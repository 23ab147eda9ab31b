package utils

import (
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// NewLogger builds the structured logger shared by every component.
// An unknown level falls back to info; a nil writer logs to stderr.
func NewLogger(level string, w io.Writer) *pterm.Logger {
	if w == nil {
		w = os.Stderr
	}
	return pterm.DefaultLogger.
		WithWriter(w).
		WithLevel(ParseLogLevel(level)).
		WithTime(false)
}

// DiscardLogger drops everything; used where no logger was injected.
func DiscardLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard).WithLevel(pterm.LogLevelDisabled)
}

func ParseLogLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "off", "disabled", "none":
		return pterm.LogLevelDisabled
	default:
		return pterm.LogLevelInfo
	}
}
