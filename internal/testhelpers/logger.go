package testhelpers

import (
	"github.com/myrjola/decisionverse/internal/logging"
	"io"
	"log/slog"
	"testing"
)

// NewLogger creates a new logger with the given log sink such as io.Discard.
func NewLogger(logSink io.Writer) *slog.Logger {
	handler := logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	return slog.New(handler)
}

// testWriter forwards log lines to [testing.TB.Log] so they show up next to the failing test.
type testWriter struct {
	tb testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(string(p))
	return len(p), nil
}

// NewTestLogger creates a logger writing through tb.Log.
func NewTestLogger(tb testing.TB) *slog.Logger {
	return NewLogger(testWriter{tb: tb})
}
