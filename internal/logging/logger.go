package logging

import (
	"github.com/myrjola/decisionverse/internal/errors"
	"io"
	"log/slog"
)

var ErrUnknownFormat = errors.NewSentinel("unknown log format")

// NewLogger creates the application logger writing to w in the given format.
//
// Supported formats are "text", "json", and "pretty". The result is always wrapped in a [ContextHandler].
func NewLogger(w io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		AddSource:   true,
		Level:       level,
		ReplaceAttr: nil,
	}
	var handler slog.Handler
	switch format {
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "pretty":
		handler = NewPrettyHandler(w, level)
	default:
		return nil, errors.Wrap(ErrUnknownFormat, "select handler", slog.String("format", format))
	}
	return slog.New(NewContextHandler(handler)), nil
}
