package cluster

import (
	"io"
	"log/slog"

	"github.com/arloliu/cluster/internal/logging"
)

// NewSlogLogger adapts a *slog.Logger for WithLogger. A nil l uses
// slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		return logging.NewSlogDefault()
	}

	return logging.NewSlog(l)
}

// NewTextLogger returns a Logger writing logfmt lines at or above level to w.
func NewTextLogger(w io.Writer, level slog.Level) Logger {
	return logging.NewSlogText(w, level)
}
