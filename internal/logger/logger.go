// Package logger provides structured logging setup for PertForge.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/PertForge/internal/config"
)

const (
	asyncBuffer  = 4096
	asyncWorkers = 2
)

// Closer flushes buffered log records.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record and a
// "request_id" attribute whenever the logging context carries one. When
// cfg.Async is set, records pass through an AsyncHandler and the returned
// Closer must be closed before exit.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	var h slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(h, asyncBuffer, asyncWorkers)
		h, closer = ah, ah
	}

	return slog.New(requestIDHandler{h}).With("service", cfg.Service), closer
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
