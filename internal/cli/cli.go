// Package cli holds the start-up steps shared by the command binaries.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/visionocrbatch/internal/logsink"
)

// StartLogging parses the level name, starts the log sink on stderr and
// logFile, and installs it as the default slog handler. With fileOnly set and
// a log file given, stderr is left to the progress bar.
func StartLogging(levelName, logFile string, fileOnly bool) (*logsink.Sink, error) {
	level, err := logsink.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	var console io.Writer = os.Stderr
	if fileOnly && logFile != "" {
		console = nil
	}
	sink, err := logsink.Start(logsink.Options{Console: console, FilePath: logFile, Level: level})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(sink.Handler()))
	return sink, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
