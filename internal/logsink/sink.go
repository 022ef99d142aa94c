// Package logsink funnels log records from many goroutines into one ordered
// stream. Producers hand records to a buffered channel; a single aggregator
// goroutine formats them and writes to the console and an append-mode file.
package logsink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Attribute keys lifted out of the attribute list into their own columns.
const (
	WorkerKey = "worker"
	LoggerKey = "logger"
)

const timeLayout = "2006-01-02 15:04:05,000"

// Record is one log event as it travels to the aggregator.
type Record struct {
	Time    time.Time
	Worker  string
	Logger  string
	Level   slog.Level
	Message string
	Attrs   []slog.Attr
}

// Options configures a Sink.
type Options struct {
	// Console receives every record at or above Level. Nil disables it.
	Console io.Writer
	// FilePath is opened in append mode. Empty disables file output.
	FilePath string
	Level    slog.Level
	// Buffer is the channel capacity. Producers block when it is full.
	Buffer int
}

// Sink owns the record channel and the aggregator goroutine.
type Sink struct {
	level   slog.Level
	console io.Writer
	writers []io.Writer
	file    *os.File
	lateMu  sync.Mutex

	mu      sync.RWMutex
	closed  bool
	records chan Record
	done    chan struct{}
}

// Start opens the log file, if any, and starts the aggregator.
func Start(opts Options) (*Sink, error) {
	s := &Sink{level: opts.Level}
	if opts.Console != nil {
		s.console = opts.Console
		s.writers = append(s.writers, opts.Console)
	}
	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.FilePath, err)
		}
		s.file = f
		s.writers = append(s.writers, f)
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	s.records = make(chan Record, opts.Buffer)
	s.done = make(chan struct{})

	go s.drain()
	return s, nil
}

func (s *Sink) drain() {
	defer close(s.done)
	for r := range s.records {
		s.write(r)
	}
}

func (s *Sink) write(r Record) {
	line := Format(r)
	for _, w := range s.writers {
		_, _ = io.WriteString(w, line)
	}
}

// Send queues r for the aggregator. Records sent after Close go to the
// console only, synchronously, since the log file is already closed.
func (s *Sink) Send(r Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.writeLate(r)
		return
	}
	s.records <- r
}

func (s *Sink) writeLate(r Record) {
	if s.console == nil {
		return
	}
	s.lateMu.Lock()
	defer s.lateMu.Unlock()
	_, _ = io.WriteString(s.console, Format(r))
}

// Close stops accepting queued records, waits for the aggregator to flush
// everything already sent and closes the log file. Later records reach the
// console only.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.records)
	s.mu.Unlock()

	<-s.done
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
	}
	return nil
}

// Handler returns a slog.Handler feeding this sink.
func (s *Sink) Handler() slog.Handler {
	return &Handler{sink: s, worker: "main"}
}

// Logger returns a logger whose records carry the given logger name.
func (s *Sink) Logger(name string) *slog.Logger {
	return slog.New(s.Handler()).With(LoggerKey, name)
}

// Format renders r as a single line.
func Format(r Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-10s %s %-8s %s",
		r.Time.Format(timeLayout), r.Worker, r.Logger, LevelName(r.Level), r.Message)
	for _, a := range r.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Key)
		sb.WriteByte('=')
		sb.WriteString(formatValue(a.Value))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		s = v.Duration().String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
