package observability

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink is the harness-owned log sink. Every plugin logs through entries
// derived from it; its output may be swapped while start hooks are logging.
type Sink struct {
	mu     sync.Mutex
	logger *logrus.Logger
	out    io.Writer
	runID  string
}

// NewSink creates a sink writing text logs with full timestamps
func NewSink(out io.Writer, level logrus.Level, runID string) *Sink {
	if out == nil {
		out = os.Stderr
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &Sink{
		logger: logger,
		out:    out,
		runID:  runID,
	}
}

// Logger returns the underlying logger
func (s *Sink) Logger() *logrus.Logger {
	return s.logger
}

// RunID returns the run identifier stamped on every entry
func (s *Sink) RunID() string {
	return s.runID
}

// Base returns an entry carrying only the run ID
func (s *Sink) Base() *logrus.Entry {
	return s.logger.WithField("run_id", s.runID)
}

// Entry returns an entry for one plugin instance. An empty key is omitted.
func (s *Sink) Entry(plugin, key string) *logrus.Entry {
	fields := logrus.Fields{
		"run_id": s.runID,
		"plugin": plugin,
	}
	if key != "" {
		fields["key"] = key
	}
	return s.logger.WithFields(fields)
}

// SetOutput redirects the sink and returns the previous writer
func (s *Sink) SetOutput(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.out
	s.out = w
	s.logger.SetOutput(w)
	return previous
}

// Output returns the current writer
func (s *Sink) Output() io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// SetLevel changes the sink's level
func (s *Sink) SetLevel(level logrus.Level) {
	s.logger.SetLevel(level)
}

// SetFormatter changes the sink's formatter
func (s *Sink) SetFormatter(formatter logrus.Formatter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.SetFormatter(formatter)
}

// contextKey is the type for context keys
type contextKey string

const (
	// RunIDKey is the context key for the run ID
	RunIDKey contextKey = "run_id"
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
)

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithLogger adds a log entry to the context
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, LoggerKey, entry)
}

// GetLogger retrieves the log entry from context, falling back to the
// standard logger
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(LoggerKey).(*logrus.Entry); ok {
		return entry
	}
	entry := logrus.NewEntry(logrus.StandardLogger())
	if runID := GetRunID(ctx); runID != "" {
		entry = entry.WithField("run_id", runID)
	}
	return entry
}
