package corelog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Named is satisfied by any component that wants to identify itself
// in log output (a face, a PIT entry's owning module, a mgmt verb
// handler, ...).
type Named interface {
	String() string
}

// Logger wraps slog with the daemon's (self, msg, kv...) calling
// convention and a settable minimum level.
type Logger struct {
	inner *slog.Logger
	min   Level
}

// Log is the process-wide log stream. Every subsystem writes through
// this instead of fmt.Println/log.Printf.
var Log = New(LevelInfo, os.Stderr)

// New builds a Logger at the given minimum level, writing text-format
// records to w.
func New(min Level, w *os.File) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.Level(LevelTrace),
	})
	return &Logger{inner: slog.New(h), min: min}
}

// SetLevel changes the process-wide minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.min = level
}

func (l *Logger) log(level Level, self Named, msg string, kv []any) {
	if level < l.min {
		return
	}
	args := make([]any, 0, len(kv)+2)
	args = append(args, "module", self.String())
	args = append(args, kv...)
	l.inner.Log(context.Background(), slog.Level(level), msg, args...)
}

func (l *Logger) Trace(self Named, msg string, kv ...any) { l.log(LevelTrace, self, msg, kv) }
func (l *Logger) Debug(self Named, msg string, kv ...any) { l.log(LevelDebug, self, msg, kv) }
func (l *Logger) Info(self Named, msg string, kv ...any)  { l.log(LevelInfo, self, msg, kv) }
func (l *Logger) Warn(self Named, msg string, kv ...any)  { l.log(LevelWarn, self, msg, kv) }
func (l *Logger) Error(self Named, msg string, kv ...any) { l.log(LevelError, self, msg, kv) }

// Fatal logs at FATAL and terminates the process, matching the
// "keystore initialisation failure at startup -> process exit with
// non-zero code" error kind from spec.md §7.
func (l *Logger) Fatal(self Named, msg string, kv ...any) {
	l.log(LevelFatal, self, msg, kv)
	fmt.Fprintf(os.Stderr, "fatal: %s: %s\n", self.String(), msg)
	os.Exit(1)
}
