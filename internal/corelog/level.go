// Package corelog provides the daemon's structured log stream.
//
// Every subsystem logs through the package-level Log using the calling
// convention `Log.Info(self, msg, "key", value, ...)`, where self is
// whatever component originated the message (it only needs a String
// method). This mirrors the shape used throughout the reference
// forwarder this daemon is modeled on, rather than slog's more verbose
// attribute API.
package corelog

import "fmt"

// Level is the severity of a log record.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
	LevelFatal Level = 12
)

// ParseLevel parses a string representation of a log level (TRACE,
// DEBUG, INFO, WARN, ERROR, FATAL) into a Level value, returning an
// error for invalid inputs.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// String returns the human-readable name of the level, or "UNKNOWN"
// for invalid values.
func (level Level) String() string {
	switch level {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
