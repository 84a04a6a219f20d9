package logging

import (
	"github.com/fatih/color"
)

// Level represents a log level. Its value hierarchy is designed to be ordered
// and comparable by value.
type Level uint

const (
	// LevelDisabled indicates that logging is completely disabled.
	LevelDisabled Level = iota
	// LevelError indicates that only errors are logged.
	LevelError
	// LevelWarn indicates that errors and warnings are logged.
	LevelWarn
	// LevelInfo indicates that watch establishment, detected changes, and
	// command lifecycle events are logged (in addition to all errors).
	LevelInfo
	// LevelDebug indicates that per-path decisions and subscription changes
	// are logged as well.
	LevelDebug
	// LevelTrace indicates that raw notification traffic is logged.
	LevelTrace
)

// NameToLevel converts a string-based representation of a log level to the
// appropriate Level value. It returns a boolean indicating whether or not the
// conversion was valid. If the name is invalid, LevelDisabled is returned.
func NameToLevel(name string) (Level, bool) {
	switch name {
	case "disabled":
		return LevelDisabled, true
	case "error":
		return LevelError, true
	case "warn":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "trace":
		return LevelTrace, true
	default:
		return LevelDisabled, false
	}
}

// String provides a human-readable representation of a log level.
func (l Level) String() string {
	switch l {
	case LevelDisabled:
		return "disabled"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// tag returns the fixed-width, colorized tag used to prefix log lines at this
// level.
func (l Level) tag() string {
	switch l {
	case LevelError:
		return color.RedString("ERROR")
	case LevelWarn:
		return color.YellowString("WARN ")
	case LevelInfo:
		return color.GreenString("INFO ")
	case LevelDebug:
		return color.CyanString("DEBUG")
	case LevelTrace:
		return color.MagentaString("TRACE")
	default:
		return "     "
	}
}
