package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers use the empty Attr pattern for nil safety, so call sites
// never need explicit nil checks.

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Dropped creates an attribute for a failure dropped by the at-most-once
// continuation guard. A nil error marks a dropped success signal.
func Dropped(err error) slog.Attr {
	if err == nil {
		return slog.String("dropped", "success signal")
	}
	return slog.Any("dropped", err)
}

// Callable creates an attribute for a wrapped callable's diagnostic name.
func Callable(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("callable", name)
}

// Member creates an attribute for a bundle member name.
func Member(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("member", name)
}

// BundleLevel creates an attribute for a bundle level name.
func BundleLevel(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("level", name)
}

// InvocationID creates an attribute correlating diagnostics of a single
// wrapped invocation.
func InvocationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("invocation_id", id)
}

// Component creates an attribute identifying the emitting component.
func Component(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("component", name)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates and logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
