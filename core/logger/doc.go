// Package logger provides structured logging attribute helpers built on
// Go's standard slog package, tailored to the wrapping layer's diagnostics.
//
// All helpers follow the empty Attr pattern: passing a zero value returns an
// empty attribute that slog drops, so call sites stay free of nil checks:
//
//	log.Warn("continuation already fired",
//		logger.Callable(name),
//		logger.Dropped(err),
//	)
package logger
