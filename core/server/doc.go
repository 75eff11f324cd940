// Package server provides an HTTP server wrapper with graceful shutdown,
// functional options, and production-ready default timeouts.
//
// Basic usage:
//
//	import (
//		"context"
//
//		"github.com/dmitrymomot/funnel/core/server"
//	)
//
//	func main() {
//		ctx := context.Background()
//		if err := server.Run(ctx, ":8080", handler); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// Configure with options:
//
//	srv := server.New(":8080",
//		server.WithShutdownTimeout(60*time.Second),
//		server.WithLogger(log),
//	)
package server
