// Package main implements the fieldhook CLI tool.
//
// The fieldhook tool makes field writes on selected types observable
// without changing how those types are written. It works by:
//
//  1. Parsing Go source files using go/ast
//  2. Inserting a notification after every write to a field of an
//     eligible type
//  3. Linking the fieldhook runtime into the rewritten module
//  4. Building, running or testing the rewritten code
//
// Usage:
//
//	fieldhook rewrite -o out ./...   # Write rewritten sources to out/
//	fieldhook build main.go          # Build with field notifications
//	fieldhook run main.go            # Run with field notifications
//	fieldhook test ./...             # Test with field notifications
//
// A type is eligible when it declares the reserved interceptor field
// (instanceInterceptor by default) or is listed in force_types of
// fieldhook.toml.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/tebeka/atexit"
)

func main() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		// Workspaces are registered with atexit and removed here too.
		atexit.Exit(130)
	}()

	atexit.Exit(execute())
}
