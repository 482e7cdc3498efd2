// Package rewrite - Custom error types for rewriting.
//
// Errors include file position (file:line:column) and helpful suggestions.
//
// Example output:
//
//	box.go:12:2: expected operand, found '}'
//
//	Suggestion: Fix the syntax error; the file is left unmodified
package rewrite

import (
	"fmt"
	"go/token"
)

// RewriteError represents an error during rewriting with context.
//
// Fields:
//   - File: Source file path where error occurred
//   - Line: Line number (1-indexed, 0 if unknown)
//   - Column: Column number (1-indexed, 0 if unknown)
//   - Message: Human-readable error description
//   - Suggestion: Optional hint for fixing the error
//
// Thread Safety: Immutable after creation, safe for concurrent use.
//
//nolint:revive // RewriteError is clear and descriptive despite stuttering
type RewriteError struct {
	File       string // Source file path
	Line       int    // Line number (1-indexed)
	Column     int    // Column number (1-indexed)
	Message    string // Error message
	Suggestion string // Optional suggestion for fixing (empty if none)
}

// Error implements the error interface.
//
// Format: file:line:column: message, or file: message when the position is
// unknown. A non-empty Suggestion is appended after a blank line.
func (e *RewriteError) Error() string {
	var result string
	if e.Line > 0 {
		result = fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	} else {
		result = fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// NewRewriteError creates an error with file position from an AST position.
//
// Parameters:
//   - fset: File set containing position information
//   - pos: Token position (from AST node.Pos()), token.NoPos if unknown
//   - msg: Error message describing what went wrong
//
// Thread Safety: Safe for concurrent use (fset is read-only).
func NewRewriteError(fset *token.FileSet, pos token.Pos, msg string) *RewriteError {
	position := fset.Position(pos)
	return &RewriteError{
		File:    position.Filename,
		Line:    position.Line,
		Column:  position.Column,
		Message: msg,
	}
}

// NewRewriteErrorWithSuggestion creates an error with a suggestion.
func NewRewriteErrorWithSuggestion(fset *token.FileSet, pos token.Pos, msg, suggestion string) *RewriteError {
	err := NewRewriteError(fset, pos, msg)
	err.Suggestion = suggestion
	return err
}

// fileError creates an error for a file without a usable position.
func fileError(filename, msg, suggestion string) *RewriteError {
	return &RewriteError{File: filename, Message: msg, Suggestion: suggestion}
}
