// Package rewrite implements the source rewrite that makes field writes
// observable.
//
// The fieldhook tool parses Go source files, finds the field writes inside
// methods of observed types and inserts a hook.Notify call after each of
// them. The original statement is never changed, so execution semantics are
// preserved: the notification runs after the write completed and reads the
// value back from the field.
//
// Algorithm:
//  1. Parse the Go source file using go/parser
//  2. Select eligible types (declaring the reserved interceptor field, or
//     forced by configuration)
//  3. Walk pointer-receiver methods of eligible types and record write sites
//  4. Insert a notification after each writing statement
//  5. Inject the hook import and print the result with go/printer
//  6. Re-parse the output; any failure keeps the original source
//
// Example Transformation:
//
//	// INPUT (original code):
//	type Box struct {
//	    count               int
//	    instanceInterceptor any
//	}
//
//	func (b *Box) Set(n int) {
//	    b.count = n
//	}
//
//	// OUTPUT (rewritten code):
//	import fieldhook "github.com/kolkov/fieldhook/hook"
//	...
//	func (b *Box) Set(n int) {
//	    b.count = n
//	    fieldhook.Notify(b, "count", b.count)
//	}
//
// Two modes exist. RewriteFile works on syntax alone, one file at a time.
// RewritePackages loads whole packages with type information, which makes
// owner eligibility exact and finds reserved fields promoted by embedding.
//
// Thread Safety: RewriteFile and RewritePackages may be called
// concurrently on different files. Transformer adds bounded concurrency and
// serializes work on the same file.
package rewrite

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/scanner"
	"go/token"
	"io"
	"os"
	"strings"

	"github.com/kolkov/fieldhook/internal/hook/dispatch"
	"github.com/kolkov/fieldhook/internal/hook/locate"
	"github.com/kolkov/fieldhook/internal/logging"
)

const (
	// ModulePath is the import path of the fieldhook module. Its packages
	// are never rewritten.
	ModulePath = "github.com/kolkov/fieldhook"

	// HookImportPath is the import path of the runtime package injected
	// into rewritten files.
	HookImportPath = ModulePath + "/hook"

	// HookAlias is the local package name used in rewritten code:
	// fieldhook.Notify(...).
	HookAlias = "fieldhook"
)

// DefaultExclude is used when Options.Exclude is nil.
var DefaultExclude = []string{ModulePath}

// Options controls what is rewritten.
type Options struct {
	// FieldName is the reserved interceptor field. Empty means
	// "instanceInterceptor".
	FieldName string

	// MethodName is the notification method name looked up by convention.
	// It is only recorded in rewritten code when it differs from the
	// default "SetField".
	MethodName string

	// ForceTypes lists types rewritten even though they do not declare the
	// reserved field. Names are either plain ("Box"), matching in every
	// package, or qualified by import path ("example.com/shapes.Box").
	ForceTypes []string

	// Exclude lists import path prefixes that are never rewritten. Nil
	// selects DefaultExclude.
	Exclude []string

	// ImportPath is the import path of the package the file belongs to.
	// File mode uses it for exclusion and qualified ForceTypes; package mode
	// fills it in from the loaded package.
	ImportPath string

	// Dir is the working directory for package mode.
	Dir string

	// Tests includes test files in package mode.
	Tests bool

	// Concurrency bounds the files rewritten at once in package mode.
	// Zero or negative means GOMAXPROCS.
	Concurrency int

	// scopes holds the package-level names of the other files of the
	// directory by package name, when known.
	scopes map[string]*packageScope
}

func (o Options) withDefaults() Options {
	if o.FieldName == "" {
		o.FieldName = locate.DefaultFieldName
	}
	if o.MethodName == "" {
		o.MethodName = dispatch.DefaultMethodName
	}
	if o.Exclude == nil {
		o.Exclude = DefaultExclude
	}
	return o
}

// Excluded reports whether files of the package importPath are never
// rewritten.
func (o Options) Excluded(importPath string) bool {
	if importPath == "" {
		return false
	}
	exclude := o.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	for _, prefix := range exclude {
		if hasPathPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches whole path elements unless prefix ends in "/".
func hasPathPrefix(p, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || strings.HasSuffix(prefix, "/") || p[len(prefix)] == '/'
}

// forced reports whether typeName of package pkgPath is in ForceTypes.
func (o Options) forced(pkgPath, typeName string) bool {
	for _, t := range o.ForceTypes {
		if t == typeName || (pkgPath != "" && t == pkgPath+"."+typeName) {
			return true
		}
	}
	return false
}

// Status is the outcome of rewriting one file.
type Status int

const (
	// StatusUnchanged means nothing needed rewriting; Code is the original.
	StatusUnchanged Status = iota

	// StatusRewritten means Code holds the rewritten source.
	StatusRewritten

	// StatusFailed means rewriting failed; Code is the original and Err
	// describes the failure.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusRewritten:
		return "rewritten"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result holds the result of rewriting one file.
type Result struct {
	Filename   string        // File that was processed
	ImportPath string        // Package import path, if known
	Status     Status        // Outcome
	Code       string        // Rewritten source, or the original source
	Stats      Stats         // Rewrite statistics
	Sites      []WriteSite   // Every field write considered, in source order
	Reason     string        // Why the file is unchanged
	Err        *RewriteError // Failure cause when Status is StatusFailed
}

// Failure returns the failure cause as an error, or nil.
func (r *Result) Failure() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// RewriteFile rewrites a single Go source file using syntax only.
//
// Parameters:
//   - filename: Path to the Go source file (used for positions and errors)
//   - src: Source code to rewrite. Can be:
//   - nil: Read from filename
//   - []byte: Use provided bytes
//   - string: Use provided string
//   - io.Reader: Read from reader
//   - opts: Rewrite options
//
// Returns:
//   - *Result: Never nil. Status tells whether Code was rewritten.
//
// A file is considered alone: types declared in other files of the package
// are only eligible when listed in opts.ForceTypes, and writes rooted at a
// package-level variable of another file are skipped. Transformer collects
// both across a directory before rewriting its files.
//
// Thread Safety: Safe for concurrent use on different files.
func RewriteFile(filename string, src any, opts Options) *Result {
	opts = opts.withDefaults()

	orig, err := readSource(filename, src)
	if err != nil {
		return failed(filename, nil, fileError(filename, err.Error(), ""))
	}
	if opts.Excluded(opts.ImportPath) {
		return unchanged(filename, opts.ImportPath, orig, "excluded package "+opts.ImportPath)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, orig, parser.ParseComments)
	if err != nil {
		return failed(filename, orig, parseError(filename, err))
	}

	eligible := CollectEligible([]*ast.File{file}, opts)
	return rewriteParsed(fset, file, orig, newSyntaxResolver(eligible, opts.scopes[file.Name.Name]), opts)
}

// rewriteParsed runs both passes on a parsed file and prints the result.
// Panics are recovered into a failed result holding the original source.
func rewriteParsed(fset *token.FileSet, file *ast.File, orig []byte, res resolver, opts Options) (result *Result) {
	filename := fset.Position(file.Package).Filename
	log := logging.Logger("rewrite")

	defer func() {
		if r := recover(); r != nil {
			result = failed(filename, orig, fileError(filename,
				fmt.Sprintf("internal error: %v", r),
				"The file is compiled unmodified. Please report this issue with the file attached"))
		}
		result.ImportPath = opts.ImportPath
		switch result.Status {
		case StatusFailed:
			log.Warningf("rewrite of %s failed: %v", filename, result.Err)
		case StatusRewritten:
			log.Debugf("rewrote %s: %d notifications, %d writes skipped",
				filename, result.Stats.WritesRewritten, result.Stats.TotalSkipped())
		}
	}()

	alias, addImport := hookName(file, opts.scopes[file.Name.Name])

	// Pass 1: find write sites.
	v := newRewriteVisitor(fset, file, res, opts, alias)
	v.collect()
	if v.stats.WritesRewritten == 0 {
		r := unchanged(filename, opts.ImportPath, orig, "no observed field writes")
		r.Stats, r.Sites = v.stats, v.sites
		return r
	}

	// Pass 2: insert notifications.
	v.apply()
	injectHook(fset, file, alias, addImport, opts)

	code, err := printFile(fset, file)
	if err != nil {
		return failed(filename, orig, fileError(filename, fmt.Sprintf("failed to generate code: %v", err), ""))
	}
	if _, err := parser.ParseFile(token.NewFileSet(), filename, code, parser.AllErrors); err != nil {
		return failed(filename, orig, fileError(filename,
			fmt.Sprintf("rewritten code does not parse: %v", err),
			"The file is compiled unmodified. Please report this issue with the file attached"))
	}

	return &Result{
		Filename: filename,
		Status:   StatusRewritten,
		Code:     code,
		Stats:    v.stats,
		Sites:    v.sites,
	}
}

func printFile(fset *token.FileSet, file *ast.File) (string, error) {
	var buf bytes.Buffer
	cfg := &printer.Config{
		Mode:     printer.UseSpaces | printer.TabIndent,
		Tabwidth: 8,
	}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func unchanged(filename, importPath string, orig []byte, reason string) *Result {
	return &Result{
		Filename:   filename,
		ImportPath: importPath,
		Status:     StatusUnchanged,
		Code:       string(orig),
		Reason:     reason,
	}
}

func failed(filename string, orig []byte, err *RewriteError) *Result {
	return &Result{
		Filename: filename,
		Status:   StatusFailed,
		Code:     string(orig),
		Err:      err,
	}
}

// parseError converts a parser error into a positioned RewriteError.
func parseError(filename string, err error) *RewriteError {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return &RewriteError{
			File:       list[0].Pos.Filename,
			Line:       list[0].Pos.Line,
			Column:     list[0].Pos.Column,
			Message:    list[0].Msg,
			Suggestion: "Fix the syntax error; the file is left unmodified",
		}
	}
	return fileError(filename, err.Error(), "")
}

func readSource(filename string, src any) ([]byte, error) {
	switch s := src.(type) {
	case nil:
		return os.ReadFile(filename)
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	case io.Reader:
		return io.ReadAll(s)
	}
	return nil, fmt.Errorf("invalid source type %T", src)
}
