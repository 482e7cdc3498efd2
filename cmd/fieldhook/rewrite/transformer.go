// Package rewrite - Concurrent rewriting of many files.
package rewrite

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Listener is notified of every file outcome. It is called from worker
// goroutines and must be safe for concurrent use.
type Listener func(*Result)

// ImportPathFunc maps a source directory to its package import path. It
// returns "" when the path is unknown.
type ImportPathFunc func(dir string) string

// Transformer rewrites many files concurrently in file mode.
//
// Files are grouped by directory. Before any file of a directory is
// rewritten, all of them are parsed to collect the eligible types of the
// whole package, so a method declared in another file than its type is
// still rewritten.
//
// Work on the same file name is serialized: a file being rewritten again
// while a previous rewrite is in flight waits for it, so results are never
// interleaved.
type Transformer struct {
	opts       Options
	limit      int
	listener   Listener
	importPath ImportPathFunc

	locks sync.Map // absolute file name → *sync.Mutex
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithConcurrency bounds the number of files rewritten at once.
func WithConcurrency(n int) TransformerOption {
	return func(t *Transformer) {
		if n > 0 {
			t.limit = n
		}
	}
}

// WithListener registers a callback for every file outcome.
func WithListener(l Listener) TransformerOption {
	return func(t *Transformer) { t.listener = l }
}

// WithImportPaths sets how package import paths are resolved for
// exclusion and qualified ForceTypes.
func WithImportPaths(f ImportPathFunc) TransformerOption {
	return func(t *Transformer) { t.importPath = f }
}

// NewTransformer creates a Transformer rewriting with opts.
func NewTransformer(opts Options, options ...TransformerOption) *Transformer {
	t := &Transformer{
		opts:  opts.withDefaults(),
		limit: runtime.GOMAXPROCS(0),
	}
	for _, o := range options {
		o(t)
	}
	return t
}

// Rewrite rewrites one file. The file's directory is scanned for eligible
// types and package-level names declared in sibling files.
func (t *Transformer) Rewrite(filename string, src any) *Result {
	opts := t.optionsFor(filepath.Dir(filename))
	eligible, scopes := t.siblings(filename, opts)
	opts.ForceTypes = append(opts.ForceTypes, eligible...)
	opts.scopes = scopes
	return t.rewriteLocked(filename, src, opts)
}

// RewriteFiles rewrites files concurrently and returns their results in
// the order of files. The only error is ctx's; failed rewrites are reported
// in the results.
func (t *Transformer) RewriteFiles(ctx context.Context, files []string) ([]*Result, error) {
	byDir := make(map[string][]int)
	for i, f := range files {
		dir := filepath.Dir(f)
		byDir[dir] = append(byDir[dir], i)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	results := make([]*Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.limit)

	for _, dir := range dirs {
		opts := t.optionsFor(dir)
		var group []string
		for _, i := range byDir[dir] {
			group = append(group, files[i])
		}
		eligible, scopes := t.collect(group, opts)
		opts.ForceTypes = append(opts.ForceTypes, eligible...)
		opts.scopes = scopes

		for _, i := range byDir[dir] {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = t.rewriteLocked(files[i], nil, opts)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (t *Transformer) optionsFor(dir string) Options {
	opts := t.opts
	opts.ForceTypes = append([]string(nil), t.opts.ForceTypes...)
	if t.importPath != nil {
		opts.ImportPath = t.importPath(dir)
	}
	return opts
}

func (t *Transformer) rewriteLocked(filename string, src any, opts Options) *Result {
	key, err := filepath.Abs(filename)
	if err != nil {
		key = filename
	}
	mu, _ := t.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	r := RewriteFile(filename, src, opts)
	if t.listener != nil {
		t.listener(r)
	}
	return r
}

// siblings collects eligible types and package-level names from the other
// Go files in the directory of filename.
func (t *Transformer) siblings(filename string, opts Options) ([]string, map[string]*packageScope) {
	dir := filepath.Dir(filename)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	var siblings []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.IsDir() || filepath.Ext(p) != ".go" || filepath.Base(p) == filepath.Base(filename) {
			continue
		}
		siblings = append(siblings, p)
	}
	return t.collect(siblings, opts)
}

// collect parses files (declarations only) and returns their eligible
// types and package-level names by package name, since an external test
// package shares the directory. Unparsable files are ignored here; they
// fail when rewritten.
func (t *Transformer) collect(files []string, opts Options) ([]string, map[string]*packageScope) {
	fset := token.NewFileSet()
	scopes := make(map[string]*packageScope)
	var parsed []*ast.File
	for _, f := range files {
		file, err := parser.ParseFile(fset, f, nil, parser.SkipObjectResolution)
		if err != nil {
			continue
		}
		parsed = append(parsed, file)
		scope, ok := scopes[file.Name.Name]
		if !ok {
			scope = newPackageScope()
			scopes[file.Name.Name] = scope
		}
		scope.addFile(file)
	}
	return CollectEligible(parsed, opts), scopes
}
