// Package rewrite - Package mode with full type information.
package rewrite

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
)

// loadMode is everything the typed resolver needs.
const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo

// RewritePackages loads the packages matching patterns with type
// information and rewrites their files.
//
// Compared to RewriteFile, eligibility is decided on the types themselves:
// a reserved field promoted through embedding from another package makes a
// type eligible, and writes to fields of types that are not eligible are
// skipped (SkipNotEligible).
//
// Parameters:
//   - opts: Rewrite options; opts.Dir is the directory patterns are
//     resolved in, opts.ImportPath is ignored
//   - patterns: go/packages patterns (./..., import paths, file=...)
//
// Returns:
//   - []*Result: One result per Go file, in package order
//   - error: Loading failed, or a package has errors
//
// Thread Safety: Safe for concurrent use.
func RewritePackages(ctx context.Context, opts Options, patterns ...string) ([]*Result, error) {
	opts = opts.withDefaults()

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     opts.Dir,
		Fset:    fset,
		Tests:   opts.Tests,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", strings.Join(patterns, " "), err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", strings.Join(patterns, " "))
	}

	type job struct {
		pkg  *packages.Package
		file *ast.File
		res  *typedResolver
	}
	var jobs []job
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("package %s has errors: %v", pkg.PkgPath, pkg.Errors)
		}
		if pkg.Types == nil || pkg.TypesInfo == nil || strings.HasSuffix(pkg.ID, ".test") {
			continue
		}
		res := newTypedResolver(pkg.Types, pkg.TypesInfo, opts)
		for _, f := range pkg.Syntax {
			name := fset.Position(f.Package).Filename
			if seen[name] {
				continue
			}
			seen[name] = true
			jobs = append(jobs, job{pkg: pkg, file: f, res: res})
		}
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = rewritePackageFile(fset, j.pkg, j.file, j.res, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func rewritePackageFile(fset *token.FileSet, pkg *packages.Package, file *ast.File, res *typedResolver, opts Options) *Result {
	filename := fset.Position(file.Package).Filename
	opts.ImportPath = pkg.PkgPath
	opts.scopes = map[string]*packageScope{file.Name.Name: typesScope(pkg.Types)}

	orig, err := os.ReadFile(filename)
	if err != nil {
		return failed(filename, nil, fileError(filename, err.Error(), ""))
	}
	if opts.Excluded(pkg.PkgPath) {
		return unchanged(filename, pkg.PkgPath, orig, "excluded package "+pkg.PkgPath)
	}
	return rewriteParsed(fset, file, orig, res, opts)
}

// typesScope returns the package-level names of pkg.
func typesScope(pkg *types.Package) *packageScope {
	s := newPackageScope()
	for _, name := range pkg.Scope().Names() {
		s.names[name] = true
		if _, ok := pkg.Scope().Lookup(name).(*types.Var); ok {
			s.vars[name] = true
		}
	}
	return s
}

// typedResolver answers resolver questions from go/types information.
type typedResolver struct {
	pkg   *types.Package
	info  *types.Info
	opts  Options
	cache sync.Map // *types.TypeName → bool
}

func newTypedResolver(pkg *types.Package, info *types.Info, opts Options) *typedResolver {
	return &typedResolver{pkg: pkg, info: info, opts: opts}
}

func (r *typedResolver) eligibleMethod(fd *ast.FuncDecl) bool {
	fn, ok := r.info.Defs[fd.Name].(*types.Func)
	if !ok {
		return false
	}
	sig, _ := fn.Type().(*types.Signature)
	if sig == nil {
		return false
	}
	recv := sig.Recv()
	if recv == nil {
		return false
	}
	return r.eligibleType(recv.Type())
}

func (r *typedResolver) ownerEligible(sel *ast.SelectorExpr) bool {
	s, ok := r.info.Selections[sel]
	if !ok || s.Kind() != types.FieldVal {
		return false
	}
	return r.eligibleType(s.Recv())
}

func (r *typedResolver) isVariable(id *ast.Ident) bool {
	_, ok := r.info.ObjectOf(id).(*types.Var)
	return ok
}

func (r *typedResolver) valueKind(sel *ast.SelectorExpr) ValueKind {
	t := r.info.TypeOf(sel)
	if t == nil {
		return ValueUnknown
	}
	if _, ok := t.Underlying().(*types.Basic); ok {
		return ValuePrimitive
	}
	return ValueReference
}

// eligibleType reports whether t, or the type t points to, is an eligible
// named struct type.
func (r *typedResolver) eligibleType(t types.Type) bool {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Origin().Obj()
	if v, ok := r.cache.Load(obj); ok {
		return v.(bool)
	}
	eligible := r.computeEligible(named.Origin())
	r.cache.Store(obj, eligible)
	return eligible
}

func (r *typedResolver) computeEligible(named *types.Named) bool {
	if _, ok := named.Underlying().(*types.Struct); !ok {
		return false
	}
	obj := named.Obj()
	pkgPath := ""
	if obj.Pkg() != nil {
		pkgPath = obj.Pkg().Path()
	}
	if r.opts.forced(pkgPath, obj.Name()) {
		return true
	}

	f, _, _ := types.LookupFieldOrMethod(named, true, obj.Pkg(), r.opts.FieldName)
	v, ok := f.(*types.Var)
	return ok && v.IsField() && !v.Embedded()
}
