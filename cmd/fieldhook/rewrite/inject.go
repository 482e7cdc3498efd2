// Package rewrite - Import injection functionality.
//
// This file adds the hook runtime import and, for non-default names, the
// init function configuring the runtime.
package rewrite

import (
	"go/ast"
	"go/token"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/kolkov/fieldhook/internal/hook/dispatch"
	"github.com/kolkov/fieldhook/internal/hook/locate"
)

// hookName returns the local name under which rewritten code refers to the
// hook runtime, and whether an import under that name must be added.
//
// Cases:
//   - Already imported under a name no declaration of the file shadows:
//     that name, no import added
//   - Otherwise HookAlias, or HookAlias followed by a number when the file
//     or the package already uses it: import added
//
// Every identifier of the file counts as used, not only the declarations
// in scope at the rewritten statements: a name free in the whole file
// cannot be shadowed at any notification.
func hookName(file *ast.File, scope *packageScope) (string, bool) {
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p != HookImportPath {
			continue
		}
		name := "hook"
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if name != "_" && name != "." && !declared(file, name) {
			return name, false
		}
	}

	used := usedNames(file)
	alias := HookAlias
	for i := 1; used[alias] || scope.declares(alias); i++ {
		alias = HookAlias + strconv.Itoa(i)
	}
	return alias, true
}

// usedNames returns every identifier of file except selected field and
// method names, which live in their own namespace.
func usedNames(file *ast.File) map[string]bool {
	used := make(map[string]bool)
	ast.Inspect(file, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.SelectorExpr:
			ast.Inspect(x.X, func(n ast.Node) bool {
				if id, ok := n.(*ast.Ident); ok {
					used[id.Name] = true
				}
				return true
			})
			return false
		case *ast.Ident:
			used[x.Name] = true
		}
		return true
	})
	return used
}

// declared reports whether file declares name anywhere: at package level,
// as a parameter, a local or a struct field. References to an imported
// package are never resolved by the parser, so they do not count.
func declared(file *ast.File, name string) bool {
	found := false
	ast.Inspect(file, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && id.Name == name && id.Obj != nil {
			found = true
		}
		return !found
	})
	return found
}

// injectHook adds the runtime import when needed and, if the file was
// rewritten for non-default names, an init function configuring them:
//
//	func init() {
//	    fieldhook.Configure(fieldhook.Options{FieldName: "obs"})
//	}
//
// Several rewritten files of one package each carry the init function;
// configuring the same options again is a no-op.
func injectHook(fset *token.FileSet, file *ast.File, alias string, addImport bool, opts Options) {
	if addImport {
		astutil.AddNamedImport(fset, file, alias, HookImportPath)
	}

	var elts []ast.Expr
	if opts.FieldName != locate.DefaultFieldName {
		elts = append(elts, keyValue("FieldName", opts.FieldName))
	}
	if opts.MethodName != dispatch.DefaultMethodName {
		elts = append(elts, keyValue("MethodName", opts.MethodName))
	}
	if len(elts) == 0 {
		return
	}

	file.Decls = append(file.Decls, &ast.FuncDecl{
		Name: ast.NewIdent("init"),
		Type: &ast.FuncType{Params: &ast.FieldList{}},
		Body: &ast.BlockStmt{List: []ast.Stmt{
			&ast.ExprStmt{X: &ast.CallExpr{
				Fun: &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent("Configure")},
				Args: []ast.Expr{&ast.CompositeLit{
					Type: &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent("Options")},
					Elts: elts,
				}},
			}},
		}},
	})
}

func keyValue(key, value string) ast.Expr {
	return &ast.KeyValueExpr{
		Key:   ast.NewIdent(key),
		Value: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(value)},
	}
}
