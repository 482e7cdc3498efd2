// Package rewrite - Eligibility selection in file mode.
package rewrite

import (
	"go/ast"
	"go/token"
)

// CollectEligible returns the names of the struct types declared in files
// that are eligible for rewriting, in declaration order.
//
// A type is eligible if it declares a named field called opts.FieldName, is
// listed in opts.ForceTypes, or embeds an eligible type of the same
// package. Interfaces and non-struct types are never eligible.
//
// Pass all files of a package to see types declared in sibling files.
func CollectEligible(files []*ast.File, opts Options) []string {
	opts = opts.withDefaults()

	type structInfo struct {
		name     string
		embedded []string
	}
	var structs []structInfo
	eligible := make(map[string]bool)

	for _, f := range files {
		for _, decl := range f.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					continue
				}
				info := structInfo{name: ts.Name.Name}
				for _, field := range st.Fields.List {
					if len(field.Names) == 0 {
						if name, _ := receiverBase(field.Type); name != "" {
							info.embedded = append(info.embedded, name)
						}
						continue
					}
					for _, n := range field.Names {
						if n.Name == opts.FieldName {
							eligible[info.name] = true
						}
					}
				}
				if opts.forced(opts.ImportPath, info.name) {
					eligible[info.name] = true
				}
				structs = append(structs, info)
			}
		}
	}

	// Promotion through embedding, until nothing changes.
	for changed := true; changed; {
		changed = false
		for _, s := range structs {
			if eligible[s.name] {
				continue
			}
			for _, e := range s.embedded {
				if eligible[e] {
					eligible[s.name] = true
					changed = true
					break
				}
			}
		}
	}

	var names []string
	for _, s := range structs {
		if eligible[s.name] {
			names = append(names, s.name)
			delete(eligible, s.name)
		}
	}
	return names
}

// packageScope holds the package-level names declared by the files of a
// package. In file mode it is collected from the sibling files of the file
// being rewritten; in package mode it comes from the type checker.
type packageScope struct {
	names map[string]bool // every package-level name
	vars  map[string]bool // package-level variables
}

func newPackageScope() *packageScope {
	return &packageScope{names: make(map[string]bool), vars: make(map[string]bool)}
}

// addFile records the package-level declarations of file.
func (s *packageScope) addFile(file *ast.File) {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				s.names[d.Name.Name] = true
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch sp := spec.(type) {
				case *ast.TypeSpec:
					s.names[sp.Name.Name] = true
				case *ast.ValueSpec:
					for _, n := range sp.Names {
						s.names[n.Name] = true
						if d.Tok == token.VAR {
							s.vars[n.Name] = true
						}
					}
				}
			}
		}
	}
}

func (s *packageScope) declares(name string) bool {
	return s != nil && s.names[name]
}

func (s *packageScope) variable(name string) bool {
	return s != nil && s.vars[name]
}

// syntaxResolver answers resolver questions from syntax alone.
type syntaxResolver struct {
	eligible map[string]bool
	scope    *packageScope
}

func newSyntaxResolver(eligible []string, scope *packageScope) *syntaxResolver {
	r := &syntaxResolver{
		eligible: make(map[string]bool, len(eligible)),
		scope:    scope,
	}
	for _, name := range eligible {
		r.eligible[name] = true
	}
	return r
}

func (r *syntaxResolver) eligibleMethod(fd *ast.FuncDecl) bool {
	name, _ := receiverBase(fd.Recv.List[0].Type)
	return r.eligible[name]
}

// ownerEligible is always true: without types the owner is checked at run
// time, when an owner without interceptor simply dispatches nothing.
func (r *syntaxResolver) ownerEligible(*ast.SelectorExpr) bool {
	return true
}

// isVariable trusts the parser's identifier resolution for names declared
// in the file. An unresolved name is a variable only when a sibling file
// declares it at package level; anything else may be an imported package,
// whose name cannot be known from its import path.
func (r *syntaxResolver) isVariable(id *ast.Ident) bool {
	if id.Obj != nil {
		return id.Obj.Kind == ast.Var
	}
	return r.scope.variable(id.Name)
}

func (r *syntaxResolver) valueKind(*ast.SelectorExpr) ValueKind {
	return ValueUnknown
}
