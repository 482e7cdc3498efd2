// Package rewrite - AST visitor for field write detection.
//
// This file implements the core rewrite logic: finding field writes in the
// methods of eligible types and inserting notifications after them.
package rewrite

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// ValueKind classifies the type of a written field.
type ValueKind int

const (
	// ValueUnknown is reported in file mode, where types are not known.
	ValueUnknown ValueKind = iota
	// ValuePrimitive is a field of basic type (numbers, strings, bools).
	ValuePrimitive
	// ValueReference is any other field type.
	ValueReference
)

func (k ValueKind) String() string {
	switch k {
	case ValuePrimitive:
		return "primitive"
	case ValueReference:
		return "reference"
	}
	return "unknown"
}

// SkipReason tells why a field write was not rewritten.
type SkipReason int

const (
	// NotSkipped marks a rewritten write.
	NotSkipped SkipReason = iota
	// SkipReserved is a write to the interceptor field itself.
	SkipReserved
	// SkipFunction is a write in a function without receiver.
	SkipFunction
	// SkipValueReceiver is a write in a value-receiver method, which only
	// modifies a copy.
	SkipValueReceiver
	// SkipComplexOwner is a write whose owner expression is not a chain of
	// identifiers and selectors, so evaluating it again could change
	// behavior.
	SkipComplexOwner
	// SkipQualified is a write rooted at an imported package (pkg.Var.f),
	// or at a name not known to be a variable.
	SkipQualified
	// SkipNoStmtList is a write in an if, for or switch header, or a
	// select case, where no statement can follow it.
	SkipNoStmtList
	// SkipNotEligible is a write to a field of a type that is not observed
	// (package mode only).
	SkipNotEligible
	// SkipAliased is a write whose owner is itself reassigned by the same
	// statement.
	SkipAliased
)

var skipNames = [...]string{
	NotSkipped:        "rewritten",
	SkipReserved:      "reserved field",
	SkipFunction:      "plain function",
	SkipValueReceiver: "value receiver",
	SkipComplexOwner:  "complex owner",
	SkipQualified:     "package-qualified",
	SkipNoStmtList:    "no statement list",
	SkipNotEligible:   "owner not observed",
	SkipAliased:       "owner reassigned",
}

func (r SkipReason) String() string {
	if int(r) < len(skipNames) {
		return skipNames[r]
	}
	return "SkipReason(" + strconv.Itoa(int(r)) + ")"
}

// Stats tracks rewrite statistics.
//
// Use Case:
// Enable with -v flag to see per-file statistics:
//
//	fieldhook build -v ./...
//	Rewrote box.go:
//	  - 4 notifications inserted
//	  - 2 writes skipped (1 reserved field, 1 value receiver)
//
// Thread Safety: NOT thread-safe (single-threaded rewriting per file).
type Stats struct {
	WritesRewritten      int // Notifications inserted
	ReservedSkipped      int // Writes to the interceptor field
	FunctionSkipped      int // Writes in plain functions
	ValueReceiverSkipped int // Writes in value-receiver methods
	ComplexOwnerSkipped  int // Owners with calls, indexing or conversions
	QualifiedSkipped     int // Writes rooted at an imported package
	NoStmtListSkipped    int // Writes in statement headers
	NotEligibleSkipped   int // Owners of unobserved types
	AliasedSkipped       int // Owners reassigned by the same statement
	PrimitiveValues      int // Rewritten writes of basic-typed fields
	ReferenceValues      int // Rewritten writes of other fields
}

// Total returns the number of field writes considered.
func (s *Stats) Total() int {
	return s.WritesRewritten + s.TotalSkipped()
}

// TotalSkipped returns the number of field writes left unchanged.
func (s *Stats) TotalSkipped() int {
	return s.ReservedSkipped + s.FunctionSkipped + s.ValueReceiverSkipped +
		s.ComplexOwnerSkipped + s.QualifiedSkipped + s.NoStmtListSkipped +
		s.NotEligibleSkipped + s.AliasedSkipped
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.WritesRewritten += other.WritesRewritten
	s.ReservedSkipped += other.ReservedSkipped
	s.FunctionSkipped += other.FunctionSkipped
	s.ValueReceiverSkipped += other.ValueReceiverSkipped
	s.ComplexOwnerSkipped += other.ComplexOwnerSkipped
	s.QualifiedSkipped += other.QualifiedSkipped
	s.NoStmtListSkipped += other.NoStmtListSkipped
	s.NotEligibleSkipped += other.NotEligibleSkipped
	s.AliasedSkipped += other.AliasedSkipped
	s.PrimitiveValues += other.PrimitiveValues
	s.ReferenceValues += other.ReferenceValues
}

func (s *Stats) count(site *WriteSite) {
	switch site.Skip {
	case NotSkipped:
		s.WritesRewritten++
		switch site.Value {
		case ValuePrimitive:
			s.PrimitiveValues++
		case ValueReference:
			s.ReferenceValues++
		}
	case SkipReserved:
		s.ReservedSkipped++
	case SkipFunction:
		s.FunctionSkipped++
	case SkipValueReceiver:
		s.ValueReceiverSkipped++
	case SkipComplexOwner:
		s.ComplexOwnerSkipped++
	case SkipQualified:
		s.QualifiedSkipped++
	case SkipNoStmtList:
		s.NoStmtListSkipped++
	case SkipNotEligible:
		s.NotEligibleSkipped++
	case SkipAliased:
		s.AliasedSkipped++
	}
}

// WriteSite is one field write found during rewriting.
type WriteSite struct {
	Type            string         // Receiver type of the enclosing method, "" in functions
	Owner           string         // Owner expression as written (b, b.inner, (*p))
	Field           string         // Written field
	Tok             token.Token    // ASSIGN, ADD_ASSIGN, INC, ...
	Value           ValueKind      // Field type class (package mode)
	PointerReceiver bool           // Enclosing method has a pointer receiver
	Pos             token.Position // Position of the field selector
	Skip            SkipReason     // NotSkipped if a notification was inserted

	owner ast.Expr
}

// Rewritten reports whether a notification was inserted for the site.
func (s WriteSite) Rewritten() bool {
	return s.Skip == NotSkipped
}

// resolver answers the questions that differ between file and package mode.
type resolver interface {
	// eligibleMethod reports whether fd is declared on an eligible type.
	eligibleMethod(fd *ast.FuncDecl) bool
	// ownerEligible reports whether the struct owning sel is eligible.
	ownerEligible(sel *ast.SelectorExpr) bool
	// isVariable reports whether id denotes a variable. Owners rooted at
	// anything else (an imported package above all) are not rewritten.
	isVariable(id *ast.Ident) bool
	// valueKind classifies the type of the field selected by sel.
	valueKind(sel *ast.SelectorExpr) ValueKind
}

// methodContext describes the function enclosing a write.
type methodContext struct {
	typeName string
	pointer  bool
	function bool
}

// rewriteVisitor finds field writes and inserts notifications.
//
// Two-Pass Algorithm:
//
//	Pass 1 (collect): record all write sites and the statement after which
//	                  each notification goes
//	Pass 2 (apply):   insert the notifications with astutil.Apply
//
// This avoids modifying statement lists while walking them.
type rewriteVisitor struct {
	fset  *token.FileSet
	file  *ast.File
	res   resolver
	opts  Options
	alias string

	// sites records every write considered, in source order.
	sites []WriteSite

	// anchors maps a statement to the indexes of the sites notified
	// after it.
	anchors map[ast.Stmt][]int

	stats Stats
}

func newRewriteVisitor(fset *token.FileSet, file *ast.File, res resolver, opts Options, alias string) *rewriteVisitor {
	return &rewriteVisitor{
		fset:    fset,
		file:    file,
		res:     res,
		opts:    opts,
		alias:   alias,
		anchors: make(map[ast.Stmt][]int),
	}
}

// collect walks every function and method body and records write sites.
// Methods of types that are not eligible are not considered at all.
func (v *rewriteVisitor) collect() {
	for _, decl := range v.file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}

		var m methodContext
		if fd.Recv == nil || len(fd.Recv.List) == 0 {
			m.function = true
		} else {
			if !v.res.eligibleMethod(fd) {
				continue
			}
			m.typeName, m.pointer = receiverBase(fd.Recv.List[0].Type)
		}
		v.collectBody(fd.Body, m)
	}
}

func (v *rewriteVisitor) collectBody(body *ast.BlockStmt, m methodContext) {
	inList := make(map[*ast.LabeledStmt]bool)

	astutil.Apply(body, func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *ast.LabeledStmt:
			if c.Index() >= 0 {
				inList[n] = true
			}
		case *ast.AssignStmt, *ast.IncDecStmt:
			stmt := n.(ast.Stmt)
			var anchor ast.Stmt
			if c.Index() >= 0 {
				anchor = stmt
			} else if l, ok := c.Parent().(*ast.LabeledStmt); ok && inList[l] {
				anchor = l
			}
			v.visitWrite(stmt, anchor, m)
		}
		return true
	}, nil)
}

// visitWrite records the field writes of one assignment or inc/dec
// statement. anchor is the statement the notifications follow, or nil when
// the statement is not part of a statement list.
//
// Examples (b is a pointer receiver of an eligible type):
//
//	b.count = n          → notify b "count"
//	b.x, b.y = 1, 2      → notify b "x", then b "y"
//	b.inner.total += n   → notify b.inner "total"
//	b.count++            → notify b "count"
//	v := b.count         → no field written
//	b.items[i] = x       → no field written (element write)
//	b.next().count = 1   → skipped: complex owner
func (v *rewriteVisitor) visitWrite(stmt ast.Stmt, anchor ast.Stmt, m methodContext) {
	var lhs []ast.Expr
	var tok token.Token
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		if s.Tok == token.DEFINE {
			return
		}
		lhs, tok = s.Lhs, s.Tok
	case *ast.IncDecStmt:
		lhs, tok = []ast.Expr{s.X}, s.Tok
	}

	for i, e := range lhs {
		sel, ok := astutil.Unparen(e).(*ast.SelectorExpr)
		if !ok {
			continue
		}

		site := WriteSite{
			Type:            m.typeName,
			Owner:           types.ExprString(sel.X),
			Field:           sel.Sel.Name,
			Tok:             tok,
			PointerReceiver: m.pointer,
			Pos:             v.fset.Position(sel.Sel.Pos()),
			owner:           sel.X,
		}
		site.Skip = v.classify(sel, i, lhs, anchor, m)
		if site.Skip == NotSkipped {
			site.Value = v.res.valueKind(sel)
			v.anchors[anchor] = append(v.anchors[anchor], len(v.sites))
		}

		v.stats.count(&site)
		v.sites = append(v.sites, site)
	}
}

// classify decides whether the write of sel (the i-th left-hand side) is
// rewritten.
func (v *rewriteVisitor) classify(sel *ast.SelectorExpr, i int, lhs []ast.Expr, anchor ast.Stmt, m methodContext) SkipReason {
	root, simple := ownerRoot(sel.X)
	if simple && !v.res.isVariable(root) {
		// pkg.Var is a package variable, pkg.Var.f a qualified field.
		return SkipQualified
	}

	switch {
	case sel.Sel.Name == v.opts.FieldName:
		return SkipReserved
	case m.function:
		return SkipFunction
	case !m.pointer:
		return SkipValueReceiver
	case !simple:
		return SkipComplexOwner
	case anchor == nil:
		return SkipNoStmtList
	case !v.res.ownerEligible(sel):
		return SkipNotEligible
	case reassigned(sel.X, i, lhs):
		return SkipAliased
	}
	return NotSkipped
}

// apply inserts a notification after every anchor statement, one per
// rewritten site in left-to-right order.
func (v *rewriteVisitor) apply() {
	astutil.Apply(v.file, nil, func(c *astutil.Cursor) bool {
		stmt, ok := c.Node().(ast.Stmt)
		if !ok {
			return true
		}
		idx, ok := v.anchors[stmt]
		if !ok || c.Index() < 0 {
			return true
		}
		// InsertAfter places each node directly after the anchor.
		for j := len(idx) - 1; j >= 0; j-- {
			c.InsertAfter(v.createNotifyCall(v.sites[idx[j]]))
		}
		return true
	})
}

// createNotifyCall creates the statement
//
//	fieldhook.Notify(owner, "field", owner.field)
//
// The owner expression is cloned without positions for both uses.
func (v *rewriteVisitor) createNotifyCall(site WriteSite) ast.Stmt {
	return &ast.ExprStmt{
		X: &ast.CallExpr{
			Fun: &ast.SelectorExpr{
				X:   ast.NewIdent(v.alias),
				Sel: ast.NewIdent("Notify"),
			},
			Args: []ast.Expr{
				cloneOwner(site.owner),
				&ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(site.Field)},
				&ast.SelectorExpr{
					X:   cloneOwner(site.owner),
					Sel: ast.NewIdent(site.Field),
				},
			},
		},
	}
}

// ownerRoot returns the identifier a chain of identifiers, selectors,
// parentheses and dereferences starts at. simple is false for any other
// expression.
func ownerRoot(e ast.Expr) (root *ast.Ident, simple bool) {
	switch x := e.(type) {
	case *ast.Ident:
		return x, true
	case *ast.SelectorExpr:
		return ownerRoot(x.X)
	case *ast.ParenExpr:
		return ownerRoot(x.X)
	case *ast.StarExpr:
		return ownerRoot(x.X)
	}
	return nil, false
}

func cloneOwner(e ast.Expr) ast.Expr {
	switch x := e.(type) {
	case *ast.Ident:
		return ast.NewIdent(x.Name)
	case *ast.SelectorExpr:
		return &ast.SelectorExpr{X: cloneOwner(x.X), Sel: ast.NewIdent(x.Sel.Name)}
	case *ast.ParenExpr:
		return &ast.ParenExpr{X: cloneOwner(x.X)}
	case *ast.StarExpr:
		return &ast.StarExpr{X: cloneOwner(x.X)}
	}
	panic("rewrite: cannot clone owner " + types.ExprString(e))
}

// reassigned reports whether another left-hand side of the same statement
// assigns owner or one of its prefixes: after b.next.x, b.next = 1, n the
// written object is no longer reachable as b.next.
func reassigned(owner ast.Expr, i int, lhs []ast.Expr) bool {
	o := chainString(owner)
	for j, e := range lhs {
		if j == i {
			continue
		}
		s := chainString(astutil.Unparen(e))
		if s == "" {
			continue
		}
		if o == s || strings.HasPrefix(o, s+".") {
			return true
		}
	}
	return false
}

// chainString renders an owner chain with parentheses and dereferences
// removed, so (*b).next and b.next compare equal.
func chainString(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Ident:
		if x.Name == "_" {
			return ""
		}
		return x.Name
	case *ast.SelectorExpr:
		if p := chainString(x.X); p != "" {
			return p + "." + x.Sel.Name
		}
	case *ast.ParenExpr:
		return chainString(x.X)
	case *ast.StarExpr:
		return chainString(x.X)
	}
	return ""
}

// receiverBase returns the base type name of a receiver type expression and
// whether it is a pointer: *Box[T] → "Box", true.
func receiverBase(e ast.Expr) (name string, pointer bool) {
	for {
		switch x := e.(type) {
		case *ast.ParenExpr:
			e = x.X
		case *ast.StarExpr:
			e, pointer = x.X, true
		case *ast.IndexExpr:
			e = x.X
		case *ast.IndexListExpr:
			e = x.X
		case *ast.Ident:
			return x.Name, pointer
		default:
			return "", pointer
		}
	}
}
