package rewrite

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boxSource = `package shapes

type Box struct {
	count               int
	instanceInterceptor any
}

func (b *Box) Set(n int) {
	b.count = n
}

func (b *Box) Detach() {
	b.instanceInterceptor = nil
}

func (b Box) Copy() {
	b.count = 3
}

func NewBox() *Box {
	b := &Box{}
	b.count = 1
	return b
}
`

// mustParse fails the test if code is not valid Go.
func mustParse(t *testing.T, code string) {
	t.Helper()
	_, err := parser.ParseFile(token.NewFileSet(), "out.go", code, 0)
	require.NoError(t, err, "rewritten code:\n%s", code)
}

func TestRewriteFile_Box(t *testing.T) {
	r := RewriteFile("box.go", boxSource, Options{})

	require.Equal(t, StatusRewritten, r.Status, "err: %v", r.Err)
	mustParse(t, r.Code)

	assert.Contains(t, r.Code, `fieldhook "github.com/kolkov/fieldhook/hook"`)
	assert.Contains(t, r.Code, "b.count = n\n\tfieldhook.Notify(b, \"count\", b.count)\n}")
	assert.Equal(t, 1, strings.Count(r.Code, "fieldhook.Notify("))
	assert.NotContains(t, r.Code, "func init()")

	assert.Equal(t, 1, r.Stats.WritesRewritten)
	assert.Equal(t, 1, r.Stats.ReservedSkipped)
	assert.Equal(t, 1, r.Stats.ValueReceiverSkipped)
	assert.Equal(t, 1, r.Stats.FunctionSkipped)
	assert.Equal(t, 4, r.Stats.Total())

	require.Len(t, r.Sites, 4)
	assert.Equal(t, "Box", r.Sites[0].Type)
	assert.Equal(t, "b", r.Sites[0].Owner)
	assert.Equal(t, "count", r.Sites[0].Field)
	assert.True(t, r.Sites[0].Rewritten())
	assert.Equal(t, 9, r.Sites[0].Pos.Line)
	assert.Equal(t, SkipReserved, r.Sites[1].Skip)
}

func TestRewriteFile_Unchanged(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		opts   Options
		reason string
	}{
		{
			name: "no eligible types",
			src: `package p

type T struct{ n int }

func (t *T) Set() { t.n = 1 }
`,
			reason: "no observed field writes",
		},
		{
			name: "only reserved field writes",
			src: `package p

type T struct{ instanceInterceptor any }

func (t *T) Attach(i any) { t.instanceInterceptor = i }
`,
			reason: "no observed field writes",
		},
		{
			name:   "excluded package",
			src:    boxSource,
			opts:   Options{ImportPath: "github.com/kolkov/fieldhook/symtab"},
			reason: "excluded package",
		},
		{
			name:   "custom exclusion",
			src:    boxSource,
			opts:   Options{ImportPath: "example.com/gen/shapes", Exclude: []string{"example.com/gen"}},
			reason: "excluded package",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RewriteFile("p.go", tt.src, tt.opts)
			assert.Equal(t, StatusUnchanged, r.Status)
			assert.Equal(t, tt.src, r.Code)
			assert.Contains(t, r.Reason, tt.reason)
			assert.Nil(t, r.Failure())
		})
	}
}

func TestRewriteFile_Statements(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "multi assign in order",
			body: "b.x, b.y = 1, 2",
			want: []string{"b.x, b.y = 1, 2\n\tfieldhook.Notify(b, \"x\", b.x)\n\tfieldhook.Notify(b, \"y\", b.y)"},
		},
		{
			name: "op assign",
			body: "b.x += 2",
			want: []string{"b.x += 2\n\tfieldhook.Notify(b, \"x\", b.x)"},
		},
		{
			name: "increment",
			body: "b.x++",
			want: []string{"b.x++\n\tfieldhook.Notify(b, \"x\", b.x)"},
		},
		{
			name: "nested owner",
			body: "b.inner.total = 4",
			want: []string{"fieldhook.Notify(b.inner, \"total\", b.inner.total)"},
		},
		{
			name: "dereferenced owner",
			body: "(*b).x = 1",
			want: []string{"fieldhook.Notify((*b), \"x\", (*b).x)"},
		},
		{
			name: "if body",
			body: "if b.x > 0 {\n\t\tb.y = 1\n\t}",
			want: []string{"b.y = 1\n\t\tfieldhook.Notify(b, \"y\", b.y)"},
		},
		{
			name: "switch case",
			body: "switch {\n\tcase b.x > 0:\n\t\tb.y = 1\n\t}",
			want: []string{"b.y = 1\n\t\tfieldhook.Notify(b, \"y\", b.y)"},
		},
		{
			name: "select case body",
			body: "select {\n\tdefault:\n\t\tb.y = 1\n\t}",
			want: []string{"b.y = 1\n\t\tfieldhook.Notify(b, \"y\", b.y)"},
		},
		{
			name: "closure",
			body: "f := func() {\n\t\tb.x = 2\n\t}\n\tf()",
			want: []string{"b.x = 2\n\t\tfieldhook.Notify(b, \"x\", b.x)"},
		},
		{
			name: "labeled statement",
			body: "goto L\nL:\n\tb.x = 1",
			want: []string{"b.x = 1\n\tfieldhook.Notify(b, \"x\", b.x)"},
		},
		{
			name: "fallthrough stays last",
			body: "switch b.x {\n\tcase 1:\n\t\tb.y = 1\n\t\tfallthrough\n\tdefault:\n\t}",
			want: []string{"fieldhook.Notify(b, \"y\", b.y)\n\t\tfallthrough"},
		},
		{
			name: "other owner of unknown type",
			body: "o := &Box{}\n\to.x = 1",
			want: []string{"fieldhook.Notify(o, \"x\", o.x)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package p\n\ntype inner struct{ total int }\n\n" +
				"type Box struct {\n\tx, y int\n\tinner inner\n\tinstanceInterceptor any\n}\n\n" +
				"func (b *Box) M() {\n\t" + tt.body + "\n}\n"

			r := RewriteFile("p.go", src, Options{})
			require.Equal(t, StatusRewritten, r.Status, "err: %v", r.Err)
			mustParse(t, r.Code)
			for _, w := range tt.want {
				assert.Contains(t, r.Code, w)
			}
		})
	}
}

func TestRewriteFile_Skips(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, s Stats)
	}{
		{
			name:  "call owner",
			body:  "b.self().x = 1",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 1, s.ComplexOwnerSkipped) },
		},
		{
			name:  "index owner",
			body:  "b.all[0].x = 1",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 1, s.ComplexOwnerSkipped) },
		},
		{
			name:  "type assertion owner",
			body:  "var v any = b\n\tv.(*Box).x = 1",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 1, s.ComplexOwnerSkipped) },
		},
		{
			name:  "if init",
			body:  "if b.x = 1; b.x > 0 {\n\t}",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 1, s.NoStmtListSkipped) },
		},
		{
			name:  "for init and post",
			body:  "for b.x = 0; b.x < 3; b.x++ {\n\t}",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 2, s.NoStmtListSkipped) },
		},
		{
			name:  "select receive",
			body:  "ch := make(chan int)\n\tselect {\n\tcase b.x = <-ch:\n\t}",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 1, s.NoStmtListSkipped) },
		},
		{
			name:  "package qualified",
			body:  "other.Global.x = 1\n\t_ = strings.ToUpper",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 1, s.QualifiedSkipped) },
		},
		{
			name: "owner reassigned",
			body: "b.next.x, b.next = 1, nil",
			check: func(t *testing.T, s Stats) {
				assert.Equal(t, 1, s.AliasedSkipped)
				assert.Equal(t, 1, s.WritesRewritten)
			},
		},
		{
			name:  "element write is not a field write",
			body:  "b.all[0] = nil",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 0, s.Total()) },
		},
		{
			name:  "declaration",
			body:  "x := b.x\n\t_ = x",
			check: func(t *testing.T, s Stats) { assert.Equal(t, 0, s.Total()) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package p\n\nimport (\n\t\"strings\"\n\n\t\"example.com/other\"\n)\n\n" +
				"type Box struct {\n\tx int\n\tnext *Box\n\tall []*Box\n\tinstanceInterceptor any\n}\n\n" +
				"func (b *Box) self() *Box { return b }\n\n" +
				"func (b *Box) M() {\n\t" + tt.body + "\n}\n"

			r := RewriteFile("p.go", src, Options{})
			require.NotEqual(t, StatusFailed, r.Status, "err: %v", r.Err)
			mustParse(t, r.Code)
			tt.check(t, r.Stats)
		})
	}
}

func TestRewriteFile_Eligibility(t *testing.T) {
	t.Run("forced type", func(t *testing.T) {
		src := "package p\n\ntype Plain struct{ n int }\n\nfunc (p *Plain) Set() { p.n = 1 }\n"
		assert.Equal(t, StatusUnchanged, RewriteFile("p.go", src, Options{}).Status)

		r := RewriteFile("p.go", src, Options{ForceTypes: []string{"Plain"}})
		assert.Equal(t, StatusRewritten, r.Status)
		assert.Contains(t, r.Code, `fieldhook.Notify(p, "n", p.n)`)

		r = RewriteFile("p.go", src, Options{ImportPath: "example.com/p", ForceTypes: []string{"example.com/p.Plain"}})
		assert.Equal(t, StatusRewritten, r.Status)
	})

	t.Run("embedded eligible type", func(t *testing.T) {
		src := "package p\n\ntype Base struct{ instanceInterceptor any }\n\n" +
			"type Derived struct {\n\t*Base\n\tn int\n}\n\nfunc (d *Derived) Set() { d.n = 1 }\n"
		r := RewriteFile("p.go", src, Options{})
		assert.Equal(t, StatusRewritten, r.Status)
		assert.Contains(t, r.Code, `fieldhook.Notify(d, "n", d.n)`)
	})

	t.Run("generic receiver", func(t *testing.T) {
		src := "package p\n\ntype G[T any] struct {\n\tv T\n\tinstanceInterceptor any\n}\n\n" +
			"func (g *G[T]) Set(v T) { g.v = v }\n"
		r := RewriteFile("p.go", src, Options{})
		assert.Equal(t, StatusRewritten, r.Status)
		mustParse(t, r.Code)
	})

	t.Run("interface is never eligible", func(t *testing.T) {
		names := CollectEligible(nil, Options{ForceTypes: []string{"I"}})
		assert.Empty(t, names)
	})
}

func TestRewriteFile_CustomNames(t *testing.T) {
	src := "package p\n\ntype T struct {\n\tn int\n\tobs any\n}\n\nfunc (t *T) Set() {\n\tt.n = 1\n\tt.obs = nil\n}\n"

	r := RewriteFile("p.go", src, Options{FieldName: "obs", MethodName: "Observe"})
	require.Equal(t, StatusRewritten, r.Status)
	mustParse(t, r.Code)
	assert.Equal(t, 1, r.Stats.ReservedSkipped)
	assert.Contains(t, r.Code, "func init() {\n\tfieldhook.Configure(fieldhook.Options{FieldName: \"obs\", MethodName: \"Observe\"})\n}")
}

func TestRewriteFile_ExistingImport(t *testing.T) {
	src := "package p\n\nimport h \"github.com/kolkov/fieldhook/hook\"\n\nvar _ h.Interceptor\n\n" +
		"type T struct {\n\tn int\n\tinstanceInterceptor any\n}\n\nfunc (t *T) Set() { t.n = 1 }\n"

	r := RewriteFile("p.go", src, Options{})
	require.Equal(t, StatusRewritten, r.Status)
	assert.Contains(t, r.Code, `h.Notify(t, "n", t.n)`)
	assert.Equal(t, 1, strings.Count(r.Code, "github.com/kolkov/fieldhook/hook"))
}

func TestRewriteFile_AliasAvoidsUsedNames(t *testing.T) {
	const box = "type Box struct {\n\tcount int\n\tinstanceInterceptor any\n}\n\n"

	tests := []struct {
		name  string
		src   string
		alias string
	}{
		{
			name:  "parameter",
			src:   "package p\n\n" + box + "func (b *Box) Shadow(fieldhook int) { b.count = fieldhook }\n",
			alias: "fieldhook1",
		},
		{
			name: "local variable",
			src: "package p\n\n" + box +
				"func (b *Box) Shadow() {\n\tfieldhook := 2\n\tb.count = fieldhook\n}\n",
			alias: "fieldhook1",
		},
		{
			name: "import name",
			src: "package p\n\nimport fieldhook \"example.com/fieldhook\"\n\nvar _ = fieldhook.X\n\n" + box +
				"func (b *Box) Set() { b.count = 1 }\n",
			alias: "fieldhook1",
		},
		{
			name:  "package-level declaration",
			src:   "package p\n\nvar fieldhook = 1\n\n" + box + "func (b *Box) Set() { b.count = 1 }\n",
			alias: "fieldhook1",
		},
		{
			name: "numbered alias taken too",
			src: "package p\n\n" + box +
				"func (b *Box) Set(fieldhook, fieldhook1 int) { b.count = fieldhook + fieldhook1 }\n",
			alias: "fieldhook2",
		},
		{
			name:  "field name is no conflict",
			src:   "package p\n\n" + box + "type other struct{ x int }\n\nfunc (b *Box) Set(o *other) { b.count = o.x }\n",
			alias: "fieldhook",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RewriteFile("p.go", tt.src, Options{})
			require.Equal(t, StatusRewritten, r.Status, "err: %v", r.Err)
			mustParse(t, r.Code)
			assert.Contains(t, r.Code, tt.alias+` "github.com/kolkov/fieldhook/hook"`)
			assert.Contains(t, r.Code, tt.alias+`.Notify(b, "count", b.count)`)
		})
	}
}

func TestRewriteFile_ExistingImportShadowed(t *testing.T) {
	src := "package p\n\nimport h \"github.com/kolkov/fieldhook/hook\"\n\nvar _ h.Interceptor\n\n" +
		"type T struct {\n\tn int\n\tinstanceInterceptor any\n}\n\nfunc (t *T) Set(h int) { t.n = h }\n"

	r := RewriteFile("p.go", src, Options{})
	require.Equal(t, StatusRewritten, r.Status)
	assert.Contains(t, r.Code, `fieldhook.Notify(t, "n", t.n)`)
	assert.Equal(t, 2, strings.Count(r.Code, `"github.com/kolkov/fieldhook/hook"`))
}

func TestRewriteFile_OwnerMustBeVariable(t *testing.T) {
	// The import path does not tell the package name: example.com/lib
	// declares package other.
	src := `package p

import "example.com/lib"

var global = &Box{}

type Box struct {
	count               int
	instanceInterceptor any
}

func (b *Box) Sync(n int) {
	other.Counter = n
	other.State.count = n
	global.count = n
	local := &Box{}
	local.count = n
	_ = lib.X
}
`
	r := RewriteFile("p.go", src, Options{})
	require.Equal(t, StatusRewritten, r.Status, "err: %v", r.Err)
	mustParse(t, r.Code)

	assert.Equal(t, 2, r.Stats.QualifiedSkipped)
	assert.Equal(t, 2, r.Stats.WritesRewritten)
	assert.NotContains(t, r.Code, "Notify(other")
	assert.Contains(t, r.Code, `fieldhook.Notify(global, "count", global.count)`)
	assert.Contains(t, r.Code, `fieldhook.Notify(local, "count", local.count)`)
}

func TestRewriteFile_Failures(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{
			name: "syntax error",
			src:  "package p\n\nfunc (b *Box) M() {\n\tb.x = \n}\n",
			line: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RewriteFile("p.go", tt.src, Options{})
			require.Equal(t, StatusFailed, r.Status)
			assert.Equal(t, tt.src, r.Code, "failed rewrite keeps the original")
			require.NotNil(t, r.Err)
			assert.Equal(t, "p.go", r.Err.File)
			assert.Equal(t, tt.line, r.Err.Line)
			assert.NotEmpty(t, r.Err.Suggestion)
		})
	}
}

func TestRewriteFile_Sources(t *testing.T) {
	r := RewriteFile("box.go", strings.NewReader(boxSource), Options{})
	assert.Equal(t, StatusRewritten, r.Status)

	r = RewriteFile("box.go", []byte(boxSource), Options{})
	assert.Equal(t, StatusRewritten, r.Status)

	r = RewriteFile("does-not-exist.go", nil, Options{})
	assert.Equal(t, StatusFailed, r.Status)

	r = RewriteFile("box.go", 42, Options{})
	assert.Equal(t, StatusFailed, r.Status)
}

func TestOptions_Excluded(t *testing.T) {
	o := Options{}
	assert.True(t, o.Excluded("github.com/kolkov/fieldhook"))
	assert.True(t, o.Excluded("github.com/kolkov/fieldhook/symtab"))
	assert.False(t, o.Excluded("github.com/kolkov/fieldhookish"))
	assert.False(t, o.Excluded(""))

	o.Exclude = []string{"example.com/gen/"}
	assert.True(t, o.Excluded("example.com/gen/a"))
	assert.False(t, o.Excluded("github.com/kolkov/fieldhook"))
}

func TestStatusAndReasonStrings(t *testing.T) {
	assert.Equal(t, "rewritten", StatusRewritten.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
	assert.Equal(t, "value receiver", SkipValueReceiver.String())
	assert.Equal(t, "SkipReason(42)", SkipReason(42).String())
	assert.Equal(t, "primitive", ValuePrimitive.String())
}
