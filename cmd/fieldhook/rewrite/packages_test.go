package rewrite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModule creates a throwaway module and returns its directory.
func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["go.mod"] = "module example.com/shapes\n\ngo 1.21\n"
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestRewritePackages(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go command")
	}

	dir := writeModule(t, map[string]string{
		"types.go": `package shapes

type Box struct {
	count               int
	items               []int
	instanceInterceptor any
}

type Plain struct {
	count int
}

type Derived struct {
	Box
	extra int
}
`,
		"methods.go": `package shapes

func (b *Box) Fill(p *Plain) {
	b.count = 1
	b.items = nil
	p.count = 2
}

func (d *Derived) Bump() {
	d.extra++
}

func (p *Plain) Set() {
	p.count = 3
}
`,
	})

	results, err := RewritePackages(context.Background(), Options{Dir: dir}, "./...")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byName := make(map[string]*Result)
	for _, r := range results {
		byName[filepath.Base(r.Filename)] = r
	}

	types := byName["types.go"]
	require.NotNil(t, types)
	assert.Equal(t, StatusUnchanged, types.Status)

	m := byName["methods.go"]
	require.NotNil(t, m)
	require.Equal(t, StatusRewritten, m.Status, "err: %v", m.Err)
	assert.Equal(t, "example.com/shapes", m.ImportPath)
	mustParse(t, m.Code)

	assert.Contains(t, m.Code, `fieldhook.Notify(b, "count", b.count)`)
	assert.Contains(t, m.Code, `fieldhook.Notify(b, "items", b.items)`)
	assert.Contains(t, m.Code, `fieldhook.Notify(d, "extra", d.extra)`, "reserved field promoted by embedding")
	assert.NotContains(t, m.Code, `fieldhook.Notify(p,`)

	assert.Equal(t, 3, m.Stats.WritesRewritten)
	assert.Equal(t, 1, m.Stats.NotEligibleSkipped)
	assert.Equal(t, 1, m.Stats.ReferenceValues)
	assert.Equal(t, 2, m.Stats.PrimitiveValues)
}

func TestRewritePackages_Excluded(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go command")
	}

	dir := writeModule(t, map[string]string{
		"box.go": boxSource,
	})

	results, err := RewritePackages(context.Background(), Options{Dir: dir, Exclude: []string{"example.com/"}}, "./...")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusUnchanged, results[0].Status)
	assert.Contains(t, results[0].Reason, "excluded")
}

func TestRewritePackages_LoadErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go command")
	}

	dir := writeModule(t, map[string]string{
		"bad.go": "package shapes\n\nfunc f() { undefined() }\n",
	})

	_, err := RewritePackages(context.Background(), Options{Dir: dir}, "./...")
	assert.Error(t, err)
}
