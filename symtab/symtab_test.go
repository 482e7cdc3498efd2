package symtab_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/fieldhook/hook"
	"github.com/kolkov/fieldhook/symtab"
)

type counter struct {
	count               int
	label               string
	instanceInterceptor hook.Interceptor
}

// Inc has the shape the rewriter produces.
func (c *counter) Inc() {
	c.count++
	hook.Notify(c, "count", c.count)
}

func TestTable_ObservedWrites(t *testing.T) {
	tab := symtab.New()
	tab.Define("count", 0)
	c := &counter{instanceInterceptor: tab}

	c.Inc()
	c.Inc()
	v, err := tab.Value("count")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	require.NoError(t, hook.SetField(c, "count", 40))
	v, _ = tab.Value("count")
	assert.Equal(t, 40, v)

	s, ok := tab.Lookup("count")
	require.True(t, ok)
	assert.Equal(t, uint64(4), s.Version())
}

func TestTable_UndefinedSymbol(t *testing.T) {
	tab := symtab.New()
	c := &counter{instanceInterceptor: tab}

	require.NoError(t, hook.SetField(c, "label", "x"))

	_, err := tab.Value("label")
	assert.Error(t, err)
	assert.Equal(t, uint64(1), tab.Ignored())
}

func TestTable_AutoDefine(t *testing.T) {
	var changed []string
	tab := symtab.New(symtab.AutoDefine(), symtab.OnChange(func(s *symtab.Symbol) {
		changed = append(changed, s.Name())
	}))
	c := &counter{instanceInterceptor: tab}

	require.NoError(t, hook.SetField(c, "label", "x"))
	c.Inc()

	assert.Equal(t, []string{"count", "label"}, tab.Names())
	assert.Equal(t, []string{"label", "count"}, changed)
}

func TestTable_Concurrent(t *testing.T) {
	tab := symtab.New(symtab.AutoDefine())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &counter{instanceInterceptor: tab}
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	s, ok := tab.Lookup("count")
	require.True(t, ok)
	assert.Equal(t, uint64(1600), s.Version())
}
