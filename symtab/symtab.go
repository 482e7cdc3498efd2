// Package symtab is a minimal evaluation-engine symbol table that stays in
// sync with observed objects.
//
// A Table is attached to an instance as its interceptor. Every observed
// write of a field updates the symbol of the same name:
//
//	t := symtab.New()
//	obj := &Counter{instanceInterceptor: t}
//	obj.Inc()                 // rewritten: notifies t
//	v, _ := t.Value("count")  // the new count
//
// Writes to fields without a defined symbol are ignored unless the Table
// was created with AutoDefine.
package symtab

import (
	"fmt"
	"sort"
	"sync"
)

// Symbol is one named binding of an evaluation scope.
type Symbol struct {
	mu      sync.RWMutex
	name    string
	value   any
	version uint64
}

// Name returns the symbol name.
func (s *Symbol) Name() string {
	return s.name
}

// Value returns the current value.
func (s *Symbol) Value() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Version returns how many times the value was set.
func (s *Symbol) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SetValue replaces the value.
func (s *Symbol) SetValue(v any) {
	s.mu.Lock()
	s.value = v
	s.version++
	s.mu.Unlock()
}

// Option configures a Table.
type Option func(*Table)

// AutoDefine makes the table define a symbol for every field it is
// notified about.
func AutoDefine() Option {
	return func(t *Table) { t.autoDefine = true }
}

// OnChange registers fn to be called after a symbol changed because of an
// observed write.
func OnChange(fn func(*Symbol)) Option {
	return func(t *Table) { t.onChange = append(t.onChange, fn) }
}

// Table maps names to symbols. It implements hook.Interceptor and is safe
// for concurrent use.
type Table struct {
	mu         sync.RWMutex
	symbols    map[string]*Symbol
	autoDefine bool
	onChange   []func(*Symbol)
	ignored    uint64
}

// New creates an empty Table.
func New(opts ...Option) *Table {
	t := &Table{symbols: make(map[string]*Symbol)}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Define creates the symbol name with an initial value, or resets an
// existing one.
func (t *Table) Define(name string, value any) *Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.symbols[name]
	if !ok {
		s = &Symbol{name: name}
		t.symbols[name] = s
	}
	s.SetValue(value)
	return s
}

// Lookup returns the symbol called name.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.symbols[name]
	return s, ok
}

// Value returns the value of the symbol called name.
func (t *Table) Value(name string) (any, error) {
	s, ok := t.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("undefined symbol %q", name)
	}
	return s.Value(), nil
}

// Names returns the defined names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.symbols))
	for n := range t.symbols {
		names = append(names, n)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Ignored returns the number of notifications for undefined symbols.
func (t *Table) Ignored() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ignored
}

// SetField is called when an observed field was written.
func (t *Table) SetField(fieldName string, newValue any) {
	s, ok := t.resolve(fieldName)
	if !ok {
		return
	}
	s.SetValue(newValue)
	for _, fn := range t.onChange {
		fn(s)
	}
}

func (t *Table) resolve(name string) (*Symbol, bool) {
	t.mu.RLock()
	s, ok := t.symbols[name]
	t.mu.RUnlock()
	if ok {
		return s, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.symbols[name]; ok {
		return s, true
	}
	if !t.autoDefine {
		t.ignored++
		return nil, false
	}
	s = &Symbol{name: name}
	t.symbols[name] = s
	return s, true
}
