package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kolkov/fieldhook/internal/hook/guard"
	"github.com/kolkov/fieldhook/internal/hook/hookmock"
)

type box struct {
	count               int
	instanceInterceptor any
}

type unobserved struct {
	count int
}

// echo writes back into the instance it observes and fires again, the way
// a careless interceptor would.
type echo struct {
	p      *Pipeline
	target *box
	calls  int
	nested []Outcome
}

func (e *echo) SetField(name string, value any) {
	e.calls++
	e.target.count = 100
	e.nested = append(e.nested, e.p.Fire(context.Background(), Event{Target: e.target, Field: "count", Value: 100}))
}

type panicking struct{}

func (panicking) SetField(string, any) { panic("interceptor bug") }

func newTestPipeline() *Pipeline {
	// Test types live under internal/, so disable the default exclusion.
	return New(Options{ExcludeTypes: []string{}})
}

func TestFire_Delivered(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := hookmock.NewMockInterceptor(ctrl)
	ic.EXPECT().SetField("count", 5).Times(1)

	p := newTestPipeline()
	b := &box{instanceInterceptor: ic}
	b.count = 5

	got := p.Fire(context.Background(), Event{Target: b, Field: "count", Value: b.count})
	assert.Equal(t, OutcomeDelivered, got)
	assert.Equal(t, Stats{Delivered: 1}, p.Stats())
}

func TestFire_Filtered(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := hookmock.NewMockInterceptor(ctrl) // no calls expected

	p := newTestPipeline()
	b := &box{instanceInterceptor: ic}

	tests := []struct {
		name string
		ev   Event
	}{
		{"reserved field", Event{Target: b, Field: "instanceInterceptor", Value: ic}},
		{"nil target", Event{Target: nil, Field: "count", Value: 1}},
		{"typed nil target", Event{Target: (*box)(nil), Field: "count", Value: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, OutcomeFiltered, p.Fire(context.Background(), tt.ev))
		})
	}
}

func TestFire_ExcludedPackage(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := hookmock.NewMockInterceptor(ctrl)

	p := New(Options{})
	got := p.Fire(context.Background(), Event{Target: &box{instanceInterceptor: ic}, Field: "count", Value: 1})
	assert.Equal(t, OutcomeFiltered, got, "types under fieldhook/internal are excluded by default")
}

func TestFire_NotFound(t *testing.T) {
	p := newTestPipeline()

	assert.Equal(t, OutcomeNotFound, p.Fire(context.Background(), Event{Target: &unobserved{}, Field: "count", Value: 1}))
	assert.Equal(t, OutcomeNotFound, p.Fire(context.Background(), Event{Target: &box{}, Field: "count", Value: 1}))
}

func TestFire_NoCapability(t *testing.T) {
	p := newTestPipeline()
	got := p.Fire(context.Background(), Event{Target: &box{instanceInterceptor: struct{}{}}, Field: "count", Value: 1})
	assert.Equal(t, OutcomeNoCapability, got)
}

func TestFire_FaultIsContained(t *testing.T) {
	p := newTestPipeline()
	b := &box{instanceInterceptor: panicking{}}

	assert.NotPanics(t, func() {
		assert.Equal(t, OutcomeFault, p.Fire(context.Background(), Event{Target: b, Field: "count", Value: 1}))
	})
	// The guard was released despite the panic.
	assert.False(t, p.Engaged())
}

func TestFire_NestedWritesAreNotDispatched(t *testing.T) {
	p := newTestPipeline()
	b := &box{}
	e := &echo{p: p, target: b}
	b.instanceInterceptor = e

	got := p.Fire(context.Background(), Event{Target: b, Field: "count", Value: 1})

	assert.Equal(t, OutcomeDelivered, got)
	assert.Equal(t, 1, e.calls)
	assert.Equal(t, []Outcome{OutcomeGuarded}, e.nested)
	assert.Equal(t, 100, b.count)
	assert.False(t, p.Engaged())
}

// reconfiguring fires through a pipeline built by With from inside a
// dispatch of the original one.
type reconfiguring struct {
	p      *Pipeline
	target *box
	nested Outcome
}

func (r *reconfiguring) SetField(string, any) {
	q := r.p.With(Options{ExcludeTypes: []string{}, MethodName: "Other"})
	r.nested = q.Fire(context.Background(), Event{Target: r.target, Field: "count", Value: 2})
}

func TestWith_SharesGuardAndCounters(t *testing.T) {
	p := newTestPipeline()
	assert.Equal(t, OutcomeNotFound, p.Fire(context.Background(), Event{Target: &unobserved{}, Field: "count", Value: 1}))

	b := &box{}
	r := &reconfiguring{p: p, target: b}
	b.instanceInterceptor = r
	assert.Equal(t, OutcomeDelivered, p.Fire(context.Background(), Event{Target: b, Field: "count", Value: 1}))
	assert.Equal(t, OutcomeGuarded, r.nested)

	q := p.With(Options{FieldName: "obs", ExcludeTypes: []string{}})
	assert.Equal(t, "obs", q.FieldName())
	assert.Equal(t, Stats{NotFound: 1, Delivered: 1, Guarded: 1}, q.Stats())

	q.ResetStats()
	assert.Equal(t, Stats{}, p.Stats())
}

func TestFire_DispatchingContextIsGuarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := hookmock.NewMockInterceptor(ctrl)

	p := newTestPipeline()
	ctx := guard.WithDispatching(context.Background())
	got := p.Fire(ctx, Event{Target: &box{instanceInterceptor: ic}, Field: "count", Value: 1})
	assert.Equal(t, OutcomeGuarded, got)
}

func TestFire_ContextInterceptorSeesMarker(t *testing.T) {
	ctrl := gomock.NewController(t)
	ic := hookmock.NewMockContextInterceptor(ctrl)
	ic.EXPECT().SetFieldContext(gomock.Any(), "count", 3).Do(func(ctx context.Context, _ string, _ any) {
		assert.True(t, guard.Dispatching(ctx))
	})

	p := newTestPipeline()
	assert.Equal(t, OutcomeDelivered, p.Fire(context.Background(), Event{Target: &box{instanceInterceptor: ic}, Field: "count", Value: 3}))
}

func TestFire_ConcurrentGoroutinesAreIndependent(t *testing.T) {
	p := newTestPipeline()
	const n = 16

	done := make(chan Outcome, n)
	for i := 0; i < n; i++ {
		go func() {
			done <- p.Fire(context.Background(), Event{Target: &box{instanceInterceptor: &counter{}}, Field: "count", Value: 1})
		}()
	}
	for i := 0; i < n; i++ {
		require.Equal(t, OutcomeDelivered, <-done)
	}
	assert.Equal(t, int64(n), p.Stats().Delivered)
}

type counter struct{ n int }

func (c *counter) SetField(string, any) { c.n++ }

func TestStats(t *testing.T) {
	p := newTestPipeline()
	p.Fire(context.Background(), Event{Target: nil, Field: "count"})
	p.Fire(context.Background(), Event{Target: &unobserved{}, Field: "count"})

	s := p.Stats()
	assert.Equal(t, int64(1), s.Filtered)
	assert.Equal(t, int64(1), s.NotFound)
	assert.Equal(t, int64(2), s.Total())

	p.ResetStats()
	assert.Zero(t, p.Stats().Total())
}

func TestDebugAssignsIDs(t *testing.T) {
	p := New(Options{ExcludeTypes: []string{}, Debug: true})
	assert.Equal(t, OutcomeNotFound, p.Fire(context.Background(), Event{Target: &unobserved{}, Field: "count"}))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "direct", Direct.String())
	assert.Equal(t, "reflective", Reflective.String())
	assert.Equal(t, "not-found", OutcomeNotFound.String())
	assert.Equal(t, "Outcome(42)", Outcome(42).String())
}
