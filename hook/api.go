// Package hook is the runtime half of fieldhook.
//
// See doc.go for detailed documentation and examples.
package hook

import (
	"context"
	"io"
	"os"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/kolkov/fieldhook/internal/hook/dispatch"
	"github.com/kolkov/fieldhook/internal/hook/gateway"
	"github.com/kolkov/fieldhook/internal/hook/locate"
	"github.com/kolkov/fieldhook/internal/hook/pipeline"
	"github.com/kolkov/fieldhook/internal/logging"
)

// FieldName is the default name of the reserved interceptor field.
const FieldName = locate.DefaultFieldName

// MethodName is the default name of the by-convention notification method.
const MethodName = dispatch.DefaultMethodName

// Interceptor receives field mutations of the instance it is attached to.
type Interceptor = dispatch.Interceptor

// ContextInterceptor is an Interceptor receiving the dispatch context.
// Writes performed with SetFieldContext(ctx, ...) inside SetFieldContext are
// not observed.
type ContextInterceptor = dispatch.ContextInterceptor

// InterceptorProvider is implemented by types exposing their interceptor
// through an accessor instead of the reserved field.
type InterceptorProvider = locate.Provider

// Field is a handle on a struct field for observed reflective writes.
type Field = gateway.Field

// Stats counts how mutation events ended.
type Stats = pipeline.Stats

// Errors returned by reflective writes.
var (
	ErrNilTarget    = gateway.ErrNilTarget
	ErrNotPointer   = gateway.ErrNotPointer
	ErrNoSuchField  = gateway.ErrNoSuchField
	ErrUnexported   = gateway.ErrUnexported
	ErrTypeMismatch = gateway.ErrTypeMismatch
)

// Options configures the runtime.
type Options struct {
	// FieldName overrides the reserved interceptor field name.
	FieldName string

	// MethodName overrides the by-convention notification method name.
	MethodName string

	// ExcludeTypes lists package path prefixes whose instances are never
	// observed. Nil keeps fieldhook's own packages excluded.
	ExcludeTypes []string

	// Debug logs every mutation event.
	Debug bool

	// LogOutput receives the runtime's diagnostic log: faulting
	// interceptors, and every event when Debug is set. Nil means stderr.
	LogOutput io.Writer
}

type runtimeState struct {
	opts     Options
	pipeline *pipeline.Pipeline
	gateway  *gateway.Gateway
}

var (
	current     atomic.Pointer[runtimeState]
	configureMu sync.Mutex

	// startup is the configuration read from the environment.
	startup Options
)

func init() {
	debug, _ := strconv.ParseBool(os.Getenv("FIELDHOOK_DEBUG"))
	startup = Options{
		FieldName:  os.Getenv("FIELDHOOK_FIELD"),
		MethodName: os.Getenv("FIELDHOOK_METHOD"),
		Debug:      debug,
	}
	apply(startup)
}

// Configure merges opts into the runtime configuration. Non-empty names and
// non-nil ExcludeTypes and LogOutput replace the values in effect; Debug
// turns debug logging on. Outcome counters and the reentrancy guard survive
// reconfiguration.
//
// Rewritten code calls it from an init function when it was rewritten with
// a non-default field or method name. Calling it again with the same
// options is a no-op.
func Configure(opts Options) {
	configureMu.Lock()
	defer configureMu.Unlock()

	merged := current.Load().opts
	if opts.FieldName != "" {
		merged.FieldName = opts.FieldName
	}
	if opts.MethodName != "" {
		merged.MethodName = opts.MethodName
	}
	if opts.ExcludeTypes != nil {
		merged.ExcludeTypes = opts.ExcludeTypes
	}
	if opts.LogOutput != nil {
		merged.LogOutput = opts.LogOutput
	}
	merged.Debug = merged.Debug || opts.Debug
	apply(merged)
}

// Reset restores the configuration read from the environment at startup.
func Reset() {
	configureMu.Lock()
	defer configureMu.Unlock()
	apply(startup)
}

// apply installs opts. Callers hold configureMu, except init.
func apply(opts Options) {
	prev := current.Load()
	if prev != nil && reflect.DeepEqual(prev.opts, opts) {
		return
	}

	popts := pipeline.Options{
		FieldName:    opts.FieldName,
		MethodName:   opts.MethodName,
		ExcludeTypes: opts.ExcludeTypes,
		Debug:        opts.Debug,
	}
	var p *pipeline.Pipeline
	if prev == nil {
		p = pipeline.New(popts)
	} else {
		p = prev.pipeline.With(popts)
	}
	configureLogging(opts)
	current.Store(&runtimeState{opts: opts, pipeline: p, gateway: gateway.New(p)})
}

// configureLogging logs warnings and above, or everything with Debug.
func configureLogging(opts Options) {
	verbosity := -1
	if opts.Debug {
		verbosity = 2
	}
	w := opts.LogOutput
	if w == nil {
		w = os.Stderr
	}
	logging.ConfigureWriter(verbosity, w)
}

func state() *runtimeState {
	return current.Load()
}

// Notify reports that owner's field was assigned value.
//
// This function is inserted by the fieldhook rewriter after each observed
// assignment. Manual calls are only needed in code that is not rewritten:
//
//	b.count = 5
//	hook.Notify(b, "count", b.count)
//
// Notify never panics and never blocks on anything but the interceptor.
func Notify(owner any, field string, value any) {
	state().pipeline.Fire(context.Background(), pipeline.Event{
		Target: owner,
		Field:  field,
		Value:  value,
		Kind:   pipeline.Direct,
	})
}

// NotifyContext is Notify with an explicit dispatch context.
func NotifyContext(ctx context.Context, owner any, field string, value any) {
	state().pipeline.Fire(ctx, pipeline.Event{
		Target: owner,
		Field:  field,
		Value:  value,
		Kind:   pipeline.Direct,
	})
}

// SetField writes value into target's field called name by reflection and
// notifies target's interceptor. target must be a non-nil pointer to a
// struct. Unexported fields are written as well.
//
// If the write fails the error is returned and no notification happens.
func SetField(target any, name string, value any) error {
	return state().gateway.SetField(context.Background(), target, name, value)
}

// SetFieldContext is SetField with an explicit dispatch context.
func SetFieldContext(ctx context.Context, target any, name string, value any) error {
	return state().gateway.SetField(ctx, target, name, value)
}

// FieldOf returns a reusable handle on the field called name of struct type
// t (or *t).
func FieldOf(t reflect.Type, name string) (*Field, error) {
	return state().gateway.FieldOf(t, name)
}

// Locate returns the interceptor attached to instance, if any.
func Locate(instance any) (any, bool) {
	return state().pipeline.Locator().Locate(instance)
}

// Dispatching reports whether the calling goroutine is currently inside an
// interceptor invocation.
func Dispatching() bool {
	return state().pipeline.Engaged()
}

// GetStats returns the outcome counters of the current configuration.
func GetStats() Stats {
	return state().pipeline.Stats()
}

// ResetStats zeroes the outcome counters.
func ResetStats() {
	state().pipeline.ResetStats()
}
