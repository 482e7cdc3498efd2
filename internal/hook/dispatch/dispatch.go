// Copyright 2025 The fieldhook Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dispatch resolves and invokes the notification capability of an
// interceptor whose concrete type is unknown until runtime.
//
// Resolution order:
//
//  1. ContextInterceptor (static interface conformance).
//  2. Interceptor (static interface conformance, exact signature).
//  3. By convention: an exported method named SetField (configurable) that
//     takes a string-kinded field name and a non-basic value parameter the
//     new value is assignable to. The result of this search is cached per
//     dynamic type.
//
// An interceptor without a capability is not an error. A capability that
// panics is recovered; the panic never reaches the mutation site.
package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

//go:generate mockgen -destination "../hookmock/mock_interceptor.go" -package hookmock github.com/kolkov/fieldhook/internal/hook/dispatch Interceptor,ContextInterceptor

// DefaultMethodName is the conventional name of the notification method.
const DefaultMethodName = "SetField"

// Interceptor is the notification capability with the exact signature.
type Interceptor interface {
	// SetField is called after fieldName was assigned newValue on the
	// instance this interceptor is attached to.
	SetField(fieldName string, newValue any)
}

// ContextInterceptor is an Interceptor variant receiving the dispatch
// context. The context carries the reentrancy marker, so writes the
// interceptor performs through the context-aware gateway are not observed.
type ContextInterceptor interface {
	SetFieldContext(ctx context.Context, fieldName string, newValue any)
}

// Outcome is the result of a single Notify call.
type Outcome int

const (
	// OutcomeDelivered means the capability was invoked and returned.
	OutcomeDelivered Outcome = iota
	// OutcomeNoCapability means no capability accepting the value was found.
	OutcomeNoCapability
	// OutcomeFault means the capability panicked.
	OutcomeFault
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeNoCapability:
		return "no-capability"
	case OutcomeFault:
		return "fault"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Fault is returned by Notify when the capability panicked. Value is what
// the panic was called with.
type Fault struct {
	Interceptor any
	Field       string
	Value       any
}

func (f *Fault) Error() string {
	return fmt.Sprintf("interceptor %T panicked on %q: %v", f.Interceptor, f.Field, f.Value)
}

// Bridge invokes interceptors. It is safe for concurrent use.
type Bridge struct {
	method string

	// methods caches reflect.Type -> *convention.
	methods sync.Map
}

// convention is the by-convention method resolved for one dynamic type.
type convention struct {
	index     int
	nameType  reflect.Type
	valueType reflect.Type
	found     bool
}

// NewBridge creates a Bridge that searches for methodName by convention. An
// empty name selects DefaultMethodName.
func NewBridge(methodName string) *Bridge {
	if methodName == "" {
		methodName = DefaultMethodName
	}
	return &Bridge{method: methodName}
}

// Notify delivers (fieldName, value) to interceptor. The error is a *Fault
// and is only set together with OutcomeFault.
func (b *Bridge) Notify(ctx context.Context, interceptor any, fieldName string, value any) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFault
			err = &Fault{Interceptor: interceptor, Field: fieldName, Value: r}
		}
	}()

	switch ic := interceptor.(type) {
	case nil:
		return OutcomeNoCapability, nil
	case ContextInterceptor:
		if ctx == nil {
			ctx = context.Background()
		}
		ic.SetFieldContext(ctx, fieldName, value)
		return OutcomeDelivered, nil
	case Interceptor:
		ic.SetField(fieldName, value)
		return OutcomeDelivered, nil
	}

	return b.invokeByConvention(interceptor, fieldName, value), nil
}

// Supports reports whether interceptor exposes a notification capability.
func (b *Bridge) Supports(interceptor any) bool {
	switch interceptor.(type) {
	case nil:
		return false
	case ContextInterceptor, Interceptor:
		return true
	}
	return b.resolve(reflect.TypeOf(interceptor)).found
}

func (b *Bridge) invokeByConvention(interceptor any, fieldName string, value any) Outcome {
	conv := b.resolve(reflect.TypeOf(interceptor))
	if !conv.found {
		return OutcomeNoCapability
	}

	var arg reflect.Value
	if value == nil {
		arg = reflect.Zero(conv.valueType)
	} else {
		arg = reflect.ValueOf(value)
		if !arg.Type().AssignableTo(conv.valueType) {
			return OutcomeNoCapability
		}
	}

	m := reflect.ValueOf(interceptor).Method(conv.index)
	m.Call([]reflect.Value{
		reflect.ValueOf(fieldName).Convert(conv.nameType),
		arg,
	})
	return OutcomeDelivered
}

func (b *Bridge) resolve(t reflect.Type) *convention {
	if cached, ok := b.methods.Load(t); ok {
		return cached.(*convention)
	}

	conv := &convention{}
	if m, ok := t.MethodByName(b.method); ok && acceptsNotification(m.Type) {
		conv.index = m.Index
		conv.nameType = m.Type.In(1)
		conv.valueType = m.Type.In(2)
		conv.found = true
	}

	actual, _ := b.methods.LoadOrStore(t, conv)
	return actual.(*convention)
}

// acceptsNotification checks a method type obtained from reflect.Type
// (receiver is In(0)) for the (name, value) shape.
func acceptsNotification(mt reflect.Type) bool {
	if mt.NumIn() != 3 || mt.IsVariadic() {
		return false
	}
	if mt.In(1).Kind() != reflect.String {
		return false
	}
	return !isBasic(mt.In(2).Kind())
}

func isBasic(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String, reflect.UnsafePointer, reflect.Uintptr,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}
