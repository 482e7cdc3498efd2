// Copyright 2025 The fieldhook Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package locate finds the interceptor attached to a mutated instance.
//
// An instance exposes its interceptor in one of two ways:
//
//  1. It implements Provider (a single well-known accessor method).
//  2. Its struct type, or a struct it embeds, declares a field with the
//     reserved name (DefaultFieldName unless configured otherwise).
//
// Field lookup follows Go's promotion rules: the shallowest declaration wins,
// so a field declared on the outer type shadows one declared on an embedded
// type. Unexported fields are read as well. Locate never writes and never
// panics.
package locate

import (
	"reflect"
	"sync"
	"unsafe"
)

// DefaultFieldName is the conventional name of the reserved field.
const DefaultFieldName = "instanceInterceptor"

// Provider is implemented by types that expose their interceptor through an
// accessor instead of the reserved field.
type Provider interface {
	FieldInterceptor() any
}

// Locator looks up interceptors by reserved field name.
//
// Field index paths are cached per struct type. A Locator is safe for
// concurrent use.
type Locator struct {
	name string

	// paths maps reflect.Type -> []int (nil slice when the type has no
	// reserved field).
	paths sync.Map
}

// New creates a Locator for the given reserved field name. An empty name
// selects DefaultFieldName.
func New(fieldName string) *Locator {
	if fieldName == "" {
		fieldName = DefaultFieldName
	}
	return &Locator{name: fieldName}
}

// FieldName returns the reserved field name this Locator searches for.
func (l *Locator) FieldName() string {
	return l.name
}

// Locate returns the interceptor attached to instance.
//
// ok is false when the instance has no reserved field, when the field (or an
// embedded pointer on the way to it) is nil, or when the lookup fails for
// any other reason.
func (l *Locator) Locate(instance any) (interceptor any, ok bool) {
	defer func() {
		if recover() != nil {
			interceptor, ok = nil, false
		}
	}()

	if instance == nil {
		return nil, false
	}

	if p, isProvider := instance.(Provider); isProvider {
		interceptor = p.FieldInterceptor()
		return interceptor, !isNil(interceptor)
	}

	v := addressable(reflect.ValueOf(instance))
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return nil, false
	}

	path := l.path(v.Type())
	if path == nil {
		return nil, false
	}

	fv, err := v.FieldByIndexErr(path)
	if err != nil {
		// Nil embedded pointer on the path.
		return nil, false
	}
	if !fv.CanInterface() {
		fv = reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
	}

	interceptor = fv.Interface()
	return interceptor, !isNil(interceptor)
}

// HasField reports whether values of type t carry the reserved field.
func (l *Locator) HasField(t reflect.Type) bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	return l.path(t) != nil
}

func (l *Locator) path(t reflect.Type) []int {
	if cached, ok := l.paths.Load(t); ok {
		return cached.([]int)
	}

	var path []int
	if sf, ok := t.FieldByName(l.name); ok && !sf.Anonymous {
		path = sf.Index
	}
	l.paths.Store(t, path)
	return path
}

// addressable follows pointers and interfaces down to the first non-pointer
// value and makes sure the result is addressable, so that unexported fields
// can be read through reflect.NewAt.
func addressable(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.CanAddr() {
		return v
	}
	cp := reflect.New(v.Type()).Elem()
	cp.Set(v)
	return cp
}

func isNil(x any) bool {
	if x == nil {
		return true
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
