// Copyright 2025 The fieldhook Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gateway implements indirect (reflective) field writes that are
// observed by the notification pipeline.
//
// Rewritten code only observes assignments that are visible in source. Code
// that mutates objects generically, such as an evaluation engine applying a
// script's assignments, goes through this gateway instead of raw
// reflect.Value.Set:
//
//	f, err := gw.FieldOf(reflect.TypeOf(box), "Count")
//	err = f.Set(ctx, box, 7) // writes, then notifies box's interceptor
//
// The write happens first. Only if it succeeded is a Reflective event fired.
// A failed write returns an error and fires nothing.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/kolkov/fieldhook/internal/hook/pipeline"
)

var (
	// ErrNilTarget is returned when the target (or an embedded pointer on
	// the way to the field) is nil.
	ErrNilTarget = errors.New("nil target")

	// ErrNotPointer is returned when the target is not a pointer to struct.
	// Writing through a struct value would only modify a copy.
	ErrNotPointer = errors.New("target must be a pointer to struct")

	// ErrNoSuchField is returned when the struct has no field of that name.
	ErrNoSuchField = errors.New("no such field")

	// ErrUnexported is returned when writing an unexported field through a
	// Field that was not made accessible.
	ErrUnexported = errors.New("field is not accessible")

	// ErrTypeMismatch is returned when the value cannot be stored in the
	// field, or the target is not of the field's declaring type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// Gateway performs observed reflective writes.
type Gateway struct {
	pipeline *pipeline.Pipeline
}

// New creates a Gateway notifying through p.
func New(p *pipeline.Pipeline) *Gateway {
	return &Gateway{pipeline: p}
}

// Field is a handle on one struct field, comparable to a reflected field
// object. A Field is immutable apart from its accessibility flag.
type Field struct {
	gw         *Gateway
	owner      reflect.Type
	field      reflect.StructField
	accessible bool
}

// FieldOf returns the field called name of struct type t (or *t). Promoted
// fields of embedded structs are found as well.
func (g *Gateway) FieldOf(t reflect.Type, name string) (*Field, error) {
	if t == nil {
		return nil, ErrNilTarget
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s: %w", t, ErrNotPointer)
	}

	sf, ok := t.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", t, name, ErrNoSuchField)
	}
	return &Field{gw: g, owner: t, field: sf}, nil
}

// SetField writes value into the field called name of target and notifies
// target's interceptor. Unexported fields are written as well.
func (g *Gateway) SetField(ctx context.Context, target any, name string, value any) error {
	if target == nil {
		return ErrNilTarget
	}
	f, err := g.FieldOf(reflect.TypeOf(target), name)
	if err != nil {
		return err
	}
	return f.SetAccessible(true).Set(ctx, target, value)
}

// Name returns the field name.
func (f *Field) Name() string {
	return f.field.Name
}

// Type returns the field's declared type.
func (f *Field) Type() reflect.Type {
	return f.field.Type
}

// Owner returns the struct type the field was looked up on.
func (f *Field) Owner() reflect.Type {
	return f.owner
}

// SetAccessible allows Set to write the field even if it is unexported.
func (f *Field) SetAccessible(accessible bool) *Field {
	f.accessible = accessible
	return f
}

// Set stores value into the field of target, which must be a non-nil
// pointer to the field's owner type. On success the write is reported to
// the interceptor attached to target. The reported value is the value as
// stored, after any widening conversion.
func (f *Field) Set(ctx context.Context, target any, value any) error {
	fv, err := f.settable(target)
	if err != nil {
		return err
	}

	nv, err := assignableValue(value, f.field.Type)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", f.owner, f.field.Name, err)
	}
	fv.Set(nv)

	f.gw.pipeline.Fire(ctx, pipeline.Event{
		Target: target,
		Field:  f.field.Name,
		Value:  nv.Interface(),
		Kind:   pipeline.Reflective,
	})
	return nil
}

func (f *Field) settable(target any) (reflect.Value, error) {
	if target == nil {
		return reflect.Value{}, ErrNilTarget
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer {
		return reflect.Value{}, fmt.Errorf("%T: %w", target, ErrNotPointer)
	}
	if v.IsNil() {
		return reflect.Value{}, ErrNilTarget
	}
	s := v.Elem()
	if s.Type() != f.owner {
		return reflect.Value{}, fmt.Errorf("target %s, field of %s: %w", s.Type(), f.owner, ErrTypeMismatch)
	}

	fv, err := s.FieldByIndexErr(f.field.Index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%s.%s: %w", f.owner, f.field.Name, ErrNilTarget)
	}
	if fv.CanSet() {
		return fv, nil
	}
	if !f.accessible {
		return reflect.Value{}, fmt.Errorf("%s.%s: %w", f.owner, f.field.Name, ErrUnexported)
	}
	return reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem(), nil
}

// assignableValue converts value for storage in a field of type t. Values
// must be assignable, or a widening numeric conversion must exist. nil is
// accepted for nillable kinds.
func assignableValue(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil for %s: %w", t, ErrTypeMismatch)
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if widens(v.Type(), t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%s into %s: %w", v.Type(), t, ErrTypeMismatch)
}

type numericFamily int

const (
	notNumeric numericFamily = iota
	signed
	unsigned
	floating
)

func family(k reflect.Kind) numericFamily {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signed
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return unsigned
	case reflect.Float32, reflect.Float64:
		return floating
	}
	return notNumeric
}

// widens reports whether every value of from fits into to.
func widens(from, to reflect.Type) bool {
	ff, tf := family(from.Kind()), family(to.Kind())
	if ff == notNumeric || tf == notNumeric {
		return false
	}
	switch {
	case ff == tf:
		return from.Size() <= to.Size()
	case ff == unsigned && tf == signed:
		return from.Size() < to.Size()
	case tf == floating:
		// Integers convert to floats, possibly rounding.
		return ff != floating
	}
	return false
}
