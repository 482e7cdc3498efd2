// Copyright 2025 The fieldhook Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline carries a single field mutation from its detection to
// the interceptor attached to the mutated instance.
//
// Both observation paths end here: rewritten assignments (Direct events)
// and the reflective gateway (Reflective events). Every event walks the same
// state machine and ends in exactly one Outcome:
//
//	DETECTED -> FILTERED                          (reserved field, no owner, excluded type)
//	         -> GUARDED                           (goroutine already dispatching)
//	         -> LOCATING -> NOT-FOUND
//	                     -> DISPATCHING -> DELIVERED | NO-CAPABILITY | FAULT
//
// Nothing in the pipeline returns an error or panics into the caller: the
// program being observed must behave exactly as if it was not observed.
package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/tliron/commonlog"

	"github.com/kolkov/fieldhook/internal/hook/dispatch"
	"github.com/kolkov/fieldhook/internal/hook/guard"
	"github.com/kolkov/fieldhook/internal/hook/locate"
)

// ModulePath is the import path prefix of fieldhook itself.
const ModulePath = "github.com/kolkov/fieldhook"

// loggerName is resolved through commonlog on use.
const loggerName = "fieldhook.pipeline"

// Kind tells how a mutation was performed.
type Kind int

const (
	// Direct is an ordinary assignment in rewritten code.
	Direct Kind = iota
	// Reflective is a write through the reflective gateway.
	Reflective
)

// String returns the kind name.
func (k Kind) String() string {
	if k == Reflective {
		return "reflective"
	}
	return "direct"
}

// Event is one field mutation. Events are consumed immediately and never
// retained.
type Event struct {
	Target any
	Field  string
	Value  any
	Kind   Kind

	// ID is only assigned when debug logging is enabled.
	ID string
}

// Outcome is the terminal state reached by an Event.
type Outcome int

const (
	OutcomeFiltered Outcome = iota
	OutcomeGuarded
	OutcomeNotFound
	OutcomeDelivered
	OutcomeNoCapability
	OutcomeFault
	numOutcomes
)

var outcomeNames = [...]string{
	OutcomeFiltered:     "filtered",
	OutcomeGuarded:      "guarded",
	OutcomeNotFound:     "not-found",
	OutcomeDelivered:    "delivered",
	OutcomeNoCapability: "no-capability",
	OutcomeFault:        "fault",
}

// String returns the outcome name.
func (o Outcome) String() string {
	if o >= 0 && o < numOutcomes {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Options configures a Pipeline.
type Options struct {
	// FieldName is the reserved interceptor field name.
	FieldName string

	// MethodName is the by-convention notification method name.
	MethodName string

	// ExcludeTypes lists package path prefixes whose instances are never
	// dispatched. Nil selects DefaultExclude.
	ExcludeTypes []string

	// Debug logs every event at debug level.
	Debug bool
}

// DefaultExclude keeps fieldhook's own runtime from observing itself.
var DefaultExclude = []string{ModulePath + "/internal/"}

// Stats is a snapshot of outcome counters.
type Stats struct {
	Filtered     int64
	Guarded      int64
	NotFound     int64
	Delivered    int64
	NoCapability int64
	Faults       int64
}

// Total returns the number of events seen.
func (s Stats) Total() int64 {
	return s.Filtered + s.Guarded + s.NotFound + s.Delivered + s.NoCapability + s.Faults
}

// Pipeline dispatches events. It is safe for concurrent use.
type Pipeline struct {
	locator *locate.Locator
	bridge  *dispatch.Bridge
	guard   *guard.Guard
	exclude []string
	debug   bool

	counts *[numOutcomes]atomic.Int64
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	exclude := opts.ExcludeTypes
	if exclude == nil {
		exclude = DefaultExclude
	}
	return &Pipeline{
		locator: locate.New(opts.FieldName),
		bridge:  dispatch.NewBridge(opts.MethodName),
		guard:   &guard.Guard{},
		exclude: exclude,
		debug:   opts.Debug,
		counts:  new([numOutcomes]atomic.Int64),
	}
}

// With returns a Pipeline configured by opts that shares p's reentrancy
// guard and outcome counters.
func (p *Pipeline) With(opts Options) *Pipeline {
	q := New(opts)
	q.guard = p.guard
	q.counts = p.counts
	return q
}

// FieldName returns the reserved interceptor field name.
func (p *Pipeline) FieldName() string {
	return p.locator.FieldName()
}

// Locator returns the interceptor locator used by p.
func (p *Pipeline) Locator() *locate.Locator {
	return p.locator
}

// Fire runs ev through the pipeline on the calling goroutine.
func (p *Pipeline) Fire(ctx context.Context, ev Event) Outcome {
	if p.debug {
		ev.ID = xid.New().String()
	}
	outcome := p.fire(ctx, &ev)
	p.counts[outcome].Add(1)
	if p.debug {
		commonlog.GetLogger(loggerName).Debugf("event %s: %s write %T.%s -> %s",
			ev.ID, ev.Kind, ev.Target, ev.Field, outcome)
	}
	return outcome
}

func (p *Pipeline) fire(ctx context.Context, ev *Event) Outcome {
	if ev.Field == p.locator.FieldName() || isNil(ev.Target) || p.excluded(ev.Target) {
		return OutcomeFiltered
	}
	if guard.Dispatching(ctx) {
		return OutcomeGuarded
	}

	prev := p.guard.Enter()
	if prev {
		return OutcomeGuarded
	}
	defer p.guard.Exit(prev)

	interceptor, ok := p.locator.Locate(ev.Target)
	if !ok {
		return OutcomeNotFound
	}

	outcome, err := p.bridge.Notify(guard.WithDispatching(ctx), interceptor, ev.Field, ev.Value)
	switch outcome {
	case dispatch.OutcomeDelivered:
		return OutcomeDelivered
	case dispatch.OutcomeNoCapability:
		return OutcomeNoCapability
	default:
		commonlog.GetLogger(loggerName).Warningf("write of %T.%s: %v", ev.Target, ev.Field, err)
		return OutcomeFault
	}
}

// Engaged reports whether the calling goroutine is inside a dispatch.
func (p *Pipeline) Engaged() bool {
	return p.guard.Engaged()
}

// Stats returns a snapshot of the outcome counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Filtered:     p.counts[OutcomeFiltered].Load(),
		Guarded:      p.counts[OutcomeGuarded].Load(),
		NotFound:     p.counts[OutcomeNotFound].Load(),
		Delivered:    p.counts[OutcomeDelivered].Load(),
		NoCapability: p.counts[OutcomeNoCapability].Load(),
		Faults:       p.counts[OutcomeFault].Load(),
	}
}

// ResetStats zeroes the outcome counters.
func (p *Pipeline) ResetStats() {
	for i := range p.counts {
		p.counts[i].Store(0)
	}
}

func (p *Pipeline) excluded(target any) bool {
	if len(p.exclude) == 0 {
		return false
	}
	t := reflect.TypeOf(target)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	pkg := t.PkgPath()
	if pkg == "" {
		return false
	}
	for _, prefix := range p.exclude {
		if strings.HasPrefix(pkg+"/", prefix) {
			return true
		}
	}
	return false
}

func isNil(x any) bool {
	if x == nil {
		return true
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}
