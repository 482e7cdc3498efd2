// Copyright 2025 The fieldhook Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package guard implements the reentrancy guard of the notification pipeline.
//
// While an interceptor is being located and invoked, the dispatching
// goroutine is marked as engaged. Any field write performed by the
// interceptor itself (directly, through rewritten code, or through the
// reflective gateway) then sees the mark and is not dispatched again. This
// breaks the cycle
//
//	write -> notify -> interceptor writes -> notify -> ...
//
// The mark exists in two forms:
//   - per goroutine, keyed by goroutine id, for call sites that cannot carry
//     a context (rewritten assignments, plain gateway calls);
//   - explicitly, as a value in a context.Context handed to interceptors
//     that accept one.
//
// Goroutines never share marks, so no locking beyond the sync.Map is needed.
package guard

import (
	"context"
	"sync"
)

// Guard tracks which goroutines are currently dispatching.
//
// The zero value is ready to use.
type Guard struct {
	// engaged maps goroutine id -> struct{}. Absent means not engaged.
	engaged sync.Map
}

// Enter marks the calling goroutine as dispatching and returns the previous
// state. The result must be handed back to Exit.
func (g *Guard) Enter() bool {
	_, prev := g.engaged.LoadOrStore(goroutineID(), struct{}{})
	return prev
}

// Exit restores the state returned by the matching Enter.
func (g *Guard) Exit(prev bool) {
	if prev {
		return
	}
	g.engaged.Delete(goroutineID())
}

// Engaged reports whether the calling goroutine is currently dispatching.
func (g *Guard) Engaged() bool {
	_, ok := g.engaged.Load(goroutineID())
	return ok
}

type dispatchingKey struct{}

// WithDispatching returns a context carrying the explicit dispatch marker.
func WithDispatching(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, dispatchingKey{}, true)
}

// Dispatching reports whether ctx carries the dispatch marker.
func Dispatching(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(dispatchingKey{}).(bool)
	return v
}
