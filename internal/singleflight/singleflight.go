// Package singleflight coalesces concurrent calls that share a key.
package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// Group runs fn at most once per key at a time. Callers arriving while a
// call for the same key is in flight wait for that call's result.
//
// The first caller (leader) runs fn with its own ctx. Followers only use
// their ctx to stop waiting; cancelling a follower never cancels the leader.
// Publishing (val, err) happens-before close(done), so followers observe
// the final values after <-done.
//
// The zero Group is ready to use.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

// PanicError is returned to followers when the leader's fn panicked.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string { return fmt.Sprintf("singleflight: fn panicked: %v", p.Value) }

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Do executes fn for key unless a call is already in flight, in which case
// it waits for that result. shared reports whether the result came from
// another caller's execution.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(context.Context) (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, true, ctx.Err()
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	// fn runs outside the group lock; a panic must still release followers,
	// and they must see it as a failure.
	defer func() {
		r := recover()
		if r != nil {
			c.err = &PanicError{Value: r}
		}
		close(c.done)
		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()
		if r != nil {
			panic(r)
		}
	}()

	c.val, c.err = fn(ctx)
	return c.val, false, c.err
}
