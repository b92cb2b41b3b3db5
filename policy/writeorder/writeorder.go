// Package writeorder implements the default list policy of cache.Local:
// entries are ordered by when they were last written, reads never reorder.
//
// The eviction victim is therefore the key that has gone the longest without
// a Put, regardless of how often it was read.
package writeorder

import "github.com/IvanBrykalov/replcache/policy"

type writeOrder struct {
	h policy.Hooks
}

type writeOrderPolicy struct{}

// New returns a Policy factory for write-order recency.
func New() policy.Policy { return writeOrderPolicy{} }

// New implements policy.Policy.
func (writeOrderPolicy) New(h policy.Hooks) policy.ListPolicy {
	return &writeOrder{h: h}
}

func (p *writeOrder) OnAdd(n policy.Handle) { p.h.PushFront(n) }

// OnGet leaves the list untouched.
func (p *writeOrder) OnGet(policy.Handle) {}

// OnUpdate relocates the overwritten entry to the head.
func (p *writeOrder) OnUpdate(n policy.Handle) { p.h.MoveToFront(n) }

func (p *writeOrder) OnRemove(policy.Handle) {}
