// Package lru implements the access-order LRU list policy.
package lru

import "github.com/IvanBrykalov/replcache/policy"

// lru is a classic "move-to-front" Least-Recently-Used policy:
// both reads and writes count as use.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory for access-order LRU.
func New() policy.Policy { return lruPolicy{} }

// New implements policy.Policy.
func (lruPolicy) New(h policy.Hooks) policy.ListPolicy {
	return &lru{h: h}
}

// OnAdd places the new entry at the head.
func (p *lru) OnAdd(n policy.Handle) { p.h.PushFront(n) }

// OnGet promotes the entry to the head.
func (p *lru) OnGet(n policy.Handle) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry to the head.
func (p *lru) OnUpdate(n policy.Handle) { p.h.MoveToFront(n) }

// OnRemove is a no-op.
func (p *lru) OnRemove(policy.Handle) {}
