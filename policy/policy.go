// Package policy defines how a recency list reacts to cache operations.
package policy

// Handle addresses an entry slot in the cache's arena.
// Handles are stable for the lifetime of an entry and reused after removal.
type Handle int32

// Nil is the handle of "no entry" (empty list end, missing link).
const Nil Handle = -1

// Hooks expose O(1) list operations that a policy can use to manipulate
// the cache's recency list. Implementations are provided by the cache.
//
// Concurrency: all hook calls happen under the cache lock.
// Important: hooks manage only the list; the cache owns the key->handle index.
type Hooks interface {
	// MoveToFront relocates the entry to the head of the list.
	MoveToFront(Handle)
	// PushFront links a freshly admitted entry at the head.
	PushFront(Handle)
	// Back returns the tail entry (or Nil if empty).
	Back() Handle
	// Len returns the number of linked entries.
	Len() int
}

// ListPolicy is a list policy instance bound to one cache's hooks.
// All methods are invoked under the cache lock.
//
// Semantics:
//   - OnAdd places a new entry (normally at the head).
//   - OnGet is called on every hit; it decides whether reads refresh recency.
//   - OnUpdate is called when an existing key is overwritten by Put.
//   - OnRemove is a notification; the cache performs the actual unlink.
type ListPolicy interface {
	OnAdd(Handle)
	OnGet(Handle)
	OnUpdate(Handle)
	OnRemove(Handle)
}

// Policy is a factory that binds a ListPolicy to a cache's hooks.
type Policy interface {
	New(Hooks) ListPolicy
}
