package cache

import "github.com/IvanBrykalov/replcache/policy"

// node is an arena slot of the recency list. Links are handles into the
// same arena rather than pointers, so the list has no cyclic references and
// slots are reused through the free list.
type node[K comparable, V any] struct {
	key K
	val V

	// Head is the most recently placed entry, tail the eviction candidate.
	prev policy.Handle
	next policy.Handle

	// UnixNano of the last Put of this key.
	stamp int64
}

// alloc takes a slot from the free list (or grows the arena) and fills it.
func (c *Local[K, V]) alloc(k K, v V, stamp int64) policy.Handle {
	n := node[K, V]{key: k, val: v, prev: policy.Nil, next: policy.Nil, stamp: stamp}
	if last := len(c.free) - 1; last >= 0 {
		h := c.free[last]
		c.free = c.free[:last]
		c.nodes[h] = n
		return h
	}
	c.nodes = append(c.nodes, n)
	return policy.Handle(len(c.nodes) - 1)
}

// release zeroes a slot so the GC can reclaim key/value and recycles it.
func (c *Local[K, V]) release(h policy.Handle) {
	c.nodes[h] = node[K, V]{prev: policy.Nil, next: policy.Nil}
	c.free = append(c.free, h)
}

// insertFront links h at the head in O(1).
func (c *Local[K, V]) insertFront(h policy.Handle) {
	n := &c.nodes[h]
	n.prev = policy.Nil
	n.next = c.head
	if c.head != policy.Nil {
		c.nodes[c.head].prev = h
	}
	c.head = h
	if c.tail == policy.Nil {
		c.tail = h
	}
	c.size++
}

// moveToFront relocates h to the head in O(1).
func (c *Local[K, V]) moveToFront(h policy.Handle) {
	if h == c.head {
		return
	}
	c.detach(h)
	n := &c.nodes[h]
	n.prev = policy.Nil
	n.next = c.head
	if c.head != policy.Nil {
		c.nodes[c.head].prev = h
	}
	c.head = h
	if c.tail == policy.Nil {
		c.tail = h
	}
}

// unlink removes h from the list and decrements the size counter.
func (c *Local[K, V]) unlink(h policy.Handle) {
	c.detach(h)
	c.size--
}

func (c *Local[K, V]) detach(h policy.Handle) {
	n := &c.nodes[h]
	if n.prev != policy.Nil {
		c.nodes[n.prev].next = n.next
	}
	if n.next != policy.Nil {
		c.nodes[n.next].prev = n.prev
	}
	if c.head == h {
		c.head = n.next
	}
	if c.tail == h {
		c.tail = n.prev
	}
	n.prev, n.next = policy.Nil, policy.Nil
}

// -------------------- policy hooks --------------------

// listHooks adapts the cache's list operations to policy.Hooks.
type listHooks[K comparable, V any] struct{ c *Local[K, V] }

func (h listHooks[K, V]) MoveToFront(x policy.Handle) { h.c.moveToFront(x) }
func (h listHooks[K, V]) PushFront(x policy.Handle)   { h.c.insertFront(x) }
func (h listHooks[K, V]) Back() policy.Handle         { return h.c.tail }
func (h listHooks[K, V]) Len() int                    { return h.c.size }
