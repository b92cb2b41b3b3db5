package writeorder

import (
	"testing"

	"github.com/IvanBrykalov/replcache/policy"
)

type recordingHooks struct {
	calls []string
}

func (h *recordingHooks) MoveToFront(policy.Handle) { h.calls = append(h.calls, "move") }
func (h *recordingHooks) PushFront(policy.Handle)   { h.calls = append(h.calls, "push") }
func (h *recordingHooks) Back() policy.Handle       { return policy.Nil }
func (h *recordingHooks) Len() int                  { return 0 }

// Reads must never reorder the list; writes must.
func TestWriteOrder_OnlyWritesReorder(t *testing.T) {
	t.Parallel()

	h := &recordingHooks{}
	p := New().New(h)

	p.OnAdd(0)
	p.OnGet(0)
	p.OnGet(0)
	p.OnUpdate(0)
	p.OnRemove(0)

	want := []string{"push", "move"}
	if len(h.calls) != len(want) {
		t.Fatalf("hook calls = %v, want %v", h.calls, want)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Fatalf("hook calls = %v, want %v", h.calls, want)
		}
	}
}
