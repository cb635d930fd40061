package schema

import (
	"context"
	"sync"
	"sync/atomic"
)

// Holder publishes the current Schema snapshot.
//
// Readers call Load and keep using the snapshot they got, even while a
// refresh runs. Refreshes are serialized: a second Refresh waits for the
// first one to finish. A failed refresh keeps the previous snapshot.
type Holder struct {
	current atomic.Pointer[Schema]
	refresh sync.Mutex
}

// NewHolder creates a Holder that serves an empty schema until the first
// successful refresh.
func NewHolder() *Holder {
	h := &Holder{}
	h.current.Store(Empty())
	return h
}

// Load returns the current snapshot. Never nil.
func (h *Holder) Load() *Schema {
	if s := h.current.Load(); s != nil {
		return s
	}
	return Empty()
}

// Refresh builds a new snapshot with build and swaps it in atomically.
func (h *Holder) Refresh(ctx context.Context, build func(context.Context) (*Schema, error)) (*Schema, error) {
	h.refresh.Lock()
	defer h.refresh.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := build(ctx)
	if err != nil {
		return nil, err
	}
	h.current.Store(s)
	return s, nil
}

// Store replaces the snapshot directly.
func (h *Holder) Store(s *Schema) {
	h.refresh.Lock()
	defer h.refresh.Unlock()
	h.current.Store(s)
}
