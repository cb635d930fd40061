package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
)

// State is the lifecycle state of a Cursor.
type State int

const (
	StateUnstarted State = iota
	StateExecuting
	StateIterating
	StateClosed
	StateCancelled
)

var stateNames = [...]string{"unstarted", "executing", "iterating", "closed", "cancelled"}

// String implements fmt.Stringer.
func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RowSource is an open native result. Next returns io.EOF after the last
// row and *Unavailable when the backend asks the caller to come back later.
// Close must be safe to call while another goroutine is inside Next.
type RowSource interface {
	Fields() []string
	Next(ctx context.Context) ([]ir.IRValue, error)
	Close() error
}

// Opener submits the native query.
type Opener func(ctx context.Context) (RowSource, error)

// ResultKind distinguishes the outcomes of Next.
type ResultKind int

const (
	KindRow ResultKind = iota
	KindEnd
	KindRetry
)

// Result is one outcome of Next: a row, the end of data, or a request to
// retry after a delay. Retry is not a failure and not the end.
type Result struct {
	Kind  ResultKind
	Row   []ir.IRValue
	After time.Duration
}

// Cursor maps the rows of one native query onto the requested output
// columns.
//
// Lifecycle:
//
//	Unstarted -> Executing -> Iterating -> Closed
//	                  \            \
//	                   +-----------+-> Cancelled
//
// Next may run on one goroutine while Cancel or Close is called from
// another. The native source is released exactly once.
type Cursor struct {
	id   string
	open Opener
	plan Plan

	mu        sync.Mutex
	state     State
	src       RowSource
	positions []int
	done      bool
	skipped   int
	emitted   int

	release  sync.Once
	closeErr error
}

// NewCursor creates an unstarted cursor.
func NewCursor(open Opener, plan Plan) *Cursor {
	return &Cursor{
		id:   uuid.NewString(),
		open: open,
		plan: plan,
	}
}

// ID identifies the cursor in logs.
func (c *Cursor) ID() string { return c.id }

// Columns returns the labels of the returned columns.
func (c *Cursor) Columns() []string { return c.plan.Labels() }

// State returns the current lifecycle state.
func (c *Cursor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Execute submits the native query. When the backend answers with
// *Unavailable the cursor stays in Executing and the next call to Next
// submits again.
func (c *Cursor) Execute(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUnstarted {
		st := c.state
		c.mu.Unlock()
		return &StateError{Op: "execute", State: st}
	}
	c.state = StateExecuting
	c.mu.Unlock()

	_, err := c.submit(ctx)
	return err
}

// submit opens the native source. retry is non-zero when the backend is
// not ready yet.
func (c *Cursor) submit(ctx context.Context) (time.Duration, error) {
	src, err := c.open(ctx)
	if err != nil {
		if after, ok := retryDelay(err); ok {
			slog.Debug("native query not ready", "cursor", c.id, "retry_after", after)
			return after, nil
		}
		c.finish(StateClosed)
		return 0, &BackendError{Op: "execute", Err: err}
	}

	positions, err := c.plan.resolve(src.Fields())
	if err != nil {
		src.Close()
		c.finish(StateClosed)
		return 0, err
	}

	c.mu.Lock()
	if c.state != StateExecuting {
		// Cancelled while the query was being submitted.
		c.mu.Unlock()
		src.Close()
		return 0, ErrCursorClosed
	}
	c.src = src
	c.positions = positions
	c.state = StateIterating
	c.mu.Unlock()

	slog.Debug("cursor open", "cursor", c.id, "fields", len(positions))
	return 0, nil
}

// Next returns the next mapped row, the end marker, or a retry request.
// A *CoercionError fails only the current row; the following call reads
// the next one.
func (c *Cursor) Next(ctx context.Context) (Result, error) {
	for {
		c.mu.Lock()
		state, src, done := c.state, c.src, c.done
		c.mu.Unlock()

		switch state {
		case StateUnstarted:
			return Result{}, &StateError{Op: "next", State: state}
		case StateClosed, StateCancelled:
			return Result{}, ErrCursorClosed
		case StateExecuting:
			after, err := c.submit(ctx)
			if err != nil {
				return Result{}, err
			}
			if after > 0 {
				return Result{Kind: KindRetry, After: after}, nil
			}
			continue
		}

		if done {
			return Result{Kind: KindEnd}, nil
		}

		values, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.exhaust()
				return Result{Kind: KindEnd}, nil
			}
			if after, ok := retryDelay(err); ok {
				return Result{Kind: KindRetry, After: after}, nil
			}
			if c.State() != StateIterating {
				return Result{}, ErrCursorClosed
			}
			return Result{}, &BackendError{Op: "next", Err: err}
		}

		row, keep, err := c.mapRow(values)
		if err != nil {
			return Result{}, err
		}
		if !keep {
			continue
		}
		return Result{Kind: KindRow, Row: row}, nil
	}
}

// mapRow coerces one native row and applies the residual filter, offset
// and limit. keep is false for rows that are filtered out.
func (c *Cursor) mapRow(values []ir.IRValue) ([]ir.IRValue, bool, error) {
	var named map[string]ir.IRValue
	if c.plan.Residual != nil {
		named = make(map[string]ir.IRValue, len(c.plan.Outputs))
	}

	row := make([]ir.IRValue, 0, len(c.plan.Outputs))
	for i, o := range c.plan.Outputs {
		var raw ir.IRValue = ir.IRNull{}
		if pos := c.positions[i]; pos < len(values) && values[pos] != nil {
			raw = values[pos]
		}
		v, err := schema.Coerce(raw, o.Type)
		if err != nil {
			return nil, false, &CoercionError{Column: o.Label(), Value: raw, Err: err}
		}
		if named != nil {
			named[o.Name] = v
		}
		if !o.Hidden {
			row = append(row, v)
		}
	}

	if named != nil && queryir.Eval(c.plan.Residual, named) != queryir.True {
		return nil, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.skipped < c.plan.Offset {
		c.skipped++
		return nil, false, nil
	}
	if c.plan.Limit > 0 && c.emitted >= c.plan.Limit {
		c.done = true
		c.releaseSource()
		return nil, false, nil
	}
	c.emitted++
	return row, true, nil
}

// exhaust marks the end of data and releases the source early.
func (c *Cursor) exhaust() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	c.releaseSource()
}

// Cancel stops the query. It is idempotent and may be called from any
// goroutine.
func (c *Cursor) Cancel() error {
	return c.finish(StateCancelled)
}

// Close releases the cursor. It is idempotent and may be called from any
// goroutine.
func (c *Cursor) Close() error {
	return c.finish(StateClosed)
}

func (c *Cursor) finish(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosed, StateCancelled:
	default:
		c.state = to
	}
	c.releaseSource()
	return c.closeErr
}

// releaseSource closes the native source once. Callers hold c.mu.
func (c *Cursor) releaseSource() {
	if c.src == nil {
		return
	}
	c.release.Do(func() {
		if err := c.src.Close(); err != nil {
			c.closeErr = &BackendError{Op: "close", Err: err}
		}
		slog.Debug("cursor released", "cursor", c.id, "rows", c.emitted)
	})
}
