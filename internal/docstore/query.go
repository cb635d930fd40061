package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/docbridge/internal/exec"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/querysql"
)

// busyRetry is the delay suggested to callers when the database is locked.
const busyRetry = 100 * time.Millisecond

// Rows is an open statement result. It implements exec.RowSource: every
// selected field holds JSON text and is decoded into an ir.IRValue.
type Rows struct {
	rows   *sql.Rows
	fields []string
	dest   []sql.NullString
	ptrs   []any

	closeOnce sync.Once
	closeErr  error
}

var _ exec.RowSource = (*Rows)(nil)

// Query runs a compiled statement.
func (s *Store) Query(ctx context.Context, stmt querysql.Statement) (*Rows, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, wrapBusy(err)
	}
	fields, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("read columns: %w", err)
	}

	r := &Rows{
		rows:   rows,
		fields: fields,
		dest:   make([]sql.NullString, len(fields)),
		ptrs:   make([]any, len(fields)),
	}
	for i := range r.dest {
		r.ptrs[i] = &r.dest[i]
	}
	return r, nil
}

// Opener returns an exec.Opener running stmt.
func (s *Store) Opener(stmt querysql.Statement) exec.Opener {
	return func(ctx context.Context) (exec.RowSource, error) {
		return s.Query(ctx, stmt)
	}
}

// Fields implements exec.RowSource.
func (r *Rows) Fields() []string { return r.fields }

// Next implements exec.RowSource.
func (r *Rows) Next(ctx context.Context) ([]ir.IRValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, wrapBusy(err)
		}
		return nil, io.EOF
	}
	if err := r.rows.Scan(r.ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	values := make([]ir.IRValue, len(r.dest))
	for i, d := range r.dest {
		if !d.Valid {
			values[i] = ir.IRNull{}
			continue
		}
		v, err := ir.UnmarshalIRValue([]byte(d.String))
		if err != nil {
			return nil, fmt.Errorf("decode field %q: %w", r.fields[i], err)
		}
		values[i] = v
	}
	return values, nil
}

// Close implements exec.RowSource.
func (r *Rows) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.rows.Close()
	})
	return r.closeErr
}

// wrapBusy turns a locked database into a retry request.
func wrapBusy(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && (serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked) {
		return &exec.Unavailable{After: busyRetry}
	}
	return err
}
