package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/querysql"
	"github.com/roach88/docbridge/internal/schema"
)

// Get returns one document.
func (s *Store) Get(ctx context.Context, keyspace, id string) (ir.Document, error) {
	if err := s.requireKeyspace(ctx, keyspace); err != nil {
		return ir.Document{}, err
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, querysql.QuoteIdent(querysql.CollectionTable(keyspace))), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, keyspace, id)
	}
	if err != nil {
		return ir.Document{}, fmt.Errorf("get %q: %w", id, err)
	}

	body, err := ir.UnmarshalIRObject([]byte(data))
	if err != nil {
		return ir.Document{}, fmt.Errorf("decode %q: %w", id, err)
	}
	return ir.Document{ID: id, Body: body}, nil
}

// Keyspaces lists the keyspaces in name order.
func (s *Store) Keyspaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM keyspaces ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query keyspaces: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan keyspace: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyspaces: %w", err)
	}
	return names, nil
}

// Count returns the number of documents in a keyspace.
func (s *Store) Count(ctx context.Context, keyspace string) (int, error) {
	if err := s.requireKeyspace(ctx, keyspace); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, querysql.QuoteIdent(querysql.CollectionTable(keyspace))),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", keyspace, err)
	}
	return n, nil
}

// DistinctValues returns the distinct text values of a top-level attribute
// in sorted order. Documents where the attribute is missing, null or a
// container are skipped.
func (s *Store) DistinctValues(ctx context.Context, keyspace, attribute string) ([]string, error) {
	if err := s.requireKeyspace(ctx, keyspace); err != nil {
		return nil, err
	}
	text, err := querysql.DiscriminatorText("d.doc", attribute)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT v FROM (SELECT %s AS v FROM %s AS d)
		WHERE v IS NOT NULL
		ORDER BY v COLLATE BINARY ASC
	`, text, querysql.QuoteIdent(querysql.CollectionTable(keyspace))))
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", keyspace, attribute, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct values: %w", err)
	}
	return values, nil
}

// Sample returns up to limit documents ordered by id. A non-nil
// discriminator keeps only documents whose attribute text equals its value.
func (s *Store) Sample(ctx context.Context, keyspace string, disc *schema.Discriminator, limit int) ([]ir.Document, error) {
	if err := s.requireKeyspace(ctx, keyspace); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT d.id, d.doc FROM %s AS d`, querysql.QuoteIdent(querysql.CollectionTable(keyspace)))
	var args []any
	if disc != nil {
		text, err := querysql.DiscriminatorText("d.doc", disc.Attribute)
		if err != nil {
			return nil, err
		}
		query += " WHERE " + text + " = ?"
		args = append(args, disc.Value)
	}
	query += " ORDER BY d.id COLLATE BINARY ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sample %q: %w", keyspace, err)
	}
	defer rows.Close()

	docs := []ir.Document{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		body, err := ir.UnmarshalIRObject([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", id, err)
		}
		docs = append(docs, ir.Document{ID: id, Body: body})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample: %w", err)
	}
	return docs, nil
}
