package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/querysql"
)

// Put stores documents in a keyspace, creating the keyspace on first use.
// A document with an empty ID gets a generated one. Writing an existing ID
// replaces the document.
//
// Returns the IDs in input order.
func (s *Store) Put(ctx context.Context, keyspace string, docs ...ir.Document) ([]string, error) {
	if err := s.CreateKeyspace(ctx, keyspace); err != nil {
		return nil, err
	}

	s.write.Lock()
	defer s.write.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("put: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, querysql.QuoteIdent(querysql.CollectionTable(keyspace))))
	if err != nil {
		return nil, fmt.Errorf("put: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		body := doc.Body
		if body == nil {
			body = ir.IRObject{}
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("put %q: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(data)); err != nil {
			return nil, fmt.Errorf("put %q: %w", id, err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("put: %w", err)
	}
	return ids, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, keyspace, id string) error {
	if err := s.requireKeyspace(ctx, keyspace); err != nil {
		return err
	}

	s.write.Lock()
	defer s.write.Unlock()

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, querysql.QuoteIdent(querysql.CollectionTable(keyspace))), id)
	if err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}
