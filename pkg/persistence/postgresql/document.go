package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// rowMeta carries the indexed columns stored alongside an entity's JSONB
// document. Status and CompletedAt stay empty for tables without those columns.
type rowMeta struct {
	Status      string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// docTable is one entity table: (id, data, <indexed columns>). Reads decode
// the document; update takes a row lock so read-mutate-write is
// compare-and-swap against concurrent writers.
type docTable[T any] struct {
	db       *sql.DB
	table    string
	notFound error
	meta     func(*T) rowMeta
}

func newDocTable[T any](db *sql.DB, table string, notFound error, meta func(*T) rowMeta) *docTable[T] {
	return &docTable[T]{db: db, table: table, notFound: notFound, meta: meta}
}

func (t *docTable[T]) columns() (string, string, string) {
	switch t.table {
	case "workflows":
		return "(id, data, status, created_at)",
			"($1, $2, $3, $4)",
			"data = EXCLUDED.data, status = EXCLUDED.status, created_at = EXCLUDED.created_at"
	case "runs":
		return "(id, data, status, created_at, completed_at)",
			"($1, $2, $3, $4, $5)",
			"data = EXCLUDED.data, status = EXCLUDED.status, created_at = EXCLUDED.created_at, completed_at = EXCLUDED.completed_at"
	default:
		return "(id, data, created_at)",
			"($1, $2, $3)",
			"data = EXCLUDED.data, created_at = EXCLUDED.created_at"
	}
}

func (t *docTable[T]) args(id string, payload []byte, meta rowMeta) []any {
	switch t.table {
	case "workflows":
		return []any{id, payload, meta.Status, meta.CreatedAt}
	case "runs":
		return []any{id, payload, meta.Status, meta.CreatedAt, meta.CompletedAt}
	default:
		return []any{id, payload, meta.CreatedAt}
	}
}

func (t *docTable[T]) save(ctx context.Context, id string, entity *T) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode %s document: %w", t.table, err)
	}

	cols, placeholders, updates := t.columns()
	query := fmt.Sprintf(
		"INSERT INTO %s %s VALUES %s ON CONFLICT (id) DO UPDATE SET %s",
		t.table, cols, placeholders, updates,
	)

	_, err = t.db.ExecContext(ctx, query, t.args(id, payload, t.meta(entity))...)
	if err != nil {
		return fmt.Errorf("failed to save %s document: %w", t.table, err)
	}

	return nil
}

func (t *docTable[T]) get(ctx context.Context, id string) (*T, error) {
	var payload []byte

	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1", t.table)

	err := t.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, t.notFound
		}

		return nil, fmt.Errorf("failed to load %s document: %w", t.table, err)
	}

	return t.decode(payload)
}

// update runs fn against the current stored document under a row lock and
// writes the result back. fn's error aborts the transaction.
func (t *docTable[T]) update(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin %s update: %w", t.table, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var payload []byte

	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1 FOR UPDATE", t.table)

	err = tx.QueryRowContext(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, t.notFound
		}

		return nil, fmt.Errorf("failed to lock %s document: %w", t.table, err)
	}

	entity, err := t.decode(payload)
	if err != nil {
		return nil, err
	}

	if err := fn(entity); err != nil {
		return nil, err
	}

	updated, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s document: %w", t.table, err)
	}

	cols, placeholders, updates := t.columns()
	upsert := fmt.Sprintf(
		"INSERT INTO %s %s VALUES %s ON CONFLICT (id) DO UPDATE SET %s",
		t.table, cols, placeholders, updates,
	)

	_, err = tx.ExecContext(ctx, upsert, t.args(id, updated, t.meta(entity))...)
	if err != nil {
		return nil, fmt.Errorf("failed to write %s document: %w", t.table, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s update: %w", t.table, err)
	}

	return entity, nil
}

func (t *docTable[T]) delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", t.table)

	result, err := t.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s document: %w", t.table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check %s delete: %w", t.table, err)
	}

	if affected == 0 {
		return t.notFound
	}

	return nil
}

// query decodes every row of a data-column query.
func (t *docTable[T]) query(ctx context.Context, query string, args ...any) ([]*T, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s documents: %w", t.table, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	entities := make([]*T, 0)

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", t.table, err)
		}

		entity, err := t.decode(payload)
		if err != nil {
			return nil, err
		}

		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s documents: %w", t.table, err)
	}

	return entities, nil
}

func (t *docTable[T]) decode(payload []byte) (*T, error) {
	var entity T
	if err := json.Unmarshal(payload, &entity); err != nil {
		return nil, fmt.Errorf("failed to decode %s document: %w", t.table, err)
	}

	return &entity, nil
}
