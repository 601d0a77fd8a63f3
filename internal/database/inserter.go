package database

import (
	"context"
	"fmt"

	"github.com/nfrund/modfinder/internal/factory"
	"github.com/surrealdb/surrealdb.go"
)

var _ factory.Inserter = (*Inserter)(nil)

// Inserter writes factory records into SurrealDB tables.
type Inserter struct {
	db *surrealdb.DB
}

// NewInserter creates an inserter over db.
func NewInserter(db *surrealdb.DB) *Inserter {
	return &Inserter{db: db}
}

// Insert creates one record in table.
func (i *Inserter) Insert(ctx context.Context, table string, record map[string]any) error {
	if table == "" {
		return fmt.Errorf("table cannot be empty")
	}
	query := "CREATE type::table($table) CONTENT $data"
	if _, err := surrealdb.Query[any](ctx, i.db, query, map[string]any{"table": table, "data": record}); err != nil {
		return fmt.Errorf("create operation failed: %w", err)
	}
	return nil
}
