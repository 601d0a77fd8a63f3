package database

import (
	"context"
	"fmt"

	"github.com/nfrund/modfinder/internal/migration"
	"github.com/surrealdb/surrealdb.go"
)

var _ migration.Executor = (*MigrationExecutor)(nil)

// MigrationTable records the names of applied migrations.
const MigrationTable = "migration"

// MigrationExecutor applies .surql migration scripts against SurrealDB.
type MigrationExecutor struct {
	db *surrealdb.DB
}

// NewMigrationExecutor creates an executor over db.
func NewMigrationExecutor(db *surrealdb.DB) *MigrationExecutor {
	return &MigrationExecutor{db: db}
}

// Applied returns the names of migrations already recorded.
func (e *MigrationExecutor) Applied(ctx context.Context) ([]string, error) {
	results, err := surrealdb.Query[[]map[string]any](ctx, e.db, "SELECT name FROM type::table($table)", map[string]any{
		"table": MigrationTable,
	})
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	rows := (*results)[0].Result
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Apply runs a migration script and records it inside one transaction.
func (e *MigrationExecutor) Apply(ctx context.Context, name, script string) error {
	query := "BEGIN TRANSACTION;\n" + script + "\nCREATE type::table($table) CONTENT { name: $name, applied_at: time::now() };\nCOMMIT TRANSACTION;"
	if _, err := surrealdb.Query[any](ctx, e.db, query, map[string]any{
		"table": MigrationTable,
		"name":  name,
	}); err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}
	return nil
}
