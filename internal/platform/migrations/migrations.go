// Package migrations applies kraken's schema via embedded SQL files,
// executed in filename order against a *sql.DB: one Exec per embedded
// file, files discovered with files.ReadDir(".").
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Apply executes every embedded .sql file against db in lexical filename
// order, so migrations are named 0001_..., 0002_..., and so on. Each file
// runs as its own Exec; a failure aborts without rolling back files
// already applied -- postgres DDL is only transactional within a single
// statement batch unless the file itself wraps in BEGIN/COMMIT.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		contents, rerr := files.ReadFile(entry.Name())
		if rerr != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), rerr)
		}
		if _, xerr := db.ExecContext(ctx, string(contents)); xerr != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), xerr)
		}
	}
	return nil
}
