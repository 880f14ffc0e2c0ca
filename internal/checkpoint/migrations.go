package checkpoint

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// revision is one numbered schema change. The file name carries the number,
// as in "0001_init.sql"; the applied number is tracked in SQLite's
// user_version pragma, so the schema needs no bookkeeping table.
type revision struct {
	number int
	name   string
	sql    string
}

func loadRevisions() ([]revision, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	revisions := make([]revision, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		prefix, _, _ := strings.Cut(entry.Name(), "_")
		number, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: name must start with a revision number", entry.Name())
		}
		data, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		revisions = append(revisions, revision{number: number, name: entry.Name(), sql: string(data)})
	}
	sort.Slice(revisions, func(i, j int) bool { return revisions[i].number < revisions[j].number })
	return revisions, nil
}

// migrate applies every embedded revision newer than the database's current
// user_version, each in its own transaction so a failure leaves the schema
// at the last fully applied revision.
func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	revisions, err := loadRevisions()
	if err != nil {
		return err
	}

	for _, rev := range revisions {
		if rev.number <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin revision %d: %w", rev.number, err)
		}
		if _, err := tx.ExecContext(ctx, rev.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply revision %s: %w", rev.name, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", rev.number)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record revision %d: %w", rev.number, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit revision %d: %w", rev.number, err)
		}
	}
	return nil
}
