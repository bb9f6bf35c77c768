package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed sql
var files embed.FS

// Apply runs the embedded migrations for dialect ("mysql" or "sqlite")
// that are not yet recorded in schema_migrations, in name order.
func Apply(ctx context.Context, db *sql.DB, dialect string) error {
	dir := path.Join("sql", dialect)

	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return fmt.Errorf("unknown migration dialect %q: %w", dialect, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	if err := ensureSchemaMigrations(ctx, db, dialect); err != nil {
		return err
	}

	for _, name := range names {
		applied, err := isApplied(ctx, db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		sqlBytes, err := fs.ReadFile(files, path.Join(dir, name))
		if err != nil {
			return err
		}

		for _, stmt := range splitStatements(string(sqlBytes)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s failed: %w", name, err)
			}
		}

		if err := markApplied(ctx, db, name); err != nil {
			return err
		}
	}

	return nil
}

// splitStatements splits on ";" at line ends. Migrations keep one
// statement per block and no semicolons inside literals.
func splitStatements(src string) []string {
	var out []string
	for _, part := range strings.Split(src, ";\n") {
		stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func ensureSchemaMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	q := `
CREATE TABLE IF NOT EXISTS schema_migrations (
  name VARCHAR(255) NOT NULL,
  applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (name)
)`
	if dialect == "mysql" {
		q += " ENGINE=InnoDB"
	}
	_, err := db.ExecContext(ctx, q)
	return err
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT name FROM schema_migrations WHERE name = ?`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func markApplied(ctx context.Context, db *sql.DB, name string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, name)
	return err
}
