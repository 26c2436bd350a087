package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

// ErrVersion is returned when the database file has a newer schema than the
// one requested.
type ErrVersion struct {
	Stored, Requested int
}

func (e *ErrVersion) Error() string {
	return fmt.Sprintf("database schema version %d is newer than %d", e.Stored, e.Requested)
}

type migration struct {
	version int
	name    string
}

// migrationsIn lists the files of fsys named "<version>_<name>.sql" in version
// order.
func migrationsIn(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var out []migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", name)
		}
		v, err := strconv.Atoi(prefix)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("migration %s: invalid version prefix", name)
		}
		out = append(out, migration{version: v, name: name})
	}
	slices.SortFunc(out, func(a, b migration) int { return a.version - b.version })
	for i := 1; i < len(out); i++ {
		if out[i].version == out[i-1].version {
			return nil, fmt.Errorf("migrations %s and %s share version %d", out[i-1].name, out[i].name, out[i].version)
		}
	}
	return out, nil
}

// migrate brings the schema of db from its PRAGMA user_version up to version,
// applying each pending migration in its own transaction. It reports whether
// anything changed.
func migrate(ctx context.Context, db *sql.DB, fsys fs.FS, version int) (bool, error) {
	current, err := userVersion(ctx, db)
	if err != nil {
		return false, err
	}
	if current > version {
		return false, &ErrVersion{Stored: current, Requested: version}
	}
	if current == version {
		return false, nil
	}
	all, err := migrationsIn(fsys)
	if err != nil {
		return false, err
	}
	for _, m := range all {
		if m.version <= current || m.version > version {
			continue
		}
		body, err := fs.ReadFile(fsys, m.name)
		if err != nil {
			return false, fmt.Errorf("read migration %s: %w", m.name, err)
		}
		if err := applyMigration(ctx, db, string(body), m.version); err != nil {
			return false, fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return false, fmt.Errorf("set schema version: %w", err)
	}
	return true, nil
}

func applyMigration(ctx context.Context, db *sql.DB, body string, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
