// Package sqlite stores book listings in a SQLite database file.
//
// It is the alternative to the jsonldb collection for the listing repository.
// The schema is versioned with PRAGMA user_version and built from the
// embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/carbonware/bookexchange/internal/entity"
	storeerrors "github.com/carbonware/bookexchange/internal/errors"
	"github.com/carbonware/bookexchange/internal/storage/sqlite/migrations"
)

const listingColumns = `id, image, book_name, book_title, genre, original_price, listing_price, email, created_at`

// Store persists listings in SQLite.
type Store struct {
	sqlDB *sql.DB
	path  string
}

// Open opens the database at path and migrates it to version.
//
// Every failure, including a database with a newer schema, is reported as
// STORAGE_UNAVAILABLE.
func Open(ctx context.Context, path string, version int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, storeerrors.StorageUnavailable("sqlite database", errors.New("storage path is required"))
	}
	if version < 1 {
		return nil, storeerrors.StorageUnavailable("sqlite database", fmt.Errorf("invalid version %d", version))
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeerrors.StorageUnavailable(cleanPath, fmt.Errorf("open sqlite db: %w", err))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, storeerrors.StorageUnavailable(cleanPath, fmt.Errorf("ping sqlite db: %w", err))
	}
	upgraded, err := migrate(ctx, sqlDB, migrations.FS, version)
	if err != nil {
		_ = sqlDB.Close()
		return nil, storeerrors.StorageUnavailable(cleanPath, fmt.Errorf("run migrations: %w", err))
	}
	if upgraded {
		slog.InfoContext(ctx, "sqlite: schema upgraded", "path", cleanPath, "version", version)
	}
	return &Store{sqlDB: sqlDB, path: cleanPath}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Insert adds l. An existing id is DUPLICATE_KEY.
func (s *Store) Insert(ctx context.Context, l *entity.BookListing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO books (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listingArgs(l)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storeerrors.DuplicateKey(l.ID).Wrap(err)
		}
		return s.unavailable(fmt.Errorf("insert listing: %w", err))
	}
	return nil
}

// Put inserts l or overwrites every field of the row with the same id. The
// row keeps its position in List.
func (s *Store) Put(ctx context.Context, l *entity.BookListing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO books (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   image = excluded.image,
		   book_name = excluded.book_name,
		   book_title = excluded.book_title,
		   genre = excluded.genre,
		   original_price = excluded.original_price,
		   listing_price = excluded.listing_price,
		   email = excluded.email,
		   created_at = excluded.created_at`,
		listingArgs(l)...,
	)
	if err != nil {
		return s.unavailable(fmt.Errorf("put listing: %w", err))
	}
	return nil
}

// Remove deletes the row with the given id, if any.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return s.unavailable(fmt.Errorf("delete listing: %w", err))
	}
	return nil
}

// List returns every listing in insertion order.
func (s *Store) List(ctx context.Context) ([]*entity.BookListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+listingColumns+` FROM books ORDER BY rowid`)
	if err != nil {
		return nil, s.unavailable(fmt.Errorf("list listings: %w", err))
	}
	defer func() { _ = rows.Close() }()
	out := []*entity.BookListing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, s.unavailable(err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable(fmt.Errorf("list listings: %w", err))
	}
	return out, nil
}

// Lookup returns the listing with the given id, or nil.
func (s *Store) Lookup(ctx context.Context, id string) (*entity.BookListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM books WHERE id = ?`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.unavailable(err)
	}
	return l, nil
}

// Count returns the number of listings.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, s.unavailable(fmt.Errorf("count listings: %w", err))
	}
	return n, nil
}

// unavailable gives err the STORAGE_UNAVAILABLE code unless it already
// carries one.
func (s *Store) unavailable(err error) error {
	if storeerrors.CodeOf(err) != "" {
		return err
	}
	return storeerrors.StorageUnavailable(s.path, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(row scanner) (*entity.BookListing, error) {
	var (
		l         entity.BookListing
		image     sql.NullString
		createdAt string
	)
	if err := row.Scan(&l.ID, &image, &l.BookName, &l.BookTitle, &l.Genre, &l.OriginalPrice, &l.ListingPrice, &l.Email, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	if image.Valid {
		l.Image = &image.String
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, storeerrors.MalformedData("listing "+l.ID+" created_at", err)
	}
	l.CreatedAt = t.UTC()
	return &l, nil
}

func listingArgs(l *entity.BookListing) []any {
	var image sql.NullString
	if l.Image != nil {
		image = sql.NullString{String: *l.Image, Valid: true}
	}
	return []any{
		l.ID,
		image,
		l.BookName,
		l.BookTitle,
		l.Genre,
		l.OriginalPrice,
		l.ListingPrice,
		l.Email,
		entity.FormatTimestamp(l.CreatedAt),
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
