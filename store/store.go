// Package store is the SQLite adapter behind the benchmark: one table
// mapping a word to an opaque identifier, opened one connection per
// handle.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/weiihann/sqbench/errs"
)

// ErrNotFound is returned by Lookup when no row matches the key.
var ErrNotFound = errors.New("store: key not found")

const (
	dropTableSQL   = `DROP TABLE IF EXISTS kv`
	createTableSQL = `CREATE TABLE kv (word TEXT, uuid TEXT, PRIMARY KEY (word))`
	insertSQL      = `INSERT INTO kv (word, uuid) VALUES (?, ?)`
	lookupSQL      = `SELECT uuid FROM kv WHERE word = ?`
	countSQL       = `SELECT COUNT(*) FROM kv`
)

// Record is one word -> identifier row.
type Record struct {
	Key   string
	Value string
}

// DB is a single SQLite connection. It is not meant to be shared
// between workers; open one per worker instead.
type DB struct {
	db     *sql.DB
	lookup *sql.Stmt
}

// Open opens an existing database at path. A missing file is an error;
// use Create on the generation path.
func Open(ctx context.Context, path string) (*DB, error) {
	return open(ctx, path, "rw")
}

// Create opens the database at path, creating the file if needed.
func Create(ctx context.Context, path string) (*DB, error) {
	return open(ctx, path, "rwc")
}

// uriEscaper escapes the characters SQLite's URI parser would treat as
// query, fragment or percent-encoding delimiters inside a file name.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// dsn builds a file: URI for path that SQLite decodes back to exactly
// path.
func dsn(path, mode string) string {
	u := &url.URL{
		Scheme:   "file",
		Opaque:   uriEscaper.Replace(path),
		RawQuery: url.Values{"mode": {mode}}.Encode(),
	}

	return u.String()
}

func open(ctx context.Context, path, mode string) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn(path, mode))
	if err != nil {
		return nil, errs.Wrap(errs.KindConnection,
			fmt.Sprintf("open %s", path), err)
	}

	// A single connection per handle keeps pragmas and prepared
	// statements on the same underlying sqlite3 connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, errs.Wrap(errs.KindConnection,
			fmt.Sprintf("connect %s", path), err)
	}

	return &DB{db: db}, nil
}

// Close releases the connection.
func (d *DB) Close() error {
	if d.lookup != nil {
		d.lookup.Close()
	}

	return d.db.Close()
}

// Lookup returns the identifier stored for key.
func (d *DB) Lookup(ctx context.Context, key string) (string, error) {
	if d.lookup == nil {
		stmt, err := d.db.PrepareContext(ctx, lookupSQL)
		if err != nil {
			return "", errs.Wrap(errs.KindLookup, "prepare lookup", err)
		}

		d.lookup = stmt
	}

	var value string

	err := d.lookup.QueryRowContext(ctx, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrNotFound
	case err != nil:
		return "", errs.Wrap(errs.KindLookup,
			fmt.Sprintf("lookup %q", key), err)
	}

	return value, nil
}

// Recreate drops the kv table if present and creates it empty.
func (d *DB) Recreate(ctx context.Context) error {
	if d.lookup != nil {
		d.lookup.Close()
		d.lookup = nil
	}

	for _, stmt := range []string{dropTableSQL, createTableSQL} {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: recreate table: %w", err)
		}
	}

	return nil
}

// BulkInsert writes records in one transaction and returns the rowid
// of the last inserted row. onInsert, if non-nil, is called after every
// row. A repeated key rolls the whole batch back and fails with a
// DUPLICATE_KEY error naming the key.
func (d *DB) BulkInsert(
	ctx context.Context,
	records []Record,
	onInsert func(),
) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	var lastID int64

	for _, rec := range records {
		res, err := stmt.ExecContext(ctx, rec.Key, rec.Value)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, errs.Duplicate(rec.Key, err)
			}

			return 0, fmt.Errorf("store: insert %q: %w", rec.Key, err)
		}

		lastID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("store: last insert id: %w", err)
		}

		if onInsert != nil {
			onInsert()
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}

	return lastID, nil
}

// Count returns the number of rows in the kv table.
func (d *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}

	return n, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
