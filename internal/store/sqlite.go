package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/wordgrid/internal/errors"
)

// SQLiteWordStore implements WordStore on a single SQLite database file.
type SQLiteWordStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ WordStore = (*SQLiteWordStore)(nil)

// distinctColumns maps ListDistinct field names to columns and sort order.
var distinctColumns = map[string]string{
	FieldText:       "SELECT DISTINCT text FROM words ORDER BY text",
	FieldPage:       "SELECT DISTINCT CAST(page AS TEXT) FROM words ORDER BY page",
	FieldRow:        "SELECT DISTINCT CAST(row AS TEXT) FROM words ORDER BY row",
	FieldIndexInRow: "SELECT DISTINCT CAST(index_in_row AS TEXT) FROM words ORDER BY index_in_row",
	FieldSentence:   "SELECT DISTINCT sentence FROM words ORDER BY sentence",
}

const wordColumns = "text, page, row, index_in_row, x0, y0, x1, y1, sentence"

// NewSQLiteWordStore opens or creates the store at path. An empty path opens
// an in-memory database.
func NewSQLiteWordStore(path string) (*SQLiteWordStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite has one writer, and :memory: databases are
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteWordStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteWordStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS words (
			ordinal      INTEGER PRIMARY KEY,
			text         TEXT NOT NULL,
			text_folded  TEXT NOT NULL,
			page         INTEGER NOT NULL,
			row          INTEGER NOT NULL,
			index_in_row INTEGER NOT NULL,
			x0           REAL NOT NULL,
			y0           REAL NOT NULL,
			x1           REAL NOT NULL,
			y1           REAL NOT NULL,
			sentence     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_words_folded ON words(text_folded);
		CREATE INDEX IF NOT EXISTS idx_words_position ON words(page, row, index_in_row);

		CREATE TABLE IF NOT EXISTS state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ReplaceAll deletes the stored words and inserts words in one transaction.
func (s *SQLiteWordStore) ReplaceAll(ctx context.Context, words []Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeStoreWrite, "word store is closed", nil)
	}

	if err := s.replaceAll(ctx, words); err != nil {
		return errors.New(errors.ErrCodeStoreWrite, fmt.Sprintf("replace %d words: %v", len(words), err), err)
	}
	return nil
}

func (s *SQLiteWordStore) replaceAll(ctx context.Context, words []Word) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM words"); err != nil {
		return fmt.Errorf("failed to clear words: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO words (ordinal, text_folded, `+wordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, w := range words {
		if _, err := stmt.ExecContext(ctx, i, strings.ToLower(w.Text),
			w.Text, w.Page, w.Row, w.IndexInRow,
			w.BBox[0], w.BBox[1], w.BBox[2], w.BBox[3], w.Sentence); err != nil {
			return fmt.Errorf("failed to insert word %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// QueryByWordPrefix returns words starting with prefix, case-insensitively.
func (s *SQLiteWordStore) QueryByWordPrefix(ctx context.Context, prefix string, limit int) ([]Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreRead, "word store is closed", nil)
	}

	q := `SELECT ` + wordColumns + ` FROM words
		WHERE text_folded LIKE ? ESCAPE '\'
		ORDER BY page, row, index_in_row`
	args := []any{escapeLike(strings.ToLower(prefix)) + "%"}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryWords(ctx, q, args...)
}

// All returns every word in emission order.
func (s *SQLiteWordStore) All(ctx context.Context) ([]Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreRead, "word store is closed", nil)
	}
	return s.queryWords(ctx, `SELECT `+wordColumns+` FROM words ORDER BY ordinal`)
}

func (s *SQLiteWordStore) queryWords(ctx context.Context, q string, args ...any) ([]Word, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, fmt.Sprintf("query words: %v", err), err)
	}
	defer rows.Close()

	words := []Word{}
	for rows.Next() {
		var w Word
		if err := rows.Scan(&w.Text, &w.Page, &w.Row, &w.IndexInRow,
			&w.BBox[0], &w.BBox[1], &w.BBox[2], &w.BBox[3], &w.Sentence); err != nil {
			return nil, errors.New(errors.ErrCodeStoreRead, fmt.Sprintf("scan word: %v", err), err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, fmt.Sprintf("iterate words: %v", err), err)
	}
	return words, nil
}

// Count returns the number of stored words.
func (s *SQLiteWordStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errors.New(errors.ErrCodeStoreRead, "word store is closed", nil)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM words").Scan(&n); err != nil {
		return 0, errors.New(errors.ErrCodeStoreRead, fmt.Sprintf("count words: %v", err), err)
	}
	return n, nil
}

// ListDistinct returns the distinct values of field. Numeric fields sort
// numerically and are rendered in base 10.
func (s *SQLiteWordStore) ListDistinct(ctx context.Context, field string) ([]string, error) {
	q, ok := distinctColumns[field]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidField,
			fmt.Sprintf("unknown field %q (want one of %s)", field, strings.Join(Fields, ", ")), nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreRead, "word store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, fmt.Sprintf("list %s: %v", field, err), err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.New(errors.ErrCodeStoreRead, fmt.Sprintf("scan %s: %v", field, err), err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, fmt.Sprintf("iterate %s: %v", field, err), err)
	}
	return values, nil
}

// GetState returns the value for key, or "" if unset.
func (s *SQLiteWordStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", errors.New(errors.ErrCodeStoreRead, "word store is closed", nil)
	}

	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.New(errors.ErrCodeStoreRead, fmt.Sprintf("get state %s: %v", key, err), err)
	}
	return v, nil
}

// SetState upserts every key in state in one transaction.
func (s *SQLiteWordStore) SetState(ctx context.Context, state map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeStoreWrite, "word store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeStoreWrite, fmt.Sprintf("begin state update: %v", err), err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range state {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v); err != nil {
			return errors.New(errors.ErrCodeStoreWrite, fmt.Sprintf("set state %s: %v", k, err), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeStoreWrite, fmt.Sprintf("commit state: %v", err), err)
	}
	return nil
}

// Path returns the database path, or "" for an in-memory store.
func (s *SQLiteWordStore) Path() string {
	return s.path
}

// Close closes the database. Further calls fail.
func (s *SQLiteWordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// escapeLike escapes LIKE wildcards so prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
