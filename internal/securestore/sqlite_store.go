package securestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps items in a single table. Multi-key writes run in one
// transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS secure_items (
		item_key TEXT PRIMARY KEY,
		item_value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT item_value FROM secure_items WHERE item_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) SetItem(ctx context.Context, key, value string) error {
	return s.SetItems(ctx, map[string]*string{key: &value})
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, key string) error {
	return s.SetItems(ctx, map[string]*string{key: nil})
}

func (s *SQLiteStore) SetItems(ctx context.Context, items map[string]*string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for key, value := range items {
		if value == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM secure_items WHERE item_key = ?`, key); err != nil {
				return err
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO secure_items (item_key, item_value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at`,
			key, *value, now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ BatchStore = (*SQLiteStore)(nil)
