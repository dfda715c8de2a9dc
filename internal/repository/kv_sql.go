package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voicenotes/internal/db"
)

// SQLKV keeps values in the kv_store table of a sqlite or postgres database
type SQLKV struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewSQLKV wraps an open connection created by db.Open
func NewSQLKV(conn *sql.DB, dialect db.Dialect) *SQLKV {
	return &SQLKV{db: conn, dialect: dialect}
}

func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := db.Rebind(s.dialect, `SELECT value FROM kv_store WHERE key = ?`)

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *SQLKV) Set(ctx context.Context, key string, value []byte) error {
	query := db.Rebind(s.dialect, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`)

	if _, err := s.db.ExecContext(ctx, query, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	query := db.Rebind(s.dialect, `DELETE FROM kv_store WHERE key = ?`)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLKV) Close() error {
	return s.db.Close()
}
