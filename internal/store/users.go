package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// EnsureUser returns the user with the given name, creating it if needed.
func (s *Store) EnsureUser(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("ensure user: empty name")
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM users WHERE name = ?`, name), name)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM users WHERE id = ?`, id), id)
}

func (s *Store) scanUser(row *sql.Row, key any) (*User, error) {
	u := &User{}
	var createdAt string
	err := row.Scan(&u.ID, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %v: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %v: %w", key, err)
	}
	u.CreatedAt, _ = parseTime(createdAt)
	return u, nil
}
