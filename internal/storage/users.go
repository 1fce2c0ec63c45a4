package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/matsen/papersim/internal/reference"
)

const selectUserFields = `id, email, username, interests`

// CreateUser inserts a new user. An empty ID is replaced by a random UUID.
// Returns the stored user.
func (d *DB) CreateUser(ctx context.Context, u reference.User) (*reference.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if strings.TrimSpace(u.Email) == "" {
		return nil, fmt.Errorf("creating user: email is required")
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, interests)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Email, u.Username, u.Interests)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, u.Email)
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return &u, nil
}

// GetUser retrieves a user by ID.
// Returns ErrUserNotFound if no such user exists.
func (d *DB) GetUser(ctx context.Context, id string) (*reference.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectUserFields+` FROM users WHERE id = ?`, id)
	return scanUser(row, id)
}

// GetUserByEmail retrieves a user by email address.
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*reference.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectUserFields+` FROM users WHERE email = ?`, email)
	return scanUser(row, email)
}

// ListUsers returns all users ordered by email.
func (d *DB) ListUsers(ctx context.Context) ([]reference.User, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectUserFields+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []reference.User
	for rows.Next() {
		var u reference.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.Interests); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateInterests runs a read-modify-write of a user's interest text inside
// one transaction. fn receives the current interests and returns the new
// value; if fn returns an error nothing is written.
func (d *DB) UpdateInterests(ctx context.Context, id string, fn func(current string) (string, error)) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT interests FROM users WHERE id = ?`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return fmt.Errorf("reading interests for %s: %w", id, err)
	}

	updated, err := fn(current)
	if err != nil {
		return err
	}
	if updated == current {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET interests = ? WHERE id = ?`, updated, id); err != nil {
		return fmt.Errorf("writing interests for %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing interests for %s: %w", id, err)
	}
	return nil
}

func scanUser(s scanner, key string) (*reference.User, error) {
	var u reference.User
	if err := s.Scan(&u.ID, &u.Email, &u.Username, &u.Interests); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, key)
		}
		return nil, err
	}
	return &u, nil
}
