package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User is an authenticated account with a stable identifier.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUser inserts a new user record.
func (db *DB) CreateUser(ctx context.Context, u *User) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Email, u.Name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user with the given email, or nil.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := db.QueryRowContext(ctx,
		"SELECT id, email, name, created_at FROM users WHERE email = ?", email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns the user with the given id, or nil.
func (db *DB) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := db.QueryRowContext(ctx,
		"SELECT id, email, name, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
