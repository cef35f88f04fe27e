// Package directory answers who is an active user. Users are managed by an
// external identity system; this package only mirrors what rollover needs.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	id "esgledger/pkg/domain"
)

// User is the directory projection of an account.
type User struct {
	ID     id.UserID
	Name   string
	Active bool
}

// InMemoryDirectory is a map-backed directory. Unknown users are inactive.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[id.UserID]User
}

func NewInMemoryDirectory(users ...User) *InMemoryDirectory {
	d := &InMemoryDirectory{users: make(map[id.UserID]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *InMemoryDirectory) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *InMemoryDirectory) IsActive(_ context.Context, userID id.UserID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[userID].Active, nil
}

func (d *InMemoryDirectory) GetName(_ context.Context, userID id.UserID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[userID].Name, nil
}

// PostgresDirectory reads the directory_users table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) find(ctx context.Context, userID id.UserID) (User, error) {
	u := User{ID: userID}
	err := d.db.QueryRowContext(ctx, `SELECT name, active FROM directory_users WHERE id = $1`, userID.String()).
		Scan(&u.Name, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return User{ID: userID}, nil
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup directory user: %w", err)
	}
	return u, nil
}

func (d *PostgresDirectory) IsActive(ctx context.Context, userID id.UserID) (bool, error) {
	u, err := d.find(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.Active, nil
}

func (d *PostgresDirectory) GetName(ctx context.Context, userID id.UserID) (string, error) {
	u, err := d.find(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

// Upsert inserts or updates a user record.
func (d *PostgresDirectory) Upsert(ctx context.Context, u User) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO directory_users (id, name, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active
	`, u.ID.String(), u.Name, u.Active)
	if err != nil {
		return fmt.Errorf("upsert directory user: %w", err)
	}
	return nil
}
