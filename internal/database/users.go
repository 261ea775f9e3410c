package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// User is an application account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Fullname     string
	Email        string
	Description  string
	PermTemplate int64
	Active       bool
}

const userColumns = "id, username, password, fullname, email, description, perm_templ, active"

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Fullname, &u.Email, &u.Description, &u.PermTemplate, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername looks up a user by login name.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(db.queryRow(ctx, db.conn, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// GetUserByID looks up a user by id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(db.queryRow(ctx, db.conn, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// CreateUser inserts a user. PasswordHash must already be hashed.
func (db *DB) CreateUser(ctx context.Context, u User) (int64, error) {
	id, err := db.insertID(ctx, db.conn,
		"INSERT INTO users (username, password, fullname, email, description, perm_templ, active) VALUES (?, ?, ?, ?, ?, ?, ?)",
		u.Username, u.PasswordHash, u.Fullname, u.Email, u.Description, u.PermTemplate, u.Active)
	if err != nil {
		return 0, fmt.Errorf("failed to create user %s: %w", u.Username, err)
	}
	return id, nil
}

// CountUsers returns the number of accounts.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.queryRow(ctx, db.conn, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// UserPermissions returns the permission item names granted to a user
// through its permission template.
func (db *DB) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := db.query(ctx, db.conn, `
		SELECT perm_items.name
		FROM perm_templ_items
		JOIN perm_items ON perm_items.id = perm_templ_items.perm_id
		JOIN users ON users.perm_templ = perm_templ_items.templ_id
		WHERE users.id = ?
		ORDER BY perm_items.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}
	return perms, nil
}
