package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// APIKey is a row of api_keys joined with the creator's username.
type APIKey struct {
	ID              int64
	Name            string
	Secret          string
	CreatedBy       int64
	CreatorUsername string
	CreatedAt       time.Time
	LastUsedAt      *time.Time
	Disabled        bool
	ExpiresAt       *time.Time
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// Valid reports whether the key may authenticate requests.
func (k *APIKey) Valid(now time.Time) bool {
	return !k.Disabled && !k.Expired(now)
}

const apiKeySelect = `
	SELECT api_keys.id, api_keys.name, api_keys.secret_key, COALESCE(api_keys.created_by, 0),
		COALESCE(users.username, ''), api_keys.created_at, api_keys.last_used_at,
		api_keys.disabled, api_keys.expires_at
	FROM api_keys LEFT JOIN users ON users.id = api_keys.created_by`

func scanAPIKey(row interface{ Scan(...any) error }) (*APIKey, error) {
	var (
		k        APIKey
		lastUsed sql.NullTime
		expires  sql.NullTime
	)
	err := row.Scan(&k.ID, &k.Name, &k.Secret, &k.CreatedBy, &k.CreatorUsername,
		&k.CreatedAt, &lastUsed, &k.Disabled, &expires)
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	if expires.Valid {
		t := expires.Time
		k.ExpiresAt = &t
	}
	return &k, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// CreateAPIKey stores a new key and returns its id.
func (db *DB) CreateAPIKey(ctx context.Context, k APIKey) (int64, error) {
	createdAt := k.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	id, err := db.insertID(ctx, db.conn,
		"INSERT INTO api_keys (name, secret_key, created_by, created_at, disabled, expires_at) VALUES (?, ?, ?, ?, ?, ?)",
		k.Name, k.Secret, k.CreatedBy, createdAt.UTC(), k.Disabled, nullableTime(k.ExpiresAt))
	if err != nil {
		return 0, fmt.Errorf("failed to create api key: %w", err)
	}
	return id, nil
}

// GetAPIKeyBySecret looks up a key by its secret.
func (db *DB) GetAPIKeyBySecret(ctx context.Context, secret string) (*APIKey, error) {
	k, err := scanAPIKey(db.queryRow(ctx, db.conn, apiKeySelect+" WHERE api_keys.secret_key = ?", secret))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return k, nil
}

// GetAPIKeyByID looks up a key by id.
func (db *DB) GetAPIKeyByID(ctx context.Context, id int64) (*APIKey, error) {
	k, err := scanAPIKey(db.queryRow(ctx, db.conn, apiKeySelect+" WHERE api_keys.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return k, nil
}

// ListAPIKeys returns keys created by owner, or all keys when owner is 0.
func (db *DB) ListAPIKeys(ctx context.Context, owner int64) ([]APIKey, error) {
	query := apiKeySelect
	var args []any
	if owner != 0 {
		query += " WHERE api_keys.created_by = ?"
		args = append(args, owner)
	}
	query += " ORDER BY api_keys.name, api_keys.id"

	rows, err := db.query(ctx, db.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api keys: %w", err)
	}
	return keys, nil
}

// CountAPIKeys returns the number of keys created by owner.
func (db *DB) CountAPIKeys(ctx context.Context, owner int64) (int, error) {
	var n int
	if err := db.queryRow(ctx, db.conn, "SELECT COUNT(*) FROM api_keys WHERE created_by = ?", owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count api keys: %w", err)
	}
	return n, nil
}

// UpdateAPIKey saves name, secret, disabled and expiry of an existing key.
func (db *DB) UpdateAPIKey(ctx context.Context, k APIKey) error {
	res, err := db.exec(ctx, db.conn,
		"UPDATE api_keys SET name = ?, secret_key = ?, disabled = ?, expires_at = ? WHERE id = ?",
		k.Name, k.Secret, k.Disabled, nullableTime(k.ExpiresAt), k.ID)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAPIKey removes a key.
func (db *DB) DeleteAPIKey(ctx context.Context, id int64) error {
	res, err := db.exec(ctx, db.conn, "DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed records the time of the last successful use.
func (db *DB) UpdateAPIKeyLastUsed(ctx context.Context, id int64, at time.Time) error {
	if _, err := db.exec(ctx, db.conn, "UPDATE api_keys SET last_used_at = ? WHERE id = ?", at.UTC(), id); err != nil {
		return fmt.Errorf("failed to update api key last use: %w", err)
	}
	return nil
}
