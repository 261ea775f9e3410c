// Package auth resolves request credentials into an Identity and holds the
// permission rules applied to zones, records and DNSSEC keys.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jroosing/pdnsadmin/internal/database"
)

// ErrInvalidCredentials is returned for any failed authentication attempt.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore loads accounts and their permissions.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
	GetUserByID(ctx context.Context, id int64) (*database.User, error)
	UserPermissions(ctx context.Context, userID int64) ([]string, error)
}

// KeyLookup finds API keys by secret and records their use.
type KeyLookup interface {
	GetAPIKeyBySecret(ctx context.Context, secret string) (*database.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id int64, at time.Time) error
}

// Authenticator verifies passwords and API keys.
type Authenticator struct {
	users  UserStore
	keys   KeyLookup
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator. logger may be nil.
func NewAuthenticator(users UserStore, keys KeyLookup, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{users: users, keys: keys, logger: logger, now: time.Now}
}

// Login checks a username and password for the session login form.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Identity, error) {
	return a.checkPassword(ctx, username, password, MethodSession)
}

// AuthenticateBasic checks HTTP Basic credentials.
func (a *Authenticator) AuthenticateBasic(ctx context.Context, username, password string) (*Identity, error) {
	return a.checkPassword(ctx, username, password, MethodBasic)
}

func (a *Authenticator) checkPassword(ctx context.Context, username, password string, method Method) (*Identity, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := a.users.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active || !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return a.identityFor(ctx, u, method)
}

// AuthenticateAPIKey resolves an API key to the identity of its owner.
// The key must exist, be enabled and not be expired.
func (a *Authenticator) AuthenticateAPIKey(ctx context.Context, secret string) (*Identity, error) {
	if secret == "" {
		return nil, ErrInvalidCredentials
	}
	key, err := a.keys.GetAPIKeyBySecret(ctx, secret)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	now := a.now()
	if !key.Valid(now) || key.CreatedBy == 0 {
		return nil, ErrInvalidCredentials
	}

	u, err := a.users.GetUserByID(ctx, key.CreatedBy)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrInvalidCredentials
	}

	id, err := a.identityFor(ctx, u, MethodAPIKey)
	if err != nil {
		return nil, err
	}
	id.APIKeyID = key.ID

	if err := a.keys.UpdateAPIKeyLastUsed(ctx, key.ID, now); err != nil {
		a.logger.Warn("failed to update api key last use", "key_id", key.ID, "err", err)
	}
	return id, nil
}

// IdentityForUser rebuilds the identity of a session user. Users that were
// removed or deactivated since login are rejected.
func (a *Authenticator) IdentityForUser(ctx context.Context, userID int64) (*Identity, error) {
	u, err := a.users.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrInvalidCredentials
	}
	return a.identityFor(ctx, u, MethodSession)
}

func (a *Authenticator) identityFor(ctx context.Context, u *database.User, method Method) (*Identity, error) {
	perms, err := a.users.UserPermissions(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions for %s: %w", u.Username, err)
	}
	return &Identity{
		UserID:      u.ID,
		Username:    u.Username,
		Permissions: NewPermissions(perms...),
		Method:      method,
	}, nil
}
