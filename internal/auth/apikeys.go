package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jroosing/pdnsadmin/internal/database"
)

var (
	// ErrForbidden is returned when the caller lacks api_manage_keys or
	// does not own the key.
	ErrForbidden = errors.New("permission denied")
	// ErrKeyLimit is returned when a user already has the maximum number of keys.
	ErrKeyLimit = errors.New("maximum number of API keys reached")
	// ErrKeyNotFound is returned for unknown key ids.
	ErrKeyNotFound = errors.New("API key not found")
	// ErrInvalidKeyName is returned for empty key names.
	ErrInvalidKeyName = errors.New("API key name is required")
)

// KeyStore persists API keys.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, k database.APIKey) (int64, error)
	GetAPIKeyByID(ctx context.Context, id int64) (*database.APIKey, error)
	ListAPIKeys(ctx context.Context, owner int64) ([]database.APIKey, error)
	CountAPIKeys(ctx context.Context, owner int64) (int, error)
	UpdateAPIKey(ctx context.Context, k database.APIKey) error
	DeleteAPIKey(ctx context.Context, id int64) error
}

// APIKeyService manages API keys on behalf of a logged-in user.
// Ueberusers see and manage every key and are exempt from the per-user limit.
type APIKeyService struct {
	store      KeyStore
	maxPerUser int
	logger     *slog.Logger
}

// NewAPIKeyService creates the service. maxPerUser <= 0 disables the limit.
func NewAPIKeyService(store KeyStore, maxPerUser int, logger *slog.Logger) *APIKeyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyService{store: store, maxPerUser: maxPerUser, logger: logger}
}

// GenerateSecret returns 64 hex characters of randomness.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *APIKeyService) authorize(id *Identity) error {
	if id == nil || !id.Permissions.Has(PermManageAPIKeys) {
		return ErrForbidden
	}
	return nil
}

// List returns the caller's keys, or all keys for ueberusers.
func (s *APIKeyService) List(ctx context.Context, id *Identity) ([]database.APIKey, error) {
	if err := s.authorize(id); err != nil {
		return nil, err
	}
	owner := id.UserID
	if id.Permissions.IsUeberuser() {
		owner = 0
	}
	return s.store.ListAPIKeys(ctx, owner)
}

// Get returns a key visible to the caller.
func (s *APIKeyService) Get(ctx context.Context, id *Identity, keyID int64) (*database.APIKey, error) {
	if err := s.authorize(id); err != nil {
		return nil, err
	}
	k, err := s.store.GetAPIKeyByID(ctx, keyID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	if !id.Permissions.IsUeberuser() && k.CreatedBy != id.UserID {
		return nil, ErrKeyNotFound
	}
	return k, nil
}

// Create issues a new key owned by the caller. The returned key carries
// the secret, which is shown only once.
func (s *APIKeyService) Create(ctx context.Context, id *Identity, name string, expiresAt *time.Time) (*database.APIKey, error) {
	if err := s.authorize(id); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidKeyName
	}
	if s.maxPerUser > 0 && !id.Permissions.IsUeberuser() {
		n, err := s.store.CountAPIKeys(ctx, id.UserID)
		if err != nil {
			return nil, err
		}
		if n >= s.maxPerUser {
			return nil, ErrKeyLimit
		}
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}
	k := database.APIKey{
		Name:      name,
		Secret:    secret,
		CreatedBy: id.UserID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	k.ID, err = s.store.CreateAPIKey(ctx, k)
	if err != nil {
		return nil, err
	}
	k.CreatorUsername = id.Username
	s.logger.Info("api key created", "user_id", id.UserID, "key_id", k.ID, "name", k.Name)
	return &k, nil
}

// Update changes name, expiry and disabled state.
func (s *APIKeyService) Update(ctx context.Context, id *Identity, keyID int64, name string, expiresAt *time.Time, disabled bool) (*database.APIKey, error) {
	k, err := s.Get(ctx, id, keyID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidKeyName
	}
	k.Name = name
	k.ExpiresAt = expiresAt
	k.Disabled = disabled
	if err := s.store.UpdateAPIKey(ctx, *k); err != nil {
		return nil, err
	}
	s.logger.Info("api key updated", "user_id", id.UserID, "key_id", k.ID)
	return k, nil
}

// Regenerate replaces the secret of a key.
func (s *APIKeyService) Regenerate(ctx context.Context, id *Identity, keyID int64) (*database.APIKey, error) {
	k, err := s.Get(ctx, id, keyID)
	if err != nil {
		return nil, err
	}
	if k.Secret, err = GenerateSecret(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateAPIKey(ctx, *k); err != nil {
		return nil, err
	}
	s.logger.Info("api key regenerated", "user_id", id.UserID, "key_id", k.ID)
	return k, nil
}

// Toggle flips the disabled state of a key.
func (s *APIKeyService) Toggle(ctx context.Context, id *Identity, keyID int64) (*database.APIKey, error) {
	k, err := s.Get(ctx, id, keyID)
	if err != nil {
		return nil, err
	}
	k.Disabled = !k.Disabled
	if err := s.store.UpdateAPIKey(ctx, *k); err != nil {
		return nil, err
	}
	s.logger.Info("api key toggled", "user_id", id.UserID, "key_id", k.ID, "disabled", k.Disabled)
	return k, nil
}

// Delete removes a key.
func (s *APIKeyService) Delete(ctx context.Context, id *Identity, keyID int64) error {
	k, err := s.Get(ctx, id, keyID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAPIKey(ctx, k.ID); err != nil {
		return err
	}
	s.logger.Info("api key deleted", "user_id", id.UserID, "key_id", k.ID)
	return nil
}
