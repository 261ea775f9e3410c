package dnssec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jroosing/pdnsadmin/internal/kvstore"
)

const confirmPrefix = "dnssec-delete:"

// DefaultConfirmTTL is how long a delete confirmation token stays valid.
const DefaultConfirmTTL = 5 * time.Minute

// ErrInvalidToken is returned for unknown, expired, reused or mismatched
// confirmation tokens.
var ErrInvalidToken = errors.New("invalid or expired confirmation token")

type confirmation struct {
	ZoneID int64 `json:"zone_id"`
	KeyID  int   `json:"key_id"`
	UserID int64 `json:"user_id"`
}

// ConfirmationStore issues single-use tokens bound to a zone, a key and a
// user.
type ConfirmationStore struct {
	store kvstore.Store
	ttl   time.Duration
}

// NewConfirmationStore creates a store. A non-positive ttl uses
// DefaultConfirmTTL.
func NewConfirmationStore(store kvstore.Store, ttl time.Duration) *ConfirmationStore {
	if ttl <= 0 {
		ttl = DefaultConfirmTTL
	}
	return &ConfirmationStore{store: store, ttl: ttl}
}

// TTL returns the token lifetime.
func (c *ConfirmationStore) TTL() time.Duration { return c.ttl }

// Issue creates a token for deleting keyID of zoneID by userID.
func (c *ConfirmationStore) Issue(ctx context.Context, zoneID int64, keyID int, userID int64) (string, error) {
	raw, err := json.Marshal(confirmation{ZoneID: zoneID, KeyID: keyID, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("failed to encode confirmation: %w", err)
	}
	token := uuid.NewString()
	if err := c.store.Set(ctx, confirmPrefix+token, raw, c.ttl); err != nil {
		return "", fmt.Errorf("failed to store confirmation: %w", err)
	}
	return token, nil
}

// Consume removes token and checks that it was issued for the same zone,
// key and user. A token can be consumed once, even when it does not match.
func (c *ConfirmationStore) Consume(ctx context.Context, token string, zoneID int64, keyID int, userID int64) error {
	if token == "" {
		return ErrInvalidToken
	}
	raw, err := c.store.GetDel(ctx, confirmPrefix+token)
	if errors.Is(err, kvstore.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("failed to load confirmation: %w", err)
	}

	var conf confirmation
	if err := json.Unmarshal(raw, &conf); err != nil {
		return ErrInvalidToken
	}
	if conf.ZoneID != zoneID || conf.KeyID != keyID || conf.UserID != userID {
		return ErrInvalidToken
	}
	return nil
}
