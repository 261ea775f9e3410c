package models

import (
	"time"

	"github.com/jroosing/pdnsadmin/internal/database"
)

// APIKeyRequest is the body of POST and PUT /api-keys.
type APIKeyRequest struct {
	Name      string     `json:"name" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
	Disabled  bool       `json:"disabled"`
}

// APIKey is an API key as returned by the API. Secret is only set when the
// key was just created or regenerated; otherwise SecretHint shows its tail.
type APIKey struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Secret     string     `json:"secret,omitempty"`
	SecretHint string     `json:"secret_hint"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Disabled   bool       `json:"disabled"`
	Expired    bool       `json:"expired"`
}

// APIKeyFromDB converts a database key. The secret is included only when
// withSecret is set.
func APIKeyFromDB(k database.APIKey, now time.Time, withSecret bool) APIKey {
	out := APIKey{
		ID:         k.ID,
		Name:       k.Name,
		SecretHint: maskSecret(k.Secret),
		CreatedBy:  k.CreatorUsername,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
		ExpiresAt:  k.ExpiresAt,
		Disabled:   k.Disabled,
		Expired:    k.Expired(now),
	}
	if withSecret {
		out.Secret = k.Secret
	}
	return out
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
