// Package session keeps login sessions for the internal API in a kvstore.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jroosing/pdnsadmin/internal/kvstore"
)

// CookieName is the session cookie set on login.
const CookieName = "pdnsadmin_session"

const keyPrefix = "session:"

// ErrNoSession is returned for unknown or expired session ids.
var ErrNoSession = errors.New("session not found")

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	CSRFToken string    `json:"csrf_token"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager creates, loads and removes sessions. Each load extends the
// session lifetime by ttl.
type Manager struct {
	store kvstore.Store
	ttl   time.Duration
}

// NewManager returns a Manager storing sessions in store.
func NewManager(store kvstore.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{store: store, ttl: ttl}
}

// TTL returns the idle lifetime of a session.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create starts a session for the given user.
func (m *Manager) Create(ctx context.Context, userID int64, username string) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		CSRFToken: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get loads a session and refreshes its expiry.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	raw, err := m.store.Get(ctx, keyPrefix+id)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if err := m.save(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete ends a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.store.Del(ctx, keyPrefix+id)
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.store.Set(ctx, keyPrefix+s.ID, raw, m.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}
