package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetUserByUsername(_ context.Context, username string) (*database.User, error) {
	args := m.Called(username)
	u, _ := args.Get(0).(*database.User)
	return u, args.Error(1)
}

func (m *mockRepo) CreateAPIKey(_ context.Context, k database.APIKey) (int64, error) {
	args := m.Called(k)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) ListAPIKeys(_ context.Context, ownerID int64) ([]database.APIKey, error) {
	args := m.Called(ownerID)
	keys, _ := args.Get(0).([]database.APIKey)
	return keys, args.Error(1)
}

func (m *mockRepo) DeleteAPIKey(_ context.Context, id int64) error {
	return m.Called(id).Error(0)
}

func TestGenerateKey(t *testing.T) {
	repo := new(mockRepo)
	repo.On("GetUserByUsername", "alice").Return(&database.User{ID: 7, Username: "alice"}, nil)
	repo.On("CreateAPIKey", mock.MatchedBy(func(k database.APIKey) bool {
		return k.CreatedBy == 7 && k.Name == "ci" && len(k.Secret) == 64 && k.ExpiresAt != nil
	})).Return(int64(3), nil)

	out := &bytes.Buffer{}
	require.NoError(t, generateKey(repo, "alice", "ci", 30, out))

	assert.Contains(t, out.String(), "API Key Created Successfully!")
	assert.Contains(t, out.String(), "ID:         3")
	repo.AssertExpectations(t)
}

func TestGenerateKey_UnknownUser(t *testing.T) {
	repo := new(mockRepo)
	repo.On("GetUserByUsername", "ghost").Return(nil, database.ErrNotFound)

	err := generateKey(repo, "ghost", "ci", 0, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown user "ghost"`)
	repo.AssertNotCalled(t, "CreateAPIKey", mock.Anything)
}

func TestListKeys(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := new(mockRepo)
	repo.On("ListAPIKeys", int64(0)).Return([]database.APIKey{
		{ID: 1, Name: "ci", CreatorUsername: "alice"},
		{ID: 2, Name: "old", CreatorUsername: "bob", ExpiresAt: &past},
		{ID: 3, Name: "off", CreatorUsername: "bob", Disabled: true},
	}, nil)

	out := &bytes.Buffer{}
	require.NoError(t, listKeys(repo, "", out))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[1]), "active")
	assert.Contains(t, string(lines[2]), "expired")
	assert.Contains(t, string(lines[3]), "disabled")
	repo.AssertExpectations(t)
}

func TestRevokeKey(t *testing.T) {
	repo := new(mockRepo)
	repo.On("DeleteAPIKey", int64(5)).Return(nil)
	repo.On("DeleteAPIKey", int64(6)).Return(database.ErrNotFound)

	out := &bytes.Buffer{}
	require.NoError(t, revokeKey(repo, "5", out))
	assert.Contains(t, out.String(), "revoked")

	err := revokeKey(repo, "6", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.Error(t, revokeKey(repo, "", out))
	assert.Error(t, revokeKey(repo, "abc", out))
	repo.AssertExpectations(t)
}

func TestRunCommand(t *testing.T) {
	repo := new(mockRepo)
	out := &bytes.Buffer{}

	err := run([]string{"apikey"}, out, repo)
	require.EqualError(t, err, usage)

	err = run([]string{"apikey", "unknown"}, out, repo)
	require.EqualError(t, err, "unknown subcommand: unknown")

	repo.On("ListAPIKeys", int64(0)).Return([]database.APIKey{}, nil)
	require.NoError(t, run([]string{"apikey", "list"}, out, repo))

	err = run([]string{"apikey", "create"}, out, repo)
	require.EqualError(t, err, "-user is required")
}
