package store_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credgate/credgate/internal/models"
	"github.com/credgate/credgate/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s, err := store.Open(filepath.Join(t.TempDir(), "users.db"), "test-pepper-value", logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_RequiresPepper(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	_, err := store.Open(filepath.Join(t.TempDir(), "users.db"), "", logger)
	assert.Error(t, err)
}

func TestCreateAndVerifyCredentials(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, "alice", "Valid#Pass1234", "user", "alice@example.com", []string{"session_access"}))

	user, err := s.VerifyCredentials(ctx, "alice", "Valid#Pass1234")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "user", user.Role)
	assert.Equal(t, []string{"session_access"}, user.Permissions)
	assert.NotEmpty(t, user.ID)
	assert.NotNil(t, user.LastLogin)
	assert.False(t, user.RequiresPasswordChange)
}

func TestVerifyCredentials_WrongPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, "alice", "Valid#Pass1234", "user", "", nil))

	_, err := s.VerifyCredentials(ctx, "alice", "Wrong#Pass1234")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestVerifyCredentials_UnknownUser(t *testing.T) {
	s := newTestStore(t)

	_, err := s.VerifyCredentials(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, "alice", "Valid#Pass1234", "user", "", nil))

	err := s.CreateUser(ctx, "alice", "Other#Pass1234", "user", "", nil)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, "alice", "Valid#Pass1234", "user", "", nil))

	for i := 0; i < store.DefaultMaxFailedLogins; i++ {
		_, err := s.VerifyCredentials(ctx, "alice", "Wrong#Pass1234")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	// Correct password no longer helps: the account is locked.
	_, err := s.VerifyCredentials(ctx, "alice", "Valid#Pass1234")
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	require.NoError(t, s.UnlockUser(ctx, "alice"))

	user, err := s.VerifyCredentials(ctx, "alice", "Valid#Pass1234")
	require.NoError(t, err)
	assert.Zero(t, user.FailedAttempts)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, "alice", "Valid#Pass1234", "user", "", nil))

	for i := 0; i < store.DefaultMaxFailedLogins-1; i++ {
		_, _ = s.VerifyCredentials(ctx, "alice", "Wrong#Pass1234")
	}
	_, err := s.VerifyCredentials(ctx, "alice", "Valid#Pass1234")
	require.NoError(t, err)

	user, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, user.FailedAttempts)
	assert.False(t, user.AccountLocked)
}

func TestChangePassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, "alice", "Valid#Pass1234", "user", "", nil))

	require.NoError(t, s.ChangePassword(ctx, "alice", "Fresh#Pass1234"))

	_, err := s.VerifyCredentials(ctx, "alice", "Valid#Pass1234")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = s.VerifyCredentials(ctx, "alice", "Fresh#Pass1234")
	assert.NoError(t, err)
}

func TestChangePassword_NotFound(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.ChangePassword(context.Background(), "ghost", "Fresh#Pass1234"), models.ErrNotFound)
}

func TestUnlockUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.UnlockUser(context.Background(), "ghost"), models.ErrNotFound)
}

func TestListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, "bob", "Valid#Pass1234", "user", "", nil))
	require.NoError(t, s.CreateUser(ctx, "alice", "Valid#Pass1234", "admin", "", nil))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}

func TestDeleteUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, "alice", "Valid#Pass1234", "user", "", nil))

	require.NoError(t, s.DeleteUser(ctx, "alice"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "alice"), models.ErrNotFound)

	_, err := s.GetUser(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
