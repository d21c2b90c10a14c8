package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainfeed/backend/internal/storage/sqlite"
)

func newService(t *testing.T) *Service {
	t.Helper()

	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	secret := "test-secret"
	return NewService(store, NewSigner(secret), secret)
}

func TestRegisterAndLogin(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	token, user, err := service.Register(ctx, "Alice", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", user.Username, "usernames are lowercased")

	loginToken, loginUser, err := service.Login(ctx, "ALICE", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, loginToken)
	assert.Equal(t, user.ID, loginUser.ID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	_, _, err := service.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, _, err = service.Register(ctx, "Alice", "pw2")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	_, _, err := service.Register(ctx, "alice", "correct")
	require.NoError(t, err)

	_, _, err = service.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	service := newService(t)

	_, _, err := service.Login(context.Background(), "nobody", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
