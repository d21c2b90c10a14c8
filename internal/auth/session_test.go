package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := NewSigner("test-secret")

	token, err := signer.Sign("user-1", "alice")
	require.NoError(t, err)

	session, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "alice", session.Username)
	assert.Greater(t, session.Exp, time.Now().UnixMilli())
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	signer := NewSigner("test-secret")

	token, err := signer.Sign("user-1", "alice")
	require.NoError(t, err)

	dataB64, sig, ok := strings.Cut(token, ".")
	require.True(t, ok)

	data, err := base64.StdEncoding.DecodeString(dataB64)
	require.NoError(t, err)

	var session Session
	require.NoError(t, json.Unmarshal(data, &session))
	session.UserID = "user-2"
	forged, err := json.Marshal(session)
	require.NoError(t, err)

	_, err = signer.Verify(base64.StdEncoding.EncodeToString(forged) + "." + sig)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewSigner("secret-a").Sign("user-1", "alice")
	require.NoError(t, err)

	_, err = NewSigner("secret-b").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer := NewSigner("test-secret")

	data, err := json.Marshal(Session{
		UserID:   "user-1",
		Username: "alice",
		Exp:      time.Now().Add(-time.Minute).UnixMilli(),
	})
	require.NoError(t, err)

	token := base64.StdEncoding.EncodeToString(data) + "." + signer.signature(data)
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	signer := NewSigner("test-secret")

	for _, token := range []string{"", "nodot", "a.b", "!!!.abc"} {
		_, err := signer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidSession, "token %q", token)
	}
}
