package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const sessionTTL = 365 * 24 * time.Hour

var ErrInvalidSession = errors.New("invalid session")

type Session struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Exp      int64  `json:"exp"`
}

// Signer mints and verifies session tokens of the form
// base64(json).hexsig, signed with HMAC-SHA256.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(userID, username string) (string, error) {
	data, err := json.Marshal(Session{
		UserID:   userID,
		Username: username,
		Exp:      time.Now().Add(sessionTTL).UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	return base64.StdEncoding.EncodeToString(data) + "." + s.signature(data), nil
}

// Verify checks the token's signature and expiry and returns the session.
func (s *Signer) Verify(token string) (*Session, error) {
	dataB64, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidSession
	}

	data, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return nil, ErrInvalidSession
	}

	if !hmac.Equal([]byte(s.signature(data)), []byte(sig)) {
		return nil, ErrInvalidSession
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, ErrInvalidSession
	}
	if session.Exp < time.Now().UnixMilli() {
		return nil, ErrInvalidSession
	}
	return &session, nil
}

func (s *Signer) signature(data []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
