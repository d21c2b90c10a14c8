package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Service handles account registration and login. Password hashes are
// stored as "salt:digest" with the digest binding the server secret, so a
// leaked database alone is not crackable offline against common passwords.
type Service struct {
	store  *sqlite.Store
	signer *Signer
	secret string
}

func NewService(store *sqlite.Store, signer *Signer, secret string) *Service {
	return &Service{store: store, signer: signer, secret: secret}
}

// Register creates an account and returns a session token for it.
func (s *Service) Register(ctx context.Context, username, password string) (string, *models.User, error) {
	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := hex.EncodeToString(saltBytes)

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     strings.ToLower(username),
		PasswordHash: salt + ":" + s.hashPassword(password, salt),
		CreatedAt:    time.Now(),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, sqlite.ErrConflict) {
			return "", nil, ErrUsernameTaken
		}
		return "", nil, err
	}

	token, err := s.signer.Sign(user.ID, user.Username)
	if err != nil {
		return "", nil, err
	}

	logger.Info("User registered", zap.String("username", user.Username))
	return token, user, nil
}

// Login verifies credentials and returns a session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	salt, stored, ok := strings.Cut(user.PasswordHash, ":")
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	computed := s.hashPassword(password, salt)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) != 1 {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.signer.Sign(user.ID, user.Username)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) hashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt + s.secret))
	return hex.EncodeToString(sum[:])
}
