// Package auth provides fixed-credential operator login backed by
// Redis sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/SabarathinamR/FinalJob/internal/session"
)

// ErrInvalidCredentials is returned when username or password is wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// SessionStore is the session persistence the service needs.
type SessionStore interface {
	Save(ctx context.Context, sessionID, username string) error
	Lookup(ctx context.Context, sessionID string) (session.Data, error)
	Destroy(ctx context.Context, sessionID string) error
}

// Service checks the single configured operator credential and issues
// session IDs. The password is hashed once at construction so the
// plaintext from the environment is never compared directly.
type Service struct {
	username     string
	passwordHash []byte
	sessions     SessionStore
}

func NewService(username, password string, sessions SessionStore) (*Service, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash operator password: %w", err)
	}
	return &Service{
		username:     username,
		passwordHash: hash,
		sessions:     sessions,
	}, nil
}

// Login validates the credential and returns a new session ID.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username != s.username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	if err := s.sessions.Save(ctx, sessionID, username); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

// Validate returns the session data for a session ID, or
// session.ErrNotFound if it is unknown or expired.
func (s *Service) Validate(ctx context.Context, sessionID string) (session.Data, error) {
	return s.sessions.Lookup(ctx, sessionID)
}

// Logout destroys a session. A missing session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		log.Printf("auth: destroy session: %v", err)
	}
}
