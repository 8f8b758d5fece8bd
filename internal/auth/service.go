// Package auth provides session-based authentication: the "given request
// credentials, return the authenticated user or none" capability consumed
// by the API layer.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// VerifyFunc checks a presented credential against a stored password hash.
// The default scheme is a constant-time comparison against HashPassword;
// deployments with an external identity provider can install their own.
type VerifyFunc func(storedHash, credential string) bool

// HashPassword returns the stored form of a password under the default
// verification scheme.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func defaultVerify(storedHash, credential string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashPassword(credential))) == 1
}

// Service issues and resolves session tokens.
type Service struct {
	users      *storage.UserRepository
	sessionTTL time.Duration
	verify     VerifyFunc
}

// NewService creates a new auth service.
func NewService(users *storage.UserRepository) *Service {
	return &Service{
		users:      users,
		sessionTTL: defaultSessionTTL,
		verify:     defaultVerify,
	}
}

// SetVerifier installs a custom credential verifier.
func (s *Service) SetVerifier(verify VerifyFunc) {
	s.verify = verify
}

// SetSessionTTL overrides the lifetime of newly issued sessions.
func (s *Service) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		s.sessionTTL = ttl
	}
}

// Login verifies the credential for the given email and issues a session.
// Returns (nil, nil, nil) when the credentials do not match, so the caller
// can respond uniformly without leaking which part failed.
func (s *Service) Login(ctx context.Context, email, credential string) (*models.Session, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil || !s.verify(user.PasswordHash, credential) {
		return nil, nil, nil
	}

	session, err := s.users.CreateSession(ctx, user.ID, s.sessionTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}

	return session, user, nil
}

// Authenticate resolves a session token to its user, or nil if the token is
// unknown or expired.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.users.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}
	if session == nil || session.IsExpired(time.Now().UTC()) {
		return nil, nil
	}

	return s.users.GetByID(ctx, session.UserID)
}

// Logout removes a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.users.DeleteSession(ctx, token)
}
