// Package admin: service.go contains password verification, the
// brute-force lockout and session management.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/plaza-rewards/internal/common"
)

// SessionStore persists sessions and login attempts. Repository is the
// PostgreSQL implementation.
type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	ActiveSession(ctx context.Context, token string, now time.Time) (*Session, error)
	DeactivateSession(ctx context.Context, token string) error
	LogAttempt(ctx context.Context, tenantID, staffID uuid.UUID, success bool) error
	FailedAttemptsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error)
}

// Service authenticates staff.
type Service struct {
	store        SessionStore
	passwordHash string
	sessionTTL   time.Duration
	now          func() time.Time
}

// NewService creates the admin service. passwordHash is an Argon2id hash
// produced by scripts/generate_hash.go.
func NewService(store SessionStore, passwordHash string, sessionTTL time.Duration) *Service {
	return &Service{
		store:        store,
		passwordHash: passwordHash,
		sessionTTL:   sessionTTL,
		now:          time.Now,
	}
}

// Login checks the staff password and opens a session.
// The password is shared by all staff of the plaza, so failures are counted
// per tenant: 3 failed attempts within an hour lock the whole tenant out,
// whatever staff_id the caller sends.
func (s *Service) Login(ctx context.Context, tenantID, staffID uuid.UUID, password string) (*Session, error) {
	logger := log.WithFields(log.Fields{"tenant_id": tenantID, "staff_id": staffID})

	failed, err := s.store.FailedAttemptsSince(ctx, tenantID, s.now().Add(-AttemptWindow))
	if err != nil {
		return nil, unavailable("count attempts", err)
	}
	if failed >= MaxFailedAttempts {
		logger.Warn("Admin login locked out")
		return nil, common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.passwordHash)

	if err := s.store.LogAttempt(ctx, tenantID, staffID, match); err != nil {
		logger.WithError(err).Warn("Failed to log admin login attempt")
	}

	if !match {
		logger.Info("Admin login: wrong password")
		return nil, common.ErrWrongPassword
	}

	token, err := generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	session := &Session{
		TenantID:  tenantID,
		StaffID:   staffID,
		Token:     token,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, unavailable("create session", err)
	}

	logger.Info("Admin logged in")
	return session, nil
}

// Authorize returns the session for token if it is active and unexpired.
func (s *Service) Authorize(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, common.ErrSessionExpired
	}
	session, err := s.store.ActiveSession(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			return nil, err
		}
		return nil, unavailable("load session", err)
	}
	return session, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.store.DeactivateSession(ctx, token); err != nil {
		return unavailable("logout", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStoreUnavailable, err)
}

// --- Crypto helpers ---

// verifyArgon2id checks password against an Argon2id hash.
// Hash format: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Malformed Argon2id hash")
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		log.WithField("version", parts[2]).Error("Unsupported Argon2id version")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Failed to parse Argon2id parameters")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Failed to decode salt")
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Failed to decode hash")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// constant time
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken returns a random URL-safe session token.
func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
