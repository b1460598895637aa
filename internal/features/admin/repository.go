// Package admin: repository.go works with admin_sessions and admin_login_attempts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/plaza-rewards/internal/common"
)

// Repository works with the admin tables.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ SessionStore = (*Repository)(nil)

// CreateSession stores a new active session.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO admin_sessions (tenant_id, staff_id, session_token, expires_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, authenticated_at, last_activity
	`
	err := r.db.QueryRow(ctx, query, s.TenantID, s.StaffID, s.Token, s.ExpiresAt).
		Scan(&s.ID, &s.AuthenticatedAt, &s.LastActivity)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.IsActive = true
	return nil
}

// ActiveSession returns the unexpired active session for token and touches
// its last_activity. No match gives common.ErrSessionExpired.
func (r *Repository) ActiveSession(ctx context.Context, token string, now time.Time) (*Session, error) {
	query := `
		UPDATE admin_sessions SET last_activity = $2
		WHERE session_token = $1 AND is_active = TRUE AND expires_at > $2
		RETURNING id, tenant_id, staff_id, session_token, authenticated_at, expires_at, last_activity, is_active
	`
	var s Session
	err := r.db.QueryRow(ctx, query, token, now).Scan(
		&s.ID, &s.TenantID, &s.StaffID, &s.Token, &s.AuthenticatedAt,
		&s.ExpiresAt, &s.LastActivity, &s.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrSessionExpired
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &s, nil
}

// DeactivateSession ends the session with token.
func (r *Repository) DeactivateSession(ctx context.Context, token string) error {
	query := `UPDATE admin_sessions SET is_active = FALSE WHERE session_token = $1`
	if _, err := r.db.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// LogAttempt records a login attempt. staffID is kept for the audit trail only.
func (r *Repository) LogAttempt(ctx context.Context, tenantID, staffID uuid.UUID, success bool) error {
	query := `INSERT INTO admin_login_attempts (tenant_id, staff_id, success) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, query, tenantID, staffID, success); err != nil {
		return fmt.Errorf("log attempt: %w", err)
	}
	return nil
}

// FailedAttemptsSince counts the tenant's failed logins since the given moment.
func (r *Repository) FailedAttemptsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE tenant_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, tenantID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}
