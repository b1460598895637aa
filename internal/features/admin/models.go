// Package admin authenticates plaza staff for manual token grants.
// models.go describes sessions and the lockout limits.
package admin

import (
	"time"

	"github.com/google/uuid"
)

// Session is an authenticated staff session. The token is sent back as a
// bearer token on every admin request.
type Session struct {
	ID              int64
	TenantID        uuid.UUID
	StaffID         uuid.UUID
	Token           string
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
	LastActivity    time.Time
	IsActive        bool
}

const (
	// MaxFailedAttempts failed logins within AttemptWindow lock the tenant out.
	MaxFailedAttempts = 3
	AttemptWindow     = time.Hour
)
