package rewards

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract of the reward service. Repository is
// the PostgreSQL implementation.
//
// AdvanceDaily is the only write the daily award needs. It must be a single
// atomic conditional update: it applies adv only when the stored
// last_award_date differs from adv.Day, and reports ok=false when another
// caller already advanced the account to that day.
type Store interface {
	CreateAccount(ctx context.Context, tenantID, userID uuid.UUID) error
	GetAccount(ctx context.Context, tenantID, userID uuid.UUID) (*Account, error)
	EarnedBetween(ctx context.Context, tenantID, userID uuid.UUID, from, to time.Time) (int64, error)
	AdvanceDaily(ctx context.Context, tenantID, userID uuid.UUID, adv Advance) (newBalance int64, ok bool, err error)
	AppendTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*Transaction, error)
	Spend(ctx context.Context, tenantID, userID uuid.UUID, amount int64, description string) (*Account, error)
	Grant(ctx context.Context, req GrantRequest) (granted, newBalance int64, err error)
	Drifts(ctx context.Context) ([]Drift, error)
}
