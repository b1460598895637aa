// Package rewards runs the plaza token economy: daily login rewards with
// streak bonuses under a daily cap, the append-only ledger, shop purchases
// and staff grants.
// models.go describes accounts, ledger entries and operation results.
package rewards

import (
	"time"

	"github.com/google/uuid"
)

// Account is a user's reward account inside one tenant.
// It is provisioned on the first plaza visit and never deleted while the
// user exists.
type Account struct {
	ID            int64     `json:"-"`
	TenantID      uuid.UUID `json:"tenant_id"`
	UserID        uuid.UUID `json:"user_id"`
	LastAwardDate *string   `json:"last_award_date"` // tenant-local day of the last daily award, nil before the first one
	StreakCount   int       `json:"streak_count"`    // consecutive days with an award
	LongestStreak int       `json:"longest_streak"`
	Balance       int64     `json:"balance"`
	TotalEarned   int64     `json:"total_earned"` // never decreases, spends do not touch it
	TotalSpent    int64     `json:"total_spent"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Kind tags the source of a ledger entry.
type Kind string

const (
	KindDailyLogin   Kind = "daily_login"   // daily engagement award
	KindAchievement  Kind = "achievement"   // achievement unlocked
	KindAdminGrant   Kind = "admin_grant"   // manual award by staff
	KindShopPurchase Kind = "shop_purchase" // plaza shop spend (negative amount)
)

// Grantable reports whether staff may award tokens with this kind.
// Daily login and purchases have their own paths.
func (k Kind) Grantable() bool {
	return k == KindAchievement || k == KindAdminGrant
}

// Transaction is one immutable ledger entry.
// Amount is positive for earnings and negative for spends; BalanceAfter is
// the account balance right after this entry.
type Transaction struct {
	ID           int64     `json:"id"`
	TenantID     uuid.UUID `json:"-"`
	UserID       uuid.UUID `json:"-"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Kind         Kind      `json:"kind"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// DailyResult is what RecordDailyEngagement reports to the caller.
type DailyResult struct {
	IsNewDay    bool  `json:"is_new_day"`
	Awarded     int64 `json:"awarded"`      // 0 on repeat calls and for race losers
	Streak      int   `json:"streak"`
	StreakBonus int64 `json:"streak_bonus"` // bonus part actually granted after capping
	NewBalance  int64 `json:"new_balance"`
}

// GrantResult reports a staff grant after cap clamping.
type GrantResult struct {
	Requested  int64 `json:"requested"`
	Granted    int64 `json:"granted"`
	NewBalance int64 `json:"new_balance"`
}

// Drift is an account whose balance disagrees with the sum of its ledger.
type Drift struct {
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Balance   int64
	LedgerSum int64
}

// Advance is the state a daily award commits: the new day, the new streak
// and the amount added to balance and total_earned.
type Advance struct {
	Day    string
	Streak int
	Amount int64
}

// GrantRequest is a staff award. The store clamps Amount to what is left of
// Cap in [DayStart, DayEnd).
type GrantRequest struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Kind        Kind
	Amount      int64
	Description string
	DayStart    time.Time
	DayEnd      time.Time
	Cap         int64
}
