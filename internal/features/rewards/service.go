// Package rewards: service.go contains the business logic: the daily
// award, purchases, staff grants and ledger reconciliation.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/plaza-rewards/internal/common"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Service manages reward accounts.
type Service struct {
	store Store
	rules Rules
	loc   *time.Location   // tenant timezone for "today"
	now   func() time.Time // wall clock, replaced in tests
}

// NewService creates the reward service.
func NewService(store Store, rules Rules, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, rules: rules, loc: loc, now: time.Now}
}

// SetClock replaces the wall clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Rules returns the active reward configuration.
func (s *Service) Rules() Rules {
	return s.rules
}

// Today returns the tenant-local calendar day.
func (s *Service) Today() string {
	return common.DayOf(s.now(), s.loc)
}

// RecordDailyEngagement awards the daily login reward at most once per
// tenant-local day.
//
// Algorithm:
//  1. Load the account; an award already made today is a no-op
//  2. Continue or restart the streak
//  3. Look up the milestone bonus for the new streak day
//  4. Sum what was earned today from all sources
//  5. Clamp base first, then bonus, to the remaining cap
//  6. Commit with a conditional update keyed on today; losing the race is a no-op
//  7. Append the ledger entry (best effort)
//  8. Report the award, streak and new balance
func (s *Service) RecordDailyEngagement(ctx context.Context, tenantID, userID uuid.UUID) (*DailyResult, error) {
	today := s.Today()
	logger := log.WithFields(log.Fields{
		"tenant_id": tenantID,
		"user_id":   userID,
		"day":       today,
	})

	// Step 1
	acc, err := s.store.GetAccount(ctx, tenantID, userID)
	if err != nil {
		return nil, storeErr("load account", err)
	}
	if acc.LastAwardDate != nil && *acc.LastAwardDate == today {
		return noAward(acc), nil
	}

	// Steps 2-3
	streak, err := NextStreak(acc.LastAwardDate, acc.StreakCount, today)
	if err != nil {
		return nil, fmt.Errorf("next streak: %w", err)
	}
	nominalBonus := s.rules.NominalBonus(streak)

	// Step 4
	dayStart, dayEnd, err := common.DayBounds(today, s.loc)
	if err != nil {
		return nil, fmt.Errorf("day bounds: %w", err)
	}
	earnedToday, err := s.store.EarnedBetween(ctx, tenantID, userID, dayStart, dayEnd)
	if err != nil {
		return nil, storeErr("sum earned today", err)
	}

	// Step 5
	base, bonus := s.rules.Clamp(nominalBonus, earnedToday)
	total := base + bonus

	// Step 6
	newBalance, ok, err := s.store.AdvanceDaily(ctx, tenantID, userID, Advance{
		Day:    today,
		Streak: streak,
		Amount: total,
	})
	if err != nil {
		return nil, storeErr("advance daily", err)
	}
	if !ok {
		logger.Debug("Daily award already taken by a concurrent request")
		return s.lostRace(ctx, acc), nil
	}

	// Step 7
	if total > 0 {
		entry := &Transaction{
			TenantID:     tenantID,
			UserID:       userID,
			Amount:       total,
			BalanceAfter: newBalance,
			Kind:         KindDailyLogin,
			Description:  fmt.Sprintf("Daily login - Day %d", streak),
		}
		if err := s.store.AppendTransaction(ctx, entry); err != nil {
			logger.WithError(err).Warn("Failed to append daily login ledger entry")
		}
	}

	logger.WithFields(log.Fields{
		"streak":       streak,
		"base":         base,
		"bonus":        bonus,
		"earned_today": earnedToday,
		"balance":      newBalance,
	}).Info("Daily reward awarded")

	// Step 8
	return &DailyResult{
		IsNewDay:    true,
		Awarded:     total,
		Streak:      streak,
		StreakBonus: bonus,
		NewBalance:  newBalance,
	}, nil
}

// lostRace builds the no-op result for a caller whose conditional update
// matched nothing. It re-reads the account so the reported balance and
// streak include the winner's award; the snapshot is the fallback.
func (s *Service) lostRace(ctx context.Context, snapshot *Account) *DailyResult {
	fresh, err := s.store.GetAccount(ctx, snapshot.TenantID, snapshot.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", snapshot.UserID).Debug("Re-read after lost race failed, using snapshot")
		return noAward(snapshot)
	}
	return noAward(fresh)
}

func noAward(acc *Account) *DailyResult {
	return &DailyResult{
		IsNewDay:   false,
		Streak:     acc.StreakCount,
		NewBalance: acc.Balance,
	}
}

// ProvisionAccount creates the account on the first plaza visit.
// Calling it again returns the existing account unchanged.
func (s *Service) ProvisionAccount(ctx context.Context, tenantID, userID uuid.UUID) (*Account, error) {
	if err := s.store.CreateAccount(ctx, tenantID, userID); err != nil {
		return nil, storeErr("create account", err)
	}
	acc, err := s.store.GetAccount(ctx, tenantID, userID)
	if err != nil {
		return nil, storeErr("load account", err)
	}
	return acc, nil
}

// GetAccount returns the account.
func (s *Service) GetAccount(ctx context.Context, tenantID, userID uuid.UUID) (*Account, error) {
	acc, err := s.store.GetAccount(ctx, tenantID, userID)
	if err != nil {
		return nil, storeErr("load account", err)
	}
	return acc, nil
}

// History returns the newest ledger entries first. limit <= 0 means the
// default page; values above the maximum are clamped.
func (s *Service) History(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if _, err := s.store.GetAccount(ctx, tenantID, userID); err != nil {
		return nil, storeErr("load account", err)
	}
	txs, err := s.store.ListTransactions(ctx, tenantID, userID, limit)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return txs, nil
}

// Spend takes tokens for a shop purchase. The balance never goes negative.
func (s *Service) Spend(ctx context.Context, tenantID, userID uuid.UUID, amount int64, description string) (*Account, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Plaza shop purchase"
	}

	acc, err := s.store.Spend(ctx, tenantID, userID, amount, description)
	if err != nil {
		return nil, storeErr("spend", err)
	}

	log.WithFields(log.Fields{
		"tenant_id": tenantID,
		"user_id":   userID,
		"amount":    amount,
		"balance":   acc.Balance,
	}).Info("Tokens spent")
	return acc, nil
}

// Grant awards tokens from a non-daily source. The amount is clamped to
// what is left of today's cap; a fully used cap grants 0 without error.
func (s *Service) Grant(ctx context.Context, tenantID, userID uuid.UUID, kind Kind, amount int64, description string) (*GrantResult, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if !kind.Grantable() {
		return nil, common.ErrInvalidKind
	}

	dayStart, dayEnd, err := common.DayBounds(s.Today(), s.loc)
	if err != nil {
		return nil, fmt.Errorf("day bounds: %w", err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = fmt.Sprintf("Grant: %s", kind)
	}

	granted, balance, err := s.store.Grant(ctx, GrantRequest{
		TenantID:    tenantID,
		UserID:      userID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		DayStart:    dayStart,
		DayEnd:      dayEnd,
		Cap:         s.rules.DailyCap,
	})
	if err != nil {
		return nil, storeErr("grant", err)
	}

	log.WithFields(log.Fields{
		"tenant_id": tenantID,
		"user_id":   userID,
		"kind":      kind,
		"requested": amount,
		"granted":   granted,
	}).Info("Tokens granted")

	return &GrantResult{Requested: amount, Granted: granted, NewBalance: balance}, nil
}

// ReconcileLedger compares every balance with the sum of its ledger and
// logs the accounts that disagree. The ledger is an audit trail written
// after the balance, so a lost append shows up here.
func (s *Service) ReconcileLedger(ctx context.Context) ([]Drift, error) {
	drifts, err := s.store.Drifts(ctx)
	if err != nil {
		return nil, storeErr("drifts", err)
	}
	for _, d := range drifts {
		log.WithFields(log.Fields{
			"tenant_id":  d.TenantID,
			"user_id":    d.UserID,
			"balance":    d.Balance,
			"ledger_sum": d.LedgerSum,
		}).Warn("Ledger drift")
	}
	log.WithField("drifts", len(drifts)).Info("Ledger reconciliation finished")
	return drifts, nil
}

// storeErr keeps domain errors as they are and marks everything else as a
// retryable store failure.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, common.ErrAccountNotFound),
		errors.Is(err, common.ErrInsufficientBalance),
		errors.Is(err, common.ErrStoreUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, common.ErrStoreUnavailable, err)
	}
}
