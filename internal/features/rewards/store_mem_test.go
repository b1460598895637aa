package rewards

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/plaza-rewards/internal/common"
)

type accountKey struct {
	tenantID uuid.UUID
	userID   uuid.UUID
}

// memStore is an in-memory Store. One mutex serialises every call, so
// AdvanceDaily behaves like the single-row conditional UPDATE.
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[accountKey]*Account
	ledger   []*Transaction
	nextID   int64

	// fault injection
	failGet    error
	failAppend error
	failEarned error
	// beforeAdvance runs outside the lock right before AdvanceDaily commits.
	beforeAdvance func()
	advanceCalls  int
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{now: now, accounts: make(map[accountKey]*Account)}
}

func (m *memStore) CreateAccount(_ context.Context, tenantID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := accountKey{tenantID, userID}
	if _, ok := m.accounts[key]; ok {
		return nil
	}
	m.nextID++
	m.accounts[key] = &Account{
		ID:        m.nextID,
		TenantID:  tenantID,
		UserID:    userID,
		CreatedAt: m.now(),
		UpdatedAt: m.now(),
	}
	return nil
}

func (m *memStore) GetAccount(_ context.Context, tenantID, userID uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	acc, ok := m.accounts[accountKey{tenantID, userID}]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	cp := *acc
	if acc.LastAwardDate != nil {
		day := *acc.LastAwardDate
		cp.LastAwardDate = &day
	}
	return &cp, nil
}

func (m *memStore) EarnedBetween(_ context.Context, tenantID, userID uuid.UUID, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEarned != nil {
		return 0, m.failEarned
	}
	return m.earnedLocked(tenantID, userID, from, to), nil
}

func (m *memStore) earnedLocked(tenantID, userID uuid.UUID, from, to time.Time) int64 {
	var sum int64
	for _, t := range m.ledger {
		if t.TenantID != tenantID || t.UserID != userID || t.Amount <= 0 {
			continue
		}
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			sum += t.Amount
		}
	}
	return sum
}

func (m *memStore) AdvanceDaily(_ context.Context, tenantID, userID uuid.UUID, adv Advance) (int64, bool, error) {
	if m.beforeAdvance != nil {
		m.beforeAdvance()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceCalls++
	acc, ok := m.accounts[accountKey{tenantID, userID}]
	if !ok || (acc.LastAwardDate != nil && *acc.LastAwardDate == adv.Day) {
		return 0, false, nil
	}
	day := adv.Day
	acc.LastAwardDate = &day
	acc.StreakCount = adv.Streak
	acc.LongestStreak = max(acc.LongestStreak, adv.Streak)
	acc.Balance += adv.Amount
	acc.TotalEarned += adv.Amount
	acc.UpdatedAt = m.now()
	return acc.Balance, true, nil
}

func (m *memStore) AppendTransaction(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return m.failAppend
	}
	m.appendLocked(t)
	return nil
}

func (m *memStore) appendLocked(t *Transaction) {
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = m.now()
	cp := *t
	m.ledger = append(m.ledger, &cp)
}

func (m *memStore) ListTransactions(_ context.Context, tenantID, userID uuid.UUID, limit int) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Transaction
	for _, t := range m.ledger {
		if t.TenantID == tenantID && t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Spend(_ context.Context, tenantID, userID uuid.UUID, amount int64, description string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[accountKey{tenantID, userID}]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	if acc.Balance < amount {
		return nil, common.ErrInsufficientBalance
	}
	acc.Balance -= amount
	acc.TotalSpent += amount
	m.appendLocked(&Transaction{
		TenantID:     tenantID,
		UserID:       userID,
		Amount:       -amount,
		BalanceAfter: acc.Balance,
		Kind:         KindShopPurchase,
		Description:  description,
	})
	cp := *acc
	return &cp, nil
}

func (m *memStore) Grant(_ context.Context, req GrantRequest) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[accountKey{req.TenantID, req.UserID}]
	if !ok {
		return 0, 0, common.ErrAccountNotFound
	}
	earned := m.earnedLocked(req.TenantID, req.UserID, req.DayStart, req.DayEnd)
	granted := min(req.Amount, capRemaining(req.Cap, earned))
	if granted == 0 {
		return 0, acc.Balance, nil
	}
	acc.Balance += granted
	acc.TotalEarned += granted
	m.appendLocked(&Transaction{
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		Amount:       granted,
		BalanceAfter: acc.Balance,
		Kind:         req.Kind,
		Description:  req.Description,
	})
	return granted, acc.Balance, nil
}

func (m *memStore) Drifts(_ context.Context) ([]Drift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := make(map[accountKey]int64)
	for _, t := range m.ledger {
		sums[accountKey{t.TenantID, t.UserID}] += t.Amount
	}
	var out []Drift
	for key, acc := range m.accounts {
		if sums[key] != acc.Balance {
			out = append(out, Drift{TenantID: key.tenantID, UserID: key.userID, Balance: acc.Balance, LedgerSum: sums[key]})
		}
	}
	return out, nil
}

func (m *memStore) ledgerFor(userID uuid.UUID) []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Transaction
	for _, t := range m.ledger {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

var errBoom = errors.New("connection refused")

var _ Store = (*memStore)(nil)
