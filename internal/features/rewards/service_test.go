package rewards

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/plaza-rewards/internal/common"
)

type fixture struct {
	svc      *Service
	store    *memStore
	clock    *testClock
	tenantID uuid.UUID
	userID   uuid.UUID
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 10, 15, 10, 0, 0, 0, loc)}
	store := newMemStore(clock.Now)
	svc := NewService(store, defaultRules(), loc)
	svc.SetClock(clock.Now)

	f := &fixture{svc: svc, store: store, clock: clock, tenantID: uuid.New(), userID: uuid.New()}
	_, err = svc.ProvisionAccount(context.Background(), f.tenantID, f.userID)
	require.NoError(t, err)
	return f
}

// seed puts the account into a given streak state.
func (f *fixture) seed(lastAward string, streak int, balance int64) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	acc := f.store.accounts[accountKey{f.tenantID, f.userID}]
	acc.LastAwardDate = &lastAward
	acc.StreakCount = streak
	acc.LongestStreak = streak
	acc.Balance = balance
}

func (f *fixture) daily(t *testing.T) *DailyResult {
	t.Helper()
	res, err := f.svc.RecordDailyEngagement(context.Background(), f.tenantID, f.userID)
	require.NoError(t, err)
	return res
}

func TestRecordDailyEngagement_FirstAward(t *testing.T) {
	f := newFixture(t)

	res := f.daily(t)
	assert.True(t, res.IsNewDay)
	assert.Equal(t, int64(5), res.Awarded)
	assert.Equal(t, 1, res.Streak)
	assert.Zero(t, res.StreakBonus)
	assert.Equal(t, int64(5), res.NewBalance)

	acc, err := f.svc.GetAccount(context.Background(), f.tenantID, f.userID)
	require.NoError(t, err)
	require.NotNil(t, acc.LastAwardDate)
	assert.Equal(t, "2026-10-15", *acc.LastAwardDate)
	assert.Equal(t, int64(5), acc.TotalEarned)

	ledger := f.store.ledgerFor(f.userID)
	require.Len(t, ledger, 1)
	assert.Equal(t, KindDailyLogin, ledger[0].Kind)
	assert.Equal(t, int64(5), ledger[0].BalanceAfter)
	assert.Equal(t, "Daily login - Day 1", ledger[0].Description)
}

func TestRecordDailyEngagement_MilestoneBonus(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-10-14", 6, 40)

	res := f.daily(t)
	assert.True(t, res.IsNewDay)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(20), res.StreakBonus)
	assert.Equal(t, int64(25), res.Awarded)
	assert.Equal(t, int64(65), res.NewBalance)
}

func TestRecordDailyEngagement_BonusTrimmedByCap(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-10-14", 6, 0)

	g, err := f.svc.Grant(context.Background(), f.tenantID, f.userID, KindAchievement, 90, "")
	require.NoError(t, err)
	require.Equal(t, int64(90), g.Granted)

	res := f.daily(t)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(5), res.StreakBonus)
	assert.Equal(t, int64(10), res.Awarded)
	assert.Equal(t, int64(100), res.NewBalance)
}

func TestRecordDailyEngagement_CapReachedStillAdvancesStreak(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-10-14", 3, 0)

	_, err := f.svc.Grant(context.Background(), f.tenantID, f.userID, KindAdminGrant, 100, "")
	require.NoError(t, err)

	res := f.daily(t)
	assert.True(t, res.IsNewDay)
	assert.Zero(t, res.Awarded)
	assert.Equal(t, 4, res.Streak)

	// Nothing earned means nothing in the ledger for the daily login.
	for _, tx := range f.store.ledgerFor(f.userID) {
		assert.NotEqual(t, KindDailyLogin, tx.Kind)
	}

	again := f.daily(t)
	assert.False(t, again.IsNewDay)
	assert.Equal(t, 4, again.Streak)
}

func TestRecordDailyEngagement_AlreadyAwardedToday(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-10-15", 4, 30)

	res := f.daily(t)
	assert.False(t, res.IsNewDay)
	assert.Zero(t, res.Awarded)
	assert.Zero(t, res.StreakBonus)
	assert.Equal(t, 4, res.Streak)
	assert.Equal(t, int64(30), res.NewBalance)
	assert.Zero(t, f.store.advanceCalls)
}

func TestRecordDailyEngagement_GapResetsStreak(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-10-12", 12, 100)

	res := f.daily(t)
	assert.True(t, res.IsNewDay)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(5), res.Awarded)

	acc, err := f.svc.GetAccount(context.Background(), f.tenantID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 12, acc.LongestStreak)
}

func TestRecordDailyEngagement_Idempotent(t *testing.T) {
	f := newFixture(t)

	first := f.daily(t)
	second := f.daily(t)
	third := f.daily(t)

	assert.True(t, first.IsNewDay)
	assert.False(t, second.IsNewDay)
	assert.False(t, third.IsNewDay)
	assert.Equal(t, first.NewBalance, third.NewBalance)
	assert.Len(t, f.store.ledgerFor(f.userID), 1)
}

func TestRecordDailyEngagement_ConsecutiveDays(t *testing.T) {
	f := newFixture(t)

	var total int64
	for day := 1; day <= 7; day++ {
		res := f.daily(t)
		require.True(t, res.IsNewDay, "day %d", day)
		assert.Equal(t, day, res.Streak)
		total += res.Awarded
		f.clock.Add(24 * time.Hour)
	}
	// 7 days of base plus the day-7 milestone.
	assert.Equal(t, int64(7*5+20), total)
}

func TestRecordDailyEngagement_TenantLocalDay(t *testing.T) {
	f := newFixture(t)
	loc := f.clock.Now().Location()
	// 23:30 in Toronto is already the next day in UTC.
	f.clock.now = time.Date(2026, 10, 15, 23, 30, 0, 0, loc)
	f.seed("2026-10-15", 2, 10)

	res := f.daily(t)
	assert.False(t, res.IsNewDay)

	f.clock.Add(time.Hour)
	res = f.daily(t)
	assert.True(t, res.IsNewDay)
	assert.Equal(t, 3, res.Streak)
}

func TestRecordDailyEngagement_ConcurrentCallsPayOnce(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-10-14", 6, 0)

	const callers = 20
	results := make([]*DailyResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.RecordDailyEngagement(context.Background(), f.tenantID, f.userID)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, res := range results {
		require.NotNil(t, res)
		if res.IsNewDay {
			winners++
			assert.Equal(t, int64(25), res.Awarded)
		} else {
			assert.Zero(t, res.Awarded)
		}
	}
	assert.Equal(t, 1, winners)

	acc, err := f.svc.GetAccount(context.Background(), f.tenantID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), acc.Balance)
	assert.Equal(t, 7, acc.StreakCount)
	assert.Len(t, f.store.ledgerFor(f.userID), 1)
}

func TestRecordDailyEngagement_LostRaceReportsWinnerState(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-10-14", 6, 10)

	// Another request commits between our read and our conditional update.
	f.store.beforeAdvance = func() {
		f.store.beforeAdvance = nil
		_, ok, err := f.store.AdvanceDaily(context.Background(), f.tenantID, f.userID, Advance{
			Day: "2026-10-15", Streak: 7, Amount: 25,
		})
		require.NoError(t, err)
		require.True(t, ok)
	}

	res := f.daily(t)
	assert.False(t, res.IsNewDay)
	assert.Zero(t, res.Awarded)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(35), res.NewBalance)
	assert.Empty(t, f.store.ledgerFor(f.userID))
}

func TestRecordDailyEngagement_LostRaceFallsBackToSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seed("2026-10-14", 6, 10)

	f.store.beforeAdvance = func() {
		f.store.beforeAdvance = nil
		_, _, _ = f.store.AdvanceDaily(context.Background(), f.tenantID, f.userID, Advance{
			Day: "2026-10-15", Streak: 7, Amount: 25,
		})
		f.store.mu.Lock()
		f.store.failGet = errBoom
		f.store.mu.Unlock()
	}

	res := f.daily(t)
	assert.False(t, res.IsNewDay)
	assert.Equal(t, 6, res.Streak)
	assert.Equal(t, int64(10), res.NewBalance)
}

func TestRecordDailyEngagement_LedgerFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.store.failAppend = errBoom

	res := f.daily(t)
	assert.True(t, res.IsNewDay)
	assert.Equal(t, int64(5), res.NewBalance)
	assert.Empty(t, f.store.ledgerFor(f.userID))

	drifts, err := f.svc.ReconcileLedger(context.Background())
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, f.userID, drifts[0].UserID)
	assert.Equal(t, int64(5), drifts[0].Balance)
	assert.Zero(t, drifts[0].LedgerSum)
}

func TestRecordDailyEngagement_AccountNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordDailyEngagement(context.Background(), f.tenantID, uuid.New())
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
	assert.NotErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestRecordDailyEngagement_StoreFailures(t *testing.T) {
	t.Run("read", func(t *testing.T) {
		f := newFixture(t)
		f.store.failGet = errBoom
		_, err := f.svc.RecordDailyEngagement(context.Background(), f.tenantID, f.userID)
		assert.ErrorIs(t, err, common.ErrStoreUnavailable)
		assert.ErrorIs(t, err, errBoom)
	})
	t.Run("earned today", func(t *testing.T) {
		f := newFixture(t)
		f.store.failEarned = errBoom
		_, err := f.svc.RecordDailyEngagement(context.Background(), f.tenantID, f.userID)
		assert.ErrorIs(t, err, common.ErrStoreUnavailable)
		assert.Zero(t, f.store.advanceCalls)
	})
}

func TestProvisionAccount_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.daily(t)

	acc, err := f.svc.ProvisionAccount(context.Background(), f.tenantID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), acc.Balance)
	assert.Nil(t, mustAccount(t, f, uuid.New()))
}

func mustAccount(t *testing.T, f *fixture, userID uuid.UUID) *Account {
	t.Helper()
	acc, err := f.svc.GetAccount(context.Background(), f.tenantID, userID)
	if err != nil {
		require.ErrorIs(t, err, common.ErrAccountNotFound)
		return nil
	}
	return acc
}

func TestAccountsAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	f.daily(t)

	otherTenant := uuid.New()
	_, err := f.svc.GetAccount(context.Background(), otherTenant, f.userID)
	assert.ErrorIs(t, err, common.ErrAccountNotFound)

	_, err = f.svc.ProvisionAccount(context.Background(), otherTenant, f.userID)
	require.NoError(t, err)
	res, err := f.svc.RecordDailyEngagement(context.Background(), otherTenant, f.userID)
	require.NoError(t, err)
	assert.True(t, res.IsNewDay)
	assert.Equal(t, int64(5), res.NewBalance)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.daily(t)
		f.clock.Add(24 * time.Hour)
	}
	_, err := f.svc.Spend(context.Background(), f.tenantID, f.userID, 4, "")
	require.NoError(t, err)

	txs, err := f.svc.History(context.Background(), f.tenantID, f.userID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	assert.Equal(t, KindShopPurchase, txs[0].Kind)
	assert.Equal(t, int64(-4), txs[0].Amount)
	assert.Equal(t, "Daily login - Day 3", txs[1].Description)

	txs, err = f.svc.History(context.Background(), f.tenantID, f.userID, 2)
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	_, err = f.svc.History(context.Background(), f.tenantID, uuid.New(), 10)
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestSpend(t *testing.T) {
	f := newFixture(t)
	f.daily(t)

	_, err := f.svc.Spend(context.Background(), f.tenantID, f.userID, 0, "")
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = f.svc.Spend(context.Background(), f.tenantID, f.userID, 6, "")
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
	assert.NotErrorIs(t, err, common.ErrStoreUnavailable)

	acc, err := f.svc.Spend(context.Background(), f.tenantID, f.userID, 5, "  ")
	require.NoError(t, err)
	assert.Zero(t, acc.Balance)
	assert.Equal(t, int64(5), acc.TotalSpent)
	assert.Equal(t, int64(5), acc.TotalEarned)

	ledger := f.store.ledgerFor(f.userID)
	last := ledger[len(ledger)-1]
	assert.Equal(t, "Plaza shop purchase", last.Description)
	assert.Zero(t, last.BalanceAfter)
}

func TestSpend_DoesNotFreeDailyCap(t *testing.T) {
	f := newFixture(t)
	g, err := f.svc.Grant(context.Background(), f.tenantID, f.userID, KindAdminGrant, 100, "")
	require.NoError(t, err)
	require.Equal(t, int64(100), g.Granted)

	_, err = f.svc.Spend(context.Background(), f.tenantID, f.userID, 60, "hat")
	require.NoError(t, err)

	g, err = f.svc.Grant(context.Background(), f.tenantID, f.userID, KindAdminGrant, 10, "")
	require.NoError(t, err)
	assert.Zero(t, g.Granted)
	assert.Equal(t, int64(40), g.NewBalance)
}

func TestGrant(t *testing.T) {
	f := newFixture(t)
	f.daily(t)

	_, err := f.svc.Grant(context.Background(), f.tenantID, f.userID, KindAchievement, -3, "")
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
	_, err = f.svc.Grant(context.Background(), f.tenantID, f.userID, KindDailyLogin, 10, "")
	assert.ErrorIs(t, err, common.ErrInvalidKind)

	g, err := f.svc.Grant(context.Background(), f.tenantID, f.userID, KindAchievement, 200, "First purchase")
	require.NoError(t, err)
	assert.Equal(t, int64(200), g.Requested)
	assert.Equal(t, int64(95), g.Granted)
	assert.Equal(t, int64(100), g.NewBalance)

	g, err = f.svc.Grant(context.Background(), f.tenantID, f.userID, KindAdminGrant, 1, "")
	require.NoError(t, err)
	assert.Zero(t, g.Granted)

	// A new day has a fresh cap.
	f.clock.Add(24 * time.Hour)
	g, err = f.svc.Grant(context.Background(), f.tenantID, f.userID, KindAdminGrant, 1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.Granted)

	ledger := f.store.ledgerFor(f.userID)
	assert.Equal(t, "Grant: admin_grant", ledger[len(ledger)-1].Description)
	assert.Equal(t, "First purchase", ledger[1].Description)

	_, err = f.svc.Grant(context.Background(), f.tenantID, uuid.New(), KindAdminGrant, 1, "")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestReconcileLedger_Clean(t *testing.T) {
	f := newFixture(t)
	f.daily(t)
	_, err := f.svc.Spend(context.Background(), f.tenantID, f.userID, 2, "")
	require.NoError(t, err)

	drifts, err := f.svc.ReconcileLedger(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestToday(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "2026-10-15", f.svc.Today())
	assert.Equal(t, int64(100), f.svc.Rules().DailyCap)
}
