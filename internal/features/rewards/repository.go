// Package rewards: repository.go runs every query against reward_accounts
// and reward_transactions.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/plaza-rewards/internal/common"
)

const accountColumns = `
	id, tenant_id, user_id, last_award_date, streak_count, longest_streak,
	balance, total_earned, total_spent, created_at, updated_at`

// Repository is the PostgreSQL Store.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the reward repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// CreateAccount inserts a zero account. Existing accounts are left alone.
func (r *Repository) CreateAccount(ctx context.Context, tenantID, userID uuid.UUID) error {
	query := `
		INSERT INTO reward_accounts (tenant_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, tenantID, userID); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount returns common.ErrAccountNotFound when there is no row.
func (r *Repository) GetAccount(ctx context.Context, tenantID, userID uuid.UUID) (*Account, error) {
	query := `SELECT` + accountColumns + `
		FROM reward_accounts
		WHERE tenant_id = $1 AND user_id = $2
	`
	acc, err := scanAccount(r.db.QueryRow(ctx, query, tenantID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account (user_id=%s): %w", userID, common.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("read account (user_id=%s): %w", userID, err)
	}
	return acc, nil
}

// EarnedBetween sums positive ledger amounts with created_at in [from, to).
func (r *Repository) EarnedBetween(ctx context.Context, tenantID, userID uuid.UUID, from, to time.Time) (int64, error) {
	return earnedBetween(ctx, r.db, tenantID, userID, from, to)
}

// AdvanceDaily is the compare-and-set of the daily award. The predicate on
// last_award_date is evaluated under the row lock taken by UPDATE, so of
// several concurrent callers for the same day exactly one gets a row back.
func (r *Repository) AdvanceDaily(ctx context.Context, tenantID, userID uuid.UUID, adv Advance) (int64, bool, error) {
	query := `
		UPDATE reward_accounts
		SET last_award_date = $3::date,
		    streak_count = $4,
		    longest_streak = GREATEST(longest_streak, $4),
		    balance = balance + $5,
		    total_earned = total_earned + $5,
		    updated_at = NOW()
		WHERE tenant_id = $1 AND user_id = $2
		  AND last_award_date IS DISTINCT FROM $3::date
		RETURNING balance
	`
	var balance int64
	err := r.db.QueryRow(ctx, query, tenantID, userID, adv.Day, adv.Streak, adv.Amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("advance daily: %w", err)
	}
	return balance, true, nil
}

// AppendTransaction inserts a ledger entry and fills ID and CreatedAt.
func (r *Repository) AppendTransaction(ctx context.Context, t *Transaction) error {
	return appendTransaction(ctx, r.db, t)
}

// ListTransactions returns the newest entries first.
func (r *Repository) ListTransactions(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*Transaction, error) {
	query := `
		SELECT id, tenant_id, user_id, amount, balance_after, kind, description, created_at
		FROM reward_transactions
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var t Transaction
		var kind string
		if err := rows.Scan(
			&t.ID, &t.TenantID, &t.UserID, &t.Amount, &t.BalanceAfter,
			&kind, &t.Description, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Kind = Kind(kind)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return out, nil
}

// Spend deducts amount and records a shop_purchase entry in one DB
// transaction. The row is locked FOR UPDATE so concurrent spends serialise.
func (r *Repository) Spend(ctx context.Context, tenantID, userID uuid.UUID, amount int64, description string) (*Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM reward_accounts
		WHERE tenant_id = $1 AND user_id = $2
		FOR UPDATE
	`, tenantID, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account (user_id=%s): %w", userID, common.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("lock account: %w", err)
	}
	if balance < amount {
		return nil, fmt.Errorf("need %d, have %d: %w", amount, balance, common.ErrInsufficientBalance)
	}

	acc, err := scanAccount(tx.QueryRow(ctx, `
		UPDATE reward_accounts
		SET balance = balance - $3, total_spent = total_spent + $3, updated_at = NOW()
		WHERE tenant_id = $1 AND user_id = $2
		RETURNING`+accountColumns, tenantID, userID, amount))
	if err != nil {
		return nil, fmt.Errorf("deduct: %w", err)
	}

	if err := appendTransaction(ctx, tx, &Transaction{
		TenantID:     tenantID,
		UserID:       userID,
		Amount:       -amount,
		BalanceAfter: acc.Balance,
		Kind:         KindShopPurchase,
		Description:  description,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return acc, nil
}

// Grant clamps the request to the remaining daily cap and applies it with
// its ledger entry in one DB transaction.
func (r *Repository) Grant(ctx context.Context, req GrantRequest) (int64, int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM reward_accounts
		WHERE tenant_id = $1 AND user_id = $2
		FOR UPDATE
	`, req.TenantID, req.UserID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("account (user_id=%s): %w", req.UserID, common.ErrAccountNotFound)
		}
		return 0, 0, fmt.Errorf("lock account: %w", err)
	}

	earned, err := earnedBetween(ctx, tx, req.TenantID, req.UserID, req.DayStart, req.DayEnd)
	if err != nil {
		return 0, 0, err
	}
	granted := min(req.Amount, capRemaining(req.Cap, earned))
	if granted == 0 {
		return 0, balance, nil
	}

	err = tx.QueryRow(ctx, `
		UPDATE reward_accounts
		SET balance = balance + $3, total_earned = total_earned + $3, updated_at = NOW()
		WHERE tenant_id = $1 AND user_id = $2
		RETURNING balance
	`, req.TenantID, req.UserID, granted).Scan(&balance)
	if err != nil {
		return 0, 0, fmt.Errorf("credit: %w", err)
	}

	if err := appendTransaction(ctx, tx, &Transaction{
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		Amount:       granted,
		BalanceAfter: balance,
		Kind:         req.Kind,
		Description:  req.Description,
	}); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return granted, balance, nil
}

// Drifts lists accounts whose balance differs from the sum of their ledger.
func (r *Repository) Drifts(ctx context.Context) ([]Drift, error) {
	query := `
		SELECT a.tenant_id, a.user_id, a.balance, COALESCE(SUM(t.amount), 0)::BIGINT AS ledger_sum
		FROM reward_accounts a
		LEFT JOIN reward_transactions t
		       ON t.tenant_id = a.tenant_id AND t.user_id = a.user_id
		GROUP BY a.id
		HAVING a.balance <> COALESCE(SUM(t.amount), 0)
		ORDER BY a.tenant_id, a.user_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query drifts: %w", err)
	}
	defer rows.Close()

	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.TenantID, &d.UserID, &d.Balance, &d.LedgerSum); err != nil {
			return nil, fmt.Errorf("scan drift: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read drifts: %w", err)
	}
	return out, nil
}

// querier is what both *pgxpool.Pool and pgx.Tx offer.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func earnedBetween(ctx context.Context, q querier, tenantID, userID uuid.UUID, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM reward_transactions
		WHERE tenant_id = $1 AND user_id = $2 AND amount > 0
		  AND created_at >= $3 AND created_at < $4
	`
	var earned int64
	if err := q.QueryRow(ctx, query, tenantID, userID, from, to).Scan(&earned); err != nil {
		return 0, fmt.Errorf("sum earned: %w", err)
	}
	return earned, nil
}

func appendTransaction(ctx context.Context, q querier, t *Transaction) error {
	query := `
		INSERT INTO reward_transactions (tenant_id, user_id, amount, balance_after, kind, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query,
		t.TenantID, t.UserID, t.Amount, t.BalanceAfter, string(t.Kind), t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var last pgtype.Date
	err := row.Scan(
		&a.ID, &a.TenantID, &a.UserID, &last, &a.StreakCount, &a.LongestStreak,
		&a.Balance, &a.TotalEarned, &a.TotalSpent, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		day := last.Time.Format(common.DayLayout)
		a.LastAwardDate = &day
	}
	return &a, nil
}
