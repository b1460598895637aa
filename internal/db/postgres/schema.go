package postgres

// Migrations is the embedded schema, kept in code to simplify deploys.
var Migrations = []Migration{
	{1, migration001RewardAccounts},
	{2, migration002RewardTransactions},
	{3, migration003Admin},
}

var migration001RewardAccounts = `
CREATE TABLE IF NOT EXISTS reward_accounts (
    id BIGSERIAL PRIMARY KEY,
    tenant_id UUID NOT NULL,
    user_id UUID NOT NULL,
    last_award_date DATE,
    streak_count INTEGER NOT NULL DEFAULT 0 CHECK (streak_count >= 0),
    longest_streak INTEGER NOT NULL DEFAULT 0,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    total_earned BIGINT NOT NULL DEFAULT 0,
    total_spent BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (tenant_id, user_id)
);
`

var migration002RewardTransactions = `
CREATE TABLE IF NOT EXISTS reward_transactions (
    id BIGSERIAL PRIMARY KEY,
    tenant_id UUID NOT NULL,
    user_id UUID NOT NULL,
    amount BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    kind VARCHAR(32) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    FOREIGN KEY (tenant_id, user_id) REFERENCES reward_accounts (tenant_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_reward_transactions_owner_created
    ON reward_transactions (tenant_id, user_id, created_at DESC);
`

var migration003Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    tenant_id UUID NOT NULL,
    staff_id UUID NOT NULL,
    session_token VARCHAR(255) UNIQUE NOT NULL,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_staff ON admin_sessions (staff_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    tenant_id UUID NOT NULL,
    staff_id UUID NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_tenant
    ON admin_login_attempts (tenant_id, attempt_time DESC);
`
