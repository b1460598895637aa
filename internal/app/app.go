// Package app initializes every component of the service.
// app.go is the assembly point: DB pool, migrations, repositories,
// services, handlers, the HTTP server and the job scheduler.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/plaza-rewards/internal/api"
	"serotonyl.ru/plaza-rewards/internal/config"
	"serotonyl.ru/plaza-rewards/internal/db/postgres"
	"serotonyl.ru/plaza-rewards/internal/features/admin"
	"serotonyl.ru/plaza-rewards/internal/features/rewards"
	"serotonyl.ru/plaza-rewards/internal/jobs"
)

// App holds the running components.
type App struct {
	Server    *api.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
}

// New creates and initializes the application.
// Order matters: components depend on each other.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Database ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool, postgres.Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// === 2. Repositories ===
	rewardRepo := rewards.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 3. Services ===
	rules := rewards.NewRules(cfg.RewardDailyBase, cfg.RewardStreakBonuses, cfg.RewardDailyCap)
	rewardService := rewards.NewService(rewardRepo, rules, cfg.Location())
	adminService := admin.NewService(adminRepo, cfg.AdminPasswordHash, cfg.AdminSessionTTL)

	// === 4. Handlers ===
	rewardHandler := rewards.NewHandler(rewardService)
	adminHandler := admin.NewHandler(adminService, rewardService, cfg.FeatureGrantsEnabled)

	// === 5. HTTP server ===
	server := api.NewServer(cfg, pool, rewardHandler, adminHandler)

	// === 6. Scheduler ===
	scheduler, err := jobs.NewScheduler(cfg.ReconcileCron, cfg.Location(), rewardService)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &App{
		Server:    server,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}
