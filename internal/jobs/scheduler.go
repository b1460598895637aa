// Package jobs runs background tasks on a cron schedule.
// scheduler.go sets up the nightly ledger reconciliation.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/plaza-rewards/internal/features/rewards"
)

// Reconciler compares balances with their ledgers. rewards.Service implements it.
type Reconciler interface {
	ReconcileLedger(ctx context.Context) ([]rewards.Drift, error)
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron       *cron.Cron
	schedule   cron.Schedule
	spec       string
	reconciler Reconciler
}

// NewScheduler creates the scheduler in the tenant timezone, so "30 2 * * *"
// runs at 02:30 local time. A malformed expression is an error.
func NewScheduler(spec string, loc *time.Location, reconciler Reconciler) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("RECONCILE_CRON %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(log.StandardLogger())),
			cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger())),
		),
	)

	return &Scheduler{cron: c, schedule: schedule, spec: spec, reconciler: reconciler}, nil
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.RunReconcile(ctx)
	}))

	s.cron.Start()
	log.WithFields(log.Fields{
		"reconcile": s.spec,
		"location":  s.cron.Location().String(),
	}).Info("Job scheduler started")
}

// RunReconcile runs one reconciliation pass.
func (s *Scheduler) RunReconcile(ctx context.Context) {
	log.Info("[CRON] Ledger reconciliation")
	drifts, err := s.reconciler.ReconcileLedger(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Reconciliation failed")
		return
	}
	if len(drifts) > 0 {
		log.WithField("drifts", len(drifts)).Warn("[CRON] Balances disagree with the ledger")
	}
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Job scheduler stopped")
}
