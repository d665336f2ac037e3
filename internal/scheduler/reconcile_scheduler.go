package scheduler

import (
	"context"
	"time"

	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

const sweepTimeout = time.Minute

// Sweeper refreshes every active cart session.
type Sweeper interface {
	RefreshAll(ctx context.Context) error
}

// ReconcileScheduler periodically reconciles open carts against the catalog
// so shoppers see stock changes before they reach checkout.
type ReconcileScheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
}

func NewReconcileScheduler(sweeper Sweeper, spec string) *ReconcileScheduler {
	return &ReconcileScheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper: sweeper,
		spec:    spec,
	}
}

func (s *ReconcileScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		logger.Error("Failed to add cron job for cart reconciliation", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Reconcile scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// RunOnce runs one sweep and logs each session failure. It returns the
// number of failures.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) int {
	started := time.Now()
	err := s.sweeper.RefreshAll(ctx)

	errs := multierr.Errors(err)
	for _, e := range errs {
		logger.Error("Cart reconciliation failed", e)
	}
	logger.Info("Cart reconciliation sweep finished", map[string]interface{}{
		"failures": len(errs),
		"duration": time.Since(started).String(),
	})
	return len(errs)
}

// Stop waits for a running sweep to finish.
func (s *ReconcileScheduler) Stop() {
	logger.Info("Stopping reconcile scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Reconcile scheduler stopped")
}
