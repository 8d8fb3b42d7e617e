package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
	"github.com/medibook/booking-api/internal/service/payment"
	"github.com/medibook/booking-api/pkg/logger"
	"github.com/medibook/booking-api/pkg/metrics"
)

type ReconcilerConfig struct {
	SweepInterval   time.Duration
	StaleAfter      time.Duration
	ExpireOpenAfter time.Duration
	BatchSize       int
}

// Reconciler periodically re-reads gateway status for intents that have
// gone quiet and expires intents that stayed open past their deadline.
// It is the safety net behind the client-side poller: a patient who
// closes the app mid-payment still gets their intent settled or expired.
type Reconciler struct {
	repo       repository.PaymentRepository
	paymentSvc *payment.Service
	config     ReconcilerConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewReconciler(
	repo repository.PaymentRepository,
	paymentSvc *payment.Service,
	config ReconcilerConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Reconciler {
	if config.SweepInterval <= 0 {
		panic("SweepInterval must be greater than 0")
	}
	if config.StaleAfter <= 0 {
		panic("StaleAfter must be greater than 0")
	}
	if config.ExpireOpenAfter <= 0 {
		panic("ExpireOpenAfter must be greater than 0")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}

	return &Reconciler{
		repo:       repo,
		paymentSvc: paymentSvc,
		config:     config,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	r.logger.Info("starting payment reconciler")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down payment reconciler")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error(err, "reconciliation sweep failed")
			}
		}
	}
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) error {
	timer := prometheus.NewTimer(r.metrics.SweepLatency)
	defer timer.ObserveDuration()
	r.metrics.SweepRuns.Inc()

	cutoff := r.now().Add(-r.config.StaleAfter)
	intents, err := r.repo.ListStaleOpenIntents(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list stale intents: %w", err)
	}
	r.metrics.StaleIntents.Set(float64(len(intents)))

	for _, intent := range intents {
		if err := r.reconcile(ctx, intent); err != nil {
			r.logger.Error(err, "failed to reconcile intent",
				"intent_id", intent.ID.String(),
				"order_id", intent.OrderID)
			continue
		}
	}

	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, intent *model.PaymentIntent) error {
	deadline := intent.CreatedAt.Add(r.config.ExpireOpenAfter)
	if r.now().After(deadline) {
		updated, err := r.paymentSvc.Expire(ctx, intent)
		if err != nil {
			return fmt.Errorf("failed to expire intent: %w", err)
		}
		if updated.Status == model.PaymentStatusExpired {
			r.metrics.SweepExpired.Inc()
		}
		return nil
	}

	if _, err := r.paymentSvc.SyncStatus(ctx, intent.ID); err != nil {
		return fmt.Errorf("failed to sync intent status: %w", err)
	}
	return nil
}
