package client

import (
	"context"
	"time"

	"github.com/medibook/booking-api/internal/model"
)

// Outcome is the result of one reconciliation run. Inconclusive is a
// first-class outcome, distinct from failure: the payment may still
// settle through the gateway's server notification after the client
// stops watching.
type Outcome struct {
	Intent       *model.PaymentIntent
	Inconclusive bool
	Attempts     int
}

// Reconcile watches a payment intent until the server reports a
// terminal status or the attempt budget runs out.
//
// The loop only ever reads persisted status: terminal transitions are
// decided server-side, where the polling path and the gateway's
// out-of-band notification converge on one record. Each tick that
// returns CREATED or PENDING keeps polling at the same cadence, and
// so does a transport failure; neither consumes extra budget or
// aborts the run. A terminal status stops the loop immediately.
//
// An exhausted budget yields Inconclusive, not an error. Callers must
// present it as "payment not yet verified" with a manual re-check
// (CheckOnce), never as a failed payment.
//
// The timer is scoped to this call: every exit path, including ctx
// cancellation when the caller navigates away, stops it before
// returning. Cancelling the poll does not cancel the intent, which
// may still resolve server-side.
func (c *Client) Reconcile(ctx context.Context, intent *model.PaymentIntent) (*Outcome, error) {
	if intent.Status.Terminal() {
		return &Outcome{Intent: intent, Attempts: 0}, nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	latest := intent
	for attempt := 1; attempt <= c.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		updated, err := c.PaymentStatus(ctx, intent.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transient fault: keep the cadence, spend the attempt.
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("payment status poll failed")
			continue
		}

		latest = updated
		if updated.Status.Terminal() {
			return &Outcome{Intent: updated, Attempts: attempt}, nil
		}
	}

	return &Outcome{Intent: latest, Inconclusive: true, Attempts: c.maxPollAttempts}, nil
}

// CheckOnce is the manual re-check behind an inconclusive outcome:
// one status read, no loop.
func (c *Client) CheckOnce(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
	return c.PaymentStatus(ctx, intent.ID)
}
