package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/model"
)

// statusScript serves GET /payments/{id} from a fixed sequence of
// responses, then repeats the last one.
type statusScript struct {
	intent   model.PaymentIntent
	statuses []model.PaymentStatus
	fail     map[int]bool
	calls    int32
}

func (s *statusScript) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := int(atomic.AddInt32(&s.calls, 1))
		if s.fail[call] {
			writeError(w, http.StatusInternalServerError, "upstream hiccup")
			return
		}
		idx := call - 1
		if idx >= len(s.statuses) {
			idx = len(s.statuses) - 1
		}
		intent := s.intent
		intent.Status = s.statuses[idx]
		writeEnvelope(w, http.StatusOK, intent)
	}))
}

func newScript(statuses ...model.PaymentStatus) *statusScript {
	return &statusScript{
		intent: model.PaymentIntent{
			Base:          model.Base{ID: uuid.New()},
			AppointmentID: uuid.New(),
			OrderID:       "INV-1",
			AmountIDR:     150000,
			Channel:       model.PaymentChannelQR,
		},
		statuses: statuses,
		fail:     map[int]bool{},
	}
}

func reconcileClient(t *testing.T, srv *httptest.Server, maxAttempts int) *Client {
	t.Helper()
	return New(Config{
		BaseURL:         srv.URL,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: maxAttempts,
	})
}

func TestReconcileStopsOnTerminalStatus(t *testing.T) {
	script := newScript(
		model.PaymentStatusPending,
		model.PaymentStatusPending,
		model.PaymentStatusCompleted,
	)
	srv := script.server()
	defer srv.Close()

	c := reconcileClient(t, srv, 10)
	start := script.intent
	start.Status = model.PaymentStatusCreated

	outcome, err := c.Reconcile(context.Background(), &start)
	require.NoError(t, err)
	assert.False(t, outcome.Inconclusive)
	assert.Equal(t, model.PaymentStatusCompleted, outcome.Intent.Status)
	assert.Equal(t, 3, outcome.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&script.calls),
		"polling must stop immediately on a terminal status")
}

func TestReconcileBudgetExhaustedIsInconclusive(t *testing.T) {
	script := newScript(model.PaymentStatusPending)
	srv := script.server()
	defer srv.Close()

	c := reconcileClient(t, srv, 10)
	start := script.intent
	start.Status = model.PaymentStatusPending

	outcome, err := c.Reconcile(context.Background(), &start)
	require.NoError(t, err)
	assert.True(t, outcome.Inconclusive, "budget exhaustion is inconclusive, not a failure")
	assert.Equal(t, 10, outcome.Attempts)
	assert.EqualValues(t, 10, atomic.LoadInt32(&script.calls), "no call past the budget")
	assert.Equal(t, model.PaymentStatusPending, outcome.Intent.Status)
}

func TestReconcileTransientErrorsKeepPolling(t *testing.T) {
	script := newScript(
		model.PaymentStatusPending,
		model.PaymentStatusPending,
		model.PaymentStatusPending,
		model.PaymentStatusPending,
		model.PaymentStatusCompleted,
	)
	script.fail[2] = true
	script.fail[3] = true
	srv := script.server()
	defer srv.Close()

	c := reconcileClient(t, srv, 10)
	start := script.intent
	start.Status = model.PaymentStatusPending

	outcome, err := c.Reconcile(context.Background(), &start)
	require.NoError(t, err)
	assert.False(t, outcome.Inconclusive)
	assert.Equal(t, model.PaymentStatusCompleted, outcome.Intent.Status)
	assert.Equal(t, 5, outcome.Attempts, "transport faults spend budget but never abort")
}

func TestReconcileAlreadyTerminalMakesNoCalls(t *testing.T) {
	script := newScript(model.PaymentStatusCompleted)
	srv := script.server()
	defer srv.Close()

	c := reconcileClient(t, srv, 10)
	start := script.intent
	start.Status = model.PaymentStatusFailed

	outcome, err := c.Reconcile(context.Background(), &start)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Attempts)
	assert.EqualValues(t, 0, atomic.LoadInt32(&script.calls))
}

func TestReconcileCancellationStopsPolling(t *testing.T) {
	script := newScript(model.PaymentStatusPending)
	srv := script.server()
	defer srv.Close()

	c := New(Config{
		BaseURL:         srv.URL,
		PollInterval:    5 * time.Millisecond,
		MaxPollAttempts: 1000,
	})
	start := script.intent
	start.Status = model.PaymentStatusPending

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	_, err := c.Reconcile(ctx, &start)
	require.ErrorIs(t, err, context.Canceled)

	calls := atomic.LoadInt32(&script.calls)
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, calls, atomic.LoadInt32(&script.calls),
		"no poll may fire after cancellation")
}

func TestCheckOnceSingleRead(t *testing.T) {
	script := newScript(model.PaymentStatusCompleted)
	srv := script.server()
	defer srv.Close()

	c := reconcileClient(t, srv, 10)
	start := script.intent
	start.Status = model.PaymentStatusPending

	intent, err := c.CheckOnce(context.Background(), &start)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, intent.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&script.calls))
}
