package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/email"
	"github.com/medibook/booking-api/internal/gateway"
	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
	"github.com/medibook/booking-api/internal/service/appointment"
	"github.com/medibook/booking-api/internal/service/availability"
	"github.com/medibook/booking-api/internal/service/payment"
	"github.com/medibook/booking-api/pkg/logger"
	"github.com/medibook/booking-api/pkg/metrics"
)

// Shared across tests because promauto registers into the default
// registry and a second registration of the same names panics.
var testMetrics = metrics.NewMetrics("booking_test", "worker")

type stubProviderRepo struct {
	provider *model.Provider
}

func (s *stubProviderRepo) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	return s.provider, nil
}

func (s *stubProviderRepo) List(ctx context.Context, filter *model.ProviderFilter) ([]*model.Provider, error) {
	return []*model.Provider{s.provider}, nil
}

type stubAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func newStubAppointmentRepo() *stubAppointmentRepo {
	return &stubAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (s *stubAppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = a
	return nil
}

func (s *stubAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *stubAppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	a.CancelReason = cancelReason
	return nil
}

func (s *stubAppointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

func (s *stubAppointmentRepo) BookedTimes(ctx context.Context, providerID uuid.UUID, from, to string) (map[string][]string, error) {
	return map[string][]string{}, nil
}

func (s *stubAppointmentRepo) Exists(ctx context.Context, providerID uuid.UUID, date, timeOfDay string) (bool, error) {
	return false, nil
}

type stubPaymentRepo struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*model.PaymentIntent
}

func newStubPaymentRepo() *stubPaymentRepo {
	return &stubPaymentRepo{intents: make(map[uuid.UUID]*model.PaymentIntent)}
}

func (s *stubPaymentRepo) CreateIntent(ctx context.Context, intent *model.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.intents {
		if existing.AppointmentID == intent.AppointmentID && !existing.Status.Terminal() {
			return repository.ErrDuplicate
		}
	}
	copied := *intent
	s.intents[intent.ID] = &copied
	return nil
}

func (s *stubPaymentRepo) SetChargeResult(ctx context.Context, id uuid.UUID, payURL, qrCodeURL string, status model.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok || intent.Status.Terminal() {
		return repository.ErrNotFound
	}
	intent.PayURL = payURL
	intent.QRCodeURL = qrCodeURL
	intent.Status = status
	return nil
}

func (s *stubPaymentRepo) GetIntent(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *intent
	return &copied, nil
}

func (s *stubPaymentRepo) GetIntentByOrderID(ctx context.Context, orderID string) (*model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, intent := range s.intents {
		if intent.OrderID == orderID {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubPaymentRepo) GetOpenIntent(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, intent := range s.intents {
		if intent.AppointmentID == appointmentID && !intent.Status.Terminal() {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubPaymentRepo) TransitionStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok || intent.Status.Terminal() {
		return repository.ErrNotFound
	}
	intent.Status = status
	return nil
}

func (s *stubPaymentRepo) ListStaleOpenIntents(ctx context.Context, cutoff time.Time, limit int) ([]*model.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []*model.PaymentIntent
	for _, intent := range s.intents {
		if !intent.Status.Terminal() && intent.UpdatedAt.Before(cutoff) {
			copied := *intent
			stale = append(stale, &copied)
			if len(stale) == limit {
				break
			}
		}
	}
	return stale, nil
}

type stubGateway struct {
	mu          sync.Mutex
	status      model.PaymentStatus
	statusCalls int
	failOrders  map[string]bool
}

func (g *stubGateway) Charge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	return &gateway.ChargeResult{PayURL: "https://gateway.example/pay/" + req.OrderID}, nil
}

func (g *stubGateway) Status(ctx context.Context, orderID string) (model.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.failOrders[orderID] {
		return "", errors.New("gateway unavailable")
	}
	return g.status, nil
}

type stubBroker struct {
	mu       sync.Mutex
	messages map[string]int
}

func (b *stubBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messages == nil {
		b.messages = make(map[string]int)
	}
	b.messages[channel]++
	return nil
}

func (b *stubBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *stubBroker) Close() error { return nil }

type sweepFixture struct {
	reconciler *Reconciler
	repo       *stubPaymentRepo
	aptRepo    *stubAppointmentRepo
	gateway    *stubGateway
	apt        *model.Appointment
	now        time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()

	provider := &model.Provider{
		Base:          model.Base{ID: uuid.New()},
		Name:          "dr. Sari",
		Timezone:      "Asia/Jakarta",
		SlotMinutes:   60,
		WorkdayStart:  "08:00",
		WorkdayEnd:    "17:00",
		ConsultFeeIDR: 150000,
	}
	apt := &model.Appointment{
		Base:       model.Base{ID: uuid.New()},
		ProviderID: provider.ID,
		Date:       "2026-09-20",
		Time:       "09:00",
		AmountIDR:  provider.ConsultFeeIDR,
		Status:     model.AppointmentStatusPendingPayment,
	}

	aptRepo := newStubAppointmentRepo()
	require.NoError(t, aptRepo.Create(context.Background(), apt))
	providerRepo := &stubProviderRepo{provider: provider}

	availabilitySvc := availability.NewService(providerRepo, aptRepo, nil)
	appointmentSvc := appointment.NewService(aptRepo, providerRepo, availabilitySvc, nil)

	repo := newStubPaymentRepo()
	gw := &stubGateway{status: model.PaymentStatusPending}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	paymentSvc := payment.NewService(repo, appointmentSvc, gw, &stubBroker{}, email.NoopService{}, nil, log.Zerolog())

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	reconciler := NewReconciler(repo, paymentSvc, ReconcilerConfig{
		SweepInterval:   time.Minute,
		StaleAfter:      5 * time.Minute,
		ExpireOpenAfter: 30 * time.Minute,
		BatchSize:       10,
	}, log, testMetrics).WithClock(func() time.Time { return now })

	return &sweepFixture{
		reconciler: reconciler,
		repo:       repo,
		aptRepo:    aptRepo,
		gateway:    gw,
		apt:        apt,
		now:        now,
	}
}

func (f *sweepFixture) seedIntent(t *testing.T, age time.Duration, status model.PaymentStatus) *model.PaymentIntent {
	t.Helper()

	intent := &model.PaymentIntent{
		Base:          model.Base{ID: uuid.New(), CreatedAt: f.now.Add(-age), UpdatedAt: f.now.Add(-age)},
		AppointmentID: f.apt.ID,
		OrderID:       "INV-" + uuid.NewString()[:8],
		AmountIDR:     f.apt.AmountIDR,
		Channel:       model.PaymentChannelRedirect,
		Status:        status,
	}
	require.NoError(t, f.repo.CreateIntent(context.Background(), intent))
	return intent
}

func TestSweepSyncsStaleIntent(t *testing.T) {
	f := newSweepFixture(t)
	f.gateway.status = model.PaymentStatusCompleted

	intent := f.seedIntent(t, 10*time.Minute, model.PaymentStatusPending)

	require.NoError(t, f.reconciler.Sweep(context.Background()))

	stored, err := f.repo.GetIntent(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, stored.Status)
	assert.Equal(t, 1, f.gateway.statusCalls)

	apt, err := f.aptRepo.Get(context.Background(), f.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)
}

func TestSweepExpiresIntentPastDeadline(t *testing.T) {
	f := newSweepFixture(t)

	intent := f.seedIntent(t, time.Hour, model.PaymentStatusCreated)

	require.NoError(t, f.reconciler.Sweep(context.Background()))

	stored, err := f.repo.GetIntent(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusExpired, stored.Status)
	assert.Equal(t, 0, f.gateway.statusCalls, "expiry should not consult the gateway")
}

func TestSweepIgnoresFreshIntents(t *testing.T) {
	f := newSweepFixture(t)

	intent := f.seedIntent(t, time.Minute, model.PaymentStatusPending)

	require.NoError(t, f.reconciler.Sweep(context.Background()))

	stored, err := f.repo.GetIntent(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, stored.Status)
	assert.Equal(t, 0, f.gateway.statusCalls)
}

func TestSweepContinuesAfterIntentFailure(t *testing.T) {
	f := newSweepFixture(t)
	f.gateway.status = model.PaymentStatusCompleted

	// One intent keeps failing at the gateway; the sweep still
	// settles the healthy one.
	broken := &model.PaymentIntent{
		Base:          model.Base{ID: uuid.New(), CreatedAt: f.now.Add(-10 * time.Minute), UpdatedAt: f.now.Add(-10 * time.Minute)},
		AppointmentID: uuid.New(),
		OrderID:       "INV-" + uuid.NewString()[:8],
		AmountIDR:     f.apt.AmountIDR,
		Channel:       model.PaymentChannelRedirect,
		Status:        model.PaymentStatusPending,
	}
	require.NoError(t, f.repo.CreateIntent(context.Background(), broken))
	f.gateway.failOrders = map[string]bool{broken.OrderID: true}
	healthy := f.seedIntent(t, 10*time.Minute, model.PaymentStatusPending)

	require.NoError(t, f.reconciler.Sweep(context.Background()))

	stored, err := f.repo.GetIntent(context.Background(), healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, stored.Status)

	stuck, err := f.repo.GetIntent(context.Background(), broken.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, stuck.Status)
}

func TestNewReconcilerRejectsBadConfig(t *testing.T) {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	assert.Panics(t, func() {
		NewReconciler(newStubPaymentRepo(), nil, ReconcilerConfig{
			SweepInterval:   0,
			StaleAfter:      time.Minute,
			ExpireOpenAfter: time.Minute,
			BatchSize:       1,
		}, log, testMetrics)
	})
}
