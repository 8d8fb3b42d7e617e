package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-api/internal/email"
	"github.com/medibook/booking-api/internal/gateway"
	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
	"github.com/medibook/booking-api/internal/service/appointment"
	apperrors "github.com/medibook/booking-api/pkg/errors"
	"github.com/medibook/booking-api/pkg/messaging"
	"github.com/medibook/booking-api/pkg/metrics"
)

// Service owns the payment-intent lifecycle. Intent creation is
// idempotent per appointment while a non-terminal intent exists, and
// status only ever advances from what the gateway reports — the service
// never concludes success or failure on its own.
type Service struct {
	repo           repository.PaymentRepository
	appointmentSvc *appointment.Service
	gateway        gateway.Gateway
	broker         messaging.Broker
	emailSvc       email.Service
	metrics        *metrics.Metrics
	logger         *zerolog.Logger
}

func NewService(repo repository.PaymentRepository, appointmentSvc *appointment.Service,
	gw gateway.Gateway, broker messaging.Broker, emailSvc email.Service,
	m *metrics.Metrics, logger *zerolog.Logger) *Service {
	return &Service{
		repo:           repo,
		appointmentSvc: appointmentSvc,
		gateway:        gw,
		broker:         broker,
		emailSvc:       emailSvc,
		metrics:        m,
		logger:         logger,
	}
}

// CreateIntent requests payment collection for an appointment. If a
// non-terminal intent already exists it is returned unchanged — the
// server-side half of the duplicate-charge defense.
func (s *Service) CreateIntent(ctx context.Context, req *model.CreateIntentRequest) (*model.PaymentIntent, error) {
	apt, err := s.appointmentSvc.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusPendingPayment {
		return nil, apperrors.NewConflict(
			fmt.Sprintf("appointment is %s, payment not applicable", apt.Status), nil)
	}
	if req.Amount != apt.AmountIDR {
		return nil, apperrors.NewValidation(
			fmt.Sprintf("amount %d does not match appointment fee %d", req.Amount, apt.AmountIDR), nil)
	}

	existing, err := s.repo.GetOpenIntent(ctx, req.AppointmentID)
	if err == nil {
		if s.metrics != nil {
			s.metrics.IntentsDeduplicated.Inc()
		}
		s.logger.Debug().
			Str("appointment_id", req.AppointmentID.String()).
			Str("intent_id", existing.ID.String()).
			Msg("returning existing open intent")
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up open intent: %w", err)
	}

	intent := &model.PaymentIntent{
		Base: model.Base{
			ID: uuid.New(),
		},
		AppointmentID: apt.ID,
		OrderID:       newOrderID(),
		AmountIDR:     apt.AmountIDR,
		Channel:       req.Channel,
		Status:        model.PaymentStatusCreated,
	}

	// Persist before charging. The open-intent unique index makes the
	// insert the serialization point: a concurrent request loses here,
	// re-reads the winner's row, and never reaches the gateway. And if
	// the charge fails later, the sweeper still finds a local record.
	if err := s.repo.CreateIntent(ctx, intent); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if s.metrics != nil {
				s.metrics.IntentsDeduplicated.Inc()
			}
			return s.repo.GetOpenIntent(ctx, req.AppointmentID)
		}
		return nil, fmt.Errorf("failed to persist intent: %w", err)
	}

	result, err := s.charge(ctx, apt, intent)
	if err != nil {
		if _, applyErr := s.apply(ctx, intent, model.PaymentStatusFailed); applyErr != nil {
			s.logger.Error().Err(applyErr).
				Str("intent_id", intent.ID.String()).
				Msg("failed to mark intent failed after charge error")
		}
		return nil, err
	}

	if err := s.repo.SetChargeResult(ctx, intent.ID,
		result.PayURL, result.QRCodeURL, model.PaymentStatusPending); err != nil {
		return nil, fmt.Errorf("failed to record charge result: %w", err)
	}
	intent.PayURL = result.PayURL
	intent.QRCodeURL = result.QRCodeURL
	intent.Status = model.PaymentStatusPending

	if s.metrics != nil {
		s.metrics.IntentsCreated.WithLabelValues(string(req.Channel)).Inc()
	}
	return intent, nil
}

func (s *Service) charge(ctx context.Context, apt *model.Appointment, intent *model.PaymentIntent) (*gateway.ChargeResult, error) {
	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.GatewayLatency.WithLabelValues("charge"))
		defer timer.ObserveDuration()
	}

	result, err := s.gateway.Charge(ctx, &gateway.ChargeRequest{
		OrderID:       intent.OrderID,
		AmountIDR:     intent.AmountIDR,
		Channel:       intent.Channel,
		CustomerName:  apt.PatientName,
		CustomerEmail: apt.PatientEmail,
		CustomerPhone: apt.PatientPhone,
		ItemName:      "Consultation " + apt.Date + " " + apt.Time,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.GatewayErrors.WithLabelValues("charge").Inc()
		}
		return nil, err
	}
	return result, nil
}

// GetIntent returns the persisted intent without touching the gateway.
func (s *Service) GetIntent(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error) {
	intent, err := s.repo.GetIntent(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("payment intent", err)
	}
	return intent, nil
}

// SyncStatus reads the gateway's view of an intent and persists any
// advance. This is the status endpoint both confirmation channels and
// the sweeper converge on: the persisted row is the source of truth.
func (s *Service) SyncStatus(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error) {
	intent, err := s.repo.GetIntent(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("payment intent", err)
	}
	return s.sync(ctx, intent)
}

// SyncStatusByOrderID is the verify path keyed by gateway order id.
func (s *Service) SyncStatusByOrderID(ctx context.Context, orderID string) (*model.PaymentIntent, error) {
	intent, err := s.repo.GetIntentByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.NewNotFound("payment intent", err)
	}
	return s.sync(ctx, intent)
}

func (s *Service) sync(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
	if intent.Status.Terminal() {
		return intent, nil
	}

	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.GatewayLatency.WithLabelValues("status"))
	}
	status, err := s.gateway.Status(ctx, intent.OrderID)
	if timer != nil {
		timer.ObserveDuration()
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.GatewayErrors.WithLabelValues("status").Inc()
		}
		return nil, fmt.Errorf("failed to read gateway status: %w", err)
	}

	if status == intent.Status {
		return intent, nil
	}
	return s.apply(ctx, intent, status)
}

// Expire force-expires a stale open intent. Used by the sweeper when
// the gateway has already forgotten the transaction.
func (s *Service) Expire(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
	return s.apply(ctx, intent, model.PaymentStatusExpired)
}

func (s *Service) apply(ctx context.Context, intent *model.PaymentIntent, status model.PaymentStatus) (*model.PaymentIntent, error) {
	if err := s.repo.TransitionStatus(ctx, intent.ID, status); err != nil {
		// A terminal row means the other confirmation channel won the
		// race; re-read and report what it decided.
		if errors.Is(err, repository.ErrNotFound) {
			return s.repo.GetIntent(ctx, intent.ID)
		}
		return nil, err
	}
	intent.Status = status

	if s.metrics != nil {
		s.metrics.PaymentTransitions.WithLabelValues(string(status)).Inc()
	}

	if status.Terminal() {
		s.onTerminal(ctx, intent)
	}
	return intent, nil
}

func (s *Service) onTerminal(ctx context.Context, intent *model.PaymentIntent) {
	if intent.Status == model.PaymentStatusCompleted {
		if err := s.appointmentSvc.Confirm(ctx, intent.AppointmentID); err != nil {
			s.logger.Error().Err(err).
				Str("appointment_id", intent.AppointmentID.String()).
				Msg("failed to confirm appointment after payment")
		}
		s.sendConfirmationEmail(ctx, intent)
	}

	s.publishEvent(ctx, intent)
}

func (s *Service) sendConfirmationEmail(ctx context.Context, intent *model.PaymentIntent) {
	apt, err := s.appointmentSvc.GetAppointment(ctx, intent.AppointmentID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load appointment for confirmation email")
		return
	}
	if err := s.emailSvc.SendBookingConfirmation(ctx, apt); err != nil {
		// Email failure never blocks the payment transition.
		s.logger.Error().Err(err).
			Str("appointment_id", apt.ID.String()).
			Msg("failed to send confirmation email")
	}
}

func (s *Service) publishEvent(ctx context.Context, intent *model.PaymentIntent) {
	channel := eventChannel(intent.Status)
	if channel == "" || s.broker == nil {
		return
	}

	event := model.PaymentEvent{
		IntentID:      intent.ID,
		AppointmentID: intent.AppointmentID,
		OrderID:       intent.OrderID,
		Status:        intent.Status,
	}
	if err := s.broker.Publish(ctx, channel, event); err != nil {
		s.logger.Error().Err(err).
			Str("channel", channel).
			Msg("failed to publish payment event")
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(channel).Inc()
	}
}

func eventChannel(status model.PaymentStatus) string {
	switch status {
	case model.PaymentStatusCompleted:
		return messaging.ChannelPaymentCompleted
	case model.PaymentStatusFailed:
		return messaging.ChannelPaymentFailed
	case model.PaymentStatusExpired:
		return messaging.ChannelPaymentExpired
	default:
		return ""
	}
}

func newOrderID() string {
	return fmt.Sprintf("INV-%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
