package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
	"github.com/medibook/booking-api/internal/service/availability"
	apperrors "github.com/medibook/booking-api/pkg/errors"
	"github.com/medibook/booking-api/pkg/metrics"
)

// Business rules for booking windows
const (
	MaxAdvanceBooking = 90 * 24 * time.Hour
	MinAdvanceBooking = 30 * time.Minute
)

type Service struct {
	repo         repository.AppointmentRepository
	providerRepo repository.ProviderRepository
	availability *availability.Service
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(repo repository.AppointmentRepository, providerRepo repository.ProviderRepository,
	availabilitySvc *availability.Service, m *metrics.Metrics) *Service {
	return &Service{
		repo:         repo,
		providerRepo: providerRepo,
		availability: availabilitySvc,
		metrics:      m,
		now:          time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateAppointment books a slot. The appointment starts life in
// PENDING_PAYMENT; payment completion is what confirms it.
func (s *Service) CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	provider, err := s.providerRepo.Get(ctx, req.ProviderID)
	if err != nil {
		return nil, apperrors.NewNotFound("provider", err)
	}

	if err := s.validateSlotTiming(provider, req.Date, req.Time); err != nil {
		return nil, apperrors.NewValidation(err.Error(), err)
	}

	open, err := s.availability.SlotOpen(ctx, req.ProviderID, req.Date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to check slot: %w", err)
	}
	if !open {
		if s.metrics != nil {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, apperrors.NewConflict("slot is no longer available", nil)
	}

	apt := &model.Appointment{
		Base: model.Base{
			ID: uuid.New(),
		},
		ProviderID:   req.ProviderID,
		Date:         req.Date,
		Time:         req.Time,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		PatientEmail: req.PatientEmail,
		Reason:       req.Reason,
		AmountIDR:    provider.ConsultFeeIDR,
		Status:       model.AppointmentStatusPendingPayment,
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentsCreated.Inc()
	}
	return apt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	return apt, nil
}

func (s *Service) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// Confirm marks a pending appointment confirmed after payment settles.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) error {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return apperrors.NewNotFound("appointment", err)
	}
	if apt.Status != model.AppointmentStatusPendingPayment {
		return apperrors.NewConflict(
			fmt.Sprintf("appointment is %s, cannot confirm", apt.Status), nil)
	}
	return s.repo.UpdateStatus(ctx, id, model.AppointmentStatusConfirmed, nil)
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) error {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return apperrors.NewNotFound("appointment", err)
	}

	if apt.Status == model.AppointmentStatusCancelled {
		return apperrors.NewConflict("appointment is already cancelled", nil)
	}

	return s.repo.UpdateStatus(ctx, id, model.AppointmentStatusCancelled, &reason)
}

func (s *Service) validateSlotTiming(provider *model.Provider, date, timeOfDay string) error {
	loc := provider.Location()
	start, err := time.ParseInLocation(model.DateFormat+" "+model.TimeFormat, date+" "+timeOfDay, loc)
	if err != nil {
		return fmt.Errorf("invalid slot %s %s", date, timeOfDay)
	}

	advance := start.Sub(s.now().In(loc))
	if advance < MinAdvanceBooking {
		return fmt.Errorf("slot must be booked at least %v in advance", MinAdvanceBooking)
	}
	if advance > MaxAdvanceBooking {
		return fmt.Errorf("slot cannot be booked more than %v in advance", MaxAdvanceBooking)
	}
	return nil
}
