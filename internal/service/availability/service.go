package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
	"github.com/medibook/booking-api/pkg/metrics"
)

// Service computes month availability for a provider. Slots are derived
// on demand from the provider's workday settings minus booked
// appointments; nothing is persisted.
type Service struct {
	providerRepo    repository.ProviderRepository
	appointmentRepo repository.AppointmentRepository
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewService(providerRepo repository.ProviderRepository, appointmentRepo repository.AppointmentRepository, m *metrics.Metrics) *Service {
	return &Service{
		providerRepo:    providerRepo,
		appointmentRepo: appointmentRepo,
		metrics:         m,
		now:             time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MonthAvailability returns, for every date of the month, the times
// still open for booking. Past dates and times are filtered against the
// provider's local clock. Fully booked dates are present with an empty
// list so callers can tell "full" from "absent".
func (s *Service) MonthAvailability(ctx context.Context, providerID uuid.UUID, month string) (model.MonthAvailability, error) {
	monthStart, err := time.Parse(model.MonthFormat, month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", month, err)
	}

	provider, err := s.providerRepo.Get(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	loc := provider.Location()
	first := time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	booked, err := s.appointmentRepo.BookedTimes(ctx, providerID,
		first.Format(model.DateFormat), next.Format(model.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to load booked times: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AvailabilityRequests.Inc()
	}

	now := s.now().In(loc)
	result := make(model.MonthAvailability)

	today := truncateDate(now)

	for day := first; day.Before(next); day = day.AddDate(0, 0, 1) {
		if day.Before(today) {
			// Past dates are omitted, not emptied.
			continue
		}

		date := day.Format(model.DateFormat)
		bookedSet := toSet(booked[date])

		open := make([]string, 0)
		for _, t := range workdaySlots(provider, day) {
			if bookedSet[t] {
				continue
			}
			if sameDate(day, now) && !slotAfter(t, now) {
				continue
			}
			open = append(open, t)
		}
		result[date] = open
	}

	return result, nil
}

// SlotOpen reports whether a specific slot is still bookable.
func (s *Service) SlotOpen(ctx context.Context, providerID uuid.UUID, date, timeOfDay string) (bool, error) {
	provider, err := s.providerRepo.Get(ctx, providerID)
	if err != nil {
		return false, fmt.Errorf("failed to get provider: %w", err)
	}

	loc := provider.Location()
	start, err := time.ParseInLocation(model.DateFormat+" "+model.TimeFormat, date+" "+timeOfDay, loc)
	if err != nil {
		return false, fmt.Errorf("invalid slot %s %s: %w", date, timeOfDay, err)
	}
	if !start.After(s.now().In(loc)) {
		return false, nil
	}

	taken, err := s.appointmentRepo.Exists(ctx, providerID, date, timeOfDay)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// workdaySlots expands the provider's workday into slot start times.
func workdaySlots(p *model.Provider, day time.Time) []string {
	start, err := time.Parse(model.TimeFormat, p.WorkdayStart)
	if err != nil {
		return nil
	}
	end, err := time.Parse(model.TimeFormat, p.WorkdayEnd)
	if err != nil {
		return nil
	}
	step := time.Duration(p.SlotMinutes) * time.Minute
	if step <= 0 {
		return nil
	}

	var slots []string
	for t := start; t.Before(end); t = t.Add(step) {
		slots = append(slots, t.Format(model.TimeFormat))
	}
	return slots
}

func slotAfter(timeOfDay string, now time.Time) bool {
	t, err := time.Parse(model.TimeFormat, timeOfDay)
	if err != nil {
		return false
	}
	slot := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	return slot.After(now)
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
