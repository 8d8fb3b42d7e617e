package client

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
)

// Step identifies a wizard stage. Forward transitions are gated;
// backward transitions are unconditional and lossless.
type Step string

const (
	StepSelectProvider Step = "SELECT_PROVIDER"
	StepSelectSlot     Step = "SELECT_SLOT"
	StepPatientInfo    Step = "PATIENT_INFO"
	StepReview         Step = "REVIEW"
	StepSubmitted      Step = "SUBMITTED"
)

var stepOrder = []Step{StepSelectProvider, StepSelectSlot, StepPatientInfo, StepReview, StepSubmitted}

var fieldValidator = validator.New()

// BookingDraft is the wizard's working state. It lives only in memory
// and is destroyed on submit success or abandonment. Nothing here
// touches the server until Confirm.
type BookingDraft struct {
	ProviderID   uuid.UUID
	Date         string
	Time         string
	PatientName  string
	PatientPhone string
	PatientEmail string
	Reason       string
	Step         Step
}

// Booking drives the multi-step wizard. Each action returns a typed
// outcome so correctness is independent of any rendering layer.
type Booking struct {
	c          *Client
	confirming bool
}

// StartBooking opens a fresh wizard, replacing any live draft.
func (c *Client) StartBooking() *Booking {
	c.draftMu.Lock()
	defer c.draftMu.Unlock()
	c.draft = &BookingDraft{Step: StepSelectProvider}
	return &Booking{c: c}
}

// Draft returns a copy of the current draft state. After submit or
// abandonment the draft is gone and the zero value is returned.
func (b *Booking) Draft() BookingDraft {
	b.c.draftMu.RLock()
	defer b.c.draftMu.RUnlock()
	if b.c.draft == nil {
		return BookingDraft{}
	}
	return *b.c.draft
}

func (b *Booking) Step() Step {
	return b.Draft().Step
}

// SelectProvider records the chosen provider. Changing provider
// invalidates a previously chosen slot, which belongs to the old one.
func (b *Booking) SelectProvider(providerID uuid.UUID) {
	b.c.draftMu.Lock()
	defer b.c.draftMu.Unlock()
	if b.c.draft == nil {
		return
	}
	if b.c.draft.ProviderID != providerID {
		b.c.draft.Date = ""
		b.c.draft.Time = ""
	}
	b.c.draft.ProviderID = providerID
}

// SelectSlot tentatively holds a (date, time) pair. When the month's
// availability has been fetched, the selection must be one of the
// offered times, so a slot the view never showed is rejected here
// rather than at Confirm. Without a cached month there is nothing to
// check against and the server remains the authority.
func (b *Booking) SelectSlot(date, timeOfDay string) error {
	b.c.draftMu.Lock()
	defer b.c.draftMu.Unlock()
	if b.c.draft == nil {
		return &ValidationError{Message: "no booking in progress"}
	}

	if len(date) >= len(model.MonthFormat) {
		key := availabilityKey(b.c.draft.ProviderID, date[:len(model.MonthFormat)])
		if cached, ok := b.c.availability.Get(key); ok {
			if !b.c.slotSelectable(cached.(map[string][]string), date, timeOfDay) {
				return &ValidationError{Field: "slot", Message: "slot is not available"}
			}
		}
	}

	b.c.draft.Date = date
	b.c.draft.Time = timeOfDay
	return nil
}

func (b *Booking) SetPatientInfo(name, phone, email, reason string) {
	b.c.draftMu.Lock()
	defer b.c.draftMu.Unlock()
	if b.c.draft == nil {
		return
	}
	b.c.draft.PatientName = name
	b.c.draft.PatientPhone = phone
	b.c.draft.PatientEmail = email
	b.c.draft.Reason = reason
}

// Next advances one step if the current step's data validates. A
// rejection is a *ValidationError and never reaches the network.
func (b *Booking) Next() error {
	b.c.draftMu.Lock()
	defer b.c.draftMu.Unlock()
	if b.c.draft == nil {
		return &ValidationError{Message: "no booking in progress"}
	}

	draft := b.c.draft
	if err := validateStep(draft); err != nil {
		return err
	}

	switch draft.Step {
	case StepSelectProvider:
		draft.Step = StepSelectSlot
	case StepSelectSlot:
		draft.Step = StepPatientInfo
	case StepPatientInfo:
		draft.Step = StepReview
	case StepReview:
		return &ValidationError{Message: "confirm the booking to submit"}
	case StepSubmitted:
		return &ValidationError{Message: "booking already submitted"}
	}
	return nil
}

// Back moves one step earlier. Always allowed; entered data for other
// steps is kept.
func (b *Booking) Back() {
	b.c.draftMu.Lock()
	defer b.c.draftMu.Unlock()
	if b.c.draft == nil {
		return
	}

	for i, s := range stepOrder {
		if s == b.c.draft.Step && i > 0 && s != StepSubmitted {
			b.c.draft.Step = stepOrder[i-1]
			return
		}
	}
}

// validateStep is the pure gate for leaving the draft's current step.
func validateStep(d *BookingDraft) error {
	switch d.Step {
	case StepSelectProvider:
		if d.ProviderID == uuid.Nil {
			return &ValidationError{Field: "provider", Message: "choose a provider"}
		}
	case StepSelectSlot:
		if d.Date == "" || d.Time == "" {
			return &ValidationError{Field: "slot", Message: "choose a date and time"}
		}
	case StepPatientInfo:
		if strings.TrimSpace(d.PatientName) == "" {
			return &ValidationError{Field: "patient_name", Message: "name is required"}
		}
		if strings.TrimSpace(d.PatientPhone) == "" {
			return &ValidationError{Field: "patient_phone", Message: "phone is required"}
		}
		if fieldValidator.Var(d.PatientEmail, "required,email") != nil {
			return &ValidationError{Field: "patient_email", Message: "valid email is required"}
		}
	}
	return nil
}

// Confirm submits the booking. It may only run at REVIEW and calls
// the appointment endpoint exactly once: re-entrant confirms are
// rejected while the first call is outstanding. On success the draft
// is destroyed and the pending appointment returned.
func (b *Booking) Confirm(ctx context.Context) (*model.Appointment, error) {
	b.c.draftMu.Lock()
	if b.c.draft == nil {
		b.c.draftMu.Unlock()
		return nil, &ValidationError{Message: "no booking in progress"}
	}
	if b.c.draft.Step != StepReview {
		b.c.draftMu.Unlock()
		return nil, &ValidationError{Message: "booking is not ready to confirm"}
	}
	if b.confirming {
		b.c.draftMu.Unlock()
		return nil, ErrConfirmInFlight
	}
	b.confirming = true
	req := &model.CreateAppointmentRequest{
		ProviderID:   b.c.draft.ProviderID,
		Date:         b.c.draft.Date,
		Time:         b.c.draft.Time,
		PatientName:  strings.TrimSpace(b.c.draft.PatientName),
		PatientPhone: strings.TrimSpace(b.c.draft.PatientPhone),
		PatientEmail: strings.TrimSpace(b.c.draft.PatientEmail),
		Reason:       strings.TrimSpace(b.c.draft.Reason),
	}
	b.c.draftMu.Unlock()

	apt, err := b.c.CreateAppointment(ctx, req)

	b.c.draftMu.Lock()
	defer b.c.draftMu.Unlock()
	b.confirming = false
	if err != nil {
		return nil, err
	}

	b.c.draft = nil
	return apt, nil
}

// Abandon discards the wizard. Before REVIEW nothing was sent to the
// server, so abandonment leaves no trace beyond dropped caches.
func (b *Booking) Abandon() {
	b.c.draftMu.Lock()
	defer b.c.draftMu.Unlock()
	b.c.draft = nil
	b.c.availability.Flush()
}
