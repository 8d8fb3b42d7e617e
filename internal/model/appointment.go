package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPendingPayment AppointmentStatus = "PENDING_PAYMENT"
	AppointmentStatusConfirmed      AppointmentStatus = "CONFIRMED"
	AppointmentStatusCancelled      AppointmentStatus = "CANCELLED"
)

// Terminal reports whether the appointment can no longer change status.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCancelled
}

type Appointment struct {
	Base
	ProviderID   uuid.UUID         `db:"provider_id" json:"provider_id"`
	Date         string            `db:"date" json:"date"`
	Time         string            `db:"time" json:"time"`
	PatientName  string            `db:"patient_name" json:"patient_name"`
	PatientPhone string            `db:"patient_phone" json:"patient_phone"`
	PatientEmail string            `db:"patient_email" json:"patient_email"`
	Reason       string            `db:"reason" json:"reason,omitempty"`
	AmountIDR    int64             `db:"amount" json:"amount"`
	Status       AppointmentStatus `db:"status" json:"status"`
	CancelReason *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

// StartsAt combines the appointment's date and time in the given location.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateFormat+" "+TimeFormat, a.Date+" "+a.Time, loc)
}

type CreateAppointmentRequest struct {
	ProviderID   uuid.UUID `json:"provider_id" binding:"required"`
	Date         string    `json:"date" binding:"required,datetime=2006-01-02"`
	Time         string    `json:"time" binding:"required,datetime=15:04"`
	PatientName  string    `json:"patient_name" binding:"required,max=120"`
	PatientPhone string    `json:"patient_phone" binding:"required,max=32"`
	PatientEmail string    `json:"patient_email" binding:"required,email"`
	Reason       string    `json:"reason" binding:"max=1000"`
}

type AppointmentFilters struct {
	ProviderID uuid.UUID
	Status     AppointmentStatus
	StartDate  string
	EndDate    string
}
