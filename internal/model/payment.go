package model

import (
	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "CREATED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
)

// Terminal reports whether the gateway can still move the intent.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusExpired:
		return true
	}
	return false
}

type PaymentChannel string

const (
	PaymentChannelRedirect PaymentChannel = "REDIRECT"
	PaymentChannelQR       PaymentChannel = "QR"
)

// PaymentIntent is one attempt to collect payment for an appointment.
// At most one non-terminal intent exists per appointment at any time.
type PaymentIntent struct {
	Base
	AppointmentID uuid.UUID      `db:"appointment_id" json:"appointment_id"`
	OrderID       string         `db:"order_id" json:"order_id"`
	AmountIDR     int64          `db:"amount" json:"amount"`
	Channel       PaymentChannel `db:"channel" json:"channel"`
	Status        PaymentStatus  `db:"status" json:"status"`
	PayURL        string         `db:"pay_url" json:"pay_url,omitempty"`
	QRCodeURL     string         `db:"qr_code_url" json:"qr_code_url,omitempty"`
}

type CreateIntentRequest struct {
	AppointmentID uuid.UUID      `json:"appointment_id" binding:"required"`
	Amount        int64          `json:"amount" binding:"required,gt=0"`
	Channel       PaymentChannel `json:"channel" binding:"required,oneof=REDIRECT QR"`
}

// PaymentEvent is published on the message broker whenever an intent
// reaches a terminal status.
type PaymentEvent struct {
	IntentID      uuid.UUID     `json:"intent_id"`
	AppointmentID uuid.UUID     `json:"appointment_id"`
	OrderID       string        `json:"order_id"`
	Status        PaymentStatus `json:"status"`
}
