package gateway

import (
	"context"

	"github.com/medibook/booking-api/internal/model"
)

// ChargeRequest describes one collection attempt sent to the gateway.
type ChargeRequest struct {
	OrderID       string
	AmountIDR     int64
	Channel       model.PaymentChannel
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ItemName      string
}

// ChargeResult carries the artifact the patient needs to pay: a redirect
// URL for REDIRECT, a scannable QR code URL for QR.
type ChargeResult struct {
	PayURL    string
	QRCodeURL string
}

// Gateway abstracts the external payment provider. The provider settles
// asynchronously; Status reads its current view of a transaction, which
// is the only authority for terminal transitions.
type Gateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	Status(ctx context.Context, orderID string) (model.PaymentStatus, error)
}
