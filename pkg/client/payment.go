package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
)

// CreateIntent requests payment collection for an appointment. A
// locally cached non-terminal intent for the same appointment is
// returned unchanged without touching the network: double clicks and
// re-renders cannot charge twice. The server enforces the same rule,
// so a fresh client still cannot duplicate an open intent. A new
// intent is only possible once the prior one reached a terminal state.
func (c *Client) CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount int64, channel model.PaymentChannel) (*model.PaymentIntent, error) {
	key := appointmentID.String()
	if cached, ok := c.intents.Get(key); ok {
		intent := cached.(*model.PaymentIntent)
		if !intent.Status.Terminal() {
			return intent, nil
		}
		c.intents.Delete(key)
	}

	req := model.CreateIntentRequest{
		AppointmentID: appointmentID,
		Amount:        amount,
		Channel:       channel,
	}
	var intent model.PaymentIntent
	if err := c.doJSON(ctx, http.MethodPost, "/payments/intent", req, &intent); err != nil {
		return nil, err
	}

	c.intents.Set(key, &intent, 0)
	return &intent, nil
}

// PaymentStatus reads the persisted intent status from the server.
// The client never decides an outcome itself.
func (c *Client) PaymentStatus(ctx context.Context, intentID uuid.UUID) (*model.PaymentIntent, error) {
	var intent model.PaymentIntent
	if err := c.doJSON(ctx, http.MethodGet, "/payments/"+intentID.String(), nil, &intent); err != nil {
		return nil, err
	}
	c.rememberIntent(&intent)
	return &intent, nil
}

// VerifyPayment is PaymentStatus keyed by gateway order ID, for the
// manual re-check affordance after an inconclusive reconciliation.
func (c *Client) VerifyPayment(ctx context.Context, orderID string) (*model.PaymentIntent, error) {
	var intent model.PaymentIntent
	if err := c.doJSON(ctx, http.MethodGet, "/payments/verify/"+orderID, nil, &intent); err != nil {
		return nil, err
	}
	c.rememberIntent(&intent)
	return &intent, nil
}

// rememberIntent keeps the intent cache aligned with the freshest
// server state so terminal intents stop blocking new attempts.
func (c *Client) rememberIntent(intent *model.PaymentIntent) {
	c.intents.Set(intent.AppointmentID.String(), intent, 0)
}
