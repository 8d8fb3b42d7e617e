package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
)

// CreateAppointment books a slot. The result starts in
// PENDING_PAYMENT; it is confirmed by payment, not by creation.
func (c *Client) CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	var apt model.Appointment
	if err := c.doJSON(ctx, http.MethodPost, "/appointments", req, &apt); err != nil {
		return nil, err
	}
	return &apt, nil
}

func (c *Client) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	if err := c.doJSON(ctx, http.MethodGet, "/appointments/"+id.String(), nil, &apt); err != nil {
		return nil, err
	}
	return &apt, nil
}

// CancelAppointment cancels a booking that has not been paid.
func (c *Client) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) error {
	body := map[string]string{"reason": reason}
	return c.doJSON(ctx, http.MethodPost, "/appointments/"+id.String()+"/cancel", body, nil)
}
