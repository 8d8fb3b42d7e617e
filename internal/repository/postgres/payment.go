package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
)

type paymentRepository struct {
	BaseRepository
}

func NewPaymentRepository(base BaseRepository) repository.PaymentRepository {
	return &paymentRepository{base}
}

const intentColumns = `
	id, appointment_id, order_id, amount, channel, status,
	pay_url, qr_code_url, created_at, updated_at
`

func (r *paymentRepository) CreateIntent(ctx context.Context, intent *model.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			id, appointment_id, order_id, amount, channel, status,
			pay_url, qr_code_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	intent.CreatedAt = time.Now()
	intent.UpdatedAt = time.Now()

	_, err := r.GetDB().ExecContext(ctx, query,
		intent.ID,
		intent.AppointmentID,
		intent.OrderID,
		intent.AmountIDR,
		intent.Channel,
		intent.Status,
		intent.PayURL,
		intent.QRCodeURL,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if err != nil {
		// The payment_intents_open_appointment_idx partial unique
		// index rejects a second non-terminal intent per appointment.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("open intent already exists for appointment %s: %w",
				intent.AppointmentID, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

// SetChargeResult attaches the gateway's pay URLs to an intent and
// advances its status. Guarded like TransitionStatus so a sweep that
// already expired the intent is not overwritten.
func (r *paymentRepository) SetChargeResult(ctx context.Context, id uuid.UUID, payURL, qrCodeURL string, status model.PaymentStatus) error {
	query := `
		UPDATE payment_intents
		SET pay_url = $1, qr_code_url = $2, status = $3, updated_at = $4
		WHERE id = $5
		  AND status NOT IN ($6, $7, $8)
	`
	result, err := r.GetDB().ExecContext(ctx, query, payURL, qrCodeURL, status, time.Now(), id,
		model.PaymentStatusCompleted, model.PaymentStatusFailed, model.PaymentStatusExpired)
	if err != nil {
		return fmt.Errorf("failed to set charge result: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("intent %s is terminal or missing: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) GetIntent(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`

	var intent model.PaymentIntent
	if err := r.GetDB().GetContext(ctx, &intent, query, id); err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", mapNotFound(err))
	}
	return &intent, nil
}

func (r *paymentRepository) GetIntentByOrderID(ctx context.Context, orderID string) (*model.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE order_id = $1`

	var intent model.PaymentIntent
	if err := r.GetDB().GetContext(ctx, &intent, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to get payment intent by order: %w", mapNotFound(err))
	}
	return &intent, nil
}

func (r *paymentRepository) GetOpenIntent(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE appointment_id = $1
		  AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	var intent model.PaymentIntent
	err := r.GetDB().GetContext(ctx, &intent, query, appointmentID,
		model.PaymentStatusCreated, model.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get open intent: %w", mapNotFound(err))
	}
	return &intent, nil
}

// TransitionStatus refuses to move an intent that is already terminal,
// so a late poll can never undo a settled payment.
func (r *paymentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error {
	query := `
		UPDATE payment_intents
		SET status = $1, updated_at = $2
		WHERE id = $3
		  AND status NOT IN ($4, $5, $6)
	`
	result, err := r.GetDB().ExecContext(ctx, query, status, time.Now(), id,
		model.PaymentStatusCompleted, model.PaymentStatusFailed, model.PaymentStatusExpired)
	if err != nil {
		return fmt.Errorf("failed to transition intent status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("intent %s is terminal or missing: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) ListStaleOpenIntents(ctx context.Context, cutoff time.Time, limit int) ([]*model.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE status IN ($1, $2)
		  AND updated_at < $3
		ORDER BY updated_at
		LIMIT $4
	`
	var intents []*model.PaymentIntent
	err := r.GetDB().SelectContext(ctx, &intents, query,
		model.PaymentStatusCreated, model.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale intents: %w", err)
	}
	return intents, nil
}
