package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
)

func newMockRepo(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewBaseRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func intentRows(intent *model.PaymentIntent) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "appointment_id", "order_id", "amount", "channel", "status",
		"pay_url", "qr_code_url", "created_at", "updated_at",
	}).AddRow(
		intent.ID, intent.AppointmentID, intent.OrderID, intent.AmountIDR,
		intent.Channel, intent.Status, intent.PayURL, intent.QRCodeURL,
		intent.CreatedAt, intent.UpdatedAt,
	)
}

func TestPaymentRepositoryCreateIntent(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	intent := &model.PaymentIntent{
		Base:          model.Base{ID: uuid.New()},
		AppointmentID: uuid.New(),
		OrderID:       "INV-20260901-0001",
		AmountIDR:     350000,
		Channel:       model.PaymentChannelQR,
		Status:        model.PaymentStatusCreated,
		PayURL:        "https://pay.example.com/t/abc",
	}

	mock.ExpectExec("INSERT INTO payment_intents").
		WithArgs(intent.ID, intent.AppointmentID, intent.OrderID, intent.AmountIDR,
			intent.Channel, intent.Status, intent.PayURL, intent.QRCodeURL,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateIntent(context.Background(), intent))
	assert.False(t, intent.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateIntentUniqueViolation(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	intent := &model.PaymentIntent{
		Base:          model.Base{ID: uuid.New()},
		AppointmentID: uuid.New(),
		OrderID:       "INV-20260901-0005",
		AmountIDR:     350000,
		Channel:       model.PaymentChannelQR,
		Status:        model.PaymentStatusCreated,
	}

	// The partial unique index on open intents rejects the insert.
	mock.ExpectExec("INSERT INTO payment_intents").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "payment_intents_open_appointment_idx"})

	err := repo.CreateIntent(context.Background(), intent)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySetChargeResult(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	id := uuid.New()

	mock.ExpectExec(`UPDATE payment_intents\s+SET pay_url = \$1, qr_code_url = \$2, status = \$3, updated_at = \$4\s+WHERE id = \$5\s+AND status NOT IN \(\$6, \$7, \$8\)`).
		WithArgs("https://pay.example.com/t/abc", "https://pay.example.com/qr/abc",
			model.PaymentStatusPending, sqlmock.AnyArg(), id,
			model.PaymentStatusCompleted, model.PaymentStatusFailed, model.PaymentStatusExpired).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetChargeResult(context.Background(), id,
		"https://pay.example.com/t/abc", "https://pay.example.com/qr/abc", model.PaymentStatusPending)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySetChargeResultTerminalRowReportsNotFound(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	id := uuid.New()

	mock.ExpectExec("UPDATE payment_intents").
		WithArgs("https://pay.example.com/t/abc", "",
			model.PaymentStatusPending, sqlmock.AnyArg(), id,
			model.PaymentStatusCompleted, model.PaymentStatusFailed, model.PaymentStatusExpired).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetChargeResult(context.Background(), id, "https://pay.example.com/t/abc", "", model.PaymentStatusPending)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryGetOpenIntent(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	appointmentID := uuid.New()
	open := &model.PaymentIntent{
		Base:          model.Base{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		AppointmentID: appointmentID,
		OrderID:       "INV-20260901-0002",
		AmountIDR:     500000,
		Channel:       model.PaymentChannelQR,
		Status:        model.PaymentStatusPending,
	}

	mock.ExpectQuery("SELECT (.+) FROM payment_intents").
		WithArgs(appointmentID, model.PaymentStatusCreated, model.PaymentStatusPending).
		WillReturnRows(intentRows(open))

	got, err := repo.GetOpenIntent(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)
	assert.Equal(t, model.PaymentStatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryGetOpenIntentNotFound(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	appointmentID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM payment_intents").
		WithArgs(appointmentID, model.PaymentStatusCreated, model.PaymentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetOpenIntent(context.Background(), appointmentID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryTransitionStatusGuardsTerminal(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	id := uuid.New()

	// The UPDATE must carry the terminal status guard in its WHERE clause.
	mock.ExpectExec(`UPDATE payment_intents\s+SET status = \$1, updated_at = \$2\s+WHERE id = \$3\s+AND status NOT IN \(\$4, \$5, \$6\)`).
		WithArgs(model.PaymentStatusCompleted, sqlmock.AnyArg(), id,
			model.PaymentStatusCompleted, model.PaymentStatusFailed, model.PaymentStatusExpired).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.TransitionStatus(context.Background(), id, model.PaymentStatusCompleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryTransitionStatusTerminalRowReportsNotFound(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	id := uuid.New()

	mock.ExpectExec("UPDATE payment_intents").
		WithArgs(model.PaymentStatusFailed, sqlmock.AnyArg(), id,
			model.PaymentStatusCompleted, model.PaymentStatusFailed, model.PaymentStatusExpired).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TransitionStatus(context.Background(), id, model.PaymentStatusFailed)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListStaleOpenIntents(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewPaymentRepository(base)

	cutoff := time.Now().Add(-15 * time.Minute)
	stale := &model.PaymentIntent{
		Base:          model.Base{ID: uuid.New(), CreatedAt: cutoff.Add(-time.Hour), UpdatedAt: cutoff.Add(-time.Hour)},
		AppointmentID: uuid.New(),
		OrderID:       "INV-20260901-0003",
		AmountIDR:     200000,
		Channel:       model.PaymentChannelRedirect,
		Status:        model.PaymentStatusCreated,
	}

	mock.ExpectQuery("SELECT (.+) FROM payment_intents").
		WithArgs(model.PaymentStatusCreated, model.PaymentStatusPending, cutoff, 50).
		WillReturnRows(intentRows(stale))

	intents, err := repo.ListStaleOpenIntents(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, stale.ID, intents[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
