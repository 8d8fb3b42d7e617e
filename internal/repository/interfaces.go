package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	// ProviderRepository reads provider records. Providers are managed
	// by an external admin surface; this core only reads them.
	ProviderRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Provider, error)
		List(ctx context.Context, filter *model.ProviderFilter) ([]*model.Provider, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// BookedTimes returns the times already taken for each date of
		// the half-open range [from, to) for one provider. Cancelled
		// appointments do not block a slot.
		BookedTimes(ctx context.Context, providerID uuid.UUID, from, to string) (map[string][]string, error)
		// Exists reports whether a non-cancelled appointment already
		// occupies the given slot.
		Exists(ctx context.Context, providerID uuid.UUID, date, timeOfDay string) (bool, error)
	}

	PaymentRepository interface {
		// CreateIntent persists a new intent. The open-intent partial
		// unique index allows at most one non-terminal intent per
		// appointment; a second insert returns ErrDuplicate.
		CreateIntent(ctx context.Context, intent *model.PaymentIntent) error
		// SetChargeResult records the gateway's pay URLs on a freshly
		// charged intent and moves it to the given status.
		SetChargeResult(ctx context.Context, id uuid.UUID, payURL, qrCodeURL string, status model.PaymentStatus) error
		GetIntent(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error)
		GetIntentByOrderID(ctx context.Context, orderID string) (*model.PaymentIntent, error)
		// GetOpenIntent returns the single non-terminal intent for an
		// appointment, or sql.ErrNoRows via wrapping when none exists.
		GetOpenIntent(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentIntent, error)
		// TransitionStatus moves an intent to a new status. Writes are
		// guarded so a terminal intent is never overwritten.
		TransitionStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error
		// ListStaleOpenIntents returns non-terminal intents older than
		// the cutoff, for the reconciliation sweeper.
		ListStaleOpenIntents(ctx context.Context, cutoff time.Time, limit int) ([]*model.PaymentIntent, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
	}

	// TokenRepository tracks issued refresh tokens so rotation can
	// enforce single use. Backed by Redis.
	TokenRepository interface {
		StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Duration) error
		// ConsumeRefreshToken atomically validates and revokes a token,
		// returning the owning user. A second consume of the same token
		// fails.
		ConsumeRefreshToken(ctx context.Context, token string) (uuid.UUID, error)
		RevokeUserTokens(ctx context.Context, userID uuid.UUID) error
	}
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "record not found" }

// ErrDuplicate is returned when an insert collides with a uniqueness
// constraint, such as the open-intent index on payment_intents.
var ErrDuplicate = duplicateError{}

type duplicateError struct{}

func (duplicateError) Error() string { return "record already exists" }
