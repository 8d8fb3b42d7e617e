package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/model"
)

type fakeProviderRepo struct {
	provider *model.Provider
}

func (f *fakeProviderRepo) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	return f.provider, nil
}

func (f *fakeProviderRepo) List(ctx context.Context, filter *model.ProviderFilter) ([]*model.Provider, error) {
	return []*model.Provider{f.provider}, nil
}

type fakeAppointmentRepo struct {
	booked map[string][]string
	exists map[string]bool
}

func (f *fakeAppointmentRepo) Create(ctx context.Context, a *model.Appointment) error { return nil }
func (f *fakeAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return nil, nil
}
func (f *fakeAppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error {
	return nil
}
func (f *fakeAppointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}
func (f *fakeAppointmentRepo) BookedTimes(ctx context.Context, providerID uuid.UUID, from, to string) (map[string][]string, error) {
	return f.booked, nil
}
func (f *fakeAppointmentRepo) Exists(ctx context.Context, providerID uuid.UUID, date, timeOfDay string) (bool, error) {
	return f.exists[date+" "+timeOfDay], nil
}

func testProvider() *model.Provider {
	return &model.Provider{
		Base:         model.Base{ID: uuid.New()},
		Name:         "dr. Sari",
		Timezone:     "Asia/Jakarta",
		SlotMinutes:  60,
		WorkdayStart: "08:00",
		WorkdayEnd:   "12:00",
	}
}

func fixedClock(t *testing.T, value string, loc *time.Location) func() time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return func() time.Time { return ts }
}

func TestMonthAvailabilityOmitsPastDates(t *testing.T) {
	provider := testProvider()
	loc := provider.Location()

	svc := NewService(
		&fakeProviderRepo{provider: provider},
		&fakeAppointmentRepo{booked: map[string][]string{}},
		nil,
	).WithClock(fixedClock(t, "2026-09-15 07:00", loc))

	avail, err := svc.MonthAvailability(context.Background(), provider.ID, "2026-09")
	require.NoError(t, err)

	assert.NotContains(t, avail, "2026-09-14")
	assert.NotContains(t, avail, "2026-09-01")
	assert.Contains(t, avail, "2026-09-15")
	assert.Contains(t, avail, "2026-09-30")
	assert.NotContains(t, avail, "2026-10-01")

	// Full workday open on a future date.
	assert.Equal(t, []string{"08:00", "09:00", "10:00", "11:00"}, avail["2026-09-16"])
}

func TestMonthAvailabilityFiltersTodayByProviderClock(t *testing.T) {
	provider := testProvider()
	loc := provider.Location()

	svc := NewService(
		&fakeProviderRepo{provider: provider},
		&fakeAppointmentRepo{booked: map[string][]string{}},
		nil,
	).WithClock(fixedClock(t, "2026-09-15 09:30", loc))

	avail, err := svc.MonthAvailability(context.Background(), provider.ID, "2026-09")
	require.NoError(t, err)

	assert.Equal(t, []string{"10:00", "11:00"}, avail["2026-09-15"],
		"slots at or before the provider-local now are gone")
}

func TestMonthAvailabilitySubtractsBookedTimes(t *testing.T) {
	provider := testProvider()
	loc := provider.Location()

	svc := NewService(
		&fakeProviderRepo{provider: provider},
		&fakeAppointmentRepo{booked: map[string][]string{
			"2026-09-16": {"08:00", "09:00"},
		}},
		nil,
	).WithClock(fixedClock(t, "2026-09-15 07:00", loc))

	avail, err := svc.MonthAvailability(context.Background(), provider.ID, "2026-09")
	require.NoError(t, err)

	assert.Equal(t, []string{"10:00", "11:00"}, avail["2026-09-16"])
}

func TestMonthAvailabilityFullDateIsEmptyNotAbsent(t *testing.T) {
	provider := testProvider()
	loc := provider.Location()

	svc := NewService(
		&fakeProviderRepo{provider: provider},
		&fakeAppointmentRepo{booked: map[string][]string{
			"2026-09-16": {"08:00", "09:00", "10:00", "11:00"},
		}},
		nil,
	).WithClock(fixedClock(t, "2026-09-15 07:00", loc))

	avail, err := svc.MonthAvailability(context.Background(), provider.ID, "2026-09")
	require.NoError(t, err)

	open, ok := avail["2026-09-16"]
	require.True(t, ok, "a fully booked date stays present")
	assert.NotNil(t, open)
	assert.Empty(t, open)
}

func TestMonthAvailabilityRejectsBadMonth(t *testing.T) {
	provider := testProvider()
	svc := NewService(&fakeProviderRepo{provider: provider}, &fakeAppointmentRepo{}, nil)

	_, err := svc.MonthAvailability(context.Background(), provider.ID, "September 2026")
	require.Error(t, err)
}

func TestSlotOpen(t *testing.T) {
	provider := testProvider()
	loc := provider.Location()

	svc := NewService(
		&fakeProviderRepo{provider: provider},
		&fakeAppointmentRepo{exists: map[string]bool{
			"2026-09-16 09:00": true,
		}},
		nil,
	).WithClock(fixedClock(t, "2026-09-15 07:00", loc))

	open, err := svc.SlotOpen(context.Background(), provider.ID, "2026-09-16", "08:00")
	require.NoError(t, err)
	assert.True(t, open)

	open, err = svc.SlotOpen(context.Background(), provider.ID, "2026-09-16", "09:00")
	require.NoError(t, err)
	assert.False(t, open, "a booked slot is closed")

	open, err = svc.SlotOpen(context.Background(), provider.ID, "2026-09-14", "08:00")
	require.NoError(t, err)
	assert.False(t, open, "a past slot is closed")
}
