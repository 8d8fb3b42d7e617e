package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
)

// Availability resolves which dates and times of a month are still
// selectable for a provider. The server reports open times; on top of
// that the client drops anything already in the past by its own clock
// and anything the live draft has tentatively selected, so stale
// cached data can never offer the same slot twice.
//
// Dates with no remaining capacity map to an empty, non-nil list.
// Results are cached per (provider, month) for the lifetime of the
// wizard session only.
func (c *Client) Availability(ctx context.Context, providerID uuid.UUID, month string) (map[string][]string, error) {
	key := availabilityKey(providerID, month)

	var avail map[string][]string
	if cached, ok := c.availability.Get(key); ok {
		avail = cached.(map[string][]string)
	} else {
		path := fmt.Sprintf("/providers/%s/availability?month=%s", providerID, month)
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &avail); err != nil {
			return nil, err
		}
		c.availability.Set(key, avail, 0)
	}

	return c.filterAvailability(avail), nil
}

// InvalidateAvailability drops the cached month so the next call
// refetches. Used after a booking conflict.
func (c *Client) InvalidateAvailability(providerID uuid.UUID, month string) {
	c.availability.Delete(availabilityKey(providerID, month))
}

func availabilityKey(providerID uuid.UUID, month string) string {
	return providerID.String() + "/" + month
}

// filterAvailability applies the client-side view on top of the
// server result: past slots and the draft's tentative selection are
// not selectable.
func (c *Client) filterAvailability(avail map[string][]string) map[string][]string {
	now := c.now()
	today := now.Format(model.DateFormat)
	nowTime := now.Format(model.TimeFormat)

	draftDate, draftTime := c.draftSelection()

	out := make(map[string][]string, len(avail))
	for date, times := range avail {
		if date < today {
			continue
		}
		open := make([]string, 0, len(times))
		for _, t := range times {
			if date == today && t <= nowTime {
				continue
			}
			if date == draftDate && t == draftTime {
				continue
			}
			open = append(open, t)
		}
		out[date] = open
	}
	return out
}

// slotSelectable reports whether the server offered (date, time) in
// this month's result and the slot is not already in the past. It
// reads the raw server map, not the filtered view, so re-selecting the
// draft's own tentatively held slot stays valid.
func (c *Client) slotSelectable(avail map[string][]string, date, timeOfDay string) bool {
	now := c.now()
	today := now.Format(model.DateFormat)
	if date < today || (date == today && timeOfDay <= now.Format(model.TimeFormat)) {
		return false
	}
	for _, t := range avail[date] {
		if t == timeOfDay {
			return true
		}
	}
	return false
}

// draftSelection reports the slot tentatively held by the live
// booking draft, if any.
func (c *Client) draftSelection() (date, timeOfDay string) {
	c.draftMu.RLock()
	defer c.draftMu.RUnlock()
	if c.draft == nil {
		return "", ""
	}
	return c.draft.Date, c.draft.Time
}

// now is the client's clock. Overridable for tests.
func (c *Client) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}

// WithClock overrides the time source, for tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.clock = now
	return c
}
