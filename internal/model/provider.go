package model

import (
	"time"

	"github.com/google/uuid"
)

// Provider status constants
const (
	ProviderStatusActive   = "active"
	ProviderStatusInactive = "inactive"
)

// Provider represents a care provider patients can book with. Read-only
// from the booking core's perspective; administration happens elsewhere.
type Provider struct {
	Base
	Name          string `json:"name" db:"name"`
	Specialty     string `json:"specialty" db:"specialty"`
	Bio           string `json:"bio,omitempty" db:"bio"`
	PhotoURL      string `json:"photo_url,omitempty" db:"photo_url"`
	Timezone      string `json:"timezone" db:"timezone"`
	SlotMinutes   int    `json:"slot_minutes" db:"slot_minutes"`
	WorkdayStart  string `json:"workday_start" db:"workday_start"`
	WorkdayEnd    string `json:"workday_end" db:"workday_end"`
	ConsultFeeIDR int64  `json:"consult_fee" db:"consult_fee"`
	Status        string `json:"status" db:"status"`
}

// Location resolves the provider's timezone, falling back to UTC. The
// provider-local clock decides what "today" means for availability.
func (p *Provider) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Slot is one (date, time) unit of provider availability. Derived
// server-side; never stored or mutated directly.
type Slot struct {
	ProviderID uuid.UUID `json:"provider_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Booked     bool      `json:"booked"`
}

// MonthAvailability maps each date of a month to the times still open.
// Dates with no remaining capacity carry an empty list, never disappear.
type MonthAvailability map[string][]string

type ProviderFilter struct {
	Specialty string `json:"specialty" form:"specialty"`
	Status    string `json:"status" form:"status"`
	Pagination
}
