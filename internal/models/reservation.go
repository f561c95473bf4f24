package models

import (
	"strings"
	"time"
)

// GuestKeyPrefix marks owner keys derived from a guest display name.
// Guests have no stable identifier: two guest sessions entering the same
// name are treated as the same owner for budget accounting and deletion.
// That weak equality is deliberate, documented behavior.
const GuestKeyPrefix = "guest:"

// Reservation is one booked break inside a shift occurrence. Records are
// never mutated after creation; the only edit path is delete plus
// recreate.
type Reservation struct {
	ID              int64     `json:"id"`
	OwnerKey        string    `json:"owner_key"`
	OwnerName       string    `json:"owner_name"`
	ShiftLabel      string    `json:"shift_label"` // informational copy, not used for conflicts
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// GuestKey builds the owner key for a guest display name.
func GuestKey(name string) string {
	return GuestKeyPrefix + strings.TrimSpace(name)
}

// IsGuestKey reports whether an owner key denotes a guest identity.
func IsGuestKey(key string) bool {
	return strings.HasPrefix(key, GuestKeyPrefix)
}

// OverlapsRange reports whether the reservation overlaps [start, end).
// Half-open semantics: touching endpoints do not conflict.
func (r *Reservation) OverlapsRange(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

// OverlapsWith reports whether two reservations overlap.
func (r *Reservation) OverlapsWith(other *Reservation) bool {
	return r.OverlapsRange(other.StartTime, other.EndTime)
}
