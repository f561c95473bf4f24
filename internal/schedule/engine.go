// Package schedule implements admission control for break reservations:
// the conflict engine that decides whether a candidate fits the owner's
// minute budget and the shared shift window, slot-grid coalescing, the
// repeat-day planner, and a post-refresh overlap detector.
//
// Everything here is pure. Admission never writes storage; the caller
// persists on an Admitted decision and folds the new reservation into
// the snapshot used for subsequent checks. Two sessions validating
// against stale snapshots can still double-book; that race is accepted
// and surfaced afterwards by DetectOverlaps.
package schedule

import (
	"fmt"
	"time"

	"descansos/internal/models"
	"descansos/internal/shift"
)

// RejectReason enumerates why a candidate was refused. Every rejection
// is a normal returned outcome for the caller to branch on, not an error.
type RejectReason string

const (
	ReasonInvalidDuration    RejectReason = "invalid_duration"
	ReasonBudgetExceeded     RejectReason = "budget_exceeded"
	ReasonOutsideShiftWindow RejectReason = "outside_shift_window"
	ReasonOverlap            RejectReason = "overlap"
)

// DefaultAllowedDurations are the break granularities accepted by the
// standard deployment, in minutes.
var DefaultAllowedDurations = []int{5, 10, 15, 20, 25, 30, 45, 60}

// Candidate is a proposed reservation before admission.
type Candidate struct {
	OwnerKey        string
	OwnerName       string
	Start           time.Time
	DurationMinutes int
	Notes           string
}

// End returns the candidate's exclusive end instant.
func (c Candidate) End() time.Time {
	return c.Start.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Admitted bool         `json:"admitted"`
	Reason   RejectReason `json:"reason,omitempty"`
	// RemainingMinutes accompanies BudgetExceeded: the budget the owner
	// still had before this candidate.
	RemainingMinutes int `json:"remaining_minutes,omitempty"`
	// Conflict accompanies Overlap: the existing reservation hit first.
	Conflict *models.Reservation `json:"conflict,omitempty"`
}

// String renders the decision for logs and user-facing messages.
func (d Decision) String() string {
	if d.Admitted {
		return "admitted"
	}
	switch d.Reason {
	case ReasonBudgetExceeded:
		return fmt.Sprintf("rejected: budget exceeded, %d min remaining", d.RemainingMinutes)
	case ReasonOverlap:
		if d.Conflict != nil {
			return fmt.Sprintf("rejected: overlaps reservation of %s at %s",
				d.Conflict.OwnerName, d.Conflict.StartTime.Format("15:04"))
		}
		return "rejected: overlap"
	default:
		return "rejected: " + string(d.Reason)
	}
}

// Engine validates candidates against a shift occurrence's reservation
// snapshot.
type Engine struct {
	allowed map[int]struct{}
}

// NewEngine creates an engine accepting the given break durations.
// An empty list falls back to DefaultAllowedDurations.
func NewEngine(allowedDurations []int) *Engine {
	if len(allowedDurations) == 0 {
		allowedDurations = DefaultAllowedDurations
	}
	allowed := make(map[int]struct{}, len(allowedDurations))
	for _, d := range allowedDurations {
		allowed[d] = struct{}{}
	}
	return &Engine{allowed: allowed}
}

// UsedMinutes sums the durations of owner's reservations whose start
// falls within the occurrence window.
func (e *Engine) UsedMinutes(ownerKey string, occ shift.Occurrence, existing []models.Reservation) int {
	used := 0
	for i := range existing {
		r := &existing[i]
		if r.OwnerKey == ownerKey && occ.Contains(r.StartTime) {
			used += r.DurationMinutes
		}
	}
	return used
}

// TryAdmit runs the validation sequence against the occurrence and the
// current snapshot. Checks short-circuit in order of relevance to the
// user: duration, budget, window containment, overlap. Overlaps are
// global across owners sharing the shift.
func (e *Engine) TryAdmit(cand Candidate, occ shift.Occurrence, existing []models.Reservation, budgetCeiling int) Decision {
	if _, ok := e.allowed[cand.DurationMinutes]; !ok {
		return Decision{Reason: ReasonInvalidDuration}
	}

	used := e.UsedMinutes(cand.OwnerKey, occ, existing)
	if used+cand.DurationMinutes > budgetCeiling {
		remaining := budgetCeiling - used
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Reason: ReasonBudgetExceeded, RemainingMinutes: remaining}
	}

	end := cand.End()
	if !occ.ContainsRange(cand.Start, end) {
		return Decision{Reason: ReasonOutsideShiftWindow}
	}

	for i := range existing {
		r := &existing[i]
		if r.OverlapsRange(cand.Start, end) {
			conflict := existing[i]
			return Decision{Reason: ReasonOverlap, Conflict: &conflict}
		}
	}

	return Decision{Admitted: true}
}

// Reservation materializes an admitted candidate as an unpersisted
// reservation record; the storage layer assigns its id.
func (c Candidate) Reservation(shiftLabel string) models.Reservation {
	return models.Reservation{
		OwnerKey:        c.OwnerKey,
		OwnerName:       c.OwnerName,
		ShiftLabel:      shiftLabel,
		StartTime:       c.Start,
		EndTime:         c.End(),
		DurationMinutes: c.DurationMinutes,
		Notes:           c.Notes,
	}
}
