package schedule

import (
	"time"

	"descansos/internal/models"
	"descansos/internal/shift"
)

// Rejection pairs a projected candidate with the decision that refused it.
type Rejection struct {
	Candidate Candidate `json:"candidate"`
	Decision  Decision  `json:"decision"`
}

// ReplicationReport is the outcome of projecting one day's reservations
// onto another. Partial success is normal: admitted entries stay valid
// even when later ones in the same batch are rejected.
type ReplicationReport struct {
	Admitted []models.Reservation `json:"admitted"`
	Rejected []Rejection          `json:"rejected"`
}

// Planner re-projects a prior day's reservations onto a target shift
// occurrence, preserving each reservation's time-of-day and duration.
type Planner struct {
	engine *Engine
}

// NewPlanner creates a planner validating through the given engine.
func NewPlanner(engine *Engine) *Planner {
	return &Planner{engine: engine}
}

// Replicate validates each source reservation, projected onto the target
// occurrence, against the accumulating target set: every admission is
// folded into the snapshot used for the next candidate, so a batch that
// was conflict-free on the source day stays self-consistent on the
// target day. No rollback occurs on rejection.
func (p *Planner) Replicate(source []models.Reservation, target shift.Occurrence, existingTarget []models.Reservation, budgetCeiling int) ReplicationReport {
	var report ReplicationReport
	working := append([]models.Reservation(nil), existingTarget...)

	for i := range source {
		src := &source[i]
		cand := Candidate{
			OwnerKey:        src.OwnerKey,
			OwnerName:       src.OwnerName,
			Start:           projectTimeOfDay(src.StartTime, target),
			DurationMinutes: src.DurationMinutes,
			Notes:           src.Notes,
		}

		decision := p.engine.TryAdmit(cand, target, working, budgetCeiling)
		if !decision.Admitted {
			report.Rejected = append(report.Rejected, Rejection{Candidate: cand, Decision: decision})
			continue
		}

		res := cand.Reservation(src.ShiftLabel)
		working = append(working, res)
		report.Admitted = append(report.Admitted, res)
	}

	return report
}

// projectTimeOfDay maps an instant's wall-clock time onto the target
// occurrence's calendar. A night occurrence spans two dates: times at or
// after the occurrence's start-of-day anchor land on the first date,
// times past midnight on the second.
func projectTimeOfDay(src time.Time, target shift.Occurrence) time.Time {
	loc := target.Start.Location()
	src = src.In(loc)

	day := target.Start
	tod := src.Hour()*60 + src.Minute()
	startTod := target.Start.Hour()*60 + target.Start.Minute()
	if tod < startTod && !sameDate(target.Start, target.End) {
		day = target.End
	}

	return time.Date(day.Year(), day.Month(), day.Day(), src.Hour(), src.Minute(), 0, 0, loc)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
