package schedule

import (
	"sort"

	"descansos/internal/models"
)

// Conflict is a pair of persisted reservations that overlap. Admission
// runs against per-session snapshots with no cross-session locking, so
// two users can both pass the overlap check and write overlapping rows;
// this pass finds such double-bookings after a refresh.
type Conflict struct {
	A models.Reservation `json:"a"`
	B models.Reservation `json:"b"`
}

// DetectOverlaps returns every overlapping pair in the snapshot, ordered
// by the earlier reservation's start time. Touching endpoints do not
// conflict.
func DetectOverlaps(reservations []models.Reservation) []Conflict {
	if len(reservations) < 2 {
		return nil
	}

	sorted := append([]models.Reservation(nil), reservations...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var conflicts []Conflict
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if !sorted[j].StartTime.Before(sorted[i].EndTime) {
				break // sorted by start; nothing later can reach back
			}
			conflicts = append(conflicts, Conflict{A: sorted[i], B: sorted[j]})
		}
	}
	return conflicts
}
