package schedule

import (
	"sort"
	"time"

	"descansos/internal/models"
)

// Block is a run of contiguous atomic slot cells coalesced into a single
// reservation candidate. Five separately clicked but adjacent 10-minute
// cells become one 50-minute block, not five reservations.
type Block struct {
	Start           time.Time
	DurationMinutes int
}

// End returns the block's exclusive end instant.
func (b Block) End() time.Time {
	return b.Start.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// CoalesceSlots merges a selection of atomic slot start times into
// contiguous blocks. Cell i joins cell i+1 when i's end equals i+1's
// start; a gap starts a new block. Duplicate picks collapse.
func CoalesceSlots(picks []time.Time, slotMinutes int) []Block {
	if len(picks) == 0 || slotMinutes <= 0 {
		return nil
	}

	sorted := append([]time.Time(nil), picks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var blocks []Block
	current := Block{Start: sorted[0], DurationMinutes: slotMinutes}
	lastCell := sorted[0]

	for _, pick := range sorted[1:] {
		if pick.Equal(lastCell) {
			continue
		}
		if pick.Equal(current.End()) {
			current.DurationMinutes += slotMinutes
		} else {
			blocks = append(blocks, current)
			current = Block{Start: pick, DurationMinutes: slotMinutes}
		}
		lastCell = pick
	}
	return append(blocks, current)
}

// SlotCell is one atomic grid cell of the shift window, annotated with
// whether any existing reservation occupies it.
type SlotCell struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Taken bool      `json:"taken"`
	By    string    `json:"by,omitempty"`
}

// BuildGrid lays out the atomic cells covering [start, end) and marks
// the ones any existing reservation overlaps.
func BuildGrid(start, end time.Time, slotMinutes int, existing []models.Reservation) []SlotCell {
	if slotMinutes <= 0 || !end.After(start) {
		return nil
	}

	cell := time.Duration(slotMinutes) * time.Minute
	var cells []SlotCell
	for cursor := start; !cursor.Add(cell).After(end); cursor = cursor.Add(cell) {
		sc := SlotCell{Start: cursor, End: cursor.Add(cell)}
		for i := range existing {
			if existing[i].OverlapsRange(sc.Start, sc.End) {
				sc.Taken = true
				sc.By = existing[i].OwnerName
				break
			}
		}
		cells = append(cells, sc)
	}
	return cells
}
