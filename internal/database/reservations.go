package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"descansos/internal/models"
)

// CreateReservation inserts the reservation and fills in its assigned id
// and creation time.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO reservations (owner_key, owner_name, shift_label, start_time, end_time, duration_minutes, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OwnerKey, r.OwnerName, r.ShiftLabel, r.StartTime.UTC(), r.EndTime.UTC(), r.DurationMinutes, r.Notes, now,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reservation id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

// GetReservation returns a reservation by id, or nil when absent.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, owner_key, owner_name, shift_label, start_time, end_time, duration_minutes, notes, created_at
		FROM reservations WHERE id = ?`, id)

	var r models.Reservation
	err := row.Scan(&r.ID, &r.OwnerKey, &r.OwnerName, &r.ShiftLabel, &r.StartTime, &r.EndTime, &r.DurationMinutes, &r.Notes, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReservation removes a reservation only when ownerKey matches.
// Returns false when no row matched (absent or foreign ownership).
func (db *DB) DeleteReservation(ctx context.Context, id int64, ownerKey string) (bool, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM reservations WHERE id = ? AND owner_key = ?", id, ownerKey)
	if err != nil {
		return false, fmt.Errorf("delete reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListReservationsBetween returns all reservations whose start falls in
// [start, end), across all owners, ordered by start time.
func (db *DB) ListReservationsBetween(ctx context.Context, start, end time.Time) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_key, owner_name, shift_label, start_time, end_time, duration_minutes, notes, created_at
		FROM reservations
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ListOwnerReservationsBetween returns one owner's reservations whose
// start falls in [start, end).
func (db *DB) ListOwnerReservationsBetween(ctx context.Context, ownerKey string, start, end time.Time) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_key, owner_name, shift_label, start_time, end_time, duration_minutes, notes, created_at
		FROM reservations
		WHERE owner_key = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		ownerKey, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// DeleteReservationsBefore removes reservations that ended before the
// cutoff. Used by the retention sweep.
func (db *DB) DeleteReservationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM reservations WHERE end_time < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("retention delete: %w", err)
	}
	return res.RowsAffected()
}

// ListUpcomingUnreminded returns reservations starting within the given
// window that have not had a reminder sent.
func (db *DB) ListUpcomingUnreminded(ctx context.Context, within time.Duration) ([]models.Reservation, error) {
	now := time.Now().UTC()
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_key, owner_name, shift_label, start_time, end_time, duration_minutes, notes, created_at
		FROM reservations
		WHERE reminder_sent = 0 AND start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		now, now.Add(within),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// MarkReminderSent flags a reservation's reminder as delivered.
func (db *DB) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE reservations SET reminder_sent = 1 WHERE id = ?", id)
	return err
}

func scanReservations(rows *sql.Rows) ([]models.Reservation, error) {
	var out []models.Reservation
	for rows.Next() {
		var r models.Reservation
		if err := rows.Scan(&r.ID, &r.OwnerKey, &r.OwnerName, &r.ShiftLabel, &r.StartTime, &r.EndTime, &r.DurationMinutes, &r.Notes, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
