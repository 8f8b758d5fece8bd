package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// ShiftRepository provides data access for shifts.
//
// The reconciler applies its whole diff inside one transaction, so the
// write methods come in pairs: a plain method bound to the repository's
// connection and a *Q variant that runs on any Queryable (usually *sql.Tx).
type ShiftRepository struct {
	BaseRepository
}

// NewShiftRepository creates a new shift repository.
func NewShiftRepository(db *DB) *ShiftRepository {
	return &ShiftRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const shiftColumns = `id, calendar_id, date, start_time, end_time, is_all_day,
       title, color, notes, external_sync_id, remote_event_uid, created_at, updated_at`

// Create inserts a new shift.
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift) error {
	return r.CreateQ(ctx, r.DB(), shift)
}

// CreateQ inserts a new shift using the given Queryable.
func (r *ShiftRepository) CreateQ(ctx context.Context, q Queryable, shift *models.Shift) error {
	if shift.ID == "" {
		shift.ID = GenerateID()
	}
	shift.CreatedAt = r.Now()
	shift.UpdatedAt = r.Now()

	_, err := q.ExecContext(ctx, `
		INSERT INTO shifts (
			id, calendar_id, date, start_time, end_time, is_all_day,
			title, color, notes, external_sync_id, remote_event_uid, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		shift.ID, shift.CalendarID, shift.Date, shift.StartTime, shift.EndTime,
		shift.IsAllDay, shift.Title, shift.Color, shift.Notes,
		shift.ExternalSyncID, shift.RemoteEventUID, shift.CreatedAt, shift.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting shift: %w", err)
	}

	return nil
}

// GetByID retrieves a shift by its ID.
func (r *ShiftRepository) GetByID(ctx context.Context, id string) (*models.Shift, error) {
	shift := &models.Shift{}

	err := r.DB().QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id,
	).Scan(
		&shift.ID, &shift.CalendarID, &shift.Date, &shift.StartTime, &shift.EndTime,
		&shift.IsAllDay, &shift.Title, &shift.Color, &shift.Notes,
		&shift.ExternalSyncID, &shift.RemoteEventUID, &shift.CreatedAt, &shift.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying shift: %w", err)
	}

	return shift, nil
}

// ListByCalendar retrieves all shifts for a calendar ordered by date.
func (r *ShiftRepository) ListByCalendar(ctx context.Context, calendarID string) ([]models.Shift, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE calendar_id = ? ORDER BY date, start_time`,
		calendarID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying shifts: %w", err)
	}
	defer rows.Close()

	return r.scanShifts(rows)
}

// ListBySync retrieves all shifts previously imported by an external sync.
func (r *ShiftRepository) ListBySync(ctx context.Context, syncID string) ([]models.Shift, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE external_sync_id = ? ORDER BY date, start_time`,
		syncID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying shifts by sync: %w", err)
	}
	defer rows.Close()

	return r.scanShifts(rows)
}

func (r *ShiftRepository) scanShifts(rows *sql.Rows) ([]models.Shift, error) {
	var shifts []models.Shift
	for rows.Next() {
		var shift models.Shift
		if err := rows.Scan(
			&shift.ID, &shift.CalendarID, &shift.Date, &shift.StartTime, &shift.EndTime,
			&shift.IsAllDay, &shift.Title, &shift.Color, &shift.Notes,
			&shift.ExternalSyncID, &shift.RemoteEventUID, &shift.CreatedAt, &shift.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning shift: %w", err)
		}
		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}

// Update updates an existing shift.
func (r *ShiftRepository) Update(ctx context.Context, shift *models.Shift) error {
	return r.UpdateQ(ctx, r.DB(), shift)
}

// UpdateQ updates an existing shift using the given Queryable.
func (r *ShiftRepository) UpdateQ(ctx context.Context, q Queryable, shift *models.Shift) error {
	shift.UpdatedAt = r.Now()

	result, err := q.ExecContext(ctx, `
		UPDATE shifts SET
			date = ?, start_time = ?, end_time = ?, is_all_day = ?,
			title = ?, color = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		shift.Date, shift.StartTime, shift.EndTime, shift.IsAllDay,
		shift.Title, shift.Color, shift.Notes, shift.UpdatedAt, shift.ID,
	)

	if err != nil {
		return fmt.Errorf("updating shift: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("shift not found: %s", shift.ID)
	}

	return nil
}

// Delete removes a shift by ID.
func (r *ShiftRepository) Delete(ctx context.Context, id string) error {
	return r.DeleteQ(ctx, r.DB(), id)
}

// DeleteQ removes a shift by ID using the given Queryable.
func (r *ShiftRepository) DeleteQ(ctx context.Context, q Queryable, id string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM shifts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting shift: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("shift not found: %s", id)
	}

	return nil
}
