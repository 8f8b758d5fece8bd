package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// CalendarRepository provides data access for calendars and shift presets.
type CalendarRepository struct {
	BaseRepository
}

// NewCalendarRepository creates a new calendar repository.
func NewCalendarRepository(db *DB) *CalendarRepository {
	return &CalendarRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new calendar.
func (r *CalendarRepository) Create(ctx context.Context, cal *models.Calendar) error {
	cal.ID = GenerateID()
	cal.CreatedAt = r.Now()
	cal.UpdatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO calendars (id, owner_id, name, color, share_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		cal.ID, cal.OwnerID, cal.Name, cal.Color, cal.ShareToken, cal.CreatedAt, cal.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting calendar: %w", err)
	}

	return nil
}

// GetByID retrieves a calendar by its ID.
func (r *CalendarRepository) GetByID(ctx context.Context, id string) (*models.Calendar, error) {
	cal := &models.Calendar{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, owner_id, name, color, share_token, created_at, updated_at
		FROM calendars WHERE id = ?
	`, id).Scan(
		&cal.ID, &cal.OwnerID, &cal.Name, &cal.Color, &cal.ShareToken,
		&cal.CreatedAt, &cal.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying calendar: %w", err)
	}

	return cal, nil
}

// GetByShareToken retrieves a calendar by its share token.
func (r *CalendarRepository) GetByShareToken(ctx context.Context, token string) (*models.Calendar, error) {
	cal := &models.Calendar{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, owner_id, name, color, share_token, created_at, updated_at
		FROM calendars WHERE share_token = ?
	`, token).Scan(
		&cal.ID, &cal.OwnerID, &cal.Name, &cal.Color, &cal.ShareToken,
		&cal.CreatedAt, &cal.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying calendar by share token: %w", err)
	}

	return cal, nil
}

// ListByOwner retrieves all calendars belonging to a user.
func (r *CalendarRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Calendar, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, owner_id, name, color, share_token, created_at, updated_at
		FROM calendars
		WHERE owner_id = ?
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying calendars: %w", err)
	}
	defer rows.Close()

	var calendars []models.Calendar
	for rows.Next() {
		var cal models.Calendar
		if err := rows.Scan(
			&cal.ID, &cal.OwnerID, &cal.Name, &cal.Color, &cal.ShareToken,
			&cal.CreatedAt, &cal.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning calendar: %w", err)
		}
		calendars = append(calendars, cal)
	}

	return calendars, rows.Err()
}

// Update updates a calendar's name and color.
func (r *CalendarRepository) Update(ctx context.Context, cal *models.Calendar) error {
	cal.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE calendars SET name = ?, color = ?, updated_at = ? WHERE id = ?
	`, cal.Name, cal.Color, cal.UpdatedAt, cal.ID)

	if err != nil {
		return fmt.Errorf("updating calendar: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("calendar not found: %s", cal.ID)
	}

	return nil
}

// SetShareToken sets or clears the calendar's share token.
func (r *CalendarRepository) SetShareToken(ctx context.Context, id string, token *string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE calendars SET share_token = ?, updated_at = ? WHERE id = ?
	`, token, r.Now(), id)

	if err != nil {
		return fmt.Errorf("updating share token: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("calendar not found: %s", id)
	}

	return nil
}

// Delete removes a calendar by ID. Shifts, presets and external syncs
// cascade via foreign keys.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM calendars WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting calendar: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("calendar not found: %s", id)
	}

	return nil
}

// CreatePreset inserts a new shift preset.
func (r *CalendarRepository) CreatePreset(ctx context.Context, preset *models.ShiftPreset) error {
	preset.ID = GenerateID()
	preset.CreatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO shift_presets (id, calendar_id, name, start_time, end_time, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		preset.ID, preset.CalendarID, preset.Name, preset.StartTime,
		preset.EndTime, preset.Color, preset.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting preset: %w", err)
	}

	return nil
}

// ListPresets retrieves all presets for a calendar.
func (r *CalendarRepository) ListPresets(ctx context.Context, calendarID string) ([]models.ShiftPreset, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, calendar_id, name, start_time, end_time, color, created_at
		FROM shift_presets
		WHERE calendar_id = ?
		ORDER BY name
	`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("querying presets: %w", err)
	}
	defer rows.Close()

	var presets []models.ShiftPreset
	for rows.Next() {
		var p models.ShiftPreset
		if err := rows.Scan(
			&p.ID, &p.CalendarID, &p.Name, &p.StartTime, &p.EndTime, &p.Color, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning preset: %w", err)
		}
		presets = append(presets, p)
	}

	return presets, rows.Err()
}

// GetPreset retrieves a preset by ID.
func (r *CalendarRepository) GetPreset(ctx context.Context, id string) (*models.ShiftPreset, error) {
	p := &models.ShiftPreset{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, calendar_id, name, start_time, end_time, color, created_at
		FROM shift_presets WHERE id = ?
	`, id).Scan(&p.ID, &p.CalendarID, &p.Name, &p.StartTime, &p.EndTime, &p.Color, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying preset: %w", err)
	}

	return p, nil
}

// DeletePreset removes a preset by ID.
func (r *CalendarRepository) DeletePreset(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM shift_presets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting preset: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("preset not found: %s", id)
	}

	return nil
}
