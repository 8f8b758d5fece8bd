package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// ExternalSyncRepository provides data access for external sync records.
type ExternalSyncRepository struct {
	BaseRepository
}

// NewExternalSyncRepository creates a new external sync repository.
func NewExternalSyncRepository(db *DB) *ExternalSyncRepository {
	return &ExternalSyncRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const externalSyncColumns = `id, calendar_id, name, sync_type, calendar_url, color,
       display_mode, auto_sync_interval, is_one_time_import, is_hidden, hide_from_stats,
       sync_status, sync_error, last_synced_at, created_at, updated_at`

// Create inserts a new external sync record.
func (r *ExternalSyncRepository) Create(ctx context.Context, s *models.ExternalSync) error {
	s.ID = GenerateID()
	s.CreatedAt = r.Now()
	s.UpdatedAt = r.Now()
	s.SyncStatus = models.SyncStatusPending

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO external_syncs (
			id, calendar_id, name, sync_type, calendar_url, color,
			display_mode, auto_sync_interval, is_one_time_import, is_hidden, hide_from_stats,
			sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.CalendarID, s.Name, s.SyncType, s.CalendarURL, s.Color,
		s.DisplayMode, s.AutoSyncInterval, s.IsOneTimeImport, s.IsHidden, s.HideFromStats,
		s.SyncStatus, s.CreatedAt, s.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting external sync: %w", err)
	}

	return nil
}

// GetByID retrieves an external sync by its ID.
func (r *ExternalSyncRepository) GetByID(ctx context.Context, id string) (*models.ExternalSync, error) {
	s := &models.ExternalSync{}

	err := r.DB().QueryRowContext(ctx,
		`SELECT `+externalSyncColumns+` FROM external_syncs WHERE id = ?`, id,
	).Scan(
		&s.ID, &s.CalendarID, &s.Name, &s.SyncType, &s.CalendarURL, &s.Color,
		&s.DisplayMode, &s.AutoSyncInterval, &s.IsOneTimeImport, &s.IsHidden, &s.HideFromStats,
		&s.SyncStatus, &s.SyncError, &s.LastSyncedAt, &s.CreatedAt, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying external sync: %w", err)
	}

	return s, nil
}

// ListByCalendar retrieves all sync records for a calendar, newest first.
func (r *ExternalSyncRepository) ListByCalendar(ctx context.Context, calendarID string) ([]models.ExternalSync, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+externalSyncColumns+` FROM external_syncs
		 WHERE calendar_id = ? ORDER BY created_at DESC`,
		calendarID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying external syncs: %w", err)
	}
	defer rows.Close()

	return r.scanSyncs(rows)
}

// ListAutoSync retrieves all records with a non-zero auto-sync interval.
// The scheduler scans this list on every tick to compute due-ness.
func (r *ExternalSyncRepository) ListAutoSync(ctx context.Context) ([]models.ExternalSync, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+externalSyncColumns+` FROM external_syncs
		 WHERE auto_sync_interval > 0
		 ORDER BY last_synced_at ASC NULLS FIRST`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying auto-sync records: %w", err)
	}
	defer rows.Close()

	return r.scanSyncs(rows)
}

func (r *ExternalSyncRepository) scanSyncs(rows *sql.Rows) ([]models.ExternalSync, error) {
	var syncs []models.ExternalSync
	for rows.Next() {
		var s models.ExternalSync
		if err := rows.Scan(
			&s.ID, &s.CalendarID, &s.Name, &s.SyncType, &s.CalendarURL, &s.Color,
			&s.DisplayMode, &s.AutoSyncInterval, &s.IsOneTimeImport, &s.IsHidden, &s.HideFromStats,
			&s.SyncStatus, &s.SyncError, &s.LastSyncedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning external sync: %w", err)
		}
		syncs = append(syncs, s)
	}
	return syncs, rows.Err()
}

// Update updates the user-editable fields of a sync record.
func (r *ExternalSyncRepository) Update(ctx context.Context, s *models.ExternalSync) error {
	s.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE external_syncs SET
			name = ?, color = ?, display_mode = ?, auto_sync_interval = ?,
			is_hidden = ?, hide_from_stats = ?, updated_at = ?
		WHERE id = ?
	`,
		s.Name, s.Color, s.DisplayMode, s.AutoSyncInterval,
		s.IsHidden, s.HideFromStats, s.UpdatedAt, s.ID,
	)

	if err != nil {
		return fmt.Errorf("updating external sync: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("external sync not found: %s", s.ID)
	}

	return nil
}

// UpdateSyncStatus updates the sync status of a record. On success the
// last_synced_at timestamp advances to now; on failure it is left alone so
// the record becomes due again on the next tick.
func (r *ExternalSyncRepository) UpdateSyncStatus(ctx context.Context, id string, status string, syncError *string) error {
	now := time.Now().UTC()
	var lastSyncedAt *time.Time
	if status == models.SyncStatusSuccess {
		lastSyncedAt = &now
	}

	_, err := r.DB().ExecContext(ctx, `
		UPDATE external_syncs SET
			sync_status = ?, sync_error = ?, last_synced_at = COALESCE(?, last_synced_at), updated_at = ?
		WHERE id = ?
	`, status, syncError, lastSyncedAt, now, id)

	if err != nil {
		return fmt.Errorf("updating sync status: %w", err)
	}

	return nil
}

// Delete removes a sync record by ID. Shifts imported by the sync cascade
// via the external_sync_id foreign key; user-authored shifts are untouched.
func (r *ExternalSyncRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM external_syncs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting external sync: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("external sync not found: %s", id)
	}

	return nil
}
