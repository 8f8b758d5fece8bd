// Package sync implements external calendar feed reconciliation and the
// auto-sync scheduler.
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/phontary/Dienstato-sub003/internal/ics"
	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// Fetcher retrieves raw ICS content for a sync record's URL.
type Fetcher interface {
	Fetch(ctx context.Context, calendarURL string) ([]byte, error)
}

// Service reconciles remote calendar feeds against locally imported shifts.
type Service struct {
	db        *storage.DB
	syncRepo  *storage.ExternalSyncRepository
	shiftRepo *storage.ShiftRepository
	fetcher   Fetcher
	now       func() time.Time
	horizon   time.Duration
}

// NewService creates a new sync service.
func NewService(
	db *storage.DB,
	syncRepo *storage.ExternalSyncRepository,
	shiftRepo *storage.ShiftRepository,
	fetcher Fetcher,
) *Service {
	return &Service{
		db:        db,
		syncRepo:  syncRepo,
		shiftRepo: shiftRepo,
		fetcher:   fetcher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service's time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetHorizon overrides the recurrence expansion horizon.
func (s *Service) SetHorizon(horizon time.Duration) {
	s.horizon = horizon
}

// SyncOne fetches, validates and reconciles a single sync record.
// The returned result is the tagged attempt outcome: a nil Error means the
// full diff was committed, a non-nil Error means nothing was persisted.
func (s *Service) SyncOne(ctx context.Context, syncID string) (*models.SyncResult, error) {
	record, err := s.syncRepo.GetByID(ctx, syncID)
	if err != nil {
		return nil, fmt.Errorf("getting sync record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("external sync not found: %s", syncID)
	}

	result := &models.SyncResult{
		SyncID:     record.ID,
		SyncName:   record.Name,
		CalendarID: record.CalendarID,
		SyncedAt:   s.now(),
	}

	if err := s.syncRepo.UpdateSyncStatus(ctx, record.ID, models.SyncStatusSyncing, nil); err != nil {
		log.Printf("Failed to update sync status for %s: %v", record.ID, err)
	}

	remote, err := s.fetchEvents(ctx, record)
	if err != nil {
		return s.fail(ctx, result, err)
	}
	result.EventsFound = len(remote)

	if err := s.reconcile(ctx, record, remote, result); err != nil {
		return s.fail(ctx, result, err)
	}

	if err := s.syncRepo.UpdateSyncStatus(ctx, record.ID, models.SyncStatusSuccess, nil); err != nil {
		log.Printf("Failed to update sync status for %s: %v", record.ID, err)
	}

	return result, nil
}

// fail records the failure on the sync record and returns the attempt.
// last_synced_at is deliberately not advanced, so the record stays due and
// the next tick retries.
func (s *Service) fail(ctx context.Context, result *models.SyncResult, err error) (*models.SyncResult, error) {
	errMsg := err.Error()
	if uerr := s.syncRepo.UpdateSyncStatus(ctx, result.SyncID, models.SyncStatusError, &errMsg); uerr != nil {
		log.Printf("Failed to record sync error for %s: %v", result.SyncID, uerr)
	}
	result.Error = err
	return result, err
}

// fetchEvents retrieves, validates, parses and expands the remote feed.
func (s *Service) fetchEvents(ctx context.Context, record *models.ExternalSync) ([]ics.RemoteEvent, error) {
	body, err := s.fetcher.Fetch(ctx, record.CalendarURL)
	if err != nil {
		return nil, err
	}

	if err := ics.ValidateContent(body); err != nil {
		return nil, err
	}

	events, err := ics.Parse(body)
	if err != nil {
		return nil, err
	}

	return ics.Expand(events, s.now(), s.horizon), nil
}

// reconcile applies the three-way diff between remote events and previously
// imported shifts as a single transaction.
func (s *Service) reconcile(ctx context.Context, record *models.ExternalSync, remote []ics.RemoteEvent, result *models.SyncResult) error {
	existing, err := s.shiftRepo.ListBySync(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("listing imported shifts: %w", err)
	}

	existingByUID := make(map[string]*models.Shift, len(existing))
	for i := range existing {
		if existing[i].RemoteEventUID != nil {
			existingByUID[*existing[i].RemoteEventUID] = &existing[i]
		}
	}

	// The remote UID is the natural key; a feed that repeats a UID only
	// contributes its last instance.
	remoteByUID := make(map[string]ics.RemoteEvent, len(remote))
	for _, ev := range remote {
		remoteByUID[ev.UID] = ev
	}

	var inserts, updates []models.Shift
	for uid, ev := range remoteByUID {
		want := s.eventToShift(record, ev)
		have, ok := existingByUID[uid]
		if !ok {
			inserts = append(inserts, want)
			continue
		}
		if shiftDiffers(have, &want) {
			merged := *have
			merged.Date = want.Date
			merged.StartTime = want.StartTime
			merged.EndTime = want.EndTime
			merged.IsAllDay = want.IsAllDay
			merged.Title = want.Title
			merged.Notes = want.Notes
			updates = append(updates, merged)
		}
	}

	var deletes []string
	for uid, have := range existingByUID {
		if _, ok := remoteByUID[uid]; !ok {
			deletes = append(deletes, have.ID)
		}
	}

	if len(inserts) == 0 && len(updates) == 0 && len(deletes) == 0 {
		return nil
	}

	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for i := range inserts {
			if err := s.shiftRepo.CreateQ(ctx, tx, &inserts[i]); err != nil {
				return err
			}
		}
		for i := range updates {
			if err := s.shiftRepo.UpdateQ(ctx, tx, &updates[i]); err != nil {
				return err
			}
		}
		for _, id := range deletes {
			if err := s.shiftRepo.DeleteQ(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("applying sync diff: %w", err)
	}

	result.ShiftsCreated = len(inserts)
	result.ShiftsUpdated = len(updates)
	result.ShiftsRemoved = len(deletes)
	return nil
}

// eventToShift converts a remote event into the shift it should produce.
func (s *Service) eventToShift(record *models.ExternalSync, ev ics.RemoteEvent) models.Shift {
	shift := models.Shift{
		CalendarID:     record.CalendarID,
		Date:           ev.Start.Format("2006-01-02"),
		IsAllDay:       ev.AllDay,
		Title:          ev.Summary,
		Color:          record.Color,
		Notes:          ev.Description,
		ExternalSyncID: &record.ID,
		RemoteEventUID: &ev.UID,
	}

	if !ev.AllDay {
		shift.StartTime = ev.Start.Format("15:04")
		if !ev.End.IsZero() {
			shift.EndTime = ev.End.Format("15:04")
		}
	}

	return shift
}

// shiftDiffers reports whether the remote event's fields diverge from the
// stored shift. Color is excluded: it belongs to the sync's display settings,
// not to the remote feed.
func shiftDiffers(have, want *models.Shift) bool {
	return have.Date != want.Date ||
		have.StartTime != want.StartTime ||
		have.EndTime != want.EndTime ||
		have.IsAllDay != want.IsAllDay ||
		have.Title != want.Title ||
		have.Notes != want.Notes
}
