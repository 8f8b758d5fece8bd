package storage

import (
	"context"
	"testing"
	"time"

	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

func TestExternalSyncRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	cal := seedCalendar(t, db, user.ID)
	repo := NewExternalSyncRepository(db)

	created := seedSync(t, db, cal.ID, 60)
	if created.ID == "" {
		t.Fatal("Create did not assign an ID")
	}
	if created.SyncStatus != models.SyncStatusPending {
		t.Errorf("new record status = %q, want pending", created.SyncStatus)
	}

	got, err := repo.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil for existing record")
	}
	if got.Name != "Team feed" || got.AutoSyncInterval != 60 || got.SyncType != models.SyncTypeCustom {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.LastSyncedAt != nil {
		t.Error("new record should have no last_synced_at")
	}

	missing, err := repo.GetByID(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestExternalSyncRepository_ListByCalendarNewestFirst(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	cal := seedCalendar(t, db, user.ID)
	repo := NewExternalSyncRepository(db)

	first := seedSync(t, db, cal.ID, 0)
	// created_at has second precision in SQLite comparisons; force an
	// ordering difference.
	if _, err := db.ExecContext(context.Background(),
		`UPDATE external_syncs SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour), first.ID,
	); err != nil {
		t.Fatalf("backdating record: %v", err)
	}
	second := seedSync(t, db, cal.ID, 60)

	syncs, err := repo.ListByCalendar(context.Background(), cal.ID)
	if err != nil {
		t.Fatalf("ListByCalendar failed: %v", err)
	}
	if len(syncs) != 2 {
		t.Fatalf("got %d records, want 2", len(syncs))
	}
	if syncs[0].ID != second.ID || syncs[1].ID != first.ID {
		t.Errorf("records not newest first: %s, %s", syncs[0].ID, syncs[1].ID)
	}
}

func TestExternalSyncRepository_ListAutoSyncSkipsZeroInterval(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	cal := seedCalendar(t, db, user.ID)
	repo := NewExternalSyncRepository(db)

	seedSync(t, db, cal.ID, 0)
	auto := seedSync(t, db, cal.ID, 30)

	records, err := repo.ListAutoSync(context.Background())
	if err != nil {
		t.Fatalf("ListAutoSync failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != auto.ID {
		t.Errorf("ListAutoSync = %+v, want only the interval-30 record", records)
	}
}

func TestExternalSyncRepository_UpdateSyncStatus(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	cal := seedCalendar(t, db, user.ID)
	repo := NewExternalSyncRepository(db)
	ctx := context.Background()

	rec := seedSync(t, db, cal.ID, 60)

	// A failed attempt records the error but must not advance last_synced_at.
	errMsg := "feed returned status 500"
	if err := repo.UpdateSyncStatus(ctx, rec.ID, models.SyncStatusError, &errMsg); err != nil {
		t.Fatalf("UpdateSyncStatus(error) failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, rec.ID)
	if got.SyncStatus != models.SyncStatusError {
		t.Errorf("status = %q, want error", got.SyncStatus)
	}
	if got.SyncError == nil || *got.SyncError != errMsg {
		t.Errorf("sync_error = %v, want %q", got.SyncError, errMsg)
	}
	if got.LastSyncedAt != nil {
		t.Error("failed attempt advanced last_synced_at")
	}

	// A successful attempt clears the error and stamps last_synced_at.
	if err := repo.UpdateSyncStatus(ctx, rec.ID, models.SyncStatusSuccess, nil); err != nil {
		t.Fatalf("UpdateSyncStatus(success) failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, rec.ID)
	if got.SyncStatus != models.SyncStatusSuccess {
		t.Errorf("status = %q, want success", got.SyncStatus)
	}
	if got.SyncError != nil {
		t.Errorf("sync_error = %v, want nil", got.SyncError)
	}
	if got.LastSyncedAt == nil {
		t.Fatal("successful attempt did not set last_synced_at")
	}

	// Another failure keeps the previous last_synced_at.
	before := *got.LastSyncedAt
	if err := repo.UpdateSyncStatus(ctx, rec.ID, models.SyncStatusError, &errMsg); err != nil {
		t.Fatalf("UpdateSyncStatus(error) failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, rec.ID)
	if got.LastSyncedAt == nil || !got.LastSyncedAt.Equal(before) {
		t.Errorf("last_synced_at changed on failure: %v -> %v", before, got.LastSyncedAt)
	}
}

func TestExternalSyncRepository_DeleteCascadesImportedShiftsOnly(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	cal := seedCalendar(t, db, user.ID)
	syncRepo := NewExternalSyncRepository(db)
	shiftRepo := NewShiftRepository(db)
	ctx := context.Background()

	rec := seedSync(t, db, cal.ID, 0)

	uid := "remote-1"
	imported := &models.Shift{
		CalendarID:     cal.ID,
		Date:           "2026-09-01",
		StartTime:      "08:00",
		EndTime:        "16:00",
		Title:          "Imported",
		ExternalSyncID: &rec.ID,
		RemoteEventUID: &uid,
	}
	if err := shiftRepo.Create(ctx, imported); err != nil {
		t.Fatalf("creating imported shift: %v", err)
	}

	manual := &models.Shift{
		CalendarID: cal.ID,
		Date:       "2026-09-02",
		Title:      "Manual",
	}
	if err := shiftRepo.Create(ctx, manual); err != nil {
		t.Fatalf("creating manual shift: %v", err)
	}

	if err := syncRepo.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if got, _ := shiftRepo.GetByID(ctx, imported.ID); got != nil {
		t.Error("imported shift survived sync deletion")
	}
	if got, _ := shiftRepo.GetByID(ctx, manual.ID); got == nil {
		t.Error("manual shift was deleted with the sync")
	}
}

func TestShiftRepository_UniqueRemoteUIDPerSync(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	cal := seedCalendar(t, db, user.ID)
	shiftRepo := NewShiftRepository(db)
	ctx := context.Background()

	rec := seedSync(t, db, cal.ID, 0)
	other := seedSync(t, db, cal.ID, 0)

	uid := "remote-1"
	mk := func(syncID string) *models.Shift {
		return &models.Shift{
			CalendarID:     cal.ID,
			Date:           "2026-09-01",
			Title:          "Imported",
			ExternalSyncID: &syncID,
			RemoteEventUID: &uid,
		}
	}

	if err := shiftRepo.Create(ctx, mk(rec.ID)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := shiftRepo.Create(ctx, mk(rec.ID)); err == nil {
		t.Error("duplicate (sync, remote UID) insert should fail")
	}
	// The same remote UID under a different sync record is fine.
	if err := shiftRepo.Create(ctx, mk(other.ID)); err != nil {
		t.Errorf("same UID under another sync failed: %v", err)
	}

	// Manual shifts carry no sync ID and never collide.
	for i := 0; i < 2; i++ {
		if err := shiftRepo.Create(ctx, &models.Shift{CalendarID: cal.ID, Date: "2026-09-03", Title: "Manual"}); err != nil {
			t.Errorf("manual shift insert %d failed: %v", i, err)
		}
	}
}
