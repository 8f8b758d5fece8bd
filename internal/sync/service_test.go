package sync

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// stubFetcher serves canned feed content in place of network access.
type stubFetcher struct {
	body []byte
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, calendarURL string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

type testEnv struct {
	db        *storage.DB
	syncRepo  *storage.ExternalSyncRepository
	shiftRepo *storage.ShiftRepository
	fetcher   *stubFetcher
	service   *Service
	sync      *models.ExternalSync
	calendar  *models.Calendar
}

func newTestEnv(t *testing.T, interval int) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	user := &models.User{Email: "worker@example.com", Name: "Worker", PasswordHash: "x"}
	if err := storage.NewUserRepository(db).Create(ctx, user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	cal := &models.Calendar{OwnerID: user.ID, Name: "Shifts", Color: "#3b82f6"}
	if err := storage.NewCalendarRepository(db).Create(ctx, cal); err != nil {
		t.Fatalf("seeding calendar: %v", err)
	}

	syncRepo := storage.NewExternalSyncRepository(db)
	rec := &models.ExternalSync{
		CalendarID:       cal.ID,
		Name:             "Team feed",
		SyncType:         models.SyncTypeCustom,
		CalendarURL:      "https://example.com/feed.ics",
		Color:            "#ef4444",
		DisplayMode:      "default",
		AutoSyncInterval: interval,
	}
	if err := syncRepo.Create(ctx, rec); err != nil {
		t.Fatalf("seeding external sync: %v", err)
	}

	fetcher := &stubFetcher{}
	shiftRepo := storage.NewShiftRepository(db)
	service := NewService(db, syncRepo, shiftRepo, fetcher)

	return &testEnv{
		db:        db,
		syncRepo:  syncRepo,
		shiftRepo: shiftRepo,
		fetcher:   fetcher,
		service:   service,
		sync:      rec,
		calendar:  cal,
	}
}

func feedWithEvents(events ...string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//dienstato//test//EN"}
	lines = append(lines, events...)
	lines = append(lines, "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

func vevent(uid, date, start, end, summary string) string {
	return strings.Join([]string{
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:20260101T000000Z",
		"DTSTART:" + date + "T" + start + "00Z",
		"DTEND:" + date + "T" + end + "00Z",
		"SUMMARY:" + summary,
		"END:VEVENT",
	}, "\r\n")
}

func TestSyncOne_InitialImport(t *testing.T) {
	env := newTestEnv(t, 0)
	env.fetcher.body = feedWithEvents(
		vevent("remote-1", "20260901", "0800", "1600", "Early"),
		vevent("remote-2", "20260902", "1400", "2200", "Late"),
	)
	ctx := context.Background()

	result, err := env.service.SyncOne(ctx, env.sync.ID)
	if err != nil {
		t.Fatalf("SyncOne failed: %v", err)
	}
	if result.EventsFound != 2 || result.ShiftsCreated != 2 || result.ShiftsUpdated != 0 || result.ShiftsRemoved != 0 {
		t.Errorf("result = %+v, want 2 found / 2 created", result)
	}

	shifts, err := env.shiftRepo.ListBySync(ctx, env.sync.ID)
	if err != nil {
		t.Fatalf("ListBySync failed: %v", err)
	}
	if len(shifts) != 2 {
		t.Fatalf("got %d shifts, want 2", len(shifts))
	}
	first := shifts[0]
	if first.Date != "2026-09-01" || first.StartTime != "08:00" || first.EndTime != "16:00" {
		t.Errorf("imported shift fields wrong: %+v", first)
	}
	if first.Title != "Early" {
		t.Errorf("title = %q, want Early", first.Title)
	}
	if first.Color != env.sync.Color {
		t.Errorf("color = %q, want sync color %q", first.Color, env.sync.Color)
	}
	if first.ExternalSyncID == nil || *first.ExternalSyncID != env.sync.ID {
		t.Error("imported shift not tagged with sync ID")
	}

	rec, _ := env.syncRepo.GetByID(ctx, env.sync.ID)
	if rec.SyncStatus != models.SyncStatusSuccess {
		t.Errorf("status = %q, want success", rec.SyncStatus)
	}
	if rec.LastSyncedAt == nil {
		t.Error("last_synced_at not set after success")
	}
}

func TestSyncOne_SecondRunIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 0)
	env.fetcher.body = feedWithEvents(vevent("remote-1", "20260901", "0800", "1600", "Early"))
	ctx := context.Background()

	if _, err := env.service.SyncOne(ctx, env.sync.ID); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	result, err := env.service.SyncOne(ctx, env.sync.ID)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if result.ShiftsCreated != 0 || result.ShiftsUpdated != 0 || result.ShiftsRemoved != 0 {
		t.Errorf("unchanged feed produced a diff: %+v", result)
	}

	shifts, _ := env.shiftRepo.ListBySync(ctx, env.sync.ID)
	if len(shifts) != 1 {
		t.Errorf("got %d shifts after rerun, want 1", len(shifts))
	}
}

func TestSyncOne_AppliesUpdatesAndRemovals(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	env.fetcher.body = feedWithEvents(
		vevent("remote-1", "20260901", "0800", "1600", "Early"),
		vevent("remote-2", "20260902", "1400", "2200", "Late"),
	)
	if _, err := env.service.SyncOne(ctx, env.sync.ID); err != nil {
		t.Fatalf("initial sync failed: %v", err)
	}

	// remote-1 moved, remote-2 vanished, remote-3 is new.
	env.fetcher.body = feedWithEvents(
		vevent("remote-1", "20260901", "0900", "1700", "Early"),
		vevent("remote-3", "20260903", "0600", "1400", "Dawn"),
	)

	result, err := env.service.SyncOne(ctx, env.sync.ID)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if result.ShiftsCreated != 1 || result.ShiftsUpdated != 1 || result.ShiftsRemoved != 1 {
		t.Errorf("diff = %+v, want 1 created / 1 updated / 1 removed", result)
	}

	shifts, _ := env.shiftRepo.ListBySync(ctx, env.sync.ID)
	byUID := map[string]models.Shift{}
	for _, s := range shifts {
		byUID[*s.RemoteEventUID] = s
	}
	if len(byUID) != 2 {
		t.Fatalf("got %d shifts, want 2", len(byUID))
	}
	if _, ok := byUID["remote-2"]; ok {
		t.Error("removed remote event still has a shift")
	}
	if moved := byUID["remote-1"]; moved.StartTime != "09:00" || moved.EndTime != "17:00" {
		t.Errorf("moved shift not updated: %+v", moved)
	}
}

func TestSyncOne_LeavesManualShiftsAlone(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	manual := &models.Shift{CalendarID: env.calendar.ID, Date: "2026-09-01", Title: "Manual"}
	if err := env.shiftRepo.Create(ctx, manual); err != nil {
		t.Fatalf("creating manual shift: %v", err)
	}

	// Feed with nothing in common with the manual shift, then a feed where
	// everything was removed remotely.
	env.fetcher.body = feedWithEvents(vevent("remote-1", "20260901", "0800", "1600", "Early"))
	if _, err := env.service.SyncOne(ctx, env.sync.ID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	env.fetcher.body = feedWithEvents(vevent("remote-9", "20261001", "0800", "1600", "Other"))
	if _, err := env.service.SyncOne(ctx, env.sync.ID); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	if got, _ := env.shiftRepo.GetByID(ctx, manual.ID); got == nil {
		t.Error("reconciliation deleted a manual shift")
	}
}

func TestSyncOne_FetchFailureLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, 60)
	ctx := context.Background()

	env.fetcher.body = feedWithEvents(vevent("remote-1", "20260901", "0800", "1600", "Early"))
	if _, err := env.service.SyncOne(ctx, env.sync.ID); err != nil {
		t.Fatalf("initial sync failed: %v", err)
	}
	before, _ := env.syncRepo.GetByID(ctx, env.sync.ID)

	env.fetcher.err = errors.New("connection refused")
	result, err := env.service.SyncOne(ctx, env.sync.ID)
	if err == nil {
		t.Fatal("expected error from failed fetch")
	}
	if result == nil || !result.Failed() {
		t.Fatalf("result = %+v, want failed attempt", result)
	}

	after, _ := env.syncRepo.GetByID(ctx, env.sync.ID)
	if after.SyncStatus != models.SyncStatusError {
		t.Errorf("status = %q, want error", after.SyncStatus)
	}
	if after.SyncError == nil || !strings.Contains(*after.SyncError, "connection refused") {
		t.Errorf("sync_error = %v", after.SyncError)
	}
	if after.LastSyncedAt == nil || !after.LastSyncedAt.Equal(*before.LastSyncedAt) {
		t.Errorf("failed attempt moved last_synced_at: %v -> %v", before.LastSyncedAt, after.LastSyncedAt)
	}

	shifts, _ := env.shiftRepo.ListBySync(ctx, env.sync.ID)
	if len(shifts) != 1 {
		t.Errorf("failed attempt changed shifts: got %d, want 1", len(shifts))
	}
}

func TestSyncOne_PartialWriteRollsBack(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	// Abort the second imported-shift insert so the transaction fails after
	// the first one already succeeded.
	_, err := env.db.ExecContext(ctx, `
		CREATE TRIGGER block_second_import BEFORE INSERT ON shifts
		WHEN (SELECT COUNT(*) FROM shifts WHERE external_sync_id IS NOT NULL) >= 1
		BEGIN SELECT RAISE(ABORT, 'injected write failure'); END
	`)
	if err != nil {
		t.Fatalf("installing trigger: %v", err)
	}

	env.fetcher.body = feedWithEvents(
		vevent("remote-1", "20260901", "0800", "1600", "Early"),
		vevent("remote-2", "20260902", "1400", "2200", "Late"),
	)

	if _, err := env.service.SyncOne(ctx, env.sync.ID); err == nil {
		t.Fatal("expected error from aborted transaction")
	}

	shifts, _ := env.shiftRepo.ListBySync(ctx, env.sync.ID)
	if len(shifts) != 0 {
		t.Errorf("rollback left %d shifts behind, want 0", len(shifts))
	}

	rec, _ := env.syncRepo.GetByID(ctx, env.sync.ID)
	if rec.SyncStatus != models.SyncStatusError {
		t.Errorf("status = %q, want error", rec.SyncStatus)
	}
	if rec.LastSyncedAt != nil {
		t.Error("failed attempt set last_synced_at")
	}
}

func TestSyncOne_RejectsNonICSContent(t *testing.T) {
	env := newTestEnv(t, 0)
	env.fetcher.body = []byte("<html>This is not a calendar</html>")

	_, err := env.service.SyncOne(context.Background(), env.sync.ID)
	if err == nil {
		t.Fatal("expected content error")
	}

	rec, _ := env.syncRepo.GetByID(context.Background(), env.sync.ID)
	if rec.SyncStatus != models.SyncStatusError {
		t.Errorf("status = %q, want error", rec.SyncStatus)
	}
	if rec.LastSyncedAt != nil {
		t.Error("failed attempt set last_synced_at")
	}
}

func TestSyncOne_UnknownRecord(t *testing.T) {
	env := newTestEnv(t, 0)
	if _, err := env.service.SyncOne(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown sync record")
	}
}

func TestSyncOne_FixedClockExpansionWindow(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	// Recurring event anchored at the fake "now" so the expansion window is
	// deterministic regardless of wall time.
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	env.service.SetClock(func() time.Time { return now })

	env.fetcher.body = feedWithEvents(strings.Join([]string{
		"BEGIN:VEVENT",
		"UID:recurring-1",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260901T080000Z",
		"DTEND:20260901T160000Z",
		"RRULE:FREQ=DAILY;COUNT=3",
		"SUMMARY:Block",
		"END:VEVENT",
	}, "\r\n"))

	result, err := env.service.SyncOne(ctx, env.sync.ID)
	if err != nil {
		t.Fatalf("SyncOne failed: %v", err)
	}
	if result.ShiftsCreated != 3 {
		t.Errorf("created %d shifts, want 3 recurrence instances", result.ShiftsCreated)
	}

	shifts, _ := env.shiftRepo.ListBySync(ctx, env.sync.ID)
	dates := map[string]bool{}
	for _, s := range shifts {
		dates[s.Date] = true
	}
	for _, want := range []string{"2026-09-01", "2026-09-02", "2026-09-03"} {
		if !dates[want] {
			t.Errorf("missing expanded instance on %s", want)
		}
	}
}
