package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// newTestDB opens a fresh migrated database in a temp directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *DB) *models.User {
	t.Helper()

	user := &models.User{
		Email:        "worker@example.com",
		Name:         "Worker",
		PasswordHash: "x",
	}
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return user
}

func seedCalendar(t *testing.T, db *DB, ownerID string) *models.Calendar {
	t.Helper()

	cal := &models.Calendar{
		OwnerID: ownerID,
		Name:    "Shifts",
		Color:   "#3b82f6",
	}
	if err := NewCalendarRepository(db).Create(context.Background(), cal); err != nil {
		t.Fatalf("seeding calendar: %v", err)
	}
	return cal
}

func seedSync(t *testing.T, db *DB, calendarID string, interval int) *models.ExternalSync {
	t.Helper()

	s := &models.ExternalSync{
		CalendarID:       calendarID,
		Name:             "Team feed",
		SyncType:         models.SyncTypeCustom,
		CalendarURL:      "https://example.com/feed.ics",
		DisplayMode:      "default",
		AutoSyncInterval: interval,
	}
	if err := NewExternalSyncRepository(db).Create(context.Background(), s); err != nil {
		t.Fatalf("seeding external sync: %v", err)
	}
	return s
}
