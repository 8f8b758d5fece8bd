package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

func TestCreateAndGetCalendar(t *testing.T) {
	env := newHandlerEnv(t)

	rec := httptest.NewRecorder()
	CreateCalendar(env.calendarRepo)(rec, env.request(t, http.MethodPost, "/api/calendars",
		map[string]any{"name": "Night shifts"}, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var created models.Calendar
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.OwnerID != env.user.ID {
		t.Errorf("owner = %q, want %q", created.OwnerID, env.user.ID)
	}
	if created.Color == "" {
		t.Error("created calendar has no default color")
	}

	rec = httptest.NewRecorder()
	GetCalendar(env.calendarRepo)(rec, env.request(t, http.MethodGet, "/api/calendars/"+created.ID, nil,
		map[string]string{"id": created.ID}))
	if rec.Code != http.StatusOK {
		t.Errorf("get: status = %d, want 200", rec.Code)
	}
}

func TestGetCalendar_ForeignCalendarForbidden(t *testing.T) {
	env := newHandlerEnv(t)
	ctx := context.Background()

	other := &models.User{Email: "other@example.com", Name: "Other", PasswordHash: "x"}
	if err := storage.NewUserRepository(env.db).Create(ctx, other); err != nil {
		t.Fatalf("seeding other user: %v", err)
	}
	theirs := &models.Calendar{OwnerID: other.ID, Name: "Theirs", Color: "#000"}
	if err := env.calendarRepo.Create(ctx, theirs); err != nil {
		t.Fatalf("seeding calendar: %v", err)
	}

	rec := httptest.NewRecorder()
	GetCalendar(env.calendarRepo)(rec, env.request(t, http.MethodGet, "/api/calendars/"+theirs.ID, nil,
		map[string]string{"id": theirs.ID}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestShareCalendarFlow(t *testing.T) {
	env := newHandlerEnv(t)
	vars := map[string]string{"id": env.calendar.ID}

	rec := httptest.NewRecorder()
	ShareCalendar(env.calendarRepo)(rec, env.request(t, http.MethodPost, "/api/calendars/"+env.calendar.ID+"/share", nil, vars))
	if rec.Code != http.StatusCreated {
		t.Fatalf("share: status = %d, want 201", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	token := resp["share_token"]
	if token == "" {
		t.Fatal("share response has no token")
	}

	// The token grants read access without any session.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/shared/"+token, nil)
	GetSharedCalendar(env.calendarRepo, env.shiftRepo)(rec, mux.SetURLVars(req, map[string]string{"token": token}))
	if rec.Code != http.StatusOK {
		t.Errorf("shared get: status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	UnshareCalendar(env.calendarRepo)(rec, env.request(t, http.MethodDelete, "/api/calendars/"+env.calendar.ID+"/share", nil, vars))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unshare: status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/shared/"+token, nil)
	GetSharedCalendar(env.calendarRepo, env.shiftRepo)(rec, mux.SetURLVars(req, map[string]string{"token": token}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("revoked token: status = %d, want 404", rec.Code)
	}
}

func TestListShifts_RequiresCalendarID(t *testing.T) {
	env := newHandlerEnv(t)

	rec := httptest.NewRecorder()
	ListShifts(env.calendarRepo, env.shiftRepo)(rec, env.request(t, http.MethodGet, "/api/shifts", nil, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestShiftLifecycle(t *testing.T) {
	env := newHandlerEnv(t)

	rec := httptest.NewRecorder()
	CreateShift(env.calendarRepo, env.shiftRepo, nil)(rec, env.request(t, http.MethodPost, "/api/shifts",
		map[string]any{
			"calendar_id": env.calendar.ID,
			"date":        "2026-09-01",
			"start_time":  "08:00",
			"end_time":    "16:00",
			"title":       "Early",
		}, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var shift models.Shift
	if err := json.NewDecoder(rec.Body).Decode(&shift); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if shift.IsImported() {
		t.Error("manual shift reported as imported")
	}

	vars := map[string]string{"id": shift.ID}
	rec = httptest.NewRecorder()
	UpdateShift(env.calendarRepo, env.shiftRepo, nil)(rec, env.request(t, http.MethodPut, "/api/shifts/"+shift.ID,
		map[string]any{"date": "2026-09-02", "start_time": "09:00", "end_time": "17:00", "title": "Early"}, vars))
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	got, _ := env.shiftRepo.GetByID(context.Background(), shift.ID)
	if got.Date != "2026-09-02" || got.StartTime != "09:00" {
		t.Errorf("update not persisted: %+v", got)
	}

	rec = httptest.NewRecorder()
	DeleteShift(env.calendarRepo, env.shiftRepo, nil)(rec, env.request(t, http.MethodDelete, "/api/shifts/"+shift.ID, nil, vars))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", rec.Code)
	}
	if got, _ := env.shiftRepo.GetByID(context.Background(), shift.ID); got != nil {
		t.Error("shift still present after delete")
	}
}
