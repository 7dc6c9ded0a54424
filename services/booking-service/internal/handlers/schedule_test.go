package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glowbook/glowbook/services/booking-service/internal/availability"
)

type fakeScheduleStore struct {
	rules      []availability.WeeklyRule
	exceptions []availability.Exception

	listExceptionCalls int
	gotFrom, gotTo     time.Time

	replacedStylist string
	replacedRules   []availability.WeeklyRule
}

func (f *fakeScheduleStore) ListWeeklyRules(context.Context, string) ([]availability.WeeklyRule, error) {
	return f.rules, nil
}

func (f *fakeScheduleStore) ReplaceWeeklyRules(_ context.Context, stylistID string, rules []availability.WeeklyRule) error {
	f.replacedStylist = stylistID
	f.replacedRules = rules
	return nil
}

func (f *fakeScheduleStore) ListExceptions(_ context.Context, _ string, from, to time.Time) ([]availability.Exception, error) {
	f.listExceptionCalls++
	f.gotFrom, f.gotTo = from, to
	return f.exceptions, nil
}

func (f *fakeScheduleStore) UpsertException(context.Context, string, availability.Exception) (string, error) {
	return "ex-1", nil
}

func (f *fakeScheduleStore) DeleteException(context.Context, string, string) error {
	return nil
}

func newTestScheduleHandler(store *fakeScheduleStore) *ScheduleHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduleHandler(store, nil, nil, logger)
}

func getAvailability(h *ScheduleHandler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.SetPathValue("stylistID", "sty-1")
	rec := httptest.NewRecorder()
	h.GetAvailability(rec, req)
	return rec
}

func TestGetAvailabilityOmitsExceptionsWithoutRange(t *testing.T) {
	store := &fakeScheduleStore{
		rules:      []availability.WeeklyRule{{Weekday: 1, IsWorking: true, StartMinute: 9 * 60, EndMinute: 17 * 60}},
		exceptions: []availability.Exception{{ID: "ex-1", Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), IsOff: true}},
	}
	h := newTestScheduleHandler(store)

	for _, target := range []string{
		"/api/v1/public/stylists/sty-1/availability",
		"/api/v1/public/stylists/sty-1/availability?start=2026-03-01",
		"/api/v1/public/stylists/sty-1/availability?end=2026-03-31",
	} {
		rec := getAvailability(h, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
		var resp availabilityResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Schedule) != 1 {
			t.Fatalf("%s: schedule = %+v", target, resp.Schedule)
		}
		if len(resp.Exceptions) != 0 {
			t.Fatalf("%s: exceptions returned without a full range: %+v", target, resp.Exceptions)
		}
	}
	if store.listExceptionCalls != 0 {
		t.Fatalf("exceptions were queried %d times without a full range", store.listExceptionCalls)
	}
}

func TestGetAvailabilityListsExceptionsForRange(t *testing.T) {
	store := &fakeScheduleStore{
		exceptions: []availability.Exception{{ID: "ex-1", Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), IsOff: true, Reason: "holiday"}},
	}
	h := newTestScheduleHandler(store)

	rec := getAvailability(h, "/api/v1/public/stylists/sty-1/availability?start=2026-03-01&end=2026-03-31")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if store.listExceptionCalls != 1 {
		t.Fatalf("list exception calls = %d", store.listExceptionCalls)
	}
	if !store.gotFrom.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) || !store.gotTo.Equal(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("range = %v..%v", store.gotFrom, store.gotTo)
	}
	var resp availabilityResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Exceptions) != 1 || resp.Exceptions[0].Date != "2026-03-10" {
		t.Fatalf("exceptions = %+v", resp.Exceptions)
	}
}

func TestGetAvailabilityRejectsMalformedRange(t *testing.T) {
	h := newTestScheduleHandler(&fakeScheduleStore{})
	rec := getAvailability(h, "/api/v1/public/stylists/sty-1/availability?start=yesterday&end=2026-03-31")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func putSchedule(h *ScheduleHandler, target, role, stylistID string) *httptest.ResponseRecorder {
	body := `{"schedule":[{"day_of_week":1,"is_working_day":true,"start_time":"09:00","end_time":"17:00"}]}`
	req := httptest.NewRequest(http.MethodPut, target, strings.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-Role", role)
	if stylistID != "" {
		req.Header.Set("X-Stylist-Id", stylistID)
	}
	rec := httptest.NewRecorder()
	h.PutSchedule(rec, req)
	return rec
}

func TestPutScheduleTargetsOwnCalendarForStylist(t *testing.T) {
	store := &fakeScheduleStore{}
	h := newTestScheduleHandler(store)

	rec := putSchedule(h, "/api/v1/availability", roleStylist, "sty-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if store.replacedStylist != "sty-1" {
		t.Fatalf("replaced calendar of %q", store.replacedStylist)
	}
}

func TestPutScheduleAdminNamesTargetStylist(t *testing.T) {
	store := &fakeScheduleStore{}
	h := newTestScheduleHandler(store)

	rec := putSchedule(h, "/api/v1/availability?stylist_id=sty-9", roleAdmin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if store.replacedStylist != "sty-9" {
		t.Fatalf("replaced calendar of %q", store.replacedStylist)
	}
}

func TestPutScheduleAdminWithoutTargetRejected(t *testing.T) {
	store := &fakeScheduleStore{}
	h := newTestScheduleHandler(store)

	rec := putSchedule(h, "/api/v1/availability", roleAdmin, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.replacedStylist != "" {
		t.Fatalf("calendar %q was modified", store.replacedStylist)
	}
}

func TestPutScheduleClientForbidden(t *testing.T) {
	store := &fakeScheduleStore{}
	h := newTestScheduleHandler(store)

	rec := putSchedule(h, "/api/v1/availability", roleClient, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.replacedStylist != "" {
		t.Fatalf("calendar %q was modified", store.replacedStylist)
	}
}
