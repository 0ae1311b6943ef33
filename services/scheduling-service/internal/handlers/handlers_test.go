package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/booking"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

var handlerNow = time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *booking.MemoryStore) {
	t.Helper()
	store := booking.NewMemoryStore()
	store.Now = func() time.Time { return handlerNow }

	store.PutBookingType(model.BookingType{
		ID: "bt-intro", AgencyID: "agency-1", Name: "Intro Call",
		DurationMinutes: 30, MaxFutureDays: 30, IsActive: true,
		HostUserID: "host-a",
	})
	store.PutWeeklySchedule(model.WeeklySchedule{
		AgencyID: "agency-1",
		Timezone: "UTC",
		Days: map[string][]model.Period{
			"monday": {{Start: "09:00", End: "17:00"}},
		},
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.NewService(store, nil, logger, booking.Config{Now: func() time.Time { return handlerNow }})

	mux := http.NewServeMux()
	NewBookingHandler(svc, logger).Register(mux)
	NewAdminHandler(store, logger).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestSlotsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/slots?agency_id=agency-1&booking_type_id=bt-intro&date=2026-09-07")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	slots := decode[[]map[string]string](t, resp)
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	if slots[0]["start_time"] != "2026-09-07T09:00:00Z" {
		t.Fatalf("unexpected first slot %v", slots[0])
	}
}

func TestSlotsEndpoint_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/slots?agency_id=agency-1&date=2026-09-07")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without booking_type_id, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/slots?agency_id=agency-1&booking_type_id=bt-intro&date=tomorrow")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/slots?agency_id=agency-1&booking_type_id=missing&date=2026-09-07")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown booking type, got %d", resp.StatusCode)
	}
}

func TestDaysEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/days?agency_id=agency-1&booking_type_id=bt-intro&month=2026-09")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	days := decode[[]string](t, resp)
	if len(days) == 0 {
		t.Fatal("expected available days")
	}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/appointments", map[string]string{
		"agency_id":       "agency-1",
		"booking_type_id": "bt-intro",
		"guest_name":      "Ada",
		"guest_email":     "ada@example.com",
		"timezone":        "UTC",
		"start_time":      "2026-09-07T11:00:00Z",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	id, _ := created["appointment_id"].(string)
	if id == "" {
		t.Fatalf("missing appointment_id in %v", created)
	}
	if created["status"] != "scheduled" {
		t.Fatalf("expected scheduled, got %v", created["status"])
	}

	// Double-booking the single host conflicts.
	resp = postJSON(t, srv.URL+"/v1/appointments", map[string]string{
		"agency_id":       "agency-1",
		"booking_type_id": "bt-intro",
		"guest_name":      "Eve",
		"guest_email":     "eve@example.com",
		"start_time":      "2026-09-07T11:00:00Z",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/appointments/reschedule", map[string]string{
		"agency_id":      "agency-1",
		"appointment_id": id,
		"start_time":     "2026-09-07T13:00:00Z",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on reschedule, got %d", resp.StatusCode)
	}
	moved := decode[map[string]any](t, resp)
	if moved["start_time"] != "2026-09-07T13:00:00Z" {
		t.Fatalf("unexpected start %v", moved["start_time"])
	}

	resp = postJSON(t, srv.URL+"/v1/appointments/cancel", map[string]string{
		"agency_id":      "agency-1",
		"appointment_id": id,
		"cancelled_by":   "guest",
		"reason":         "no longer needed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d", resp.StatusCode)
	}

	// A second cancel is a conflict, not an idempotent success.
	resp = postJSON(t, srv.URL+"/v1/appointments/cancel", map[string]string{
		"agency_id":      "agency-1",
		"appointment_id": id,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on repeat cancel, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/v1/appointments?agency_id=agency-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	list := decode[[]map[string]any](t, resp2)
	if len(list) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(list))
	}
	if list[0]["status"] != "cancelled" {
		t.Fatalf("expected cancelled row, got %v", list[0]["status"])
	}
}

func TestBookEndpoint_OutsideAvailability(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/appointments", map[string]string{
		"agency_id":       "agency-1",
		"booking_type_id": "bt-intro",
		"guest_name":      "Ada",
		"guest_email":     "ada@example.com",
		"start_time":      "2026-09-07T20:00:00Z",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestAdminBookingTypes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/admin/booking-types", map[string]any{
		"agency_id":        "agency-1",
		"name":             "Strategy Session",
		"duration_minutes": 60,
		"max_future_days":  14,
		"assigned_hosts": []map[string]any{
			{"user_id": "host-b", "priority": 1},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	if created["id"] == "" {
		t.Fatal("expected generated id")
	}
	if created["is_active"] != true {
		t.Fatal("expected new type active by default")
	}

	resp = postJSON(t, srv.URL+"/v1/admin/booking-types", map[string]any{
		"agency_id":       "agency-1",
		"name":            "Broken",
		"max_future_days": 14,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero duration, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/v1/admin/booking-types?agency_id=agency-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	list := decode[[]map[string]any](t, resp2)
	if len(list) != 2 {
		t.Fatalf("expected 2 booking types, got %d", len(list))
	}
}

func TestAdminSchedule(t *testing.T) {
	srv, _ := newTestServer(t)

	put := func(body map[string]any) *http.Response {
		raw, _ := json.Marshal(body)
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/admin/schedule", bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := put(map[string]any{
		"agency_id": "agency-1",
		"timezone":  "Europe/Berlin",
		"days": map[string]any{
			"monday": []map[string]string{{"start": "08:00", "end": "12:00"}},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = put(map[string]any{
		"agency_id": "agency-1",
		"days": map[string]any{
			"monday": []map[string]string{
				{"start": "08:00", "end": "12:00"},
				{"start": "11:00", "end": "14:00"},
			},
		},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for overlapping periods, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/v1/admin/schedule?agency_id=agency-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	sched := decode[map[string]any](t, resp2)
	if sched["timezone"] != "Europe/Berlin" {
		t.Fatalf("unexpected schedule %v", sched)
	}
}

func TestAdminMembers(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/admin/members", map[string]any{
		"agency_id": "agency-1",
		"user_id":   "host-c",
		"name":      "Casey",
		"email":     "casey@example.com",
		"role":      "host",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/admin/members", map[string]any{
		"agency_id": "agency-1",
		"user_id":   "host-c",
		"role":      "wizard",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad role, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/v1/admin/members?agency_id=agency-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	members := decode[[]map[string]any](t, resp2)
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if members[0]["user_id"] != "host-c" {
		t.Fatalf("unexpected member %v", members[0])
	}
}
