package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

// Monday 2026-09-07, 08:00 UTC.
var testNow = time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 9, day, hour, minute, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	store.Now = func() time.Time { return testNow }

	store.PutBookingType(model.BookingType{
		ID:              "bt-intro",
		AgencyID:        "agency-1",
		Name:            "Intro Call",
		DurationMinutes: 30,
		BufferAfterMins: 15,
		MinNoticeHours:  2,
		MaxFutureDays:   30,
		IsActive:        true,
	})
	store.PutWeeklySchedule(model.WeeklySchedule{
		AgencyID: "agency-1",
		Timezone: "UTC",
		Days: map[string][]model.Period{
			"monday":  {{Start: "09:00", End: "17:00"}},
			"tuesday": {{Start: "09:00", End: "17:00"}},
		},
	})
	store.PutMember(model.Member{UserID: "host-a", AgencyID: "agency-1", Role: model.RoleHost, IsActive: true})
	store.PutMember(model.Member{UserID: "host-b", AgencyID: "agency-1", Role: model.RoleHost, IsActive: true})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, nil, logger, Config{Now: func() time.Time { return testNow }})
	return svc, store
}

func mustBook(t *testing.T, svc *Service, start time.Time) model.Appointment {
	t.Helper()
	appt, err := svc.Book(context.Background(), BookRequest{
		AgencyID:      "agency-1",
		BookingTypeID: "bt-intro",
		GuestName:     "Ada",
		GuestEmail:    "ada@example.com",
		Timezone:      "UTC",
		Start:         start,
	})
	if err != nil {
		t.Fatalf("Book(%s): %v", start, err)
	}
	return appt
}

func TestBook_SetsDurationStatusAndHost(t *testing.T) {
	svc, store := newTestService(t)

	appt := mustBook(t, svc, at(7, 11, 0))

	if got := appt.EndTime.Sub(appt.StartTime); got != 30*time.Minute {
		t.Fatalf("expected 30m duration, got %s", got)
	}
	if appt.Status != model.StatusScheduled {
		t.Fatalf("expected scheduled status, got %s", appt.Status)
	}
	if appt.HostUserID != "host-a" {
		t.Fatalf("expected first eligible host, got %s", appt.HostUserID)
	}

	events := store.Events()
	if len(events) != 1 || events[0].EventType != EventScheduled {
		t.Fatalf("expected one scheduled event, got %v", events)
	}
}

func TestBook_NoticeBoundaryIsStrict(t *testing.T) {
	svc, _ := newTestService(t)

	// Exactly now + 2h notice: rejected.
	_, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-intro",
		GuestName: "Ada", GuestEmail: "ada@example.com",
		Start: at(7, 10, 0),
	})
	if !errors.Is(err, ErrOutsideAvailability) {
		t.Fatalf("expected ErrOutsideAvailability at the cutoff, got %v", err)
	}

	// One step later: accepted.
	mustBook(t, svc, at(7, 10, 30))
}

func TestBook_OutsideScheduleRejected(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name  string
		start time.Time
	}{
		{"before opening", at(7, 8, 30)},
		{"spills past closing", at(7, 16, 45)},
		{"unscheduled day", at(9, 11, 0)}, // Wednesday
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), BookRequest{
				AgencyID: "agency-1", BookingTypeID: "bt-intro",
				GuestName: "Ada", GuestEmail: "ada@example.com",
				Start: tc.start,
			})
			if !errors.Is(err, ErrOutsideAvailability) {
				t.Fatalf("expected ErrOutsideAvailability, got %v", err)
			}
		})
	}
}

func TestBook_BeyondHorizonRejected(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-intro",
		GuestName: "Ada", GuestEmail: "ada@example.com",
		Start: testNow.AddDate(0, 0, 31),
	})
	if !errors.Is(err, ErrOutsideAvailability) {
		t.Fatalf("expected ErrOutsideAvailability beyond horizon, got %v", err)
	}
}

func TestBook_InactiveBookingTypeHidden(t *testing.T) {
	svc, store := newTestService(t)
	store.PutBookingType(model.BookingType{
		ID: "bt-retired", AgencyID: "agency-1", Name: "Old",
		DurationMinutes: 30, MaxFutureDays: 30, IsActive: false,
	})
	_, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-retired",
		GuestName: "Ada", GuestEmail: "ada@example.com",
		Start: at(7, 11, 0),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive type, got %v", err)
	}
}

func TestBook_FallsOverToSecondHost(t *testing.T) {
	svc, _ := newTestService(t)

	first := mustBook(t, svc, at(7, 11, 0))
	second := mustBook(t, svc, at(7, 11, 0))

	if first.HostUserID == second.HostUserID {
		t.Fatalf("both bookings landed on %s", first.HostUserID)
	}
}

func TestBook_SlotTakenWhenAllHostsBusy(t *testing.T) {
	svc, _ := newTestService(t)

	mustBook(t, svc, at(7, 11, 0))
	mustBook(t, svc, at(7, 11, 0))

	_, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-intro",
		GuestName: "Eve", GuestEmail: "eve@example.com",
		Start: at(7, 11, 0),
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestBook_BuffersBlockAdjacentSlot(t *testing.T) {
	svc, store := newTestService(t)
	// Single-host setup so the buffer has nowhere to hide.
	store.PutBookingType(model.BookingType{
		ID: "bt-solo", AgencyID: "agency-1", Name: "Solo",
		DurationMinutes: 30, BufferAfterMins: 15,
		MaxFutureDays: 30, IsActive: true, HostUserID: "host-a",
	})

	_, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-solo",
		GuestName: "Ada", GuestEmail: "ada@example.com",
		Start: at(7, 10, 0),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	// 10:30 collides with the earlier appointment's after-buffer (ends 10:45).
	_, err = svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-solo",
		GuestName: "Eve", GuestEmail: "eve@example.com",
		Start: at(7, 10, 30),
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken inside buffer, got %v", err)
	}

	// 11:00 clears the buffer.
	_, err = svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-solo",
		GuestName: "Eve", GuestEmail: "eve@example.com",
		Start: at(7, 11, 0),
	})
	if err != nil {
		t.Fatalf("Book after buffer: %v", err)
	}
}

func TestBook_ConcurrentSameSlotSingleWinner(t *testing.T) {
	svc, store := newTestService(t)
	store.PutBookingType(model.BookingType{
		ID: "bt-solo", AgencyID: "agency-1", Name: "Solo",
		DurationMinutes: 30, MaxFutureDays: 30, IsActive: true,
		HostUserID: "host-a",
	})

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), BookRequest{
				AgencyID: "agency-1", BookingTypeID: "bt-solo",
				GuestName: "Racer", GuestEmail: "racer@example.com",
				Start: at(7, 14, 0),
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestReschedule_MovesAndRecomputesEnd(t *testing.T) {
	svc, store := newTestService(t)
	appt := mustBook(t, svc, at(7, 11, 0))

	moved, err := svc.Reschedule(context.Background(), "agency-1", appt.ID, at(8, 13, 0), "")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !moved.StartTime.Equal(at(8, 13, 0)) || !moved.EndTime.Equal(at(8, 13, 30)) {
		t.Fatalf("unexpected times %s-%s", moved.StartTime, moved.EndTime)
	}
	if moved.HostUserID != appt.HostUserID {
		t.Fatalf("reschedule must not change the host")
	}
	if moved.RescheduledAt == nil {
		t.Fatal("expected rescheduled_at to be stamped")
	}

	events := store.Events()
	if len(events) != 2 || events[1].EventType != EventRescheduled {
		t.Fatalf("expected a rescheduled event, got %v", events)
	}
}

func TestReschedule_ConflictLeavesRowUntouched(t *testing.T) {
	svc, store := newTestService(t)
	store.PutBookingType(model.BookingType{
		ID: "bt-solo", AgencyID: "agency-1", Name: "Solo",
		DurationMinutes: 30, MaxFutureDays: 30, IsActive: true,
		HostUserID: "host-a",
	})

	blocker, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-solo",
		GuestName: "Ada", GuestEmail: "ada@example.com",
		Start: at(7, 10, 0),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	victim, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-solo",
		GuestName: "Eve", GuestEmail: "eve@example.com",
		Start: at(7, 12, 0),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	_, err = svc.Reschedule(context.Background(), "agency-1", victim.ID, blocker.StartTime, "")
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	unchanged, err := store.Appointment(context.Background(), "agency-1", victim.ID)
	if err != nil {
		t.Fatalf("Appointment: %v", err)
	}
	if !unchanged.StartTime.Equal(at(7, 12, 0)) {
		t.Fatalf("failed reschedule must not move the row, got %s", unchanged.StartTime)
	}
}

func TestReschedule_OwnSlotAllowed(t *testing.T) {
	svc, store := newTestService(t)
	store.PutBookingType(model.BookingType{
		ID: "bt-solo", AgencyID: "agency-1", Name: "Solo",
		DurationMinutes: 30, MaxFutureDays: 30, IsActive: true,
		HostUserID: "host-a",
	})
	appt, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-solo",
		GuestName: "Ada", GuestEmail: "ada@example.com",
		Start: at(7, 10, 0),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	// Shifting within the appointment's own interval must not self-conflict.
	if _, err := svc.Reschedule(context.Background(), "agency-1", appt.ID, at(7, 10, 15), ""); err != nil {
		t.Fatalf("Reschedule over own slot: %v", err)
	}
}

func TestCancel_Lifecycle(t *testing.T) {
	svc, store := newTestService(t)
	appt := mustBook(t, svc, at(7, 11, 0))

	cancelled, err := svc.Cancel(context.Background(), "agency-1", appt.ID, "guest", "conflict came up")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancelled.IsCancelled() || cancelled.CancelledAt == nil {
		t.Fatalf("expected terminal cancelled state, got %+v", cancelled)
	}
	if cancelled.CancelReason != "conflict came up" {
		t.Fatalf("unexpected reason %q", cancelled.CancelReason)
	}

	// Cancellation is not idempotent: the second attempt is rejected.
	if _, err := svc.Cancel(context.Background(), "agency-1", appt.ID, "guest", "again"); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
	if _, err := svc.Reschedule(context.Background(), "agency-1", appt.ID, at(8, 13, 0), ""); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled on reschedule, got %v", err)
	}

	events := store.Events()
	if len(events) != 2 || events[1].EventType != EventCancelled {
		t.Fatalf("expected a cancelled event, got %v", events)
	}
}

func TestCancel_FreesTheSlot(t *testing.T) {
	svc, store := newTestService(t)
	store.PutBookingType(model.BookingType{
		ID: "bt-solo", AgencyID: "agency-1", Name: "Solo",
		DurationMinutes: 30, MaxFutureDays: 30, IsActive: true,
		HostUserID: "host-a",
	})
	book := func(name string) (model.Appointment, error) {
		return svc.Book(context.Background(), BookRequest{
			AgencyID: "agency-1", BookingTypeID: "bt-solo",
			GuestName: name, GuestEmail: name + "@example.com",
			Start: at(7, 15, 0),
		})
	}

	first, err := book("ada")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := book("eve"); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	if _, err := svc.Cancel(context.Background(), "agency-1", first.ID, "guest", ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := book("eve"); err != nil {
		t.Fatalf("cancelled appointment must not block rebooking: %v", err)
	}
}

func TestAvailableSlots_ReflectsBookings(t *testing.T) {
	svc, store := newTestService(t)
	store.PutBookingType(model.BookingType{
		ID: "bt-solo", AgencyID: "agency-1", Name: "Solo",
		DurationMinutes: 30, BufferAfterMins: 15,
		MaxFutureDays: 30, IsActive: true, HostUserID: "host-a",
	})
	_, err := svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-1", BookingTypeID: "bt-solo",
		GuestName: "Ada", GuestEmail: "ada@example.com",
		Start: at(7, 10, 0),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	slots, err := svc.AvailableSlots(context.Background(), "agency-1", "bt-solo", 2026, time.September, 7)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	offered := map[string]bool{}
	for _, s := range slots {
		offered[s.Format("15:04")] = true
	}
	for _, miss := range []string{"10:00", "10:30"} {
		if offered[miss] {
			t.Fatalf("slot %s should be blocked", miss)
		}
	}
	if !offered["11:00"] {
		t.Fatal("slot 11:00 should be offered")
	}
	if len(slots) > 1 {
		for i := 1; i < len(slots); i++ {
			if !slots[i].After(slots[i-1]) {
				t.Fatal("slots must be strictly ascending")
			}
		}
	}
}

func TestAvailableDays(t *testing.T) {
	svc, _ := newTestService(t)

	days, err := svc.AvailableDays(context.Background(), "agency-1", "bt-intro", 2026, time.September)
	if err != nil {
		t.Fatalf("AvailableDays: %v", err)
	}
	if len(days) == 0 {
		t.Fatal("expected available days")
	}
	for _, d := range days {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			t.Fatalf("bad day %q: %v", d, err)
		}
		switch day.Weekday() {
		case time.Monday, time.Tuesday:
		default:
			t.Fatalf("day %s is not on the weekly schedule", d)
		}
	}
}

func TestAvailability_NilScheduleFailsClosed(t *testing.T) {
	svc, store := newTestService(t)
	store.PutBookingType(model.BookingType{
		ID: "bt-other", AgencyID: "agency-2", Name: "Other",
		DurationMinutes: 30, MaxFutureDays: 30, IsActive: true,
		HostUserID: "host-z",
	})

	slots, err := svc.AvailableSlots(context.Background(), "agency-2", "bt-other", 2026, time.September, 7)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots without a schedule, got %d", len(slots))
	}

	_, err = svc.Book(context.Background(), BookRequest{
		AgencyID: "agency-2", BookingTypeID: "bt-other",
		GuestName: "Ada", GuestEmail: "ada@example.com",
		Start: at(7, 11, 0),
	})
	if !errors.Is(err, ErrOutsideAvailability) {
		t.Fatalf("expected ErrOutsideAvailability without a schedule, got %v", err)
	}
}
