package availability

import (
	"testing"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/interval"
)

func day(hour, minute int) time.Time {
	return time.Date(2026, 9, 7, hour, minute, 0, 0, time.UTC)
}

func TestSlots_Basic(t *testing.T) {
	windows := []interval.Span{{Start: day(9, 0), End: day(11, 0)}}
	busy := map[string][]interval.Span{}
	notice := day(0, 0)

	slots := Slots(windows, 30*time.Minute, DefaultSlotStep, []string{"host-a"}, busy, notice)
	want := []time.Time{day(9, 0), day(9, 30), day(10, 0), day(10, 30)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestSlots_MustFitInsideOneWindow(t *testing.T) {
	windows := []interval.Span{
		{Start: day(9, 0), End: day(9, 45)},
		{Start: day(10, 0), End: day(10, 45)},
	}
	slots := Slots(windows, 30*time.Minute, DefaultSlotStep, []string{"host-a"}, nil, day(0, 0))

	// 09:30 would spill past the first window's end; a slot never spans
	// the gap between windows.
	want := []time.Time{day(9, 0), day(10, 0)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d (%v)", len(want), len(slots), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestSlots_NoticeCutoffIsStrict(t *testing.T) {
	windows := []interval.Span{{Start: day(9, 0), End: day(11, 0)}}
	// A slot starting exactly at the cutoff is rejected.
	notice := day(9, 30)

	slots := Slots(windows, 30*time.Minute, DefaultSlotStep, []string{"host-a"}, nil, notice)
	if len(slots) == 0 {
		t.Fatal("expected slots after the cutoff")
	}
	if !slots[0].Equal(day(10, 0)) {
		t.Fatalf("expected first slot 10:00, got %s", slots[0])
	}
}

func TestSlots_BufferedBusySpansBlock(t *testing.T) {
	windows := []interval.Span{{Start: day(9, 0), End: day(12, 0)}}
	// Existing 10:00-10:30 appointment with a 15-minute after-buffer,
	// expanded to 10:00-10:45 by the caller.
	busy := map[string][]interval.Span{
		"host-a": {{Start: day(10, 0), End: day(10, 45)}},
	}

	slots := Slots(windows, 30*time.Minute, DefaultSlotStep, []string{"host-a"}, busy, day(0, 0))
	blocked := map[string]bool{}
	for _, s := range slots {
		blocked[s.Format("15:04")] = true
	}
	for _, miss := range []string{"10:00", "10:30"} {
		if blocked[miss] {
			t.Fatalf("slot %s overlaps the buffered busy span", miss)
		}
	}
	for _, hit := range []string{"09:00", "09:30", "11:00", "11:30"} {
		if !blocked[hit] {
			t.Fatalf("slot %s should be offered", hit)
		}
	}
}

func TestSlots_OfferedWhenAnyHostIsFree(t *testing.T) {
	windows := []interval.Span{{Start: day(9, 0), End: day(10, 0)}}
	busy := map[string][]interval.Span{
		"host-a": {{Start: day(9, 0), End: day(10, 0)}},
	}

	// host-b is entirely free, so every slot remains offerable.
	slots := Slots(windows, 30*time.Minute, DefaultSlotStep, []string{"host-a", "host-b"}, busy, day(0, 0))
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}

	// With only the busy host, nothing is offerable.
	slots = Slots(windows, 30*time.Minute, DefaultSlotStep, []string{"host-a"}, busy, day(0, 0))
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestSlots_NoHostsNoSlots(t *testing.T) {
	windows := []interval.Span{{Start: day(9, 0), End: day(17, 0)}}
	if slots := Slots(windows, 30*time.Minute, DefaultSlotStep, nil, nil, day(0, 0)); slots != nil {
		t.Fatalf("expected nil slots without candidate hosts, got %v", slots)
	}
}

func TestSlots_QuarterHourStepAroundBufferedAppointment(t *testing.T) {
	windows := []interval.Span{{Start: day(9, 0), End: day(12, 0)}}
	// Existing 10:00-10:30 appointment with a 15 minute after-buffer,
	// already expanded by the store to 10:00-10:45.
	busy := map[string][]interval.Span{
		"host-a": {{Start: day(10, 0), End: day(10, 45)}},
	}

	slots := Slots(windows, 30*time.Minute, 15*time.Minute, []string{"host-a"}, busy, day(0, 0))

	blocked := []time.Time{day(10, 0), day(10, 15), day(10, 30)}
	for _, b := range blocked {
		for _, s := range slots {
			if s.Equal(b) {
				t.Fatalf("slot %s should be blocked by the buffered appointment", b)
			}
		}
	}

	found := false
	for _, s := range slots {
		if s.Equal(day(10, 45)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 10:45 to be offerable immediately after the buffer, got %v", slots)
	}
}
