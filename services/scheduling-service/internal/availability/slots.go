package availability

import (
	"sort"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/interval"
)

// DefaultSlotStep is the fixed increment between candidate slot starts.
const DefaultSlotStep = 30 * time.Minute

// Slots enumerates offerable start times inside the given open windows.
//
// A candidate start t is offered iff the whole slot fits inside a single
// window, t is strictly after the notice cutoff, and at least one candidate
// host has no buffered busy span overlapping [t, t+duration). busy maps
// host id to already buffer-expanded busy spans. Which host serves the slot
// is decided later, at booking time.
func Slots(windows []interval.Span, duration, step time.Duration, hostIDs []string, busy map[string][]interval.Span, notice time.Time) []time.Time {
	if duration <= 0 || step <= 0 || len(hostIDs) == 0 {
		return nil
	}

	var slots []time.Time
	for _, w := range windows {
		if !w.IsValid() {
			continue
		}
		for t := w.Start; !t.Add(duration).After(w.End); t = t.Add(step) {
			if !t.After(notice) {
				continue
			}
			if anyHostFree(hostIDs, busy, interval.Span{Start: t, End: t.Add(duration)}) {
				slots = append(slots, t)
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

func anyHostFree(hostIDs []string, busy map[string][]interval.Span, s interval.Span) bool {
	for _, id := range hostIDs {
		if !s.OverlapsAny(busy[id]) {
			return true
		}
	}
	return false
}
