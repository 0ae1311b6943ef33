package hosts

import "sync"

// Policy picks the host that will serve a slot from the eligible
// candidates. free reports whether a candidate is free for the interval;
// load returns a comparable busy-ness figure for tie-breaking policies.
//
// The selection is intentionally not shown to guests: the engine re-checks
// the chosen host for conflicts inside the booking transaction.
type Policy interface {
	Select(candidates []string, free func(hostID string) bool, load func(hostID string) int) (string, bool)
}

// FirstAvailable commits to the first free candidate in stable list order.
// It concentrates load on the highest-priority host; RoundRobin or
// LeastLoaded spread it.
type FirstAvailable struct{}

func (FirstAvailable) Select(candidates []string, free func(string) bool, _ func(string) int) (string, bool) {
	for _, id := range candidates {
		if free(id) {
			return id, true
		}
	}
	return "", false
}

// RoundRobin rotates the starting candidate on every selection.
type RoundRobin struct {
	mu   sync.Mutex
	next int
}

func (p *RoundRobin) Select(candidates []string, free func(string) bool, _ func(string) int) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	p.mu.Lock()
	start := p.next % len(candidates)
	p.next++
	p.mu.Unlock()

	for i := 0; i < len(candidates); i++ {
		id := candidates[(start+i)%len(candidates)]
		if free(id) {
			return id, true
		}
	}
	return "", false
}

// LeastLoaded picks the free candidate with the lowest load, breaking ties
// by list order.
type LeastLoaded struct{}

func (LeastLoaded) Select(candidates []string, free func(string) bool, load func(string) int) (string, bool) {
	best := ""
	bestLoad := 0
	for _, id := range candidates {
		if !free(id) {
			continue
		}
		l := 0
		if load != nil {
			l = load(id)
		}
		if best == "" || l < bestLoad {
			best = id
			bestLoad = l
		}
	}
	return best, best != ""
}

// PolicyFromName maps a config value to a Policy, defaulting to FirstAvailable.
func PolicyFromName(name string) Policy {
	switch name {
	case "round_robin":
		return &RoundRobin{}
	case "least_loaded":
		return LeastLoaded{}
	default:
		return FirstAvailable{}
	}
}
