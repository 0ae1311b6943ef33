package interval

import "time"

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) IsValid() bool {
	return s.End.After(s.Start)
}

// Overlaps implements half-open interval overlap: [a) and [b) overlap iff
// aStart < bEnd && aEnd > bStart. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func (s Span) Overlaps(o Span) bool {
	return Overlaps(s.Start, s.End, o.Start, o.End)
}

// Expand widens the span by the given buffers on each side.
func (s Span) Expand(before, after time.Duration) Span {
	return Span{Start: s.Start.Add(-before), End: s.End.Add(after)}
}

// OverlapsAny reports whether s overlaps any span in busy.
func (s Span) OverlapsAny(busy []Span) bool {
	for _, b := range busy {
		if s.Overlaps(b) {
			return true
		}
	}
	return false
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return !o.Start.Before(s.Start) && !o.End.After(s.End)
}
