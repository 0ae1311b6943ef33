package availability

import (
	"fmt"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

// ValidateSchedule rejects malformed weekly schedules at write time:
// unknown weekday keys, bad timezone, unparseable clock values, empty or
// inverted periods, and overlapping periods within one day. Periods within
// a day must be ordered by start.
func ValidateSchedule(sched model.WeeklySchedule) error {
	if _, err := loadLocation(sched.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q", sched.Timezone)
	}
	for day, periods := range sched.Days {
		if !validWeekday(day) {
			return fmt.Errorf("unknown weekday %q", day)
		}
		prevEnd := -1
		for i, p := range periods {
			sh, sm, err := ParseClock(p.Start)
			if err != nil {
				return fmt.Errorf("%s period %d: %w", day, i, err)
			}
			eh, em, err := ParseClock(p.End)
			if err != nil {
				return fmt.Errorf("%s period %d: %w", day, i, err)
			}
			start, end := sh*60+sm, eh*60+em
			if start >= end {
				return fmt.Errorf("%s period %d: start %q is not before end %q", day, i, p.Start, p.End)
			}
			if start < prevEnd {
				return fmt.Errorf("%s period %d overlaps the previous period", day, i)
			}
			prevEnd = end
		}
	}
	return nil
}

func validWeekday(name string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if WeekdayName(time.Date(2024, 1, 7+int(d), 0, 0, 0, 0, time.UTC)) == name {
			return true
		}
	}
	return false
}
