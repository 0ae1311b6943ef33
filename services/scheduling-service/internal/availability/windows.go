package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/interval"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

// ISODate is the wire format for plain dates.
const ISODate = "2006-01-02"

// WeekdayName returns the lowercase English weekday used as the schedule key.
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// ResolveDay expands the recurring weekly schedule into concrete open
// windows for one calendar date, interpreted in the agency's timezone.
// A nil schedule resolves to no availability rather than an error.
func ResolveDay(sched *model.WeeklySchedule, year int, month time.Month, day int) ([]interval.Span, error) {
	if sched == nil {
		return nil, nil
	}
	loc, err := loadLocation(sched.Timezone)
	if err != nil {
		return nil, err
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, loc)
	periods := sched.Days[WeekdayName(date)]

	var windows []interval.Span
	for _, p := range periods {
		sh, sm, err := ParseClock(p.Start)
		if err != nil {
			continue
		}
		eh, em, err := ParseClock(p.End)
		if err != nil {
			continue
		}
		w := interval.Span{
			Start: time.Date(year, month, day, sh, sm, 0, 0, loc),
			End:   time.Date(year, month, day, eh, em, 0, 0, loc),
		}
		if w.IsValid() {
			windows = append(windows, w)
		}
	}
	return windows, nil
}

// ResolveMonthDays returns the ISO dates in the given month that have a
// non-empty daily schedule and fall within the booking type's notice and
// horizon bounds. A day whose end is not after now+minNotice is entirely
// past the cutoff; a day starting exactly at now+maxFutureDays is still in.
func ResolveMonthDays(sched *model.WeeklySchedule, bt model.BookingType, year int, month time.Month, now time.Time) ([]string, error) {
	if sched == nil {
		return nil, nil
	}
	loc, err := loadLocation(sched.Timezone)
	if err != nil {
		return nil, err
	}

	notice := now.Add(bt.MinNotice())
	horizon := now.AddDate(0, 0, bt.MaxFutureDays)

	var days []string
	for d := 1; d <= daysIn(year, month); d++ {
		dayStart := time.Date(year, month, d, 0, 0, 0, 0, loc)
		dayEnd := dayStart.AddDate(0, 0, 1)

		if len(sched.Days[WeekdayName(dayStart)]) == 0 {
			continue
		}
		if !dayEnd.After(notice) {
			continue
		}
		if dayStart.After(horizon) {
			continue
		}
		days = append(days, dayStart.Format(ISODate))
	}
	return days, nil
}

// WindowsAt resolves the open windows for the calendar date containing t,
// with the date determined in the agency's timezone.
func WindowsAt(sched *model.WeeklySchedule, t time.Time) ([]interval.Span, error) {
	if sched == nil {
		return nil, nil
	}
	loc, err := loadLocation(sched.Timezone)
	if err != nil {
		return nil, err
	}
	local := t.In(loc)
	return ResolveDay(sched, local.Year(), local.Month(), local.Day())
}

// ParseClock parses a "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock value %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock value %q", s)
	}
	return hour, minute, nil
}

func loadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
