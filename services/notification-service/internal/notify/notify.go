package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Topics this service subscribes to.
const (
	TopicScheduled   = "scheduling.appointment.scheduled.v1"
	TopicRescheduled = "scheduling.appointment.rescheduled.v1"
	TopicCancelled   = "scheduling.appointment.cancelled.v1"
)

// AppointmentEvent is the lifecycle payload published by the scheduling
// service.
type AppointmentEvent struct {
	AppointmentID     string `json:"appointment_id"`
	AgencyID          string `json:"agency_id"`
	BookingTypeID     string `json:"booking_type_id"`
	HostUserID        string `json:"host_user_id"`
	GuestName         string `json:"guest_name"`
	GuestEmail        string `json:"guest_email"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Timezone          string `json:"timezone"`
	Status            string `json:"status"`
	PreviousStartTime string `json:"previous_start_time,omitempty"`
	CancelledBy       string `json:"cancelled_by,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

func ParseEvent(raw []byte) (AppointmentEvent, error) {
	var evt AppointmentEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return AppointmentEvent{}, err
	}
	if evt.AppointmentID == "" || evt.AgencyID == "" || evt.GuestEmail == "" || evt.StartTime == "" {
		return AppointmentEvent{}, fmt.Errorf("missing required event fields")
	}
	return evt, nil
}

// GuestEmail renders the guest-facing message for one lifecycle event.
// Times are shown on the guest's wall clock when the event carries a
// usable timezone.
func GuestEmail(eventType string, evt AppointmentEvent) (subject, body string, err error) {
	when, err := localTime(evt.StartTime, evt.Timezone)
	if err != nil {
		return "", "", err
	}
	name := evt.GuestName
	if name == "" {
		name = "there"
	}

	switch eventType {
	case TopicScheduled:
		subject = "Your appointment is confirmed"
		body = fmt.Sprintf("Hi %s,\n\nYour appointment is booked for %s.\n\nSee you then!", name, when)
	case TopicRescheduled:
		subject = "Your appointment was moved"
		body = fmt.Sprintf("Hi %s,\n\nYour appointment now starts at %s.", name, when)
		if prev, perr := localTime(evt.PreviousStartTime, evt.Timezone); perr == nil && evt.PreviousStartTime != "" {
			body += fmt.Sprintf(" It was previously scheduled for %s.", prev)
		}
	case TopicCancelled:
		subject = "Your appointment was cancelled"
		body = fmt.Sprintf("Hi %s,\n\nYour appointment on %s has been cancelled.", name, when)
		if reason := strings.TrimSpace(evt.Reason); reason != "" {
			body += fmt.Sprintf("\nReason: %s", reason)
		}
	default:
		return "", "", fmt.Errorf("unsupported event type %q", eventType)
	}
	return subject, body, nil
}

func localTime(value, tz string) (string, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "", err
	}
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			t = t.In(loc)
		}
	}
	return t.Format("Monday, 2 January 2006 at 15:04 (MST)"), nil
}
