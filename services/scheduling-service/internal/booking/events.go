package booking

import (
	"encoding/json"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/outbox"
)

// Lifecycle event types published through the outbox. The notification
// service consumes these topics.
const (
	EventScheduled   = "scheduling.appointment.scheduled.v1"
	EventRescheduled = "scheduling.appointment.rescheduled.v1"
	EventCancelled   = "scheduling.appointment.cancelled.v1"
)

func appointmentEvent(eventType string, appt model.Appointment, extra map[string]any) (outbox.Event, error) {
	payload := map[string]any{
		"appointment_id":  appt.ID,
		"agency_id":       appt.AgencyID,
		"booking_type_id": appt.BookingTypeID,
		"host_user_id":    appt.HostUserID,
		"guest_name":      appt.GuestName,
		"guest_email":     appt.GuestEmail,
		"start_time":      appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":        appt.EndTime.UTC().Format(time.RFC3339),
		"timezone":        appt.Timezone,
		"status":          appt.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
