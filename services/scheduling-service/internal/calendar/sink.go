package calendar

import (
	"context"
	"time"
)

// EventRequest describes the external calendar event for a booking.
type EventRequest struct {
	HostUserID string
	GuestName  string
	GuestEmail string
	Title      string
	Start      time.Time
	End        time.Time
	Timezone   string
}

// Sink is the external calendar/video collaborator. All calls are
// advisory: the appointment row is the source of truth and callers must
// treat failures as log-and-continue.
//
// CreateEvent returns an empty id when the host has no linked calendar.
type Sink interface {
	CreateEvent(ctx context.Context, req EventRequest) (string, error)
	UpdateEvent(ctx context.Context, hostUserID, eventID string, start, end time.Time, timezone string) error
	DeleteEvent(ctx context.Context, hostUserID, eventID string) error
}

// NoopSink is the "not connected" sink.
type NoopSink struct{}

func (NoopSink) CreateEvent(context.Context, EventRequest) (string, error) {
	return "", nil
}

func (NoopSink) UpdateEvent(context.Context, string, string, time.Time, time.Time, string) error {
	return nil
}

func (NoopSink) DeleteEvent(context.Context, string, string) error {
	return nil
}
