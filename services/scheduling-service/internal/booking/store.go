package booking

import (
	"context"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/interval"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/outbox"
)

// Store is the persistence contract for the appointment engine. The pgx
// implementation lives in internal/storage; an in-memory implementation
// backs tests and local development.
//
// Mutation methods are transactional: the conflict re-check, the guard
// checks, the row mutation, and the outbox event all commit atomically.
// Implementations must serialize mutations per (agency, host) without
// serializing across different hosts.
type Store interface {
	BookingType(ctx context.Context, agencyID, id string) (model.BookingType, error)

	// WeeklySchedule returns nil (not an error) when the agency has no
	// schedule; availability then resolves to empty.
	WeeklySchedule(ctx context.Context, agencyID string) (*model.WeeklySchedule, error)

	Members(ctx context.Context, agencyID string) ([]model.Member, error)

	// BusySpans returns, per host, the buffer-expanded intervals of
	// non-cancelled appointments overlapping [from, to). Each appointment
	// is expanded by its own booking type's buffers.
	BusySpans(ctx context.Context, agencyID string, hostIDs []string, from, to time.Time) (map[string][]interval.Span, error)

	Appointment(ctx context.Context, agencyID, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, agencyID string, limit int) ([]model.Appointment, error)

	// CreateAppointment inserts appt after re-validating that its host is
	// free for the buffered interval, inside the same transaction.
	// Returns ErrSlotTaken on conflict.
	CreateAppointment(ctx context.Context, appt *model.Appointment, evt outbox.Event) error

	// RescheduleAppointment moves the appointment, re-checking the guards
	// (not cancelled, not past) and re-running the conflict check with the
	// appointment's own row excluded. Stamps rescheduled_at.
	RescheduleAppointment(ctx context.Context, agencyID, id string, start, end time.Time, timezone string, evt outbox.Event) (model.Appointment, error)

	// CancelAppointment transitions to cancelled, stamping the
	// cancellation metadata. Returns ErrAlreadyCancelled when the row is
	// already terminal and leaves it untouched.
	CancelAppointment(ctx context.Context, agencyID, id, cancelledBy, reason string, evt outbox.Event) (model.Appointment, error)

	// SetExternalEventID records the weak back-reference to the external
	// calendar event. Best-effort from the caller's perspective.
	SetExternalEventID(ctx context.Context, agencyID, id, eventID string) error
}
