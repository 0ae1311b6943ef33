package booking

import "errors"

// Domain errors surfaced to callers. Everything else is an internal
// failure and maps to a 500 at the transport layer.
var (
	// ErrNotFound covers missing booking types, appointments, and agency
	// schedules referenced by id.
	ErrNotFound = errors.New("not found")

	// ErrSlotTaken means the requested interval conflicts with an existing
	// appointment for every eligible host. Retryable by the guest after
	// re-querying availability; the engine never substitutes a slot.
	ErrSlotTaken = errors.New("slot taken")

	// ErrPastAppointment rejects mutations of appointments whose start
	// time has already elapsed.
	ErrPastAppointment = errors.New("appointment start time has passed")

	// ErrAlreadyCancelled rejects transitions out of the terminal state.
	ErrAlreadyCancelled = errors.New("appointment already cancelled")

	// ErrOutsideAvailability rejects booking times that fall outside the
	// agency's open windows or the notice/horizon bounds.
	ErrOutsideAvailability = errors.New("requested time is outside availability")
)
