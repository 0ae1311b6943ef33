package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// breakerSink wraps a Sink with a circuit breaker so a degraded calendar
// collaborator sheds load fast instead of holding booking requests at the
// timeout for every call.
type breakerSink struct {
	inner Sink
	cb    *gobreaker.CircuitBreaker[string]
}

func WithBreaker(inner Sink, logger *slog.Logger) Sink {
	settings := gobreaker.Settings{
		Name:    "calendar-sink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("calendar sink breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &breakerSink{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[string](settings),
	}
}

func (s *breakerSink) CreateEvent(ctx context.Context, req EventRequest) (string, error) {
	return s.cb.Execute(func() (string, error) {
		return s.inner.CreateEvent(ctx, req)
	})
}

func (s *breakerSink) UpdateEvent(ctx context.Context, hostUserID, eventID string, start, end time.Time, timezone string) error {
	_, err := s.cb.Execute(func() (string, error) {
		return "", s.inner.UpdateEvent(ctx, hostUserID, eventID, start, end, timezone)
	})
	return err
}

func (s *breakerSink) DeleteEvent(ctx context.Context, hostUserID, eventID string) error {
	_, err := s.cb.Execute(func() (string, error) {
		return "", s.inner.DeleteEvent(ctx, hostUserID, eventID)
	})
	return err
}
