package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/availability"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/calendar"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/hosts"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/interval"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
	"github.com/google/uuid"
)

// Service implements the guest-facing slot and appointment operations.
// Availability reads take no locks; mutations rely on the Store's
// transactional re-validation to stay conflict-free under concurrency.
type Service struct {
	store       Store
	sink        calendar.Sink
	policy      hosts.Policy
	logger      *slog.Logger
	slotStep    time.Duration
	sinkTimeout time.Duration
	now         func() time.Time
}

type Config struct {
	SlotStep    time.Duration
	SinkTimeout time.Duration
	Policy      hosts.Policy
	Now         func() time.Time
}

func NewService(store Store, sink calendar.Sink, logger *slog.Logger, cfg Config) *Service {
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = availability.DefaultSlotStep
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 3 * time.Second
	}
	if cfg.Policy == nil {
		cfg.Policy = hosts.FirstAvailable{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if sink == nil {
		sink = calendar.NoopSink{}
	}
	return &Service{
		store:       store,
		sink:        sink,
		policy:      cfg.Policy,
		logger:      logger,
		slotStep:    cfg.SlotStep,
		sinkTimeout: cfg.SinkTimeout,
		now:         cfg.Now,
	}
}

// AvailableSlots returns the offerable start times for a booking type on
// one calendar date, chronologically ascending.
func (s *Service) AvailableSlots(ctx context.Context, agencyID, bookingTypeID string, year int, month time.Month, day int) ([]time.Time, error) {
	bt, err := s.activeBookingType(ctx, agencyID, bookingTypeID)
	if err != nil {
		return nil, err
	}

	sched, err := s.store.WeeklySchedule(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	windows, err := availability.ResolveDay(sched, year, month, day)
	if err != nil || len(windows) == 0 {
		return nil, err
	}

	candidates, err := s.eligibleHosts(ctx, agencyID, bt)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	from, to := windowBounds(windows)
	busy, err := s.store.BusySpans(ctx, agencyID, candidates, from, to)
	if err != nil {
		return nil, err
	}

	now := s.now()
	notice := now.Add(bt.MinNotice())
	horizon := now.AddDate(0, 0, bt.MaxFutureDays)

	slots := availability.Slots(windows, bt.Duration(), s.slotStep, candidates, busy, notice)
	out := slots[:0]
	for _, t := range slots {
		if t.After(horizon) {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// AvailableDays returns the ISO dates of a month that have at least one
// scheduled open period and fall within the notice/horizon bounds.
func (s *Service) AvailableDays(ctx context.Context, agencyID, bookingTypeID string, year int, month time.Month) ([]string, error) {
	bt, err := s.activeBookingType(ctx, agencyID, bookingTypeID)
	if err != nil {
		return nil, err
	}
	sched, err := s.store.WeeklySchedule(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	return availability.ResolveMonthDays(sched, bt, year, month, s.now())
}

type BookRequest struct {
	AgencyID      string
	BookingTypeID string
	GuestName     string
	GuestEmail    string
	Timezone      string
	Start         time.Time
}

// Book creates a new appointment at the requested start time. The host is
// fixed here, by the selection policy, and the Store re-validates that
// host inside the insert transaction; if another guest won the race the
// caller gets ErrSlotTaken and must pick a fresh slot.
func (s *Service) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	bt, err := s.activeBookingType(ctx, req.AgencyID, req.BookingTypeID)
	if err != nil {
		return model.Appointment{}, err
	}

	now := s.now()
	start := req.Start.UTC()
	span := interval.Span{Start: start, End: start.Add(bt.Duration())}

	if !start.After(now.Add(bt.MinNotice())) {
		return model.Appointment{}, ErrOutsideAvailability
	}
	if start.After(now.AddDate(0, 0, bt.MaxFutureDays)) {
		return model.Appointment{}, ErrOutsideAvailability
	}

	sched, err := s.store.WeeklySchedule(ctx, req.AgencyID)
	if err != nil {
		return model.Appointment{}, err
	}
	windows, err := availability.WindowsAt(sched, start)
	if err != nil {
		return model.Appointment{}, err
	}
	if !containedInAny(span, windows) {
		return model.Appointment{}, ErrOutsideAvailability
	}

	candidates, err := s.eligibleHosts(ctx, req.AgencyID, bt)
	if err != nil {
		return model.Appointment{}, err
	}
	if len(candidates) == 0 {
		return model.Appointment{}, ErrSlotTaken
	}

	busy, err := s.store.BusySpans(ctx, req.AgencyID, candidates, span.Start, span.End)
	if err != nil {
		return model.Appointment{}, err
	}
	hostID, ok := s.policy.Select(candidates,
		func(id string) bool { return !span.OverlapsAny(busy[id]) },
		func(id string) int { return len(busy[id]) },
	)
	if !ok {
		return model.Appointment{}, ErrSlotTaken
	}

	appt := &model.Appointment{
		ID:            uuid.NewString(),
		AgencyID:      req.AgencyID,
		BookingTypeID: bt.ID,
		HostUserID:    hostID,
		GuestName:     req.GuestName,
		GuestEmail:    req.GuestEmail,
		StartTime:     span.Start,
		EndTime:       span.End,
		Timezone:      req.Timezone,
		Status:        model.StatusScheduled,
		CreatedAt:     now,
	}
	evt, err := appointmentEvent(EventScheduled, *appt, nil)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.store.CreateAppointment(ctx, appt, evt); err != nil {
		return model.Appointment{}, err
	}

	s.calendarCreate(ctx, appt, bt)
	return *appt, nil
}

// Reschedule moves an appointment to a new start time. The end time is
// recomputed from the booking type's current duration, never trusted from
// the stored row.
func (s *Service) Reschedule(ctx context.Context, agencyID, id string, newStart time.Time, timezone string) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, agencyID, id)
	if err != nil {
		return model.Appointment{}, err
	}
	now := s.now()
	if appt.IsCancelled() {
		return model.Appointment{}, ErrAlreadyCancelled
	}
	if appt.StartTime.Before(now) {
		return model.Appointment{}, ErrPastAppointment
	}

	bt, err := s.store.BookingType(ctx, agencyID, appt.BookingTypeID)
	if err != nil {
		return model.Appointment{}, err
	}

	start := newStart.UTC()
	if !start.After(now) {
		return model.Appointment{}, ErrOutsideAvailability
	}
	end := start.Add(bt.Duration())
	if timezone == "" {
		timezone = appt.Timezone
	}

	moved := appt
	moved.StartTime = start
	moved.EndTime = end
	moved.Timezone = timezone
	evt, err := appointmentEvent(EventRescheduled, moved, map[string]any{
		"previous_start_time": appt.StartTime.UTC().Format(time.RFC3339),
		"rescheduled_at":      now.Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}

	updated, err := s.store.RescheduleAppointment(ctx, agencyID, id, start, end, timezone, evt)
	if err != nil {
		return model.Appointment{}, err
	}

	if updated.ExternalEventID != "" {
		s.calendarUpdate(ctx, updated)
	}
	return updated, nil
}

// Cancel transitions an appointment to its terminal state.
func (s *Service) Cancel(ctx context.Context, agencyID, id, cancelledBy, reason string) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, agencyID, id)
	if err != nil {
		return model.Appointment{}, err
	}
	now := s.now()
	if appt.IsCancelled() {
		return model.Appointment{}, ErrAlreadyCancelled
	}
	if appt.StartTime.Before(now) {
		return model.Appointment{}, ErrPastAppointment
	}

	cancelled := appt
	cancelled.Status = model.StatusCancelled
	evt, err := appointmentEvent(EventCancelled, cancelled, map[string]any{
		"cancelled_at": now.Format(time.RFC3339),
		"cancelled_by": cancelledBy,
		"reason":       reason,
	})
	if err != nil {
		return model.Appointment{}, err
	}

	updated, err := s.store.CancelAppointment(ctx, agencyID, id, cancelledBy, reason, evt)
	if err != nil {
		return model.Appointment{}, err
	}

	if updated.ExternalEventID != "" {
		s.calendarDelete(ctx, updated)
	}
	return updated, nil
}

func (s *Service) List(ctx context.Context, agencyID string, limit int) ([]model.Appointment, error) {
	return s.store.ListAppointments(ctx, agencyID, limit)
}

func (s *Service) activeBookingType(ctx context.Context, agencyID, id string) (model.BookingType, error) {
	bt, err := s.store.BookingType(ctx, agencyID, id)
	if err != nil {
		return model.BookingType{}, err
	}
	if !bt.IsActive {
		return model.BookingType{}, ErrNotFound
	}
	return bt, nil
}

func (s *Service) eligibleHosts(ctx context.Context, agencyID string, bt model.BookingType) ([]string, error) {
	if bt.HostUserID != "" || len(bt.AssignedHosts) > 0 {
		return hosts.Eligible(bt, nil), nil
	}
	members, err := s.store.Members(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	return hosts.Eligible(bt, members), nil
}

// Calendar sink calls run after commit with a detached, bounded context:
// the appointment row is authoritative and a sink failure must neither
// roll it back nor hold the guest's request open.

func (s *Service) calendarCreate(ctx context.Context, appt *model.Appointment, bt model.BookingType) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sinkTimeout)
	defer cancel()

	eventID, err := s.sink.CreateEvent(cctx, calendar.EventRequest{
		HostUserID: appt.HostUserID,
		GuestName:  appt.GuestName,
		GuestEmail: appt.GuestEmail,
		Title:      bt.Name,
		Start:      appt.StartTime,
		End:        appt.EndTime,
		Timezone:   appt.Timezone,
	})
	if err != nil {
		s.logger.Warn("calendar event create failed", "appointment_id", appt.ID, "err", err)
		return
	}
	if eventID == "" {
		return
	}
	appt.ExternalEventID = eventID
	if err := s.store.SetExternalEventID(cctx, appt.AgencyID, appt.ID, eventID); err != nil {
		s.logger.Warn("storing external event id failed", "appointment_id", appt.ID, "err", err)
	}
}

func (s *Service) calendarUpdate(ctx context.Context, appt model.Appointment) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sinkTimeout)
	defer cancel()
	if err := s.sink.UpdateEvent(cctx, appt.HostUserID, appt.ExternalEventID, appt.StartTime, appt.EndTime, appt.Timezone); err != nil {
		s.logger.Warn("calendar event update failed", "appointment_id", appt.ID, "err", err)
	}
}

func (s *Service) calendarDelete(ctx context.Context, appt model.Appointment) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sinkTimeout)
	defer cancel()
	if err := s.sink.DeleteEvent(cctx, appt.HostUserID, appt.ExternalEventID); err != nil {
		s.logger.Warn("calendar event delete failed", "appointment_id", appt.ID, "err", err)
	}
}

func windowBounds(windows []interval.Span) (time.Time, time.Time) {
	var from, to time.Time
	for _, w := range windows {
		if from.IsZero() || w.Start.Before(from) {
			from = w.Start
		}
		if to.IsZero() || w.End.After(to) {
			to = w.End
		}
	}
	return from, to
}

func containedInAny(s interval.Span, windows []interval.Span) bool {
	for _, w := range windows {
		if w.Contains(s) {
			return true
		}
	}
	return false
}
