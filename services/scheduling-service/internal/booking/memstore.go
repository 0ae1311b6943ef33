package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/interval"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/outbox"
)

// MemoryStore is a mutex-guarded Store for tests and local runs. A single
// lock stands in for the per-host transaction serialization the pgx store
// gets from the database.
type MemoryStore struct {
	// Now lets tests pin the clock used for guard checks.
	Now func() time.Time

	mu           sync.Mutex
	bookingTypes map[string]model.BookingType
	schedules    map[string]*model.WeeklySchedule
	members      map[string][]model.Member
	appointments map[string]model.Appointment
	events       []outbox.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookingTypes: map[string]model.BookingType{},
		schedules:    map[string]*model.WeeklySchedule{},
		members:      map[string][]model.Member{},
		appointments: map[string]model.Appointment{},
	}
}

func (m *MemoryStore) PutBookingType(bt model.BookingType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookingTypes[bt.AgencyID+"/"+bt.ID] = bt
}

func (m *MemoryStore) PutWeeklySchedule(sched model.WeeklySchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[sched.AgencyID] = &sched
}

func (m *MemoryStore) PutMember(member model.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.AgencyID] = append(m.members[member.AgencyID], member)
}

// Events returns the outbox events recorded by committed mutations.
func (m *MemoryStore) Events() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]outbox.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryStore) BookingType(_ context.Context, agencyID, id string) (model.BookingType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bt, ok := m.bookingTypes[agencyID+"/"+id]
	if !ok {
		return model.BookingType{}, ErrNotFound
	}
	return bt, nil
}

func (m *MemoryStore) WeeklySchedule(_ context.Context, agencyID string) (*model.WeeklySchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules[agencyID], nil
}

func (m *MemoryStore) Members(_ context.Context, agencyID string) ([]model.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Member, len(m.members[agencyID]))
	copy(out, m.members[agencyID])
	return out, nil
}

func (m *MemoryStore) BusySpans(_ context.Context, agencyID string, hostIDs []string, from, to time.Time) (map[string][]interval.Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busySpansLocked(agencyID, hostIDs, from, to, ""), nil
}

func (m *MemoryStore) busySpansLocked(agencyID string, hostIDs []string, from, to time.Time, excludeID string) map[string][]interval.Span {
	wanted := map[string]bool{}
	for _, id := range hostIDs {
		wanted[id] = true
	}
	busy := map[string][]interval.Span{}
	for _, a := range m.appointments {
		if a.AgencyID != agencyID || a.ID == excludeID || a.IsCancelled() || !wanted[a.HostUserID] {
			continue
		}
		bt := m.bookingTypes[a.AgencyID+"/"+a.BookingTypeID]
		span := interval.Span{Start: a.StartTime, End: a.EndTime}.Expand(bt.BufferBefore(), bt.BufferAfter())
		if span.Overlaps(interval.Span{Start: from, End: to}) {
			busy[a.HostUserID] = append(busy[a.HostUserID], span)
		}
	}
	for id := range busy {
		spans := busy[id]
		sort.Slice(spans, func(i, j int) bool { return spans[i].Start.Before(spans[j].Start) })
	}
	return busy
}

func (m *MemoryStore) Appointment(_ context.Context, agencyID, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.AgencyID != agencyID {
		return model.Appointment{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) ListAppointments(_ context.Context, agencyID string, limit int) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.AgencyID == agencyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateAppointment(_ context.Context, appt *model.Appointment, evt outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	span := interval.Span{Start: appt.StartTime, End: appt.EndTime}
	busy := m.busySpansLocked(appt.AgencyID, []string{appt.HostUserID}, span.Start, span.End, "")
	if span.OverlapsAny(busy[appt.HostUserID]) {
		return ErrSlotTaken
	}
	m.appointments[appt.ID] = *appt
	m.events = append(m.events, evt)
	return nil
}

func (m *MemoryStore) RescheduleAppointment(_ context.Context, agencyID, id string, start, end time.Time, timezone string, evt outbox.Event) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.AgencyID != agencyID {
		return model.Appointment{}, ErrNotFound
	}
	if a.IsCancelled() {
		return model.Appointment{}, ErrAlreadyCancelled
	}
	now := m.clock()
	if a.StartTime.Before(now) {
		return model.Appointment{}, ErrPastAppointment
	}

	span := interval.Span{Start: start, End: end}
	busy := m.busySpansLocked(agencyID, []string{a.HostUserID}, start, end, id)
	if span.OverlapsAny(busy[a.HostUserID]) {
		return model.Appointment{}, ErrSlotTaken
	}

	a.StartTime = start
	a.EndTime = end
	a.Timezone = timezone
	at := now
	a.RescheduledAt = &at
	m.appointments[id] = a
	m.events = append(m.events, evt)
	return a, nil
}

func (m *MemoryStore) CancelAppointment(_ context.Context, agencyID, id, cancelledBy, reason string, evt outbox.Event) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.AgencyID != agencyID {
		return model.Appointment{}, ErrNotFound
	}
	if a.IsCancelled() {
		return model.Appointment{}, ErrAlreadyCancelled
	}
	now := m.clock()
	if a.StartTime.Before(now) {
		return model.Appointment{}, ErrPastAppointment
	}

	a.Status = model.StatusCancelled
	at := now
	a.CancelledAt = &at
	a.CancelledBy = cancelledBy
	a.CancelReason = reason
	m.appointments[id] = a
	m.events = append(m.events, evt)
	return a, nil
}

func (m *MemoryStore) SetExternalEventID(_ context.Context, agencyID, id, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.AgencyID != agencyID {
		return ErrNotFound
	}
	a.ExternalEventID = eventID
	m.appointments[id] = a
	return nil
}

func (m *MemoryStore) clock() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

var _ Store = (*MemoryStore)(nil)
