package booking

import (
	"context"
	"sort"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

// Admin mutations, mirroring the pgx store's configuration surface.

func (m *MemoryStore) CreateBookingType(_ context.Context, bt model.BookingType) (model.BookingType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bt.CreatedAt.IsZero() {
		bt.CreatedAt = m.clock()
	}
	m.bookingTypes[bt.AgencyID+"/"+bt.ID] = bt
	return bt, nil
}

func (m *MemoryStore) ListBookingTypes(_ context.Context, agencyID string) ([]model.BookingType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var types []model.BookingType
	for _, bt := range m.bookingTypes {
		if bt.AgencyID == agencyID {
			types = append(types, bt)
		}
	}
	sort.Slice(types, func(i, j int) bool {
		if !types[i].CreatedAt.Equal(types[j].CreatedAt) {
			return types[i].CreatedAt.Before(types[j].CreatedAt)
		}
		return types[i].ID < types[j].ID
	})
	return types, nil
}

func (m *MemoryStore) UpsertWeeklySchedule(_ context.Context, sched model.WeeklySchedule) error {
	m.PutWeeklySchedule(sched)
	return nil
}

func (m *MemoryStore) UpsertMember(_ context.Context, member model.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.members[member.AgencyID]
	for i, cur := range existing {
		if cur.UserID == member.UserID {
			existing[i] = member
			return nil
		}
	}
	m.members[member.AgencyID] = append(existing, member)
	return nil
}
