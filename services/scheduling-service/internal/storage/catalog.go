package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/booking"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

const bookingTypeColumns = `
	id::text, agency_id::text, name, duration_minutes, buffer_before_minutes,
	buffer_after_minutes, min_notice_hours, max_future_days, is_active,
	COALESCE(host_user_id, ''), created_at`

func (s *Store) BookingType(ctx context.Context, agencyID, id string) (model.BookingType, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bookingTypeColumns+`
		FROM booking_types
		WHERE agency_id = $1 AND id = $2
	`, agencyID, id)
	bt, err := scanBookingType(row)
	if err != nil {
		if IsNotFound(err) {
			return model.BookingType{}, booking.ErrNotFound
		}
		return model.BookingType{}, err
	}
	bt.AssignedHosts, err = s.assignedHosts(ctx, bt.ID)
	if err != nil {
		return model.BookingType{}, err
	}
	return bt, nil
}

func (s *Store) ListBookingTypes(ctx context.Context, agencyID string) ([]model.BookingType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingTypeColumns+`
		FROM booking_types
		WHERE agency_id = $1
		ORDER BY created_at
	`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []model.BookingType
	for rows.Next() {
		bt, err := scanBookingType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, bt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	for i := range types {
		types[i].AssignedHosts, err = s.assignedHosts(ctx, types[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return types, nil
}

// CreateBookingType inserts the template and its assigned-host rows in one
// transaction.
func (s *Store) CreateBookingType(ctx context.Context, bt model.BookingType) (model.BookingType, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.BookingType{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO booking_types
			(id, agency_id, name, duration_minutes, buffer_before_minutes,
			buffer_after_minutes, min_notice_hours, max_future_days, is_active, host_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		RETURNING created_at
	`, bt.ID, bt.AgencyID, bt.Name, bt.DurationMinutes, bt.BufferBeforeMins,
		bt.BufferAfterMins, bt.MinNoticeHours, bt.MaxFutureDays, bt.IsActive, bt.HostUserID).Scan(&bt.CreatedAt)
	if err != nil {
		return model.BookingType{}, err
	}
	for _, h := range bt.AssignedHosts {
		_, err = tx.Exec(ctx, `
			INSERT INTO booking_type_hosts (booking_type_id, user_id, priority)
			VALUES ($1, $2, $3)
		`, bt.ID, h.UserID, h.Priority)
		if err != nil {
			return model.BookingType{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.BookingType{}, err
	}
	return bt, nil
}

func (s *Store) assignedHosts(ctx context.Context, bookingTypeID string) ([]model.AssignedHost, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, priority
		FROM booking_type_hosts
		WHERE booking_type_id = $1
		ORDER BY priority, user_id
	`, bookingTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []model.AssignedHost
	for rows.Next() {
		var h model.AssignedHost
		if err := rows.Scan(&h.UserID, &h.Priority); err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// WeeklySchedule returns nil when the agency has no stored schedule.
func (s *Store) WeeklySchedule(ctx context.Context, agencyID string) (*model.WeeklySchedule, error) {
	var sched model.WeeklySchedule
	var days []byte
	err := s.pool.QueryRow(ctx, `
		SELECT agency_id::text, timezone, days
		FROM weekly_schedules
		WHERE agency_id = $1
	`, agencyID).Scan(&sched.AgencyID, &sched.Timezone, &days)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(days, &sched.Days); err != nil {
		return nil, err
	}
	return &sched, nil
}

func (s *Store) UpsertWeeklySchedule(ctx context.Context, sched model.WeeklySchedule) error {
	days, err := json.Marshal(sched.Days)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO weekly_schedules (agency_id, timezone, days)
		VALUES ($1, $2, $3)
		ON CONFLICT (agency_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			days = EXCLUDED.days,
			updated_at = now()
	`, sched.AgencyID, sched.Timezone, days)
	return err
}

func (s *Store) Members(ctx context.Context, agencyID string) ([]model.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, agency_id::text, name, email, role, is_active
		FROM agency_members
		WHERE agency_id = $1
		ORDER BY user_id
	`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.UserID, &m.AgencyID, &m.Name, &m.Email, &m.Role, &m.IsActive); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) UpsertMember(ctx context.Context, m model.Member) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agency_members (user_id, agency_id, name, email, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (agency_id, user_id) DO UPDATE
		SET name = EXCLUDED.name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active
	`, m.UserID, m.AgencyID, m.Name, m.Email, m.Role, m.IsActive)
	return err
}

func scanBookingType(row pgx.Row) (model.BookingType, error) {
	var bt model.BookingType
	err := row.Scan(
		&bt.ID,
		&bt.AgencyID,
		&bt.Name,
		&bt.DurationMinutes,
		&bt.BufferBeforeMins,
		&bt.BufferAfterMins,
		&bt.MinNoticeHours,
		&bt.MaxFutureDays,
		&bt.IsActive,
		&bt.HostUserID,
		&bt.CreatedAt,
	)
	return bt, err
}
