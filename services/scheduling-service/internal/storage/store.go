// Package storage is the Postgres implementation of the scheduling
// engine's persistence contract.
//
// The appointments table carries an exclusion constraint on
// (agency_id, host_user_id, buffered time range) for non-cancelled rows.
// The explicit conflict re-check inside each mutation transaction is the
// primary guard; the constraint is the storage-level backstop, surfaced
// as SQLSTATE 23P01 and mapped to booking.ErrSlotTaken.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bookline-dev/bookline/libs/db"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/booking"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/interval"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/outbox"
)

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, ob *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: ob}
}

const appointmentColumns = `
	id::text, agency_id::text, booking_type_id::text, host_user_id,
	guest_name, guest_email, start_time, end_time, timezone, status,
	COALESCE(external_event_id, ''), cancelled_at, COALESCE(cancelled_by, ''),
	COALESCE(cancellation_reason, ''), rescheduled_at, created_at`

// lockHost serializes mutations for one (agency, host) pair for the
// duration of the transaction. Different hosts hash to different keys, so
// bookings against distinct hosts proceed in parallel.
func lockHost(ctx context.Context, tx pgx.Tx, agencyID, hostID string) error {
	_, err := tx.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1 || '/' || $2, 0))
	`, agencyID, hostID)
	return err
}

// hostBusy reports whether any non-cancelled appointment, expanded by its
// own booking type's buffers, overlaps [start, end) for the host.
// excludeID skips the appointment's own row on reschedule.
func hostBusy(ctx context.Context, tx pgx.Tx, agencyID, hostID string, start, end time.Time, excludeID string) (bool, error) {
	var busy bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments a
			JOIN booking_types bt ON bt.id = a.booking_type_id
			WHERE a.agency_id = $1
				AND a.host_user_id = $2
				AND a.status IN ('scheduled', 'confirmed')
				AND ($5 = '' OR a.id::text <> $5)
				AND a.start_time - make_interval(mins => bt.buffer_before_minutes) < $4
				AND a.end_time + make_interval(mins => bt.buffer_after_minutes) > $3
		)
	`, agencyID, hostID, start, end, excludeID).Scan(&busy)
	return busy, err
}

func (s *Store) CreateAppointment(ctx context.Context, appt *model.Appointment, evt outbox.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockHost(ctx, tx, appt.AgencyID, appt.HostUserID); err != nil {
		return err
	}
	busy, err := hostBusy(ctx, tx, appt.AgencyID, appt.HostUserID, appt.StartTime, appt.EndTime, "")
	if err != nil {
		return err
	}
	if busy {
		return booking.ErrSlotTaken
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, agency_id, booking_type_id, host_user_id, guest_name, guest_email,
			start_time, end_time, timezone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, appt.ID, appt.AgencyID, appt.BookingTypeID, appt.HostUserID, appt.GuestName, appt.GuestEmail,
		appt.StartTime, appt.EndTime, appt.Timezone, appt.Status).Scan(&appt.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return booking.ErrSlotTaken
		}
		return err
	}

	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) RescheduleAppointment(ctx context.Context, agencyID, id string, start, end time.Time, timezone string, evt outbox.Event) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer tx.Rollback(ctx)

	current, err := appointmentForUpdate(ctx, tx, agencyID, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if current.IsCancelled() {
		return model.Appointment{}, booking.ErrAlreadyCancelled
	}
	if current.StartTime.Before(time.Now().UTC()) {
		return model.Appointment{}, booking.ErrPastAppointment
	}

	if err := lockHost(ctx, tx, agencyID, current.HostUserID); err != nil {
		return model.Appointment{}, err
	}
	busy, err := hostBusy(ctx, tx, agencyID, current.HostUserID, start, end, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if busy {
		return model.Appointment{}, booking.ErrSlotTaken
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $3,
			end_time = $4,
			timezone = $5,
			rescheduled_at = now()
		WHERE agency_id = $1 AND id = $2
		RETURNING `+appointmentColumns+`
	`, agencyID, id, start, end, timezone)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsConflict(err) {
			return model.Appointment{}, booking.ErrSlotTaken
		}
		return model.Appointment{}, err
	}

	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Store) CancelAppointment(ctx context.Context, agencyID, id, cancelledBy, reason string, evt outbox.Event) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer tx.Rollback(ctx)

	current, err := appointmentForUpdate(ctx, tx, agencyID, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if current.IsCancelled() {
		return model.Appointment{}, booking.ErrAlreadyCancelled
	}
	if current.StartTime.Before(time.Now().UTC()) {
		return model.Appointment{}, booking.ErrPastAppointment
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancelled_by = $3,
			cancellation_reason = $4
		WHERE agency_id = $1 AND id = $2
		RETURNING `+appointmentColumns+`
	`, agencyID, id, cancelledBy, reason)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, err
	}

	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Store) SetExternalEventID(ctx context.Context, agencyID, id, eventID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET external_event_id = $3
		WHERE agency_id = $1 AND id = $2
	`, agencyID, id, eventID)
	return err
}

func (s *Store) Appointment(ctx context.Context, agencyID, id string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE agency_id = $1 AND id = $2
	`, agencyID, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, booking.ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Store) ListAppointments(ctx context.Context, agencyID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE agency_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, agencyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (s *Store) BusySpans(ctx context.Context, agencyID string, hostIDs []string, from, to time.Time) (map[string][]interval.Span, error) {
	busy := make(map[string][]interval.Span, len(hostIDs))
	if len(hostIDs) == 0 {
		return busy, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT a.host_user_id,
			a.start_time - make_interval(mins => bt.buffer_before_minutes),
			a.end_time + make_interval(mins => bt.buffer_after_minutes)
		FROM appointments a
		JOIN booking_types bt ON bt.id = a.booking_type_id
		WHERE a.agency_id = $1
			AND a.host_user_id = ANY($2)
			AND a.status IN ('scheduled', 'confirmed')
			AND a.start_time - make_interval(mins => bt.buffer_before_minutes) < $4
			AND a.end_time + make_interval(mins => bt.buffer_after_minutes) > $3
		ORDER BY a.start_time
	`, agencyID, hostIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var hostID string
		var span interval.Span
		if err := rows.Scan(&hostID, &span.Start, &span.End); err != nil {
			return nil, err
		}
		busy[hostID] = append(busy[hostID], span)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return busy, nil
}

func appointmentForUpdate(ctx context.Context, tx pgx.Tx, agencyID, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE agency_id = $1 AND id = $2
		FOR UPDATE
	`, agencyID, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, booking.ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt, rescheduledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.AgencyID,
		&appt.BookingTypeID,
		&appt.HostUserID,
		&appt.GuestName,
		&appt.GuestEmail,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Timezone,
		&appt.Status,
		&appt.ExternalEventID,
		&cancelledAt,
		&appt.CancelledBy,
		&appt.CancelReason,
		&rescheduledAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	appt.RescheduledAt = rescheduledAt
	return appt, nil
}

// IsConflict reports whether err is an exclusion constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

var _ booking.Store = (*Store)(nil)
