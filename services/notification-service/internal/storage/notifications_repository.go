package storage

import (
	"context"

	"github.com/bookline-dev/bookline/libs/db"
)

type Notification struct {
	AppointmentID string
	AgencyID      string
	EventType     string
	Recipient     string
	Subject       string
	Status        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, agency_id, event_type, recipient, subject, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AppointmentID, n.AgencyID, n.EventType, n.Recipient, n.Subject, n.Status)
	return err
}
