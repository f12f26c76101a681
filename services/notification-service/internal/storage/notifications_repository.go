package storage

import (
	"context"

	"github.com/md-rashed-zaman/fieldbook/libs/db"
)

type Notification struct {
	EventType string
	BookingID string
	VenueID   string
	Recipient string
	Subject   string
	Body      string
	Status    string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_type, booking_id, venue_id, recipient, subject, body, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.EventType, n.BookingID, n.VenueID, n.Recipient, n.Subject, n.Body, n.Status)
	return err
}
