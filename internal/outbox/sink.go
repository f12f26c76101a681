package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/libs/db"
)

// Sink writes domain events as outbox rows, each in its own short
// transaction. It backs the scheduler, which has no surrounding request
// transaction to piggyback on.
type Sink struct {
	pool *db.Pool
	repo *Repository
}

func NewSink(pool *db.Pool, repo *Repository) *Sink {
	return &Sink{pool: pool, repo: repo}
}

type bookingPayload struct {
	BookingID      string `json:"booking_id"`
	VenueID        string `json:"venue_id"`
	CustomerID     string `json:"customer_id"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

type subscriptionPayload struct {
	SubscriptionID  string `json:"subscription_id"`
	VenueID         string `json:"venue_id"`
	CustomerID      string `json:"customer_id"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	Interval        string `json:"interval"`
	LastBookingDate string `json:"last_booking_date,omitempty"`
}

func (s *Sink) BookingCreated(ctx context.Context, b model.Booking) error {
	return s.emitBooking(ctx, TopicBookingCreated, b)
}

func (s *Sink) BookingCancelled(ctx context.Context, b model.Booking) error {
	return s.emitBooking(ctx, TopicBookingCancelled, b)
}

func (s *Sink) BookingReminderDue(ctx context.Context, b model.Booking) error {
	return s.emitBooking(ctx, TopicBookingReminderDue, b)
}

func (s *Sink) SubscriptionAutoCancelled(ctx context.Context, sub model.Subscription) error {
	payload := subscriptionPayload{
		SubscriptionID: sub.ID,
		VenueID:        sub.VenueID,
		CustomerID:     sub.CustomerID,
		CustomerName:   sub.CustomerName,
		CustomerEmail:  sub.CustomerEmail,
		Interval:       string(sub.Interval),
	}
	if !sub.LastBookingDate.IsZero() {
		payload.LastBookingDate = sub.LastBookingDate.Format(time.DateOnly)
	}
	return s.emit(ctx, Event{
		AggregateType: "subscription",
		AggregateID:   sub.ID,
		EventType:     TopicSubscriptionAutoCancelled,
	}, payload)
}

func (s *Sink) emitBooking(ctx context.Context, eventType string, b model.Booking) error {
	return s.emit(ctx, Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
	}, bookingPayload{
		BookingID:      b.ID,
		VenueID:        b.VenueID,
		CustomerID:     b.CustomerID,
		CustomerName:   b.CustomerName,
		CustomerEmail:  b.CustomerEmail,
		Date:           b.Date.Format(time.DateOnly),
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		Status:         string(b.Status),
		SubscriptionID: b.SubscriptionID,
	})
}

func (s *Sink) emit(ctx context.Context, evt Event, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evt.EventType, err)
	}
	evt.Payload = body

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.repo.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
