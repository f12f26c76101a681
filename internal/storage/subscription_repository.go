package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/libs/db"
)

const subscriptionColumns = `id, venue_id, customer_id, customer_name, customer_email,
	interval_kind, day_of_week, day_of_month, start_date, start_time, end_time,
	status, cancel_at_period_end, last_booking_date, created_at`

type SubscriptionRepository struct {
	pool *db.Pool
}

func NewSubscriptionRepository(pool *db.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) Create(ctx context.Context, s model.Subscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions
			(id, venue_id, customer_id, customer_name, customer_email,
			interval_kind, day_of_week, day_of_month, start_date, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, s.ID, s.VenueID, s.CustomerID, s.CustomerName, s.CustomerEmail,
		s.Interval, int(s.DayOfWeek), s.DayOfMonth, model.DateOnly(s.StartDate), s.StartTime, s.EndTime, s.Status)
	return err
}

func (r *SubscriptionRepository) Get(ctx context.Context, id string) (model.Subscription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1
	`, id)
	return scanSubscription(row)
}

func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]model.Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = 'active'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (r *SubscriptionRepository) ListActiveByVenue(ctx context.Context, venueID string) ([]model.Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE venue_id = $1 AND status = 'active'
		ORDER BY created_at ASC
	`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (r *SubscriptionRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (r *SubscriptionRepository) SetLastBookingDate(ctx context.Context, id string, date time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET last_booking_date = $2
		WHERE id = $1
	`, id, model.DateOnly(date))
	return err
}

func (r *SubscriptionRepository) Cancel(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET status = 'cancelled'
		WHERE id = $1 AND status <> 'cancelled'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *SubscriptionRepository) SetCancelAtPeriodEnd(ctx context.Context, id string, flag bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET cancel_at_period_end = $2
		WHERE id = $1 AND status = 'active'
	`, id, flag)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectSubscriptions(rows pgx.Rows) ([]model.Subscription, error) {
	var subs []model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subs, nil
}

func scanSubscription(row pgx.Row) (model.Subscription, error) {
	var s model.Subscription
	var dayOfWeek int
	var lastBookingDate *time.Time
	err := row.Scan(
		&s.ID,
		&s.VenueID,
		&s.CustomerID,
		&s.CustomerName,
		&s.CustomerEmail,
		&s.Interval,
		&dayOfWeek,
		&s.DayOfMonth,
		&s.StartDate,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.CancelAtPeriodEnd,
		&lastBookingDate,
		&s.CreatedAt,
	)
	if err != nil {
		return model.Subscription{}, err
	}
	s.DayOfWeek = time.Weekday(dayOfWeek)
	if lastBookingDate != nil {
		s.LastBookingDate = *lastBookingDate
	}
	return s, nil
}
