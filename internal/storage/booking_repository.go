package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/libs/db"
)

const bookingColumns = `id, venue_id, customer_id, customer_name, customer_email,
	date, start_time, end_time, status, COALESCE(subscription_id::text, ''), reminder_sent,
	cancelled_at, created_at`

type BookingRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	CustomerID      string
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockIdempotencyKey claims the (customer, key) pair under the transaction's
// row lock. The boolean reports whether the row already existed, meaning a
// previous attempt with this key got at least as far as claiming it.
func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, customerID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, customerID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (customer_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (customer_id, idempotency_key) DO NOTHING
	`, customerID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, customerID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, customerID, key, bookingID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE customer_id = $1 AND idempotency_key = $2
	`, customerID, key, bookingID, statusCode, response)
	return err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b model.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings
			(id, venue_id, customer_id, customer_name, customer_email, date, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.VenueID, b.CustomerID, b.CustomerName, b.CustomerEmail, b.Date, b.StartTime, b.EndTime, b.Status)
	return err
}

// CreateMaterialized inserts a subscription-backed booking, relying on the
// partial unique index over (subscription_id, date) for non-cancelled rows.
// Returns false when a concurrent run has already materialized the occurrence.
func (r *BookingRepository) CreateMaterialized(ctx context.Context, b model.Booking) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO bookings
			(id, venue_id, customer_id, customer_name, customer_email, date, start_time, end_time, status, subscription_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (subscription_id, date) WHERE status <> 'cancelled' DO NOTHING
	`, b.ID, b.VenueID, b.CustomerID, b.CustomerName, b.CustomerEmail, b.Date, b.StartTime, b.EndTime, b.Status, b.SubscriptionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanBooking(row)
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, id string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now()
		WHERE id = $1 AND status <> 'cancelled'
		RETURNING cancelled_at
	`, id).Scan(&cancelledAt)
	return cancelledAt, err
}

// ListBlockingByVenueDate returns the bookings that occupy venue time on the
// given calendar date. Cancelled rows never block.
func (r *BookingRepository) ListBlockingByVenueDate(ctx context.Context, venueID string, date time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE venue_id = $1
			AND date = $2
			AND status <> 'cancelled'
		ORDER BY start_time ASC
	`, venueID, model.DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListOneOffBetween returns the non-cancelled bookings in [from, to] that are
// not backed by a subscription.
func (r *BookingRepository) ListOneOffBetween(ctx context.Context, venueID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE venue_id = $1
			AND date >= $2
			AND date <= $3
			AND subscription_id IS NULL
			AND status <> 'cancelled'
		ORDER BY date ASC, start_time ASC
	`, venueID, model.DateOnly(from), model.DateOnly(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) HasForSubscriptionOn(ctx context.Context, subscriptionID string, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE subscription_id = $1
				AND date = $2
				AND status <> 'cancelled'
		)
	`, subscriptionID, model.DateOnly(date)).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) LatestForSubscription(ctx context.Context, subscriptionID string) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE subscription_id = $1
			AND status <> 'cancelled'
		ORDER BY date DESC, start_time DESC
		LIMIT 1
	`, subscriptionID)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) ListNeedingReminder(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE NOT reminder_sent
			AND status = 'confirmed'
			AND date >= $1
			AND date < $2
		ORDER BY date ASC
	`, model.DateOnly(from), to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) MarkReminderSent(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET reminder_sent = true
		WHERE id = $1
	`, id)
	return err
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE customer_id = $1
		ORDER BY date DESC, start_time DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) ListByVenue(ctx context.Context, venueID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE venue_id = $1
		ORDER BY date DESC, start_time DESC
		LIMIT $2
	`, venueID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.VenueID,
		&b.CustomerID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.Date,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.SubscriptionID,
		&b.ReminderSent,
		&cancelledAt,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, customerID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT customer_id::text,
			idempotency_key,
			COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE customer_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, customerID, key).Scan(
		&rec.CustomerID,
		&rec.IdempotencyKey,
		&rec.BookingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
