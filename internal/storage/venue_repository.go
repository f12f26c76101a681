// Package storage holds the Postgres repositories shared by the booking and
// scheduler services.
package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/libs/db"
)

const venueColumns = `id, owner_id, name, open_time, close_time, slot_minutes,
	operating_days, active, approved, blocked, created_at`

type VenueRepository struct {
	pool *db.Pool
}

func NewVenueRepository(pool *db.Pool) *VenueRepository {
	return &VenueRepository{pool: pool}
}

func (r *VenueRepository) Create(ctx context.Context, v model.Venue) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO venues
			(id, owner_id, name, open_time, close_time, slot_minutes, operating_days, active, approved, blocked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, v.ID, v.OwnerID, v.Name, v.OpenTime, v.CloseTime, v.SlotMinutes, v.OperatingDays, v.Active, v.Approved, v.Blocked)
	return err
}

func (r *VenueRepository) Get(ctx context.Context, id string) (model.Venue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+venueColumns+`
		FROM venues
		WHERE id = $1
	`, id)
	return scanVenue(row)
}

func (r *VenueRepository) Update(ctx context.Context, v model.Venue) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE venues
		SET name = $2,
			open_time = $3,
			close_time = $4,
			slot_minutes = $5,
			operating_days = $6,
			active = $7
		WHERE id = $1
	`, v.ID, v.Name, v.OpenTime, v.CloseTime, v.SlotMinutes, v.OperatingDays, v.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *VenueRepository) SetApproval(ctx context.Context, id string, approved, blocked bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE venues
		SET approved = $2,
			blocked = $3
		WHERE id = $1
	`, id, approved, blocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *VenueRepository) ListBookable(ctx context.Context, limit int) ([]model.Venue, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+venueColumns+`
		FROM venues
		WHERE active AND approved AND NOT blocked
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return venues, nil
}

func (r *VenueRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Venue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+venueColumns+`
		FROM venues
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return venues, nil
}

func scanVenue(row pgx.Row) (model.Venue, error) {
	var v model.Venue
	err := row.Scan(
		&v.ID,
		&v.OwnerID,
		&v.Name,
		&v.OpenTime,
		&v.CloseTime,
		&v.SlotMinutes,
		&v.OperatingDays,
		&v.Active,
		&v.Approved,
		&v.Blocked,
		&v.CreatedAt,
	)
	if err != nil {
		return model.Venue{}, err
	}
	return v, nil
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
