package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/norastrand/bookwise/libs/db"
	"github.com/norastrand/bookwise/services/booking-service/internal/catalog"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

type OfferingRepository struct {
	pool *db.Pool
}

func NewOfferingRepository(pool *db.Pool) *OfferingRepository {
	return &OfferingRepository{pool: pool}
}

const offeringColumns = `
	id::text, provider_id, title, COALESCE(description, ''),
	duration_minutes, price_cents, COALESCE(currency, ''), COALESCE(category, ''),
	required_tier, max_bookings_per_day, is_active, created_at, updated_at`

func scanOffering(row pgx.Row) (model.Offering, error) {
	var o model.Offering
	var requiredTier *string
	err := row.Scan(
		&o.ID,
		&o.ProviderID,
		&o.Title,
		&o.Description,
		&o.DurationMinutes,
		&o.PriceCents,
		&o.Currency,
		&o.Category,
		&requiredTier,
		&o.MaxBookingsPerDay,
		&o.IsActive,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return model.Offering{}, err
	}
	if requiredTier != nil {
		t := model.Tier(*requiredTier)
		o.RequiredTier = &t
	}
	return o, nil
}

func tierArg(t *model.Tier) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func (r *OfferingRepository) Create(ctx context.Context, off *model.Offering) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO offerings
			(id, provider_id, title, description, duration_minutes, price_cents, currency,
			 category, required_tier, max_bookings_per_day, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, off.ID, off.ProviderID, off.Title, off.Description, off.DurationMinutes, off.PriceCents,
		off.Currency, off.Category, tierArg(off.RequiredTier), off.MaxBookingsPerDay,
		off.IsActive, off.CreatedAt, off.UpdatedAt)
	return err
}

func (r *OfferingRepository) Get(ctx context.Context, id string) (model.Offering, error) {
	off, err := scanOffering(r.pool.QueryRow(ctx, `
		SELECT `+offeringColumns+`
		FROM offerings
		WHERE id = $1
	`, id))
	if err != nil {
		if isNoRows(err) {
			return model.Offering{}, model.ErrNotFound
		}
		return model.Offering{}, err
	}
	return off, nil
}

func (r *OfferingRepository) List(ctx context.Context, f catalog.Filter) ([]model.Offering, error) {
	var tier string
	if f.Tier != nil {
		tier = string(*f.Tier)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+offeringColumns+`
		FROM offerings
		WHERE ($1 = '' OR provider_id = $1)
		  AND ($2 = '' OR category = $2)
		  AND ($3 = '' OR required_tier = $3)
		  AND (NOT $4::boolean OR is_active)
		ORDER BY created_at DESC
	`, f.ProviderID, f.Category, tier, f.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Offering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *OfferingRepository) Update(ctx context.Context, off model.Offering) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE offerings
		SET title = $2,
			description = $3,
			duration_minutes = $4,
			price_cents = $5,
			currency = $6,
			category = $7,
			required_tier = $8,
			max_bookings_per_day = $9,
			is_active = $10,
			updated_at = $11
		WHERE id = $1
	`, off.ID, off.Title, off.Description, off.DurationMinutes, off.PriceCents, off.Currency,
		off.Category, tierArg(off.RequiredTier), off.MaxBookingsPerDay, off.IsActive, off.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM offerings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
