package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/norastrand/bookwise/libs/db"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

type WindowRepository struct {
	pool *db.Pool
}

func NewWindowRepository(pool *db.Pool) *WindowRepository {
	return &WindowRepository{pool: pool}
}

const windowColumns = `
	id::text, provider_id, weekday, start_minute, end_minute,
	time_zone, is_available, created_at, updated_at`

func scanWindow(row pgx.Row) (model.AvailabilityWindow, error) {
	var w model.AvailabilityWindow
	err := row.Scan(
		&w.ID,
		&w.ProviderID,
		&w.Weekday,
		&w.StartMinute,
		&w.EndMinute,
		&w.TimeZone,
		&w.IsAvailable,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

func (r *WindowRepository) Create(ctx context.Context, w *model.AvailabilityWindow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_windows
			(id, provider_id, weekday, start_minute, end_minute, time_zone,
			 is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, w.ID, w.ProviderID, w.Weekday, w.StartMinute, w.EndMinute, w.TimeZone,
		w.IsAvailable, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r *WindowRepository) Get(ctx context.Context, id string) (model.AvailabilityWindow, error) {
	w, err := scanWindow(r.pool.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
	`, id))
	if err != nil {
		if isNoRows(err) {
			return model.AvailabilityWindow{}, model.ErrNotFound
		}
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

func (r *WindowRepository) listWindows(ctx context.Context, query string, args ...any) ([]model.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *WindowRepository) ListByProvider(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	return r.listWindows(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE provider_id = $1
		ORDER BY weekday ASC, start_minute ASC
	`, providerID)
}

// ListEnabled feeds slot generation: disabled windows never produce slots.
func (r *WindowRepository) ListEnabled(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	return r.listWindows(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE provider_id = $1 AND is_available
		ORDER BY weekday ASC, start_minute ASC
	`, providerID)
}

func (r *WindowRepository) Update(ctx context.Context, w model.AvailabilityWindow) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_windows
		SET weekday = $2,
			start_minute = $3,
			end_minute = $4,
			time_zone = $5,
			is_available = $6,
			updated_at = $7
		WHERE id = $1
	`, w.ID, w.Weekday, w.StartMinute, w.EndMinute, w.TimeZone, w.IsAvailable, w.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *WindowRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
