package storage

import (
	"context"

	"github.com/norastrand/bookwise/libs/db"
)

// IdempotencyRepository maps (client, Idempotency-Key) to the appointment the
// first successful create produced, so retries return the original booking
// instead of a conflict.
type IdempotencyRepository struct {
	pool *db.Pool
}

func NewIdempotencyRepository(pool *db.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Lookup returns the stored appointment id, or "" when the key is unseen.
func (r *IdempotencyRepository) Lookup(ctx context.Context, clientID, key string) (string, error) {
	var appointmentID string
	err := r.pool.QueryRow(ctx, `
		SELECT appointment_id::text
		FROM booking_idempotency_keys
		WHERE client_id = $1 AND idempotency_key = $2
	`, clientID, key).Scan(&appointmentID)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return appointmentID, nil
}

// Save records the key after a successful create. A concurrent duplicate is
// harmless: the first writer wins and the retry path reads its appointment.
func (r *IdempotencyRepository) Save(ctx context.Context, clientID, key, appointmentID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (client_id, idempotency_key, appointment_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (client_id, idempotency_key) DO NOTHING
	`, clientID, key, appointmentID)
	return err
}
