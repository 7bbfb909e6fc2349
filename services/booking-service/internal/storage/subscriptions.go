package storage

import (
	"context"

	"github.com/norastrand/bookwise/libs/db"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

// SubscriptionRepository is a local read-model of the billing collaborator's
// subscription state, kept current by consuming its lifecycle events. Booking
// never calls billing synchronously.
type SubscriptionRepository struct {
	pool *db.Pool
}

func NewSubscriptionRepository(pool *db.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Get returns nil when no snapshot exists for the client; the access policy
// treats that the same as an inactive subscription.
func (r *SubscriptionRepository) Get(ctx context.Context, clientID string) (*model.Subscription, error) {
	var sub model.Subscription
	var tier string
	err := r.pool.QueryRow(ctx, `
		SELECT client_id, tier, is_active, updated_at
		FROM subscription_entitlements
		WHERE client_id = $1
	`, clientID).Scan(&sub.ClientID, &tier, &sub.IsActive, &sub.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	sub.Tier = model.Tier(tier)
	return &sub, nil
}

// Upsert applies a billing event, keeping only the newest snapshot per client.
// Stale events (older updated_at) are dropped so out-of-order delivery cannot
// regress the tier.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub model.Subscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscription_entitlements (client_id, tier, is_active, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (client_id) DO UPDATE
		SET tier = EXCLUDED.tier,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		WHERE subscription_entitlements.updated_at <= EXCLUDED.updated_at
	`, sub.ClientID, string(sub.Tier), sub.IsActive, sub.UpdatedAt)
	return err
}
