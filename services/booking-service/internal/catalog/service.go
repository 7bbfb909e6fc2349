package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

// Filter narrows ListOfferings. Zero values match everything.
type Filter struct {
	ProviderID string
	Category   string
	Tier       *model.Tier
	ActiveOnly bool
}

type Store interface {
	Create(ctx context.Context, off *model.Offering) error
	Get(ctx context.Context, id string) (model.Offering, error)
	List(ctx context.Context, f Filter) ([]model.Offering, error)
	Update(ctx context.Context, off model.Offering) error
	Delete(ctx context.Context, id string) error
}

// AppointmentChecker guards offering deletion against orphaning history.
type AppointmentChecker interface {
	HasNonCancelledForOffering(ctx context.Context, offeringID string) (bool, error)
}

type Service struct {
	store        Store
	appointments AppointmentChecker
	now          func() time.Time
}

func NewService(store Store, appointments AppointmentChecker) *Service {
	return &Service{
		store:        store,
		appointments: appointments,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type OfferingParams struct {
	Title             string
	Description       string
	DurationMinutes   int
	PriceCents        *int64
	Currency          string
	Category          string
	RequiredTier      *model.Tier
	MaxBookingsPerDay int
	IsActive          bool
}

func validateParams(p OfferingParams) error {
	if strings.TrimSpace(p.Title) == "" {
		return model.ErrValidation
	}
	if p.DurationMinutes <= 0 {
		return model.ErrValidation
	}
	if p.PriceCents != nil && *p.PriceCents < 0 {
		return model.ErrValidation
	}
	if p.RequiredTier != nil && !p.RequiredTier.Valid() {
		return model.ErrValidation
	}
	// Zero means uncapped.
	if p.MaxBookingsPerDay < 0 {
		return model.ErrValidation
	}
	return nil
}

func (s *Service) CreateOffering(ctx context.Context, providerID string, p OfferingParams) (model.Offering, error) {
	if strings.TrimSpace(providerID) == "" {
		return model.Offering{}, model.ErrValidation
	}
	if err := validateParams(p); err != nil {
		return model.Offering{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.PriceCents != nil && currency == "" {
		currency = "USD"
	}

	now := s.now()
	off := model.Offering{
		ID:                uuid.NewString(),
		ProviderID:        providerID,
		Title:             strings.TrimSpace(p.Title),
		Description:       strings.TrimSpace(p.Description),
		DurationMinutes:   p.DurationMinutes,
		PriceCents:        p.PriceCents,
		Currency:          currency,
		Category:          strings.TrimSpace(p.Category),
		RequiredTier:      p.RequiredTier,
		MaxBookingsPerDay: p.MaxBookingsPerDay,
		IsActive:          p.IsActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, &off); err != nil {
		return model.Offering{}, err
	}
	return off, nil
}

func (s *Service) GetOffering(ctx context.Context, id string) (model.Offering, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListOfferings(ctx context.Context, f Filter) ([]model.Offering, error) {
	return s.store.List(ctx, f)
}

// UpdateOffering replaces the mutable fields of an offering the actor owns.
// Existing appointments keep the duration and price captured at booking time,
// so edits never rewrite history.
func (s *Service) UpdateOffering(ctx context.Context, actorID, id string, p OfferingParams) (model.Offering, error) {
	off, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Offering{}, err
	}
	if off.ProviderID != actorID {
		return model.Offering{}, model.ErrForbidden
	}
	if err := validateParams(p); err != nil {
		return model.Offering{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.PriceCents != nil && currency == "" {
		currency = "USD"
	}

	off.Title = strings.TrimSpace(p.Title)
	off.Description = strings.TrimSpace(p.Description)
	off.DurationMinutes = p.DurationMinutes
	off.PriceCents = p.PriceCents
	off.Currency = currency
	off.Category = strings.TrimSpace(p.Category)
	off.RequiredTier = p.RequiredTier
	off.MaxBookingsPerDay = p.MaxBookingsPerDay
	off.IsActive = p.IsActive
	off.UpdatedAt = s.now()

	if err := s.store.Update(ctx, off); err != nil {
		return model.Offering{}, err
	}
	return off, nil
}

// DeleteOffering hard-deletes an offering, but only when no non-cancelled
// appointment still references it; otherwise callers should deactivate
// instead (soft delete keeps history intact).
func (s *Service) DeleteOffering(ctx context.Context, actorID, id string) error {
	off, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if off.ProviderID != actorID {
		return model.ErrForbidden
	}

	busy, err := s.appointments.HasNonCancelledForOffering(ctx, id)
	if err != nil {
		return err
	}
	if busy {
		return model.ErrOfferingHasBookings
	}
	return s.store.Delete(ctx, id)
}
