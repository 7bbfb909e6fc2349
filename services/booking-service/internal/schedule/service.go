package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

const minutesPerDay = 24 * 60

type Store interface {
	Create(ctx context.Context, w *model.AvailabilityWindow) error
	Get(ctx context.Context, id string) (model.AvailabilityWindow, error)
	ListByProvider(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error)
	Update(ctx context.Context, w model.AvailabilityWindow) error
	Delete(ctx context.Context, id string) error
}

// Service is the availability registry: weekly recurring windows per
// provider. Windows are a booking template only — they are never checked
// against existing appointments here; actual bookability is resolved at
// slot-generation and booking time.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type WindowParams struct {
	Weekday     int
	StartMinute int
	EndMinute   int
	TimeZone    string
	IsAvailable bool
}

func (s *Service) validate(ctx context.Context, providerID, selfID string, p WindowParams) error {
	if p.Weekday < 0 || p.Weekday > 6 {
		return model.ErrInvalidWindow
	}
	if p.StartMinute < 0 || p.EndMinute > minutesPerDay || p.StartMinute >= p.EndMinute {
		return model.ErrInvalidWindow
	}

	// Enabled windows for the same provider and weekday must not overlap
	// each other; the registry rejects the write rather than merging.
	if !p.IsAvailable {
		return nil
	}
	siblings, err := s.store.ListByProvider(ctx, providerID)
	if err != nil {
		return err
	}
	for _, w := range siblings {
		if w.ID == selfID || !w.IsAvailable || w.Weekday != p.Weekday {
			continue
		}
		if p.StartMinute < w.EndMinute && w.StartMinute < p.EndMinute {
			return model.ErrInvalidWindow
		}
	}
	return nil
}

func (s *Service) SetWindow(ctx context.Context, providerID string, p WindowParams) (model.AvailabilityWindow, error) {
	if strings.TrimSpace(providerID) == "" {
		return model.AvailabilityWindow{}, model.ErrValidation
	}
	if err := s.validate(ctx, providerID, "", p); err != nil {
		return model.AvailabilityWindow{}, err
	}

	tz := strings.TrimSpace(p.TimeZone)
	if tz == "" {
		tz = "UTC"
	}
	now := s.now()
	w := model.AvailabilityWindow{
		ID:          uuid.NewString(),
		ProviderID:  providerID,
		Weekday:     p.Weekday,
		StartMinute: p.StartMinute,
		EndMinute:   p.EndMinute,
		TimeZone:    tz,
		IsAvailable: p.IsAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, &w); err != nil {
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

// ListWindows returns every window for the provider, disabled ones included;
// callers filter.
func (s *Service) ListWindows(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	return s.store.ListByProvider(ctx, providerID)
}

func (s *Service) UpdateWindow(ctx context.Context, providerID, id string, p WindowParams) (model.AvailabilityWindow, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	// Not-owned reads as not-found so callers can't probe other providers'
	// schedules.
	if w.ProviderID != providerID {
		return model.AvailabilityWindow{}, model.ErrNotFound
	}
	if err := s.validate(ctx, providerID, id, p); err != nil {
		return model.AvailabilityWindow{}, err
	}

	tz := strings.TrimSpace(p.TimeZone)
	if tz == "" {
		tz = w.TimeZone
	}
	w.Weekday = p.Weekday
	w.StartMinute = p.StartMinute
	w.EndMinute = p.EndMinute
	w.TimeZone = tz
	w.IsAvailable = p.IsAvailable
	w.UpdatedAt = s.now()

	if err := s.store.Update(ctx, w); err != nil {
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

func (s *Service) RemoveWindow(ctx context.Context, providerID, id string) error {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if w.ProviderID != providerID {
		return model.ErrNotFound
	}
	return s.store.Delete(ctx, id)
}
