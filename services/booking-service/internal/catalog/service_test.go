package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

type fakeStore struct {
	offs map[string]model.Offering
}

func newFakeStore() *fakeStore {
	return &fakeStore{offs: make(map[string]model.Offering)}
}

func (f *fakeStore) Create(_ context.Context, off *model.Offering) error {
	f.offs[off.ID] = *off
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (model.Offering, error) {
	off, ok := f.offs[id]
	if !ok {
		return model.Offering{}, model.ErrNotFound
	}
	return off, nil
}

func (f *fakeStore) List(_ context.Context, filter Filter) ([]model.Offering, error) {
	var out []model.Offering
	for _, off := range f.offs {
		if filter.ProviderID != "" && off.ProviderID != filter.ProviderID {
			continue
		}
		if filter.Category != "" && off.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !off.IsActive {
			continue
		}
		out = append(out, off)
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, off model.Offering) error {
	if _, ok := f.offs[off.ID]; !ok {
		return model.ErrNotFound
	}
	f.offs[off.ID] = off
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := f.offs[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.offs, id)
	return nil
}

type fakeChecker struct {
	busy map[string]bool
}

func (f *fakeChecker) HasNonCancelledForOffering(_ context.Context, offeringID string) (bool, error) {
	return f.busy[offeringID], nil
}

func newTestService() (*Service, *fakeStore, *fakeChecker) {
	store := newFakeStore()
	checker := &fakeChecker{busy: make(map[string]bool)}
	return NewService(store, checker), store, checker
}

func validParams() OfferingParams {
	return OfferingParams{
		Title:           "Deep Dive Session",
		DurationMinutes: 45,
		Category:        "coaching",
		IsActive:        true,
	}
}

func TestCreateOffering(t *testing.T) {
	svc, _, _ := newTestService()

	price := int64(12500)
	p := validParams()
	p.PriceCents = &price

	off, err := svc.CreateOffering(context.Background(), "provider-1", p)
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}
	if off.ID == "" {
		t.Fatal("expected generated id")
	}
	if off.Currency != "USD" {
		t.Fatalf("currency = %q, want default USD", off.Currency)
	}
	if !off.IsActive {
		t.Fatal("expected active offering")
	}
}

func TestCreateOfferingValidation(t *testing.T) {
	svc, _, _ := newTestService()

	cases := []struct {
		name   string
		mutate func(*OfferingParams)
	}{
		{"empty title", func(p *OfferingParams) { p.Title = "  " }},
		{"zero duration", func(p *OfferingParams) { p.DurationMinutes = 0 }},
		{"negative duration", func(p *OfferingParams) { p.DurationMinutes = -15 }},
		{"negative price", func(p *OfferingParams) {
			price := int64(-1)
			p.PriceCents = &price
		}},
		{"bogus tier", func(p *OfferingParams) {
			tier := model.Tier("platinum")
			p.RequiredTier = &tier
		}},
		{"negative daily cap", func(p *OfferingParams) { p.MaxBookingsPerDay = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.mutate(&p)
			if _, err := svc.CreateOffering(context.Background(), "provider-1", p); !errors.Is(err, model.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUpdateOfferingOwnership(t *testing.T) {
	svc, _, _ := newTestService()

	off, err := svc.CreateOffering(context.Background(), "provider-1", validParams())
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	p := validParams()
	p.Title = "Renamed Session"
	if _, err := svc.UpdateOffering(context.Background(), "provider-2", off.ID, p); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("foreign update: err = %v, want ErrForbidden", err)
	}

	updated, err := svc.UpdateOffering(context.Background(), "provider-1", off.ID, p)
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "Renamed Session" {
		t.Fatalf("title = %q, want Renamed Session", updated.Title)
	}
}

func TestDeleteOffering(t *testing.T) {
	svc, store, checker := newTestService()

	off, err := svc.CreateOffering(context.Background(), "provider-1", validParams())
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	if err := svc.DeleteOffering(context.Background(), "provider-2", off.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("foreign delete: err = %v, want ErrForbidden", err)
	}

	checker.busy[off.ID] = true
	if err := svc.DeleteOffering(context.Background(), "provider-1", off.ID); !errors.Is(err, model.ErrOfferingHasBookings) {
		t.Fatalf("busy delete: err = %v, want ErrOfferingHasBookings", err)
	}

	checker.busy[off.ID] = false
	if err := svc.DeleteOffering(context.Background(), "provider-1", off.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.offs[off.ID]; ok {
		t.Fatal("offering still present after delete")
	}
}

func TestListOfferingsFilter(t *testing.T) {
	svc, _, _ := newTestService()

	a := validParams()
	a.Category = "coaching"
	if _, err := svc.CreateOffering(context.Background(), "provider-1", a); err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}
	b := validParams()
	b.Category = "consulting"
	b.IsActive = false
	if _, err := svc.CreateOffering(context.Background(), "provider-1", b); err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	offs, err := svc.ListOfferings(context.Background(), Filter{ProviderID: "provider-1", ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListOfferings: %v", err)
	}
	if len(offs) != 1 || offs[0].Category != "coaching" {
		t.Fatalf("filtered list = %+v, want only the active coaching offering", offs)
	}
}
