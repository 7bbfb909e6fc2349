package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

type fakeStore struct {
	windows map[string]model.AvailabilityWindow
}

func newFakeStore() *fakeStore {
	return &fakeStore{windows: make(map[string]model.AvailabilityWindow)}
}

func (f *fakeStore) Create(_ context.Context, w *model.AvailabilityWindow) error {
	f.windows[w.ID] = *w
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (model.AvailabilityWindow, error) {
	w, ok := f.windows[id]
	if !ok {
		return model.AvailabilityWindow{}, model.ErrNotFound
	}
	return w, nil
}

func (f *fakeStore) ListByProvider(_ context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	for _, w := range f.windows {
		if w.ProviderID == providerID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, w model.AvailabilityWindow) error {
	if _, ok := f.windows[w.ID]; !ok {
		return model.ErrNotFound
	}
	f.windows[w.ID] = w
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := f.windows[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.windows, id)
	return nil
}

func TestSetWindow(t *testing.T) {
	svc := NewService(newFakeStore())

	w, err := svc.SetWindow(context.Background(), "provider-1", WindowParams{
		Weekday:     1,
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("SetWindow: %v", err)
	}
	if w.TimeZone != "UTC" {
		t.Fatalf("time zone = %q, want UTC default", w.TimeZone)
	}
	if w.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestSetWindowValidation(t *testing.T) {
	svc := NewService(newFakeStore())

	cases := []struct {
		name string
		p    WindowParams
	}{
		{"weekday too high", WindowParams{Weekday: 7, StartMinute: 0, EndMinute: 60, IsAvailable: true}},
		{"negative weekday", WindowParams{Weekday: -1, StartMinute: 0, EndMinute: 60, IsAvailable: true}},
		{"negative start", WindowParams{Weekday: 1, StartMinute: -10, EndMinute: 60, IsAvailable: true}},
		{"end past midnight", WindowParams{Weekday: 1, StartMinute: 0, EndMinute: 1441, IsAvailable: true}},
		{"empty interval", WindowParams{Weekday: 1, StartMinute: 600, EndMinute: 600, IsAvailable: true}},
		{"inverted interval", WindowParams{Weekday: 1, StartMinute: 700, EndMinute: 600, IsAvailable: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SetWindow(context.Background(), "provider-1", tc.p); !errors.Is(err, model.ErrInvalidWindow) {
				t.Fatalf("err = %v, want ErrInvalidWindow", err)
			}
		})
	}
}

func TestSetWindowSiblingOverlap(t *testing.T) {
	svc := NewService(newFakeStore())

	if _, err := svc.SetWindow(context.Background(), "provider-1", WindowParams{
		Weekday: 1, StartMinute: 9 * 60, EndMinute: 12 * 60, IsAvailable: true,
	}); err != nil {
		t.Fatalf("SetWindow: %v", err)
	}

	// Overlapping enabled window on the same weekday is rejected.
	_, err := svc.SetWindow(context.Background(), "provider-1", WindowParams{
		Weekday: 1, StartMinute: 11 * 60, EndMinute: 14 * 60, IsAvailable: true,
	})
	if !errors.Is(err, model.ErrInvalidWindow) {
		t.Fatalf("overlap: err = %v, want ErrInvalidWindow", err)
	}

	// Touching windows are fine (half-open minutes).
	if _, err := svc.SetWindow(context.Background(), "provider-1", WindowParams{
		Weekday: 1, StartMinute: 12 * 60, EndMinute: 14 * 60, IsAvailable: true,
	}); err != nil {
		t.Fatalf("adjacent window: %v", err)
	}

	// Same minutes on another weekday are fine.
	if _, err := svc.SetWindow(context.Background(), "provider-1", WindowParams{
		Weekday: 2, StartMinute: 9 * 60, EndMinute: 12 * 60, IsAvailable: true,
	}); err != nil {
		t.Fatalf("other weekday: %v", err)
	}

	// Disabled windows never collide.
	if _, err := svc.SetWindow(context.Background(), "provider-1", WindowParams{
		Weekday: 1, StartMinute: 10 * 60, EndMinute: 11 * 60, IsAvailable: false,
	}); err != nil {
		t.Fatalf("disabled window: %v", err)
	}
}

func TestUpdateWindow(t *testing.T) {
	svc := NewService(newFakeStore())

	w, err := svc.SetWindow(context.Background(), "provider-1", WindowParams{
		Weekday: 1, StartMinute: 9 * 60, EndMinute: 12 * 60, IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("SetWindow: %v", err)
	}

	// A window may be updated in place without colliding with itself.
	updated, err := svc.UpdateWindow(context.Background(), "provider-1", w.ID, WindowParams{
		Weekday: 1, StartMinute: 10 * 60, EndMinute: 13 * 60, IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("UpdateWindow: %v", err)
	}
	if updated.StartMinute != 10*60 || updated.EndMinute != 13*60 {
		t.Fatalf("window = %+v, want 10:00-13:00", updated)
	}
	if updated.TimeZone != "UTC" {
		t.Fatalf("time zone = %q, want preserved UTC", updated.TimeZone)
	}

	// Other providers' windows read as not found.
	if _, err := svc.UpdateWindow(context.Background(), "provider-2", w.ID, WindowParams{
		Weekday: 1, StartMinute: 9 * 60, EndMinute: 10 * 60, IsAvailable: true,
	}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("foreign update: err = %v, want ErrNotFound", err)
	}
}

func TestRemoveWindow(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	w, err := svc.SetWindow(context.Background(), "provider-1", WindowParams{
		Weekday: 1, StartMinute: 9 * 60, EndMinute: 12 * 60, IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("SetWindow: %v", err)
	}

	if err := svc.RemoveWindow(context.Background(), "provider-2", w.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("foreign remove: err = %v, want ErrNotFound", err)
	}
	if err := svc.RemoveWindow(context.Background(), "provider-1", w.ID); err != nil {
		t.Fatalf("RemoveWindow: %v", err)
	}
	if len(store.windows) != 0 {
		t.Fatal("window still present after remove")
	}
}
