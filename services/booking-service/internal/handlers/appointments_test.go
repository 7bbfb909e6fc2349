package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/norastrand/bookwise/libs/auth"
	"github.com/norastrand/bookwise/services/booking-service/internal/booking"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
	"github.com/norastrand/bookwise/services/booking-service/internal/outbox"
)

const testSecret = "test-secret"

type memAppointments struct {
	mu    sync.Mutex
	appts map[string]model.Appointment
}

func (m *memAppointments) CreateScheduled(_ context.Context, appt *model.Appointment, _ []outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.appts {
		if other.ProviderID != appt.ProviderID || other.Status == model.StatusCancelled {
			continue
		}
		if appt.StartTime.Before(other.EndTime) && other.StartTime.Before(appt.EndTime) {
			return model.ErrSlotConflict
		}
	}
	m.appts[appt.ID] = *appt
	return nil
}

func (m *memAppointments) Get(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return appt, nil
}

func (m *memAppointments) Update(_ context.Context, appt model.Appointment, expected model.Status, _ []outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.appts[appt.ID]
	if !ok {
		return model.ErrNotFound
	}
	if current.Status != expected {
		return model.ErrInvalidStateTransition
	}
	m.appts[appt.ID] = appt
	return nil
}

func (m *memAppointments) ListByClient(_ context.Context, clientID string) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if a.ClientID == clientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAppointments) ListByProvider(_ context.Context, providerID string) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if a.ProviderID == providerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAppointments) ListBusy(_ context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if a.ProviderID == providerID && a.Status != model.StatusCancelled &&
			a.StartTime.Before(to) && from.Before(a.EndTime) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAppointments) CountForOfferingBetween(_ context.Context, offeringID string, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cnt := 0
	for _, a := range m.appts {
		if a.OfferingID == offeringID && a.Status != model.StatusCancelled &&
			!a.StartTime.Before(from) && a.StartTime.Before(to) {
			cnt++
		}
	}
	return cnt, nil
}

type memOfferings struct{ offs map[string]model.Offering }

func (m *memOfferings) Get(_ context.Context, id string) (model.Offering, error) {
	off, ok := m.offs[id]
	if !ok {
		return model.Offering{}, model.ErrNotFound
	}
	return off, nil
}

type memWindows struct{ windows []model.AvailabilityWindow }

func (m *memWindows) ListEnabled(_ context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	for _, w := range m.windows {
		if w.ProviderID == providerID && w.IsAvailable {
			out = append(out, w)
		}
	}
	return out, nil
}

type memSubscriptions struct{}

func (memSubscriptions) Get(context.Context, string) (*model.Subscription, error) { return nil, nil }

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdempotency) Lookup(_ context.Context, clientID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[clientID+"/"+key], nil
}

func (m *memIdempotency) Save(_ context.Context, clientID, key, appointmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[clientID+"/"+key]; !ok {
		m.keys[clientID+"/"+key] = appointmentID
	}
	return nil
}

func newTestHandler(t *testing.T) (*AppointmentHandler, time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // a Monday
	start := now.Add(2 * time.Hour)

	svc := booking.NewService(
		&memAppointments{appts: make(map[string]model.Appointment)},
		&memOfferings{offs: map[string]model.Offering{"off-1": {
			ID:              "off-1",
			ProviderID:      "provider-1",
			Title:           "Strategy Session",
			DurationMinutes: 60,
			IsActive:        true,
		}}},
		&memWindows{windows: []model.AvailabilityWindow{{
			ID:          "win-1",
			ProviderID:  "provider-1",
			Weekday:     int(start.Weekday()),
			StartMinute: 0,
			EndMinute:   1440,
			TimeZone:    "UTC",
			IsAvailable: true,
		}}},
		memSubscriptions{},
		30*time.Minute,
	)
	svc.SetClock(func() time.Time { return now })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAppointmentHandler(svc, &memIdempotency{keys: make(map[string]string)}, logger), start
}

func bearerFor(t *testing.T, sub string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  sub,
		Role: "client",
		Iat:  now.Unix(),
		Exp:  now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func createRequest(t *testing.T, start time.Time, idempotencyKey string) *http.Request {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"offering_id": "off-1",
		"start_time":  start.Format(time.RFC3339),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, "client-1"))
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	h, start := newTestHandler(t)
	protected := RequireAuth(testSecret)(http.HandlerFunc(h.Create))

	// No token.
	req := createRequest(t, start, "")
	req.Header.Del("Authorization")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	// Garbage token.
	req = createRequest(t, start, "")
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}

	// A spoofed identity header is replaced by the verified subject.
	req = createRequest(t, start, "")
	req.Header.Set("X-User-Id", "someone-else")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid token: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ClientID != "client-1" {
		t.Fatalf("client id = %q, want token subject client-1", resp.ClientID)
	}
}

func TestCreateConflictMapsTo409(t *testing.T) {
	h, start := newTestHandler(t)
	protected := RequireAuth(testSecret)(http.HandlerFunc(h.Create))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, createRequest(t, start, ""))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, createRequest(t, start.Add(30*time.Minute), ""))
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlapping create: status = %d, want 409", rec.Code)
	}
}

func TestCreateIdempotencyReplay(t *testing.T) {
	h, start := newTestHandler(t)
	protected := RequireAuth(testSecret)(http.HandlerFunc(h.Create))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, createRequest(t, start, "key-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var first appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode first: %v", err)
	}

	// Retry with the same key returns the original booking, not a conflict.
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, createRequest(t, start, "key-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("replay: status = %d, want 200", rec.Code)
	}
	var second appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if first.AppointmentID != second.AppointmentID {
		t.Fatalf("replay returned %s, want %s", second.AppointmentID, first.AppointmentID)
	}
}

func TestCreateOutsideAvailabilityMapsTo422(t *testing.T) {
	h, _ := newTestHandler(t)
	protected := RequireAuth(testSecret)(http.HandlerFunc(h.Create))

	// Tuesday, but only Monday has a window.
	tuesday := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, createRequest(t, tuesday, ""))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestPublicSlots(t *testing.T) {
	h, start := newTestHandler(t)
	protected := RequireAuth(testSecret)(http.HandlerFunc(h.Create))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, createRequest(t, start, ""))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", rec.Code)
	}

	// Slots are public: no Authorization header.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?provider_id=provider-1&date=2026-03-02&duration_minutes=60", nil)
	rec = httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("slots: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var slots []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	booked := start.UTC().Format(time.RFC3339)
	for _, s := range slots {
		if s.StartTime == booked {
			t.Fatalf("booked slot %s still offered", booked)
		}
	}
	if len(slots) == 0 {
		t.Fatal("expected open slots on the rest of the day")
	}
}
