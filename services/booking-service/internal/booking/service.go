package booking

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/norastrand/bookwise/services/booking-service/internal/availability"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
	"github.com/norastrand/bookwise/services/booking-service/internal/outbox"
	"github.com/norastrand/bookwise/services/booking-service/internal/policy"
)

// AppointmentStore is the ledger's persistence contract. CreateScheduled must
// serialize conflict-check-then-insert per provider: of two concurrent
// conflicting creates exactly one succeeds and the other sees
// model.ErrSlotConflict. Events are persisted atomically with the write.
type AppointmentStore interface {
	CreateScheduled(ctx context.Context, appt *model.Appointment, events []outbox.Event) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	Update(ctx context.Context, appt model.Appointment, expectedStatus model.Status, events []outbox.Event) error
	ListByClient(ctx context.Context, clientID string) ([]model.Appointment, error)
	ListByProvider(ctx context.Context, providerID string) ([]model.Appointment, error)
	// ListBusy returns non-cancelled appointments for the provider whose
	// interval overlaps [from, to), ordered by start time.
	ListBusy(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error)
	// CountForOfferingBetween counts non-cancelled appointments for the
	// offering starting within [from, to).
	CountForOfferingBetween(ctx context.Context, offeringID string, from, to time.Time) (int, error)
}

type OfferingStore interface {
	Get(ctx context.Context, id string) (model.Offering, error)
}

type WindowStore interface {
	ListEnabled(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error)
}

type SubscriptionStore interface {
	// Get returns nil (not an error) when the client has no subscription.
	Get(ctx context.Context, clientID string) (*model.Subscription, error)
}

type Service struct {
	appointments AppointmentStore
	offerings    OfferingStore
	windows      WindowStore
	subs         SubscriptionStore
	slotStep     time.Duration
	now          func() time.Time
}

func NewService(appointments AppointmentStore, offerings OfferingStore, windows WindowStore, subs SubscriptionStore, slotStep time.Duration) *Service {
	if slotStep <= 0 {
		slotStep = 30 * time.Minute
	}
	return &Service{
		appointments: appointments,
		offerings:    offerings,
		windows:      windows,
		subs:         subs,
		slotStep:     slotStep,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type CreateParams struct {
	OfferingID string
	ClientID   string
	StartTime  time.Time
	// EndTime is optional; when set it must equal StartTime plus the
	// offering's duration (the ledger derives and stores the end once).
	EndTime  time.Time
	TimeZone string
	Notes    string
}

// CreateAppointment books a slot. Preconditions are checked in order, each
// with a distinct error: offering exists, offering active, tier policy,
// interval inside an enabled availability window, per-day cap, no overlap
// with a non-cancelled appointment of the same provider.
func (s *Service) CreateAppointment(ctx context.Context, p CreateParams) (model.Appointment, error) {
	if strings.TrimSpace(p.OfferingID) == "" || strings.TrimSpace(p.ClientID) == "" || p.StartTime.IsZero() {
		return model.Appointment{}, model.ErrValidation
	}

	off, err := s.offerings.Get(ctx, p.OfferingID)
	if err != nil {
		if err == model.ErrNotFound {
			return model.Appointment{}, model.ErrOfferingNotFound
		}
		return model.Appointment{}, err
	}
	if !off.IsActive {
		return model.Appointment{}, model.ErrOfferingInactive
	}

	start := p.StartTime
	end := start.Add(time.Duration(off.DurationMinutes) * time.Minute)
	if !p.EndTime.IsZero() && !p.EndTime.Equal(end) {
		return model.Appointment{}, model.ErrValidation
	}

	if off.RequiredTier != nil {
		sub, err := s.subs.Get(ctx, p.ClientID)
		if err != nil {
			return model.Appointment{}, err
		}
		if !policy.HasAccess(sub, off.RequiredTier) {
			return model.Appointment{}, model.ErrInsufficientTier
		}
	}

	win, ok, err := s.containingWindow(ctx, off.ProviderID, start, end)
	if err != nil {
		return model.Appointment{}, err
	}
	if !ok {
		return model.Appointment{}, model.ErrOutsideAvailability
	}

	if off.MaxBookingsPerDay > 0 {
		dayStart, dayEnd := localDayBounds(start, win.TimeZone)
		cnt, err := s.appointments.CountForOfferingBetween(ctx, off.ID, dayStart, dayEnd)
		if err != nil {
			return model.Appointment{}, err
		}
		if cnt >= off.MaxBookingsPerDay {
			return model.Appointment{}, model.ErrDailyCapReached
		}
	}

	tz := strings.TrimSpace(p.TimeZone)
	if tz == "" {
		tz = win.TimeZone
	}
	now := s.now()
	appt := model.Appointment{
		ID:         uuid.NewString(),
		OfferingID: off.ID,
		ClientID:   p.ClientID,
		ProviderID: off.ProviderID,
		StartTime:  start,
		EndTime:    end,
		TimeZone:   tz,
		Status:     model.StatusScheduled,
		Notes:      strings.TrimSpace(p.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	ev, err := s.lifecycleEvent(outbox.EventAppointmentScheduled, appt)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.appointments.CreateScheduled(ctx, &appt, []outbox.Event{ev}); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// GetAppointment returns the record when the actor is the client or provider
// on it.
func (s *Service) GetAppointment(ctx context.Context, actorID, id string) (model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if actorID != appt.ClientID && actorID != appt.ProviderID {
		return model.Appointment{}, model.ErrForbidden
	}
	return appt, nil
}

// Patch is a partial appointment update. Nil fields are untouched.
type Patch struct {
	Notes       *string
	Status      *model.Status
	MeetingLink *string
}

// UpdateAppointment applies a role-scoped patch. The client on the record may
// change notes and cancel a scheduled appointment; the provider may change
// status (valid transitions only), notes and meeting link. Fields the caller's
// role may not touch are silently dropped rather than rejected; the one hard
// failure is an illegal state transition attempted by an allowed role.
func (s *Service) UpdateAppointment(ctx context.Context, actorID, id string, patch Patch) (model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	isProvider := actorID == appt.ProviderID
	isClient := actorID == appt.ClientID
	if !isProvider && !isClient {
		return model.Appointment{}, model.ErrForbidden
	}

	prevStatus := appt.Status
	changed := false

	if patch.Notes != nil {
		appt.Notes = strings.TrimSpace(*patch.Notes)
		changed = true
	}
	if patch.MeetingLink != nil && isProvider {
		appt.MeetingLink = strings.TrimSpace(*patch.MeetingLink)
		changed = true
	}
	if patch.Status != nil {
		next := *patch.Status
		if !next.Valid() {
			return model.Appointment{}, model.ErrValidation
		}
		switch {
		case isProvider:
			if !model.CanTransition(prevStatus, next) {
				return model.Appointment{}, model.ErrInvalidStateTransition
			}
			appt.Status = next
			changed = true
		case next == model.StatusCancelled:
			// The client's only permitted transition.
			if prevStatus != model.StatusScheduled {
				return model.Appointment{}, model.ErrInvalidStateTransition
			}
			appt.Status = model.StatusCancelled
			changed = true
		default:
			// Dropped: clients cannot drive the state machine elsewhere.
		}
	}

	if !changed {
		return appt, nil
	}
	appt.UpdatedAt = s.now()

	var events []outbox.Event
	if appt.Status != prevStatus {
		eventType := outbox.EventAppointmentStatusChanged
		if appt.Status == model.StatusCancelled {
			eventType = outbox.EventAppointmentCancelled
		}
		ev, err := s.lifecycleEvent(eventType, appt)
		if err != nil {
			return model.Appointment{}, err
		}
		events = append(events, ev)
	}

	if err := s.appointments.Update(ctx, appt, prevStatus, events); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// CancelAppointment is the dedicated cancel path: only a scheduled
// appointment can go through it, and cancelling frees the interval for
// re-booking (cancelled appointments never count against the conflict set).
func (s *Service) CancelAppointment(ctx context.Context, actorID, id string) (model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if actorID != appt.ClientID && actorID != appt.ProviderID {
		return model.Appointment{}, model.ErrForbidden
	}
	if appt.Status != model.StatusScheduled {
		return model.Appointment{}, model.ErrInvalidStateTransition
	}

	prevStatus := appt.Status
	appt.Status = model.StatusCancelled
	appt.UpdatedAt = s.now()

	ev, err := s.lifecycleEvent(outbox.EventAppointmentCancelled, appt)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.appointments.Update(ctx, appt, prevStatus, []outbox.Event{ev}); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) ListByClient(ctx context.Context, clientID string) ([]model.Appointment, error) {
	return s.appointments.ListByClient(ctx, clientID)
}

func (s *Service) ListByProvider(ctx context.Context, providerID string) ([]model.Appointment, error) {
	return s.appointments.ListByProvider(ctx, providerID)
}

// ListUpcoming returns scheduled or confirmed appointments starting after now,
// ascending by start time.
func (s *Service) ListUpcoming(ctx context.Context, userID string, asProvider bool) ([]model.Appointment, error) {
	var (
		appts []model.Appointment
		err   error
	)
	if asProvider {
		appts, err = s.appointments.ListByProvider(ctx, userID)
	} else {
		appts, err = s.appointments.ListByClient(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := appts[:0:0]
	for _, a := range appts {
		if (a.Status == model.StatusScheduled || a.Status == model.StatusConfirmed) && a.StartTime.After(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// ListPast returns history for the user on either side of the booking:
// completed or cancelled appointments, plus anything already over, descending
// by start time.
func (s *Service) ListPast(ctx context.Context, userID string) ([]model.Appointment, error) {
	asClient, err := s.appointments.ListByClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	asProvider, err := s.appointments.ListByProvider(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	seen := make(map[string]struct{}, len(asClient)+len(asProvider))
	var out []model.Appointment
	for _, a := range append(asClient, asProvider...) {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		if a.Status == model.StatusCompleted || a.Status == model.StatusCancelled || a.EndTime.Before(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

// AvailableSlots computes bookable start times for a provider on a local date
// ("2006-01-02" in each window's own timezone): the fixed-step grid inside
// the provider's enabled windows for that weekday, minus anything overlapping
// a non-cancelled appointment, minus starts already in the past.
func (s *Service) AvailableSlots(ctx context.Context, providerID, date string, durationMinutes int) ([]time.Time, error) {
	if strings.TrimSpace(providerID) == "" || durationMinutes <= 0 {
		return nil, model.ErrValidation
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, model.ErrValidation
	}

	windows, err := s.windows.ListEnabled(ctx, providerID)
	if err != nil {
		return nil, err
	}

	type span struct{ start, end time.Time }
	var spans []span
	var minStart, maxEnd time.Time
	for _, w := range windows {
		loc := locationFor(w.TimeZone)
		localDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		if int(localDay.Weekday()) != w.Weekday {
			continue
		}
		start := localDay.Add(time.Duration(w.StartMinute) * time.Minute)
		end := localDay.Add(time.Duration(w.EndMinute) * time.Minute)
		if !end.After(start) {
			continue
		}
		spans = append(spans, span{start: start, end: end})
		if minStart.IsZero() || start.Before(minStart) {
			minStart = start
		}
		if maxEnd.IsZero() || end.After(maxEnd) {
			maxEnd = end
		}
	}
	if len(spans) == 0 {
		return nil, nil
	}

	booked, err := s.appointments.ListBusy(ctx, providerID, minStart, maxEnd)
	if err != nil {
		return nil, err
	}
	busy := make([]availability.Interval, 0, len(booked))
	for _, a := range booked {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}

	duration := time.Duration(durationMinutes) * time.Minute
	now := s.now()
	var slots []time.Time
	for _, sp := range spans {
		slots = append(slots, availability.AvailableSlots(sp.start, sp.end, duration, s.slotStep, busy, now)...)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots, nil
}

// containingWindow finds an enabled availability window that fully contains
// [start, end) on the window's local date.
func (s *Service) containingWindow(ctx context.Context, providerID string, start, end time.Time) (model.AvailabilityWindow, bool, error) {
	windows, err := s.windows.ListEnabled(ctx, providerID)
	if err != nil {
		return model.AvailabilityWindow{}, false, err
	}
	for _, w := range windows {
		loc := locationFor(w.TimeZone)
		localStart := start.In(loc)
		if int(localStart.Weekday()) != w.Weekday {
			continue
		}
		midnight := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, loc)
		winStart := midnight.Add(time.Duration(w.StartMinute) * time.Minute)
		winEnd := midnight.Add(time.Duration(w.EndMinute) * time.Minute)
		if !start.Before(winStart) && !end.After(winEnd) {
			return w, true, nil
		}
	}
	return model.AvailabilityWindow{}, false, nil
}

func (s *Service) lifecycleEvent(eventType string, appt model.Appointment) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"offering_id":    appt.OfferingID,
		"client_id":      appt.ClientID,
		"provider_id":    appt.ProviderID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"time_zone":      appt.TimeZone,
		"status":         string(appt.Status),
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

func localDayBounds(t time.Time, tz string) (time.Time, time.Time) {
	loc := locationFor(tz)
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// locationFor resolves an IANA timezone name, falling back to UTC. The zone
// string itself is stored and surfaced verbatim either way.
func locationFor(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}
