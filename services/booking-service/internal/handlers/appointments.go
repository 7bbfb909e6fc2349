package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/norastrand/bookwise/services/booking-service/internal/booking"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

// IdempotencyStore maps (client, Idempotency-Key) pairs to the appointment
// the first successful create produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, clientID, key string) (string, error)
	Save(ctx context.Context, clientID, key, appointmentID string) error
}

type AppointmentHandler struct {
	svc    *booking.Service
	idem   IdempotencyStore
	logger *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, idem IdempotencyStore, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, idem: idem, logger: logger}
}

type createAppointmentRequest struct {
	OfferingID string `json:"offering_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	TimeZone   string `json:"time_zone"`
	Notes      string `json:"notes"`
}

type updateAppointmentRequest struct {
	AppointmentID string  `json:"appointment_id"`
	Notes         *string `json:"notes"`
	Status        *string `json:"status"`
	MeetingLink   *string `json:"meeting_link"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type appointmentItem struct {
	AppointmentID    string `json:"appointment_id"`
	OfferingID       string `json:"offering_id"`
	ClientID         string `json:"client_id"`
	ProviderID       string `json:"provider_id"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	TimeZone         string `json:"time_zone"`
	Status           string `json:"status"`
	Notes            string `json:"notes,omitempty"`
	MeetingLink      string `json:"meeting_link,omitempty"`
	ReminderSent     bool   `json:"reminder_sent"`
	FeedbackProvided bool   `json:"feedback_provided"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func appointmentToItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID:    a.ID,
		OfferingID:       a.OfferingID,
		ClientID:         a.ClientID,
		ProviderID:       a.ProviderID,
		StartTime:        a.StartTime.UTC().Format(time.RFC3339),
		EndTime:          a.EndTime.UTC().Format(time.RFC3339),
		TimeZone:         a.TimeZone,
		Status:           string(a.Status),
		Notes:            a.Notes,
		MeetingLink:      a.MeetingLink,
		ReminderSent:     a.ReminderSent,
		FeedbackProvided: a.FeedbackProvided,
		CreatedAt:        a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	clientID := actorID(r)
	if clientID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		existingID, err := h.idem.Lookup(ctx, clientID, idempotencyKey)
		if err != nil {
			http.Error(w, "idempotency lookup failed", http.StatusInternalServerError)
			return
		}
		if existingID != "" {
			appt, err := h.svc.GetAppointment(ctx, clientID, existingID)
			if err != nil {
				writeDomainError(w, h.logger, err)
				return
			}
			writeJSON(w, http.StatusOK, appointmentToItem(appt))
			return
		}
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	var endTime time.Time
	if strings.TrimSpace(req.EndTime) != "" {
		endTime, err = time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
	}

	appt, err := h.svc.CreateAppointment(ctx, booking.CreateParams{
		OfferingID: strings.TrimSpace(req.OfferingID),
		ClientID:   clientID,
		StartTime:  startTime,
		EndTime:    endTime,
		TimeZone:   req.TimeZone,
		Notes:      req.Notes,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if idempotencyKey != "" {
		if err := h.idem.Save(ctx, clientID, idempotencyKey, appt.ID); err != nil {
			h.logger.Error("idempotency save failed", "err", err, "appointment_id", appt.ID)
		}
	}
	writeJSON(w, http.StatusCreated, appointmentToItem(appt))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), actorID(r), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt))
}

// List serves the query views: ?view=upcoming|past and ?role=provider|client
// select which side of the booking and which slice of its history to return.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := actorID(r)
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	asProvider := strings.TrimSpace(r.URL.Query().Get("role")) == "provider"

	var (
		appts []model.Appointment
		err   error
	)
	switch strings.TrimSpace(r.URL.Query().Get("view")) {
	case "upcoming":
		appts, err = h.svc.ListUpcoming(r.Context(), userID, asProvider)
	case "past":
		appts, err = h.svc.ListPast(r.Context(), userID)
	case "":
		if asProvider {
			appts, err = h.svc.ListByProvider(r.Context(), userID)
		} else {
			appts, err = h.svc.ListByClient(r.Context(), userID)
		}
	default:
		http.Error(w, "invalid view", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, appointmentToItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	patch := booking.Patch{
		Notes:       req.Notes,
		MeetingLink: req.MeetingLink,
	}
	if req.Status != nil {
		st := model.Status(strings.TrimSpace(*req.Status))
		patch.Status = &st
	}

	appt, err := h.svc.UpdateAppointment(r.Context(), actorID(r), req.AppointmentID, patch)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.CancelAppointment(r.Context(), actorID(r), req.AppointmentID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt))
}

// Slots is public: no auth, anyone can browse bookable start times.
func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if providerID == "" || dateStr == "" {
		http.Error(w, "provider_id and date are required", http.StatusBadRequest)
		return
	}

	durationMins := 30
	if v := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 8*60 {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
		durationMins = n
	}

	starts, err := h.svc.AvailableSlots(r.Context(), providerID, dateStr, durationMins)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	resp := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		resp = append(resp, slotItem{
			StartTime: s.UTC().Format(time.RFC3339),
			EndTime:   s.Add(time.Duration(durationMins) * time.Minute).UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
