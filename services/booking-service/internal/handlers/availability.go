package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/norastrand/bookwise/services/booking-service/internal/model"
	"github.com/norastrand/bookwise/services/booking-service/internal/schedule"
)

type AvailabilityHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
}

func NewAvailabilityHandler(svc *schedule.Service, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, logger: logger}
}

type windowRequest struct {
	WindowID    string `json:"window_id"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	TimeZone    string `json:"time_zone"`
	IsAvailable *bool  `json:"is_available"`
}

type windowItem struct {
	WindowID    string `json:"window_id"`
	ProviderID  string `json:"provider_id"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	TimeZone    string `json:"time_zone"`
	IsAvailable bool   `json:"is_available"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func windowToItem(w model.AvailabilityWindow) windowItem {
	return windowItem{
		WindowID:    w.ID,
		ProviderID:  w.ProviderID,
		Weekday:     w.Weekday,
		StartMinute: w.StartMinute,
		EndMinute:   w.EndMinute,
		TimeZone:    w.TimeZone,
		IsAvailable: w.IsAvailable,
		CreatedAt:   w.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (req windowRequest) params() schedule.WindowParams {
	p := schedule.WindowParams{
		Weekday:     req.Weekday,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		TimeZone:    req.TimeZone,
		IsAvailable: true,
	}
	if req.IsAvailable != nil {
		p.IsAvailable = *req.IsAvailable
	}
	return p
}

func (h *AvailabilityHandler) Set(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	win, err := h.svc.SetWindow(r.Context(), actorID(r), req.params())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, windowToItem(win))
}

// List returns the actor's own windows, disabled ones included, so providers
// can manage their full weekly template.
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := actorID(r)
	if providerID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	windows, err := h.svc.ListWindows(r.Context(), providerID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	items := make([]windowItem, 0, len(windows))
	for _, win := range windows {
		items = append(items, windowToItem(win))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AvailabilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.WindowID = strings.TrimSpace(req.WindowID)
	if req.WindowID == "" {
		http.Error(w, "window_id required", http.StatusBadRequest)
		return
	}

	win, err := h.svc.UpdateWindow(r.Context(), actorID(r), req.WindowID, req.params())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, windowToItem(win))
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		WindowID string `json:"window_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.WindowID = strings.TrimSpace(req.WindowID)
	if req.WindowID == "" {
		http.Error(w, "window_id required", http.StatusBadRequest)
		return
	}

	if err := h.svc.RemoveWindow(r.Context(), actorID(r), req.WindowID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
