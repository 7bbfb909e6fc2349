package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/norastrand/bookwise/services/booking-service/internal/catalog"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

type OfferingHandler struct {
	svc    *catalog.Service
	logger *slog.Logger
}

func NewOfferingHandler(svc *catalog.Service, logger *slog.Logger) *OfferingHandler {
	return &OfferingHandler{svc: svc, logger: logger}
}

type offeringRequest struct {
	OfferingID        string `json:"offering_id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	DurationMinutes   int    `json:"duration_minutes"`
	PriceCents        *int64 `json:"price_cents"`
	Currency          string `json:"currency"`
	Category          string `json:"category"`
	RequiredTier      string `json:"required_tier"`
	MaxBookingsPerDay int    `json:"max_bookings_per_day"`
	IsActive          *bool  `json:"is_active"`
}

type offeringItem struct {
	OfferingID        string  `json:"offering_id"`
	ProviderID        string  `json:"provider_id"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	DurationMinutes   int     `json:"duration_minutes"`
	PriceCents        *int64  `json:"price_cents,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	Category          string  `json:"category,omitempty"`
	RequiredTier      *string `json:"required_tier,omitempty"`
	MaxBookingsPerDay int     `json:"max_bookings_per_day"`
	IsActive          bool    `json:"is_active"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func offeringToItem(o model.Offering) offeringItem {
	item := offeringItem{
		OfferingID:        o.ID,
		ProviderID:        o.ProviderID,
		Title:             o.Title,
		Description:       o.Description,
		DurationMinutes:   o.DurationMinutes,
		PriceCents:        o.PriceCents,
		Currency:          o.Currency,
		Category:          o.Category,
		MaxBookingsPerDay: o.MaxBookingsPerDay,
		IsActive:          o.IsActive,
		CreatedAt:         o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         o.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if o.RequiredTier != nil {
		tier := string(*o.RequiredTier)
		item.RequiredTier = &tier
	}
	return item
}

func (req offeringRequest) params() catalog.OfferingParams {
	p := catalog.OfferingParams{
		Title:             req.Title,
		Description:       req.Description,
		DurationMinutes:   req.DurationMinutes,
		PriceCents:        req.PriceCents,
		Currency:          req.Currency,
		Category:          req.Category,
		MaxBookingsPerDay: req.MaxBookingsPerDay,
		IsActive:          true,
	}
	if tier := strings.TrimSpace(req.RequiredTier); tier != "" {
		t := model.Tier(tier)
		p.RequiredTier = &t
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return p
}

func (h *OfferingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req offeringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	off, err := h.svc.CreateOffering(r.Context(), actorID(r), req.params())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, offeringToItem(off))
}

func (h *OfferingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	off, err := h.svc.GetOffering(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, offeringToItem(off))
}

func (h *OfferingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	f := catalog.Filter{
		ProviderID: strings.TrimSpace(q.Get("provider_id")),
		Category:   strings.TrimSpace(q.Get("category")),
		ActiveOnly: strings.TrimSpace(q.Get("active")) == "true",
	}
	if tier := strings.TrimSpace(q.Get("required_tier")); tier != "" {
		t := model.Tier(tier)
		if !t.Valid() {
			http.Error(w, "invalid required_tier", http.StatusBadRequest)
			return
		}
		f.Tier = &t
	}

	offs, err := h.svc.ListOfferings(r.Context(), f)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	items := make([]offeringItem, 0, len(offs))
	for _, o := range offs {
		items = append(items, offeringToItem(o))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *OfferingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req offeringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OfferingID = strings.TrimSpace(req.OfferingID)
	if req.OfferingID == "" {
		http.Error(w, "offering_id required", http.StatusBadRequest)
		return
	}

	off, err := h.svc.UpdateOffering(r.Context(), actorID(r), req.OfferingID, req.params())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, offeringToItem(off))
}

func (h *OfferingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		OfferingID string `json:"offering_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OfferingID = strings.TrimSpace(req.OfferingID)
	if req.OfferingID == "" {
		http.Error(w, "offering_id required", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeleteOffering(r.Context(), actorID(r), req.OfferingID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
