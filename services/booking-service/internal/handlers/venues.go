package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/fieldbook/internal/availability"
	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
	"github.com/md-rashed-zaman/fieldbook/internal/storage"
	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

type VenueHandler struct {
	venues *storage.VenueRepository
	avail  *availability.Evaluator
	logger *slog.Logger
}

func NewVenueHandler(venues *storage.VenueRepository, avail *availability.Evaluator, logger *slog.Logger) *VenueHandler {
	return &VenueHandler{venues: venues, avail: avail, logger: logger}
}

type venueRequest struct {
	Name          string   `json:"name"`
	OpenTime      string   `json:"open_time"`
	CloseTime     string   `json:"close_time"`
	SlotMinutes   int      `json:"slot_minutes"`
	OperatingDays []string `json:"operating_days"`
	Active        *bool    `json:"active"`
}

type venueItem struct {
	VenueID       string   `json:"venue_id"`
	Name          string   `json:"name"`
	OpenTime      string   `json:"open_time"`
	CloseTime     string   `json:"close_time"`
	SlotMinutes   int      `json:"slot_minutes"`
	OperatingDays []string `json:"operating_days"`
	Active        bool     `json:"active"`
	Approved      bool     `json:"approved"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

func (h *VenueHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := strings.TrimSpace(r.Header.Get("X-Owner-Id"))
	if ownerID == "" {
		http.Error(w, "X-Owner-Id header required", http.StatusBadRequest)
		return
	}

	var req venueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	venue := model.Venue{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Active:  true,
	}
	if err := applyVenueRequest(&venue, req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.venues.Create(r.Context(), venue); err != nil {
		h.logger.Error("venue create failed", "err", err)
		http.Error(w, "failed to create venue", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, venueView(venue))
}

func (h *VenueHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	venueID := strings.TrimSpace(r.URL.Query().Get("venue_id"))
	ownerID := strings.TrimSpace(r.Header.Get("X-Owner-Id"))
	if venueID == "" || ownerID == "" {
		http.Error(w, "venue_id and X-Owner-Id required", http.StatusBadRequest)
		return
	}

	venue, err := h.venues.Get(r.Context(), venueID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "venue not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load venue", http.StatusInternalServerError)
		return
	}
	if venue.OwnerID != ownerID {
		http.Error(w, "venue not owned by caller", http.StatusForbidden)
		return
	}

	var req venueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := applyVenueRequest(&venue, req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Active != nil {
		venue.Active = *req.Active
	}

	if err := h.venues.Update(r.Context(), venue); err != nil {
		http.Error(w, "failed to update venue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, venueView(venue))
}

// SetApproval is the admin toggle for listing eligibility.
func (h *VenueHandler) SetApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		VenueID  string `json:"venue_id"`
		Approved bool   `json:"approved"`
		Blocked  bool   `json:"blocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.VenueID = strings.TrimSpace(req.VenueID)
	if req.VenueID == "" {
		http.Error(w, "venue_id required", http.StatusBadRequest)
		return
	}

	if err := h.venues.SetApproval(r.Context(), req.VenueID, req.Approved, req.Blocked); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "venue not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update venue", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VenueHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id")); ownerID != "" {
		venues, err := h.venues.ListByOwner(r.Context(), ownerID)
		if err != nil {
			http.Error(w, "failed to list venues", http.StatusInternalServerError)
			return
		}
		writeVenueList(w, venues)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	venues, err := h.venues.ListBookable(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list venues", http.StatusInternalServerError)
		return
	}
	writeVenueList(w, venues)
}

// Slots returns the venue's slot grid for one date with per-slot availability.
func (h *VenueHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	venueID := strings.TrimSpace(r.URL.Query().Get("venue_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if venueID == "" || dateStr == "" {
		http.Error(w, "venue_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation(time.DateOnly, dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	venue, err := h.venues.Get(r.Context(), venueID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "venue not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load venue", http.StatusInternalServerError)
		return
	}
	if !venue.Bookable() {
		http.Error(w, "venue is not accepting bookings", http.StatusConflict)
		return
	}
	if !schedule.OperatesOn(venue.OperatingDays, date) {
		writeJSON(w, http.StatusOK, []slotItem{})
		return
	}

	open, err := timeofday.Parse(venue.OpenTime)
	if err != nil {
		http.Error(w, "venue hours are invalid", http.StatusInternalServerError)
		return
	}
	close, err := timeofday.Parse(venue.CloseTime)
	if err != nil {
		http.Error(w, "venue hours are invalid", http.StatusInternalServerError)
		return
	}

	items := make([]slotItem, 0)
	for _, slot := range schedule.Slots(open, close, venue.SlotMinutes) {
		res, err := h.avail.Check(r.Context(), venueID, date, slot, "")
		if err != nil {
			http.Error(w, "availability check failed", http.StatusInternalServerError)
			return
		}
		items = append(items, slotItem{
			StartTime: slot.Start.String(),
			EndTime:   slot.End.String(),
			Available: res.Available,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// applyVenueRequest validates and normalizes the mutable venue fields. Times
// are canonicalized to 24-hour form at write time so reads never re-parse
// meridiem input.
func applyVenueRequest(venue *model.Venue, req venueRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fmt.Errorf("name required")
	}

	open, err := timeofday.Parse(req.OpenTime)
	if err != nil {
		return fmt.Errorf("invalid open_time")
	}
	close, err := timeofday.Parse(req.CloseTime)
	if err != nil {
		return fmt.Errorf("invalid close_time")
	}
	if close <= open {
		return fmt.Errorf("close_time must be after open_time")
	}
	if req.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive")
	}

	days := make([]string, 0, len(req.OperatingDays))
	for _, d := range req.OperatingDays {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if !schedule.ValidOperatingDayToken(d) {
			return fmt.Errorf("unknown operating day %q", d)
		}
		days = append(days, d)
	}

	venue.Name = req.Name
	venue.OpenTime = open.String()
	venue.CloseTime = close.String()
	venue.SlotMinutes = req.SlotMinutes
	venue.OperatingDays = days
	return nil
}

func venueView(v model.Venue) venueItem {
	return venueItem{
		VenueID:       v.ID,
		Name:          v.Name,
		OpenTime:      v.OpenTime,
		CloseTime:     v.CloseTime,
		SlotMinutes:   v.SlotMinutes,
		OperatingDays: v.OperatingDays,
		Active:        v.Active,
		Approved:      v.Approved,
	}
}

func writeVenueList(w http.ResponseWriter, venues []model.Venue) {
	items := make([]venueItem, 0, len(venues))
	for _, v := range venues {
		items = append(items, venueView(v))
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
