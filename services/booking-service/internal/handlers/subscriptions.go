package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/recurrence"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
	"github.com/md-rashed-zaman/fieldbook/internal/storage"
	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

type SubscriptionHandler struct {
	subs        *storage.SubscriptionRepository
	venues      *storage.VenueRepository
	resolver    *recurrence.Resolver
	logger      *slog.Logger
	scanHorizon int
}

func NewSubscriptionHandler(subs *storage.SubscriptionRepository, venues *storage.VenueRepository, resolver *recurrence.Resolver, logger *slog.Logger, scanHorizonDays int) *SubscriptionHandler {
	if scanHorizonDays <= 0 {
		scanHorizonDays = 60
	}
	return &SubscriptionHandler{
		subs:        subs,
		venues:      venues,
		resolver:    resolver,
		logger:      logger,
		scanHorizon: scanHorizonDays,
	}
}

type createSubscriptionRequest struct {
	VenueID       string `json:"venue_id"`
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Interval      string `json:"interval"`
	DayOfWeek     string `json:"day_of_week"`
	DayOfMonth    int    `json:"day_of_month"`
	StartDate     string `json:"start_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type subscriptionItem struct {
	SubscriptionID  string `json:"subscription_id"`
	VenueID         string `json:"venue_id"`
	Interval        string `json:"interval"`
	DayOfWeek       string `json:"day_of_week,omitempty"`
	DayOfMonth      int    `json:"day_of_month,omitempty"`
	StartDate       string `json:"start_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Status          string `json:"status"`
	LastBookingDate string `json:"last_booking_date,omitempty"`
}

type collisionItem struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type subscriptionConflictResponse struct {
	Error      string          `json:"error"`
	Collisions []collisionItem `json:"collisions"`
}

var weekdaysByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.VenueID = strings.TrimSpace(req.VenueID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.VenueID == "" || req.CustomerID == "" || req.CustomerName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	interval := model.Interval(strings.ToLower(strings.TrimSpace(req.Interval)))
	switch interval {
	case model.IntervalEveryday, model.IntervalWeekly, model.IntervalMonthly:
	default:
		http.Error(w, "interval must be everyday, weekly or monthly", http.StatusBadRequest)
		return
	}

	startDate, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(req.StartDate), time.UTC)
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	if startDate.Before(model.DateOnly(time.Now())) {
		http.Error(w, "start_date is in the past", http.StatusBadRequest)
		return
	}
	start, err := timeofday.Parse(req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := timeofday.Parse(req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if end <= start {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	// The anchor date carries the cadence detail: weekly subscriptions recur
	// on its weekday, monthly on its day-of-month, unless overridden.
	dayOfWeek := startDate.Weekday()
	if raw := strings.ToLower(strings.TrimSpace(req.DayOfWeek)); raw != "" {
		wd, ok := weekdaysByName[raw]
		if !ok {
			http.Error(w, "invalid day_of_week", http.StatusBadRequest)
			return
		}
		dayOfWeek = wd
	}
	dayOfMonth := startDate.Day()
	if req.DayOfMonth != 0 {
		if req.DayOfMonth < 1 || req.DayOfMonth > 31 {
			http.Error(w, "day_of_month must be between 1 and 31", http.StatusBadRequest)
			return
		}
		dayOfMonth = req.DayOfMonth
	}

	ctx := r.Context()
	venue, err := h.venues.Get(ctx, req.VenueID)
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

	cand := recurrence.Candidate{
		VenueID:    req.VenueID,
		Interval:   interval,
		AnchorDate: startDate,
		Window:     schedule.Interval{Start: start, End: end},
	}

	// Recurring claims of existing subscriptions are checked on the anchor
	// date; one-off bookings across the whole horizon.
	match, err := h.resolver.FirstConflict(ctx, req.VenueID, startDate, cand.Window)
	if err != nil {
		h.logger.Error("subscription conflict check failed", "err", err)
		http.Error(w, "conflict check failed", http.StatusInternalServerError)
		return
	}
	if match != nil {
		http.Error(w, match.Reason, http.StatusConflict)
		return
	}

	collisions, err := h.resolver.ScanWindow(ctx, cand, h.scanHorizon)
	if err != nil {
		h.logger.Error("subscription window scan failed", "err", err)
		http.Error(w, "conflict check failed", http.StatusInternalServerError)
		return
	}
	if len(collisions) > 0 {
		items := make([]collisionItem, 0, len(collisions))
		for _, c := range collisions {
			items = append(items, collisionItem{
				Date:      c.Date.Format(time.DateOnly),
				StartTime: c.Booking.StartTime,
				EndTime:   c.Booking.EndTime,
			})
		}
		writeJSON(w, http.StatusConflict, subscriptionConflictResponse{
			Error:      "recurring schedule collides with existing bookings",
			Collisions: items,
		})
		return
	}

	sub := model.Subscription{
		ID:            uuid.NewString(),
		VenueID:       req.VenueID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Interval:      interval,
		DayOfWeek:     dayOfWeek,
		DayOfMonth:    dayOfMonth,
		StartDate:     startDate,
		StartTime:     start.String(),
		EndTime:       end.String(),
		Status:        model.SubscriptionActive,
	}
	if err := h.subs.Create(ctx, sub); err != nil {
		h.logger.Error("subscription create failed", "err", err)
		http.Error(w, "failed to create subscription", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, subscriptionView(sub))
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SubscriptionID string `json:"subscription_id"`
		CustomerID     string `json:"customer_id"`
		AtPeriodEnd    bool   `json:"at_period_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SubscriptionID = strings.TrimSpace(req.SubscriptionID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.SubscriptionID == "" || req.CustomerID == "" {
		http.Error(w, "subscription_id and customer_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	sub, err := h.subs.Get(ctx, req.SubscriptionID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "subscription not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load subscription", http.StatusInternalServerError)
		return
	}
	if sub.CustomerID != req.CustomerID {
		http.Error(w, "subscription not owned by caller", http.StatusForbidden)
		return
	}
	if sub.Status == model.SubscriptionCancelled {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// at_period_end defers the cancellation to the scheduler: existing
	// bookings stand and the subscription closes before its next occurrence.
	if req.AtPeriodEnd {
		if err := h.subs.SetCancelAtPeriodEnd(ctx, req.SubscriptionID, true); err != nil {
			http.Error(w, "failed to flag subscription", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if err := h.subs.Cancel(ctx, req.SubscriptionID); err != nil {
		if storage.IsNotFound(err) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, "failed to cancel subscription", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		http.Error(w, "customer_id required", http.StatusBadRequest)
		return
	}

	subs, err := h.subs.ListByCustomer(r.Context(), customerID)
	if err != nil {
		http.Error(w, "failed to list subscriptions", http.StatusInternalServerError)
		return
	}

	items := make([]subscriptionItem, 0, len(subs))
	for _, s := range subs {
		items = append(items, subscriptionView(s))
	}
	writeJSON(w, http.StatusOK, items)
}

func subscriptionView(s model.Subscription) subscriptionItem {
	item := subscriptionItem{
		SubscriptionID: s.ID,
		VenueID:        s.VenueID,
		Interval:       string(s.Interval),
		StartDate:      s.StartDate.Format(time.DateOnly),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		Status:         string(s.Status),
	}
	switch s.Interval {
	case model.IntervalWeekly:
		item.DayOfWeek = strings.ToLower(s.DayOfWeek.String())
	case model.IntervalMonthly:
		item.DayOfMonth = s.DayOfMonth
	}
	if !s.LastBookingDate.IsZero() {
		item.LastBookingDate = s.LastBookingDate.Format(time.DateOnly)
	}
	return item
}
