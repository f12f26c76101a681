package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/fieldbook/internal/availability"
	"github.com/md-rashed-zaman/fieldbook/internal/model"
	"github.com/md-rashed-zaman/fieldbook/internal/outbox"
	"github.com/md-rashed-zaman/fieldbook/internal/schedule"
	"github.com/md-rashed-zaman/fieldbook/internal/storage"
	"github.com/md-rashed-zaman/fieldbook/internal/timeofday"
)

type BookingHandler struct {
	bookings       *storage.BookingRepository
	venues         *storage.VenueRepository
	outboxRepo     *outbox.Repository
	avail          *availability.Evaluator
	logger         *slog.Logger
	maxAdvanceDays int
}

func NewBookingHandler(bookings *storage.BookingRepository, venues *storage.VenueRepository, outboxRepo *outbox.Repository, avail *availability.Evaluator, logger *slog.Logger, maxAdvanceDays int) *BookingHandler {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = 30
	}
	return &BookingHandler{
		bookings:       bookings,
		venues:         venues,
		outboxRepo:     outboxRepo,
		avail:          avail,
		logger:         logger,
		maxAdvanceDays: maxAdvanceDays,
	}
}

type createBookingRequest struct {
	VenueID       string `json:"venue_id"`
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type createBookingResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type cancelBookingRequest struct {
	BookingID  string `json:"booking_id"`
	CustomerID string `json:"customer_id"`
}

type cancelBookingResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

type bookingItem struct {
	BookingID      string `json:"booking_id"`
	VenueID        string `json:"venue_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	CancelledAt    string `json:"cancelled_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
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

	date, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(req.Date), time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
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

	today := model.DateOnly(time.Now())
	if date.Before(today) {
		http.Error(w, "date is in the past", http.StatusBadRequest)
		return
	}
	if date.After(today.AddDate(0, 0, h.maxAdvanceDays)) {
		http.Error(w, "date is beyond the booking horizon", http.StatusUnprocessableEntity)
		return
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
	if !schedule.OperatesOn(venue.OperatingDays, date) {
		http.Error(w, "venue does not operate on that day", http.StatusUnprocessableEntity)
		return
	}
	if ok, err := windowWithinHours(venue, start, end); err != nil {
		http.Error(w, "venue hours are invalid", http.StatusInternalServerError)
		return
	} else if !ok {
		http.Error(w, "requested time is outside venue hours", http.StatusUnprocessableEntity)
		return
	}

	tx, err := h.bookings.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.bookings.LockIdempotencyKey(ctx, tx, req.CustomerID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	candidate := schedule.Interval{Start: start, End: end}
	res, err := h.avail.Check(ctx, req.VenueID, date, candidate, "")
	if err != nil {
		http.Error(w, "availability check failed", http.StatusInternalServerError)
		return
	}
	if !res.Available {
		if idempotencyKey != "" {
			if h.finalizeIdempotencyError(ctx, tx, req.CustomerID, idempotencyKey, http.StatusConflict, res.Reason) {
				_ = tx.Commit(ctx)
				return
			}
		}
		http.Error(w, res.Reason, http.StatusConflict)
		return
	}

	booking := model.Booking{
		ID:            uuid.NewString(),
		VenueID:       req.VenueID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Date:          date,
		StartTime:     start.String(),
		EndTime:       end.String(),
		Status:        model.BookingConfirmed,
	}

	if err := h.bookings.Create(ctx, tx, booking); err != nil {
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":     booking.ID,
		"venue_id":       booking.VenueID,
		"customer_id":    booking.CustomerID,
		"customer_name":  booking.CustomerName,
		"customer_email": booking.CustomerEmail,
		"date":           booking.Date.Format(time.DateOnly),
		"start_time":     booking.StartTime,
		"end_time":       booking.EndTime,
		"status":         string(booking.Status),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   booking.ID,
		EventType:     outbox.TopicBookingCreated,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(createBookingResponse{BookingID: booking.ID, Status: string(booking.Status)})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.bookings.FinalizeIdempotency(ctx, tx, req.CustomerID, idempotencyKey, booking.ID, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.BookingID == "" || req.CustomerID == "" {
		http.Error(w, "booking_id and customer_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.bookings.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.bookings.GetForUpdate(ctx, tx, req.BookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	if booking.CustomerID != req.CustomerID {
		http.Error(w, "booking not owned by caller", http.StatusForbidden)
		return
	}

	// Cancelling twice is a no-op, not an error.
	if booking.Status == model.BookingCancelled && booking.CancelledAt != nil {
		h.writeCancelResponse(w, booking.ID, booking.CancelledAt.UTC())
		return
	}
	if booking.Status == model.BookingCompleted {
		http.Error(w, "booking already completed", http.StatusConflict)
		return
	}

	cancelledAt, err := h.bookings.Cancel(ctx, tx, booking.ID)
	if err != nil {
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":   booking.ID,
		"venue_id":     booking.VenueID,
		"customer_id":  booking.CustomerID,
		"date":         booking.Date.Format(time.DateOnly),
		"start_time":   booking.StartTime,
		"end_time":     booking.EndTime,
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   booking.ID,
		EventType:     outbox.TopicBookingCancelled,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeCancelResponse(w, booking.ID, cancelledAt.UTC())
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		bookings []model.Booking
		err      error
	)
	if customerID := strings.TrimSpace(r.URL.Query().Get("customer_id")); customerID != "" {
		bookings, err = h.bookings.ListByCustomer(r.Context(), customerID, limit)
	} else if venueID := strings.TrimSpace(r.URL.Query().Get("venue_id")); venueID != "" {
		bookings, err = h.bookings.ListByVenue(r.Context(), venueID, limit)
	} else {
		http.Error(w, "customer_id or venue_id required", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		item := bookingItem{
			BookingID:      b.ID,
			VenueID:        b.VenueID,
			Date:           b.Date.Format(time.DateOnly),
			StartTime:      b.StartTime,
			EndTime:        b.EndTime,
			Status:         string(b.Status),
			SubscriptionID: b.SubscriptionID,
			CreatedAt:      b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if b.CancelledAt != nil {
			item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

// CheckAvailability exposes the conflict verdict for a candidate window
// without creating anything.
func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
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
	start, err := timeofday.Parse(r.URL.Query().Get("start_time"))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := timeofday.Parse(r.URL.Query().Get("end_time"))
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if end <= start {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	excludeID := strings.TrimSpace(r.URL.Query().Get("exclude_booking_id"))
	res, err := h.avail.Check(r.Context(), venueID, date, schedule.Interval{Start: start, End: end}, excludeID)
	if err != nil {
		http.Error(w, "availability check failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func windowWithinHours(venue model.Venue, start, end timeofday.Minutes) (bool, error) {
	open, err := timeofday.Parse(venue.OpenTime)
	if err != nil {
		return false, err
	}
	close, err := timeofday.Parse(venue.CloseTime)
	if err != nil {
		return false, err
	}
	return start >= open && end <= close, nil
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, bookingID string, cancelledAt time.Time) {
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		BookingID:   bookingID,
		Status:      string(model.BookingCancelled),
		CancelledAt: cancelledAt.Format(time.RFC3339),
	})
}

func (h *BookingHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, customerID, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return false
	}
	if err := h.bookings.FinalizeIdempotency(ctx, tx, customerID, key, "", statusCode, body); err != nil {
		h.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}
