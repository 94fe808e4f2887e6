package index

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// API serves the read model over HTTP.
type API struct {
	db        *gorm.DB
	projector *Projector
	exportDir string
	logger    *slog.Logger
	now       func() time.Time
}

func NewAPI(db *gorm.DB, projector *Projector, exportDir string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{db: db, projector: projector, exportDir: exportDir, logger: logger, now: time.Now}
}

// Handler returns the HTTP routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", a.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/listings", a.listListings)
	r.Get("/listings/{id}", a.getListing)
	r.Get("/listings/{id}/bookings", a.listListingBookings)
	r.Get("/bookings", a.listBookings)
	r.Get("/bookings/{id}", a.getBooking)
	r.Get("/ledger", a.listLedger)
	r.Get("/financing", a.listFinancing)
	r.Get("/travel-packages", a.listTravelPackages)
	r.Post("/exports/ledger", a.exportLedger)
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	a.logger.Error("read model query failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func queryUint(r *http.Request, key string) (uint64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// paginate applies limit/offset query parameters.
func paginate(r *http.Request, q *gorm.DB) (*gorm.DB, error) {
	limit := defaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, errors.New("limit must be a positive integer")
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return nil, errors.New("offset must be a non-negative integer")
		}
		offset = parsed
	}
	return q.Limit(limit).Offset(offset), nil
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	cursor, err := a.projector.Cursor(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "cursor": cursor})
}

func (a *API) listListings(w http.ResponseWriter, r *http.Request) {
	q := a.db.WithContext(r.Context()).Model(&ListingRecord{})
	if host := strings.TrimSpace(r.URL.Query().Get("host")); host != "" {
		q = q.Where("host = ?", host)
	}
	q, err := paginate(r, q.Order("listing_id asc"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var listings []ListingRecord
	if err := q.Find(&listings).Error; err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (a *API) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}
	var listing ListingRecord
	if err := a.db.WithContext(r.Context()).Where("listing_id = ?", id).Take(&listing).Error; err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (a *API) listListingBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}
	var bookings []BookingRecord
	if err := a.db.WithContext(r.Context()).Where("listing_id = ?", id).Order("starts_at asc").Find(&bookings).Error; err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (a *API) listBookings(w http.ResponseWriter, r *http.Request) {
	q := a.db.WithContext(r.Context()).Model(&BookingRecord{})
	if guest := strings.TrimSpace(r.URL.Query().Get("guest")); guest != "" {
		q = q.Where("guest = ?", guest)
	}
	if host := strings.TrimSpace(r.URL.Query().Get("host")); host != "" {
		q = q.Where("host = ?", host)
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	q, err := paginate(r, q.Order("booking_id asc"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var bookings []BookingRecord
	if err := q.Find(&bookings).Error; err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (a *API) getBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var booking BookingRecord
	if err := a.db.WithContext(r.Context()).Where("booking_id = ?", id).Take(&booking).Error; err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (a *API) listLedger(w http.ResponseWriter, r *http.Request) {
	q := a.db.WithContext(r.Context()).Model(&LedgerEntry{})
	bookingID, set, err := queryUint(r, "bookingId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bookingId")
		return
	}
	if set {
		q = q.Where("booking_id = ?", bookingID)
	}
	if recipient := strings.TrimSpace(r.URL.Query().Get("recipient")); recipient != "" {
		q = q.Where("recipient = ?", recipient)
	}
	q, err = paginate(r, q.Order("sequence asc, kind asc"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var entries []LedgerEntry
	if err := q.Find(&entries).Error; err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) listFinancing(w http.ResponseWriter, r *http.Request) {
	q := a.db.WithContext(r.Context()).Model(&FinancingRequest{})
	bookingID, set, err := queryUint(r, "bookingId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bookingId")
		return
	}
	if set {
		q = q.Where("booking_id = ?", bookingID)
	}
	q, err = paginate(r, q.Order("sequence asc"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var requests []FinancingRequest
	if err := q.Find(&requests).Error; err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (a *API) listTravelPackages(w http.ResponseWriter, r *http.Request) {
	q := a.db.WithContext(r.Context()).Model(&TravelPackage{})
	if guest := strings.TrimSpace(r.URL.Query().Get("guest")); guest != "" {
		q = q.Where("guest = ?", guest)
	}
	q, err := paginate(r, q.Order("sequence asc"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var packages []TravelPackage
	if err := q.Find(&packages).Error; err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, packages)
}

func (a *API) exportLedger(w http.ResponseWriter, r *http.Request) {
	var from, to int64
	for key, dst := range map[string]*int64{"from": &from, "to": &to} {
		raw := strings.TrimSpace(r.URL.Query().Get(key))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+key)
			return
		}
		*dst = value
	}
	result, err := ExportLedger(r.Context(), a.db, a.exportDir, from, to, a.now())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("ledger export written", slog.String("path", result.Path), slog.Int("rows", result.Rows))
	writeJSON(w, http.StatusCreated, result)
}
