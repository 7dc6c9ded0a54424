package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/glowbook/glowbook/services/stylist-service/internal/outbox"
	"github.com/glowbook/glowbook/services/stylist-service/internal/storage"
)

var errServiceLimit = errors.New("service limit reached for current plan (upgrade required)")

type Handler struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

func stylistIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Stylist-Id"))
}

// GetProfile returns the authenticated stylist's profile, seeding a
// default one on first call.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stylistID := stylistIDFromHeader(r)
	if stylistID == "" {
		http.Error(w, "missing X-Stylist-Id", http.StatusBadRequest)
		return
	}

	p, err := h.repo.GetOrCreateProfile(r.Context(), stylistID)
	if err != nil {
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

// PublicProfile is the client-facing view of a stylist.
func (h *Handler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	stylistID := strings.TrimSpace(r.PathValue("stylistID"))
	if stylistID == "" {
		http.Error(w, "stylist id required", http.StatusBadRequest)
		return
	}
	p, err := h.repo.GetProfile(r.Context(), stylistID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "stylist not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stylistID := stylistIDFromHeader(r)
	if stylistID == "" {
		http.Error(w, "missing X-Stylist-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		DisplayName string `json:"display_name"`
		SalonName   string `json:"salon_name"`
		Timezone    string `json:"timezone"`
		Bio         string `json:"bio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.SalonName = strings.TrimSpace(req.SalonName)
	req.Timezone = strings.TrimSpace(req.Timezone)
	req.Bio = strings.TrimSpace(req.Bio)
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	// The booking resolver trusts this value, so only accept zones the
	// runtime can actually load.
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "invalid timezone, expected IANA name like America/New_York", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	profile := storage.Profile{
		StylistID:   stylistID,
		DisplayName: req.DisplayName,
		SalonName:   req.SalonName,
		Timezone:    req.Timezone,
		Bio:         req.Bio,
	}
	if err := h.repo.UpsertProfile(ctx, tx, profile); err != nil {
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.NewEvent(stylistID, outbox.TopicProfileUpdated, outbox.ProfileUpdated{
		StylistID:   stylistID,
		DisplayName: req.DisplayName,
		Timezone:    req.Timezone,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type serviceRequest struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	Description     string  `json:"description"`
}

func (req *serviceRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.DurationMinutes <= 0 {
		return "name and duration_minutes required"
	}
	if req.DurationMinutes > 8*60 {
		return "duration_minutes too large"
	}
	if req.Price < 0 {
		return "price must not be negative"
	}
	return ""
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	stylistID := stylistIDFromHeader(r)
	if stylistID == "" {
		http.Error(w, "missing X-Stylist-Id", http.StatusBadRequest)
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.enforceServiceLimit(ctx, tx, stylistID); err != nil {
		if errors.Is(err, errServiceLimit) {
			http.Error(w, err.Error(), http.StatusPaymentRequired)
			return
		}
		http.Error(w, "entitlements check failed", http.StatusInternalServerError)
		return
	}

	id, err := h.repo.CreateService(ctx, tx, stylistID, req.Name, req.DurationMinutes,
		strconv.FormatFloat(req.Price, 'f', 2, 64), req.Description)
	if err != nil {
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	if err := h.emitServiceUpserted(r, tx, stylistID, id, req); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	stylistID := stylistIDFromHeader(r)
	serviceID := strings.TrimSpace(r.PathValue("id"))
	if stylistID == "" || serviceID == "" {
		http.Error(w, "stylist and service id required", http.StatusBadRequest)
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpdateService(ctx, tx, stylistID, serviceID, req.Name, req.DurationMinutes,
		strconv.FormatFloat(req.Price, 'f', 2, 64), req.Description); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update service", http.StatusInternalServerError)
		return
	}
	if err := h.emitServiceUpserted(r, tx, stylistID, serviceID, req); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	stylistID := stylistIDFromHeader(r)
	serviceID := strings.TrimSpace(r.PathValue("id"))
	if stylistID == "" || serviceID == "" {
		http.Error(w, "stylist and service id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeleteService(ctx, tx, stylistID, serviceID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete service", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.NewEvent(stylistID, outbox.TopicServiceDeleted, outbox.ServiceDeleted{
		StylistID: stylistID,
		ServiceID: serviceID,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListServices serves both the owner dashboard (header) and the public
// menu (path param).
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stylistID := strings.TrimSpace(r.PathValue("stylistID"))
	if stylistID == "" {
		stylistID = stylistIDFromHeader(r)
	}
	if stylistID == "" {
		http.Error(w, "stylist id required", http.StatusBadRequest)
		return
	}

	services, err := h.repo.ListServices(r.Context(), stylistID, 100)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(services)
}

func (h *Handler) enforceServiceLimit(ctx context.Context, tx pgx.Tx, stylistID string) error {
	max, err := h.repo.MaxServices(ctx, tx, stylistID)
	if err != nil {
		return err
	}
	if max <= 0 {
		return nil
	}
	cnt, err := h.repo.CountServices(ctx, tx, stylistID)
	if err != nil {
		return err
	}
	if cnt >= max {
		return errServiceLimit
	}
	return nil
}

func (h *Handler) emitServiceUpserted(r *http.Request, tx pgx.Tx, stylistID, serviceID string, req serviceRequest) error {
	evt, err := outbox.NewEvent(stylistID, outbox.TopicServiceUpserted, outbox.ServiceUpserted{
		StylistID:       stylistID,
		ServiceID:       serviceID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(r.Context(), tx, evt)
}
