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

	"github.com/glowbook/glowbook/services/booking-service/internal/availability"
	"github.com/glowbook/glowbook/services/booking-service/internal/model"
	"github.com/glowbook/glowbook/services/booking-service/internal/outbox"
	"github.com/glowbook/glowbook/services/booking-service/internal/storage"
)

const maxDurationMinutes = 8 * 60

type BookingHandler struct {
	repo            *storage.BookingRepository
	replicas        *storage.ReplicaRepository
	outboxRepo      *outbox.Repository
	resolver        *availability.Resolver
	logger          *slog.Logger
	reminderOffsets []time.Duration
}

func NewBookingHandler(repo *storage.BookingRepository, replicas *storage.ReplicaRepository, outboxRepo *outbox.Repository, resolver *availability.Resolver, logger *slog.Logger, reminderOffsets []time.Duration) *BookingHandler {
	if len(reminderOffsets) == 0 {
		reminderOffsets = []time.Duration{24 * time.Hour, time.Hour}
	}
	return &BookingHandler{
		repo:            repo,
		replicas:        replicas,
		outboxRepo:      outboxRepo,
		resolver:        resolver,
		logger:          logger,
		reminderOffsets: reminderOffsets,
	}
}

type createBookingRequest struct {
	StylistID       string `json:"stylist_id"`
	ServiceID       string `json:"service_id"`
	ClientName      string `json:"client_name"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Force           bool   `json:"force"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type cancelBookingRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

type updateStatusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type listAppointmentItem struct {
	AppointmentID   string `json:"appointment_id"`
	StylistID       string `json:"stylist_id"`
	ClientID        string `json:"client_id,omitempty"`
	ClientName      string `json:"client_name,omitempty"`
	ServiceID       string `json:"service_id,omitempty"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CreatedAt       string `json:"created_at"`
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
	req.StylistID = strings.TrimSpace(req.StylistID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ClientName = strings.TrimSpace(req.ClientName)
	if req.StylistID == "" {
		http.Error(w, "stylist_id required", http.StatusBadRequest)
		return
	}

	startTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes < 0 || req.DurationMinutes > maxDurationMinutes {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}

	actor := actorFrom(r)
	appt := &model.Appointment{
		StylistID:  req.StylistID,
		ServiceID:  req.ServiceID,
		ClientName: req.ClientName,
		StartTime:  startTime,
		Status:     model.StatusPending,
	}
	switch actor.Role {
	case roleClient:
		appt.ClientID = actor.UserID
	case roleStylist:
		// Stylists record walk-ins on their own calendar only.
		if actor.StylistID != req.StylistID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if req.ClientName == "" {
			http.Error(w, "client_name required", http.StatusBadRequest)
			return
		}
		appt.Status = model.StatusApproved
	case roleAdmin:
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	duration, err := h.resolveDuration(ctx, req)
	if err != nil {
		http.Error(w, "failed to resolve service duration", http.StatusInternalServerError)
		return
	}
	appt.DurationMinutes = &duration

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, appt.StylistID, idempotencyKey)
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

	// Stylists and admins can force-book over the resolver, e.g. to
	// squeeze in a walk-in outside published hours. The exclusion
	// constraint still rejects true double-books below.
	force := req.Force && (actor.Role == roleStylist || actor.Role == roleAdmin)
	if !force {
		decision, err := h.resolver.Check(ctx, appt.StylistID, startTime, duration)
		if err != nil {
			h.logger.Error("availability check failed", "err", err, "stylist_id", appt.StylistID)
			http.Error(w, "availability check failed", http.StatusInternalServerError)
			return
		}
		if !decision.Available {
			body, _ := json.Marshal(decision)
			if idempotencyKey != "" {
				if err := h.repo.FinalizeIdempotency(ctx, tx, appt.StylistID, idempotencyKey, "", http.StatusConflict, body); err == nil {
					_ = tx.Commit(ctx)
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write(body)
			return
		}
	}

	if err := h.enforceMonthlyLimit(ctx, tx, appt.StylistID, startTime); err != nil {
		if errors.Is(err, errPaymentRequired) {
			http.Error(w, err.Error(), http.StatusPaymentRequired)
			return
		}
		http.Error(w, "entitlements check failed", http.StatusInternalServerError)
		return
	}

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			writeJSON(w, http.StatusConflict, availability.Decision{
				Code:   availability.ReasonOverlap,
				Reason: "Slot overlap with existing booking",
			})
			return
		}
		h.logger.Error("appointment insert failed", "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.NewEvent(id, outbox.TopicAppointmentBooked, outbox.AppointmentBooked{
		AppointmentID:   id,
		StylistID:       appt.StylistID,
		ClientID:        appt.ClientID,
		ClientName:      appt.ClientName,
		ServiceID:       appt.ServiceID,
		StartTime:       startTime.UTC(),
		DurationMinutes: duration,
		Status:          appt.Status,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	h.enqueueReminders(ctx, tx, id, appt)

	respBody, err := json.Marshal(createBookingResponse{AppointmentID: id, Status: appt.Status})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, appt.StylistID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
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
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	actor := actorFrom(r)
	var newStatus string
	switch actor.Role {
	case roleClient:
		if appt.ClientID != actor.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		newStatus = model.StatusCancelledByClient
	case roleStylist:
		if appt.StylistID != actor.StylistID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		newStatus = model.StatusCancelledByTech
	case roleAdmin:
		newStatus = model.StatusCanceled
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if model.IsCancelled(appt.Status) && appt.CancelledAt != nil {
		h.writeCancelResponse(w, appt.ID, appt.Status, appt.CancelledAt.UTC())
		return
	}
	if !model.CanTransition(appt.Status, newStatus) {
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, appt.ID, newStatus, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.NewEvent(appt.ID, outbox.TopicAppointmentCancelled, outbox.AppointmentCancelled{
		AppointmentID: appt.ID,
		StylistID:     appt.StylistID,
		ClientID:      appt.ClientID,
		Status:        newStatus,
		Reason:        req.Reason,
		CancelledAt:   cancelledAt.UTC(),
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
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
	h.writeCancelResponse(w, appt.ID, newStatus, cancelledAt.UTC())
}

// UpdateStatus moves an appointment through the stylist-facing part of
// its lifecycle (approve, complete). Cancellations go through Cancel.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Status = strings.TrimSpace(req.Status)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	if req.Status != model.StatusApproved && req.Status != model.StatusCompleted {
		http.Error(w, "status must be APPROVED or COMPLETED", http.StatusUnprocessableEntity)
		return
	}

	actor := actorFrom(r)
	if actor.Role != roleStylist && actor.Role != roleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if actor.Role == roleStylist && appt.StylistID != actor.StylistID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !model.CanTransition(appt.Status, req.Status) {
		http.Error(w, "invalid status transition", http.StatusConflict)
		return
	}

	if err := h.repo.UpdateStatus(ctx, tx, appt.ID, req.Status); err != nil {
		http.Error(w, "failed to update status", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": appt.ID,
		"status":         req.Status,
	})
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

	actor := actorFrom(r)
	var appts []model.Appointment
	var err error
	switch actor.Role {
	case roleClient:
		appts, err = h.repo.ListByClient(r.Context(), actor.UserID, limit)
	case roleStylist:
		from, to := listWindow(r)
		appts, err = h.repo.ListByStylist(r.Context(), actor.StylistID, from, to, limit)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := listAppointmentItem{
			AppointmentID:   appt.ID,
			StylistID:       appt.StylistID,
			ClientID:        appt.ClientID,
			ClientName:      appt.ClientName,
			ServiceID:       appt.ServiceID,
			StartTime:       appt.StartTime.UTC().Format(time.RFC3339),
			DurationMinutes: appt.EffectiveDuration(),
			Status:          appt.Status,
			CreatedAt:       appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

var errPaymentRequired = errors.New("monthly appointment limit reached (upgrade required)")

func (h *BookingHandler) enforceMonthlyLimit(ctx context.Context, tx pgx.Tx, stylistID string, start time.Time) error {
	ent, err := h.replicas.GetEntitlements(ctx, tx, stylistID)
	if err != nil {
		return err
	}
	if ent.MaxMonthlyAppointments <= 0 {
		return nil
	}
	cnt, err := h.repo.CountActiveInMonth(ctx, tx, stylistID, start.UTC())
	if err != nil {
		return err
	}
	if cnt >= ent.MaxMonthlyAppointments {
		return errPaymentRequired
	}
	return nil
}

func (h *BookingHandler) resolveDuration(ctx context.Context, req createBookingRequest) (int, error) {
	if req.DurationMinutes > 0 {
		return req.DurationMinutes, nil
	}
	if req.ServiceID != "" {
		mins, ok, err := h.replicas.ServiceDuration(ctx, req.StylistID, req.ServiceID)
		if err != nil {
			return 0, err
		}
		if ok && mins > 0 {
			return mins, nil
		}
	}
	return availability.DefaultDurationMinutes, nil
}

func (h *BookingHandler) enqueueReminders(ctx context.Context, tx pgx.Tx, appointmentID string, appt *model.Appointment) {
	now := time.Now().UTC()
	for _, offset := range h.reminderOffsets {
		remindAt := appt.StartTime.Add(-offset)
		if remindAt.Before(now) {
			continue
		}
		evt, err := outbox.NewEvent(appointmentID, outbox.TopicReminderRequested, outbox.ReminderRequested{
			AppointmentID: appointmentID,
			StylistID:     appt.StylistID,
			ClientID:      appt.ClientID,
			StartTime:     appt.StartTime.UTC(),
			RemindAt:      remindAt,
		})
		if err != nil {
			h.logger.Error("failed to build reminder payload", "err", err)
			continue
		}
		if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
			h.logger.Error("failed to enqueue reminder", "err", err)
		}
	}
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, appointmentID, status string, cancelledAt time.Time) {
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		AppointmentID: appointmentID,
		Status:        status,
		CancelledAt:   cancelledAt.Format(time.RFC3339),
	})
}

func listWindow(r *http.Request) (time.Time, time.Time) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now.AddDate(0, 0, 30)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			from = t
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			to = t.AddDate(0, 0, 1)
		}
	}
	return from, to
}
