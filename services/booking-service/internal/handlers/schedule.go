package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/glowbook/glowbook/services/booking-service/internal/availability"
	"github.com/glowbook/glowbook/services/booking-service/internal/storage"
)

// scheduleStore is the slice of schedule.Repository the handler needs.
type scheduleStore interface {
	ListWeeklyRules(ctx context.Context, stylistID string) ([]availability.WeeklyRule, error)
	ReplaceWeeklyRules(ctx context.Context, stylistID string, rules []availability.WeeklyRule) error
	ListExceptions(ctx context.Context, stylistID string, from, to time.Time) ([]availability.Exception, error)
	UpsertException(ctx context.Context, stylistID string, ex availability.Exception) (string, error)
	DeleteException(ctx context.Context, stylistID, exceptionID string) error
}

type ScheduleHandler struct {
	repo     scheduleStore
	replicas *storage.ReplicaRepository
	resolver *availability.Resolver
	logger   *slog.Logger
}

func NewScheduleHandler(repo scheduleStore, replicas *storage.ReplicaRepository, resolver *availability.Resolver, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, replicas: replicas, resolver: resolver, logger: logger}
}

type weeklyRuleItem struct {
	DayOfWeek    int    `json:"day_of_week"`
	IsWorkingDay bool   `json:"is_working_day"`
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
}

type exceptionItem struct {
	ID        string `json:"id,omitempty"`
	Date      string `json:"date"`
	IsOff     bool   `json:"is_off"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type availabilityResponse struct {
	StylistID  string           `json:"stylist_id"`
	Schedule   []weeklyRuleItem `json:"schedule"`
	Exceptions []exceptionItem  `json:"exceptions"`
}

type putScheduleRequest struct {
	Schedule []weeklyRuleItem `json:"schedule"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// GetAvailability is the public read model: the stylist's recurring
// week plus date exceptions in the requested range.
func (h *ScheduleHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	stylistID := strings.TrimSpace(r.PathValue("stylistID"))
	if stylistID == "" {
		http.Error(w, "stylist id required", http.StatusBadRequest)
		return
	}

	rules, err := h.repo.ListWeeklyRules(r.Context(), stylistID)
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	// Exceptions are range-scoped and only returned when the caller
	// supplies both bounds; the weekly schedule alone answers the
	// unbounded read.
	var exceptions []availability.Exception
	rawStart := strings.TrimSpace(r.URL.Query().Get("start"))
	rawEnd := strings.TrimSpace(r.URL.Query().Get("end"))
	if rawStart != "" && rawEnd != "" {
		from, err := time.Parse("2006-01-02", rawStart)
		if err != nil {
			http.Error(w, "invalid start date", http.StatusBadRequest)
			return
		}
		to, err := time.Parse("2006-01-02", rawEnd)
		if err != nil {
			http.Error(w, "invalid end date", http.StatusBadRequest)
			return
		}
		exceptions, err = h.repo.ListExceptions(r.Context(), stylistID, from, to)
		if err != nil {
			http.Error(w, "failed to load exceptions", http.StatusInternalServerError)
			return
		}
	}

	resp := availabilityResponse{
		StylistID:  stylistID,
		Schedule:   make([]weeklyRuleItem, 0, len(rules)),
		Exceptions: make([]exceptionItem, 0, len(exceptions)),
	}
	for _, rule := range rules {
		item := weeklyRuleItem{DayOfWeek: rule.Weekday, IsWorkingDay: rule.IsWorking}
		if rule.IsWorking {
			item.StartTime = availability.FormatClock(rule.StartMinute)
			item.EndTime = availability.FormatClock(rule.EndMinute)
		}
		resp.Schedule = append(resp.Schedule, item)
	}
	for _, ex := range exceptions {
		item := exceptionItem{
			ID:     ex.ID,
			Date:   ex.Date.Format("2006-01-02"),
			IsOff:  ex.IsOff,
			Reason: ex.Reason,
		}
		if ex.StartMinute != nil && ex.EndMinute != nil {
			item.StartTime = availability.FormatClock(*ex.StartMinute)
			item.EndTime = availability.FormatClock(*ex.EndMinute)
		}
		resp.Exceptions = append(resp.Exceptions, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// mutationTarget resolves which stylist's calendar a schedule mutation
// edits. Stylists act on their own calendar only; admins must name the
// stylist via the stylist_id query param.
func (h *ScheduleHandler) mutationTarget(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := actorFrom(r)
	switch actor.Role {
	case roleStylist:
		if actor.StylistID == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return "", false
		}
		return actor.StylistID, true
	case roleAdmin:
		target := strings.TrimSpace(r.URL.Query().Get("stylist_id"))
		if target == "" {
			http.Error(w, "stylist_id required", http.StatusBadRequest)
			return "", false
		}
		return target, true
	default:
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
}

// PutSchedule replaces the stylist's full recurring week in one
// transaction, so clients never observe a half-saved schedule.
func (h *ScheduleHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stylistID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}

	var req putScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.Schedule) == 0 {
		http.Error(w, "schedule required", http.StatusBadRequest)
		return
	}

	seen := make(map[int]bool, len(req.Schedule))
	rules := make([]availability.WeeklyRule, 0, len(req.Schedule))
	for _, item := range req.Schedule {
		if item.DayOfWeek < 0 || item.DayOfWeek > 6 {
			http.Error(w, "day_of_week must be 0-6", http.StatusBadRequest)
			return
		}
		if seen[item.DayOfWeek] {
			http.Error(w, "duplicate day_of_week", http.StatusBadRequest)
			return
		}
		seen[item.DayOfWeek] = true

		rule := availability.WeeklyRule{Weekday: item.DayOfWeek, IsWorking: item.IsWorkingDay}
		if item.IsWorkingDay {
			start, err := availability.ParseClock(item.StartTime)
			if err != nil {
				http.Error(w, "invalid start_time, expected HH:MM", http.StatusBadRequest)
				return
			}
			end, err := availability.ParseClock(item.EndTime)
			if err != nil {
				http.Error(w, "invalid end_time, expected HH:MM", http.StatusBadRequest)
				return
			}
			if start >= end {
				http.Error(w, "start_time must be before end_time", http.StatusBadRequest)
				return
			}
			rule.StartMinute = start
			rule.EndMinute = end
		}
		rules = append(rules, rule)
	}

	if err := h.repo.ReplaceWeeklyRules(r.Context(), stylistID, rules); err != nil {
		h.logger.Error("schedule update failed", "err", err, "stylist_id", stylistID)
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// CreateException records a date override. A second exception for the
// same date replaces the first.
func (h *ScheduleHandler) CreateException(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stylistID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}

	var req exceptionItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ex := availability.Exception{Date: date, IsOff: req.IsOff, Reason: strings.TrimSpace(req.Reason)}
	if !req.IsOff {
		if req.StartTime == "" || req.EndTime == "" {
			http.Error(w, "start_time and end_time required for custom hours", http.StatusBadRequest)
			return
		}
		start, err := availability.ParseClock(req.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time, expected HH:MM", http.StatusBadRequest)
			return
		}
		end, err := availability.ParseClock(req.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time, expected HH:MM", http.StatusBadRequest)
			return
		}
		if start >= end {
			http.Error(w, "start_time must be before end_time", http.StatusBadRequest)
			return
		}
		ex.StartMinute = &start
		ex.EndMinute = &end
	}

	id, err := h.repo.UpsertException(r.Context(), stylistID, ex)
	if err != nil {
		h.logger.Error("exception upsert failed", "err", err, "stylist_id", stylistID)
		http.Error(w, "failed to save exception", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "date": req.Date})
}

func (h *ScheduleHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	stylistID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "exception id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteException(r.Context(), stylistID, id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "exception not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete exception", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Slots enumerates bookable start times for one stylist and date, in
// the stylist's timezone.
func (h *ScheduleHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stylistID := strings.TrimSpace(r.URL.Query().Get("stylist_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if stylistID == "" || dateStr == "" {
		http.Error(w, "stylist_id and date are required", http.StatusBadRequest)
		return
	}

	loc, err := h.replicas.StylistLocation(r.Context(), stylistID)
	if err != nil {
		http.Error(w, "failed to resolve stylist timezone", http.StatusInternalServerError)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	duration := availability.DefaultDurationMinutes
	if serviceID := strings.TrimSpace(r.URL.Query().Get("service_id")); serviceID != "" {
		mins, ok, err := h.replicas.ServiceDuration(r.Context(), stylistID, serviceID)
		if err != nil {
			http.Error(w, "failed to resolve service duration", http.StatusInternalServerError)
			return
		}
		if ok && mins > 0 {
			duration = mins
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxDurationMinutes {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
		duration = n
	}
	step := 15
	if raw := strings.TrimSpace(r.URL.Query().Get("step_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 120 {
			http.Error(w, "invalid step_minutes", http.StatusBadRequest)
			return
		}
		step = n
	}

	_, day, err := h.resolver.LoadDay(r.Context(), stylistID, date)
	if err != nil {
		h.logger.Error("slot lookup failed", "err", err, "stylist_id", stylistID)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	notBefore := 0
	now := time.Now().In(loc)
	if now.Year() == date.Year() && now.YearDay() == date.YearDay() {
		notBefore = now.Hour()*60 + now.Minute() + 1
	}

	starts := availability.DaySlots(day, duration, step, notBefore)
	resp := make([]slotItem, 0, len(starts))
	for _, min := range starts {
		start := date.Add(time.Duration(min) * time.Minute)
		resp = append(resp, slotItem{
			StartTime: start.Format(time.RFC3339),
			EndTime:   start.Add(time.Duration(duration) * time.Minute).Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Check exposes the resolver directly so clients can validate a slot
// before submitting a booking.
func (h *ScheduleHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stylistID := strings.TrimSpace(r.URL.Query().Get("stylist_id"))
	startRaw := strings.TrimSpace(r.URL.Query().Get("start_time"))
	if stylistID == "" || startRaw == "" {
		http.Error(w, "stylist_id and start_time are required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	duration := availability.DefaultDurationMinutes
	if raw := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxDurationMinutes {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
		duration = n
	}

	decision, err := h.resolver.Check(r.Context(), stylistID, start, duration)
	if err != nil {
		h.logger.Error("availability check failed", "err", err, "stylist_id", stylistID)
		http.Error(w, "availability check failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
