package model

import "time"

const (
	StatusPending           = "PENDING"
	StatusApproved          = "APPROVED"
	StatusCompleted         = "COMPLETED"
	StatusCanceled          = "CANCELED"
	StatusCancelledByClient = "CANCELLED_BY_CLIENT"
	StatusCancelledByTech   = "CANCELLED_BY_TECH"
)

// CancelledStatuses are the terminal states that release the slot.
var CancelledStatuses = []string{StatusCanceled, StatusCancelledByClient, StatusCancelledByTech}

type Appointment struct {
	ID              string     `json:"id"`
	StylistID       string     `json:"stylist_id"`
	ClientID        string     `json:"client_id,omitempty"`
	ClientName      string     `json:"client_name,omitempty"`
	ServiceID       string     `json:"service_id,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Status          string     `json:"status"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func IsCancelled(status string) bool {
	switch status {
	case StatusCanceled, StatusCancelledByClient, StatusCancelledByTech:
		return true
	}
	return false
}

// EffectiveDuration returns the recorded duration, or 60 when none was
// captured.
func (a Appointment) EffectiveDuration() int {
	if a.DurationMinutes != nil && *a.DurationMinutes > 0 {
		return *a.DurationMinutes
	}
	return 60
}

// CanTransition reports whether a status change is allowed.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || IsCancelled(to)
	case StatusApproved:
		return to == StatusCompleted || IsCancelled(to)
	}
	return false
}
