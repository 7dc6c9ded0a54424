package outbox

import (
	"encoding/json"
	"time"
)

// Topic names double as event types. One event type per topic.
const (
	TopicAppointmentBooked    = "booking.appointment.booked.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
	TopicReminderRequested    = "booking.reminder.requested.v1"
)

// Event is the envelope written to the outbox table; the relay ships it
// to the Kafka topic named by EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload and wraps it for the appointment aggregate.
func NewEvent(appointmentID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}

type AppointmentBooked struct {
	AppointmentID   string    `json:"appointment_id"`
	StylistID       string    `json:"stylist_id"`
	ClientID        string    `json:"client_id,omitempty"`
	ClientName      string    `json:"client_name,omitempty"`
	ServiceID       string    `json:"service_id,omitempty"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
}

type AppointmentCancelled struct {
	AppointmentID string    `json:"appointment_id"`
	StylistID     string    `json:"stylist_id"`
	ClientID      string    `json:"client_id,omitempty"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

type ReminderRequested struct {
	AppointmentID string    `json:"appointment_id"`
	StylistID     string    `json:"stylist_id"`
	ClientID      string    `json:"client_id,omitempty"`
	StartTime     time.Time `json:"start_time"`
	RemindAt      time.Time `json:"remind_at"`
}
