package outbox

import (
	"encoding/json"
	"fmt"
)

const (
	TopicUserCreated = "auth.user.created.v1"
	TopicAudit       = "auth.audit.v1"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func NewEvent(userID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: "user",
		AggregateID:   userID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}

// UserCreated announces a new account. StylistID is set only for
// stylist signups, where it equals the user id.
type UserCreated struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	StylistID   string `json:"stylist_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

type AuditRecorded struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}
