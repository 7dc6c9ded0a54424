package outbox

import "encoding/json"

const (
	TopicProfileUpdated  = "stylist.profile.updated.v1"
	TopicServiceUpserted = "stylist.service.upserted.v1"
	TopicServiceDeleted  = "stylist.service.deleted.v1"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func NewEvent(stylistID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "stylist",
		AggregateID:   stylistID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}

// ProfileUpdated feeds the booking service's timezone replica.
type ProfileUpdated struct {
	StylistID   string `json:"stylist_id"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

// ServiceUpserted feeds the booking service's duration catalog.
type ServiceUpserted struct {
	StylistID       string `json:"stylist_id"`
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type ServiceDeleted struct {
	StylistID string `json:"stylist_id"`
	ServiceID string `json:"service_id"`
}
