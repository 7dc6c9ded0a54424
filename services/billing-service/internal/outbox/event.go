package outbox

const (
	TopicSubscriptionActivated = "billing.subscription.activated.v1"
	TopicSubscriptionCanceled  = "billing.subscription.canceled.v1"
)

// Event is the domain event envelope written to the outbox table. The
// Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
