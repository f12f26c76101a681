package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (production-style: event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topic names. Consumers subscribe by event type.
const (
	TopicBookingCreated            = "booking.created.v1"
	TopicBookingCancelled          = "booking.cancelled.v1"
	TopicBookingReminderDue        = "booking.reminder.due.v1"
	TopicSubscriptionAutoCancelled = "subscription.auto_cancelled.v1"
)
