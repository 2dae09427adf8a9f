package enums

// OutboxEventType names a lifecycle event relayed to the analytics sink.
type OutboxEventType string

const (
	EventDeliveryCreated OutboxEventType = "delivery.created"
	EventRequestAccepted OutboxEventType = "delivery.request_accepted"
	EventDriverAssigned  OutboxEventType = "delivery.driver_assigned"
	EventStatusChanged   OutboxEventType = "delivery.status_changed"
	EventMessageSent     OutboxEventType = "delivery.message_sent"
	EventOrderCreated    OutboxEventType = "order.created"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateDelivery OutboxAggregateType = "delivery"
	AggregateOrder    OutboxAggregateType = "order"
)

// OutboxStatus tracks publication state of a stored event.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)
