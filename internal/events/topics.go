package events

const (
	TopicOrderCreated    = "order.created"
	TopicOrderPaid       = "order.paid"
	TopicOrderCancelled  = "order.cancelled"
	TopicOrderRefunded   = "order.refunded"
	TopicShipmentUpdated = "shipment.updated"

	// Inbound tracking updates from the delivery-provider webhook consumer.
	TopicShipmentTracking = "shipment.tracking"
)

// Partition key = order_id so all events for one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
