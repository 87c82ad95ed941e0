package events

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status.changed"
	TopicListingSold        = "listing.sold"
	TopicReviewCreated      = "review.created"
)

// PartitionKey keeps every event for one order (or listing) on the same
// partition so consumers see them in order.
func PartitionKey(id string) []byte { return []byte(id) }
