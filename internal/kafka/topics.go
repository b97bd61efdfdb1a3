package kafka

const TopicOrderNotifications = "order.notifications"

// Partition key = recipient, so one customer's emails keep their order.
func PartitionKey(recipient string) []byte { return []byte(recipient) }
