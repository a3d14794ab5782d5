package jetstream

import "github.com/nats-io/nats.go"

// StreamConfigEqual compares the stream properties this service manages.
func StreamConfigEqual(a, b nats.StreamConfig) bool {
	if a.Name != b.Name ||
		a.Retention != b.Retention ||
		a.MaxMsgs != b.MaxMsgs ||
		a.MaxAge != b.MaxAge ||
		a.Storage != b.Storage ||
		a.Duplicates != b.Duplicates {
		return false
	}
	if len(a.Subjects) != len(b.Subjects) {
		return false
	}
	for i, subject := range a.Subjects {
		if subject != b.Subjects[i] {
			return false
		}
	}
	return true
}

// ConsumerConfigEqual compares the consumer properties this service manages.
// DeliverSubject is ignored since every setup picks a fresh inbox.
func ConsumerConfigEqual(a, b nats.ConsumerConfig) bool {
	return a.Durable == b.Durable &&
		a.DeliverGroup == b.DeliverGroup &&
		a.AckPolicy == b.AckPolicy &&
		a.AckWait == b.AckWait &&
		a.FilterSubject == b.FilterSubject &&
		a.MaxDeliver == b.MaxDeliver
}
