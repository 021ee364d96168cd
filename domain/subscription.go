package domain

// Subscription is a lazy unbounded stream of decoded messages for one topic.
// The stream ends when the producer closes it; Unsubscribe asks the producer
// to stop and release the topic.
type Subscription[T any] struct {
	Stream      chan T
	Topic       string
	Unsubscribe func()
}
