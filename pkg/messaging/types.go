package messaging

import (
	"context"
	"time"
)

// Message carries one payload between rollout components
type Message[T any] struct {
	From      string    // ID of the sender
	To        []string  // IDs of recipients (empty means broadcast)
	Content   T         // The payload
	Timestamp time.Time // When the message was sent
}

// Broker handles message routing between rollout components
type Broker[T any] interface {
	// Publish delivers a message to its recipients, waiting for room
	Publish(ctx context.Context, msg Message[T]) error
	// Subscribe registers a recipient
	Subscribe(id string, ch chan<- Message[T]) error
	// Unsubscribe removes a recipient
	Unsubscribe(id string) error
}
