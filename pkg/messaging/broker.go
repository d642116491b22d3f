package messaging

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

var ErrChannelFull = goerr.New("recipient channel is full")

// SimpleBroker implements the Broker interface
// subscribers is a map where keys are subscriber IDs and values are channels for receiving messages
type SimpleBroker[T any] struct {
	subscribers map[string]chan<- Message[T]
	mu          sync.RWMutex
}

// NewBroker creates a new message broker
func NewBroker[T any]() *SimpleBroker[T] {
	return &SimpleBroker[T]{
		subscribers: make(map[string]chan<- Message[T]),
	}
}

// recipients resolves msg.To, or every subscriber but the sender when empty.
// Unknown recipients are skipped.
func (b *SimpleBroker[T]) recipients(msg Message[T]) []chan<- Message[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var chans []chan<- Message[T]
	if len(msg.To) == 0 {
		for id, ch := range b.subscribers {
			if id != msg.From { // Don't send to self
				chans = append(chans, ch)
			}
		}
		return chans
	}
	for _, id := range msg.To {
		if ch, ok := b.subscribers[id]; ok {
			chans = append(chans, ch)
		}
	}
	return chans
}

// Publish sends msg to each recipient in turn, blocking until each one has
// accepted it or ctx is done. Subscribers must not close their channels while
// publishers are running.
func (b *SimpleBroker[T]) Publish(ctx context.Context, msg Message[T]) error {
	for _, ch := range b.recipients(msg) {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// TryPublish is the non-blocking form of Publish. It fails on the first
// recipient whose channel is full.
func (b *SimpleBroker[T]) TryPublish(msg Message[T]) error {
	for _, ch := range b.recipients(msg) {
		select {
		case ch <- msg:
		default:
			return ErrChannelFull
		}
	}
	return nil
}

// Subscribe registers id to receive messages
func (b *SimpleBroker[T]) Subscribe(id string, ch chan<- Message[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return goerr.New("already subscribed", goerr.V("id", id))
	}

	b.subscribers[id] = ch
	return nil
}

// Unsubscribe removes a subscription
func (b *SimpleBroker[T]) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return goerr.New("not subscribed", goerr.V("id", id))
	}

	delete(b.subscribers, id)
	return nil
}

func (b *SimpleBroker[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Message[T])
}
