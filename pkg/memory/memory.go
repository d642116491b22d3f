package memory

import "sync"

// Buffer keeps the most recent capacity items, oldest first.
type Buffer[T any] struct {
	items    []T
	capacity int
	mu       sync.RWMutex
}

func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// All returns a copy of the buffered items
func (b *Buffer[T]) All() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	items := make([]T, len(b.items))
	copy(items, b.items)
	return items
}

// Store appends item, evicting the oldest one when full.
func (b *Buffer[T]) Store(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == b.capacity {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
	}
	b.items = append(b.items, item)
}

func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

func (b *Buffer[T]) Capacity() int {
	return b.capacity
}
