package memory

import "sync"

// DefaultCapacity is the short-term buffer size used when none is configured.
const DefaultCapacity = 10

// Message is one short-term entry.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ShortTermBuffer is a fixed-capacity FIFO of recent messages.
type ShortTermBuffer struct {
	mu       sync.Mutex
	items    []Message
	start    int
	size     int
	capacity int
}

// NewShortTermBuffer creates an empty buffer. Non-positive capacity uses DefaultCapacity.
func NewShortTermBuffer(capacity int) *ShortTermBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ShortTermBuffer{
		items:    make([]Message, capacity),
		capacity: capacity,
	}
}

// Add appends a message, evicting the oldest once the buffer is full.
func (b *ShortTermBuffer) Add(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < b.capacity {
		b.items[(b.start+b.size)%b.capacity] = msg
		b.size++
		return
	}
	b.items[b.start] = msg
	b.start = (b.start + 1) % b.capacity
}

// Messages returns a copy of the buffer, oldest first.
func (b *ShortTermBuffer) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Message, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.start+i)%b.capacity]
	}
	return out
}

// Len returns the number of buffered messages.
func (b *ShortTermBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the buffer capacity.
func (b *ShortTermBuffer) Capacity() int {
	return b.capacity
}
