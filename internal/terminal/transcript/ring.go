package transcript

// RingBuffer is a fixed-capacity FIFO of strings. Once full, each push
// evicts the oldest entry. Storage grows with pushes up to capacity.
type RingBuffer struct {
	items    []string
	head     int
	capacity int
}

// NewRingBuffer creates a ring holding at most capacity entries.
// A capacity of zero or less stores nothing.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &RingBuffer{capacity: capacity}
}

// Push appends item, evicting the oldest entry when full
func (r *RingBuffer) Push(item string) {
	if r.capacity == 0 {
		return
	}
	if len(r.items) < r.capacity {
		r.items = append(r.items, item)
		return
	}
	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
}

// Len returns the number of stored entries
func (r *RingBuffer) Len() int {
	return len(r.items)
}

// Cap returns the capacity
func (r *RingBuffer) Cap() int {
	return r.capacity
}

// Items returns the entries from oldest to newest
func (r *RingBuffer) Items() []string {
	out := make([]string, 0, len(r.items))
	out = append(out, r.items[r.head:]...)
	out = append(out, r.items[:r.head]...)
	return out
}
