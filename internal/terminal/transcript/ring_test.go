package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		push     []string
		want     []string
	}{
		{name: "empty", capacity: 3, push: nil, want: []string{}},
		{name: "under capacity", capacity: 3, push: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "exactly full", capacity: 3, push: []string{"a", "b", "c"}, want: []string{"a", "b", "c"}},
		{name: "wraps once", capacity: 3, push: []string{"a", "b", "c", "d"}, want: []string{"b", "c", "d"}},
		{name: "wraps many times", capacity: 2, push: []string{"a", "b", "c", "d", "e"}, want: []string{"d", "e"}},
		{name: "zero capacity", capacity: 0, push: []string{"a", "b"}, want: []string{}},
		{name: "negative capacity", capacity: -4, push: []string{"a"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRingBuffer(tt.capacity)
			for _, item := range tt.push {
				r.Push(item)
			}
			assert.Equal(t, tt.want, r.Items())
			assert.Equal(t, len(tt.want), r.Len())
		})
	}
}

func TestRingBufferLargeCapacityDoesNotPreallocate(t *testing.T) {
	r := NewRingBuffer(1 << 30)
	r.Push("only")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1<<30, r.Cap())
	assert.LessOrEqual(t, cap(r.items), 8)
}
