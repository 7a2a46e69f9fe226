package audio

import "sync/atomic"

// DefaultCaptureCapacity holds a little over 21 seconds of 48 kHz stereo.
const DefaultCaptureCapacity = 1 << 20

// CaptureBuffer is a fixed-capacity single-producer/single-consumer ring of
// samples. Push never blocks or allocates; samples that do not fit are
// dropped and counted.
type CaptureBuffer struct {
	data []float32
	// head and tail are monotonic sample counters; head is owned by the
	// consumer and tail by the producer.
	head    atomic.Uint64
	tail    atomic.Uint64
	dropped atomic.Uint64
}

// NewCaptureBuffer allocates a buffer holding capacity samples. A
// non-positive capacity selects DefaultCaptureCapacity.
func NewCaptureBuffer(capacity int) *CaptureBuffer {
	if capacity <= 0 {
		capacity = DefaultCaptureCapacity
	}
	return &CaptureBuffer{data: make([]float32, capacity)}
}

// Push stores as many samples as fit and returns that count. The remainder
// is added to the dropped counter.
func (b *CaptureBuffer) Push(samples []float32) int {
	capacity := uint64(len(b.data))
	tail := b.tail.Load()
	free := capacity - (tail - b.head.Load())

	n := uint64(len(samples))
	if n > free {
		b.dropped.Add(n - free)
		n = free
	}
	if n == 0 {
		return 0
	}

	start := tail % capacity
	first := copy(b.data[start:], samples[:n])
	copy(b.data, samples[first:n])

	b.tail.Store(tail + n)
	return int(n)
}

// Drain removes and returns all unread samples in order.
func (b *CaptureBuffer) Drain() []float32 {
	capacity := uint64(len(b.data))
	head := b.head.Load()
	tail := b.tail.Load()

	out := make([]float32, tail-head)
	if len(out) > 0 {
		start := head % capacity
		first := copy(out, b.data[start:])
		copy(out[first:], b.data)
	}

	b.head.Store(tail)
	return out
}

// Len is the number of unread samples.
func (b *CaptureBuffer) Len() int {
	return int(b.tail.Load() - b.head.Load())
}

func (b *CaptureBuffer) Cap() int { return len(b.data) }

// Dropped is the total number of samples rejected because the buffer was full.
func (b *CaptureBuffer) Dropped() uint64 { return b.dropped.Load() }
