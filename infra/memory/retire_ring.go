package memory

import "sync/atomic"

// RetireRing is a lock-free SPSC ring buffer. The engine goroutine is the
// only producer and the outbox writer the only consumer.
type RetireRing[T any] struct {
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte
	buf   []*T
	mask  uint64
}

func NewRetireRing[T any](size uint64) *RetireRing[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("RetireRing size must be power of two")
	}
	return &RetireRing[T]{
		buf:  make([]*T, size),
		mask: size - 1,
	}
}

// Enqueue publishes v; it returns false when the ring is full.
func (r *RetireRing[T]) Enqueue(v *T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// Dequeue returns the oldest element or nil when the ring is empty.
func (r *RetireRing[T]) Dequeue() *T {
	t := r.tail.Load()
	h := r.head.Load()
	if t == h {
		return nil
	}
	v := r.buf[t&r.mask]
	r.buf[t&r.mask] = nil
	r.tail.Store(t + 1)
	return v
}

func (r *RetireRing[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

func (r *RetireRing[T]) Cap() int {
	return len(r.buf)
}
