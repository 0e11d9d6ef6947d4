package memory

// FreeList is a bounded LIFO of recycled objects owned by exactly one
// goroutine. It is not safe for concurrent use.
type FreeList[T any] struct {
	items []*T
	limit int
	ctor  func() *T

	allocated uint64
	reused    uint64
}

// NewFreeList creates a free list retaining at most limit objects.
func NewFreeList[T any](limit int, ctor func() *T) *FreeList[T] {
	if limit < 0 {
		limit = 0
	}
	return &FreeList[T]{
		items: make([]*T, 0, min(limit, 1024)),
		limit: limit,
		ctor:  ctor,
	}
}

// Get pops a recycled object or constructs a new one.
func (f *FreeList[T]) Get() *T {
	n := len(f.items)
	if n == 0 {
		f.allocated++
		return f.ctor()
	}
	v := f.items[n-1]
	f.items[n-1] = nil
	f.items = f.items[:n-1]
	f.reused++
	return v
}

// Put keeps v for reuse. The caller must have cleared it. Objects beyond the
// limit are left to the garbage collector.
func (f *FreeList[T]) Put(v *T) {
	if v == nil || len(f.items) >= f.limit {
		return
	}
	f.items = append(f.items, v)
}

// Len returns the number of objects currently held.
func (f *FreeList[T]) Len() int {
	return len(f.items)
}

// Allocated returns how many objects Get had to construct.
func (f *FreeList[T]) Allocated() uint64 { return f.allocated }

// Reused returns how many objects Get served from the list.
func (f *FreeList[T]) Reused() uint64 { return f.reused }
