package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id   int
	next *item
}

func newChain(n int) func() *item {
	return func() *item {
		var head *item
		for i := 0; i < n; i++ {
			head = &item{id: i, next: head}
		}
		return head
	}
}

func TestFreeListReuse(t *testing.T) {
	fl := NewFreeList(2, func() *item { return &item{} })

	a := fl.Get()
	b := fl.Get()
	c := fl.Get()
	assert.Equal(t, uint64(3), fl.Allocated())

	fl.Put(a)
	fl.Put(b)
	fl.Put(c) // over the limit, dropped
	assert.Equal(t, 2, fl.Len())

	assert.Same(t, b, fl.Get())
	assert.Same(t, a, fl.Get())
	assert.Equal(t, uint64(2), fl.Reused())
	assert.Equal(t, 0, fl.Len())
}

func TestFreeListIgnoresNil(t *testing.T) {
	fl := NewFreeList(4, func() *item { return &item{} })
	fl.Put(nil)
	assert.Equal(t, 0, fl.Len())
}

func TestChainPoolFallbacks(t *testing.T) {
	p := NewChainPool(2, 1, newChain(3))
	require.Equal(t, 1, p.Len())

	first := p.Get()
	require.NotNil(t, first)
	// empty pool allocates instead of blocking
	second := p.Get()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)

	assert.True(t, p.Put(first))
	assert.True(t, p.Put(second))
	// full pool drops instead of blocking
	assert.False(t, p.Put(newChain(1)()))
	assert.False(t, p.Put(nil))
	assert.Equal(t, 2, p.Len())
}

func TestChainPoolConcurrentUse(t *testing.T) {
	p := NewChainPool(8, 4, newChain(4))
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c := p.Get()
				p.Put(c)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, p.Len(), 8)
}

func TestRetireRingBasic(t *testing.T) {
	r := NewRetireRing[item](4)
	o1 := &item{id: 1}
	o2 := &item{id: 2}

	require.True(t, r.Enqueue(o1))
	require.True(t, r.Enqueue(o2))
	assert.Equal(t, 2, r.Len())
	assert.Same(t, o1, r.Dequeue())
	assert.Same(t, o2, r.Dequeue())
	assert.Nil(t, r.Dequeue())
}

func TestRetireRingFull(t *testing.T) {
	r := NewRetireRing[item](2)
	require.True(t, r.Enqueue(&item{}))
	require.True(t, r.Enqueue(&item{}))
	assert.False(t, r.Enqueue(&item{}))
	assert.Equal(t, 2, r.Cap())
}

func TestRetireRingRejectsBadSize(t *testing.T) {
	assert.Panics(t, func() { NewRetireRing[item](3) })
}

func TestRetireRingSPSC(t *testing.T) {
	const n = 10000
	r := NewRetireRing[item](64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		want := 0
		for want < n {
			v := r.Dequeue()
			if v == nil {
				continue
			}
			if v.id != want {
				t.Errorf("out of order: got %d want %d", v.id, want)
				return
			}
			want++
		}
	}()
	for i := 0; i < n; i++ {
		v := &item{id: i}
		for !r.Enqueue(v) {
		}
	}
	<-done
}

func TestPoolRoundTrip(t *testing.T) {
	p := NewPool(func() *[]byte {
		b := make([]byte, 0, 64)
		return &b
	})
	b := p.Get()
	*b = append((*b)[:0], 1, 2, 3)
	p.Put(b)
	assert.NotNil(t, p.Get())
}
