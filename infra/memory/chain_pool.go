package memory

// ChainPool recycles pre-allocated chains (linked lists addressed by their
// head) between the engine goroutine and the consumers of its output.
// Get never blocks: an empty pool builds a fresh chain. Put never blocks: a
// full pool drops the chain.
type ChainPool[T any] struct {
	chains   chan *T
	newChain func() *T
}

// NewChainPool creates a pool holding at most maxSize chains and pre-fills
// it with initialSize of them. newChain builds one complete chain.
func NewChainPool[T any](maxSize, initialSize int, newChain func() *T) *ChainPool[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	if initialSize > maxSize {
		initialSize = maxSize
	}
	p := &ChainPool[T]{
		chains:   make(chan *T, maxSize),
		newChain: newChain,
	}
	for i := 0; i < initialSize; i++ {
		p.chains <- newChain()
	}
	return p
}

// Get returns a pooled chain or a freshly built one.
func (p *ChainPool[T]) Get() *T {
	select {
	case c := <-p.chains:
		return c
	default:
		return p.newChain()
	}
}

// Put offers a chain back to the pool; it reports whether it was kept.
func (p *ChainPool[T]) Put(head *T) bool {
	if head == nil {
		return false
	}
	select {
	case p.chains <- head:
		return true
	default:
		return false
	}
}

// Len returns the number of chains waiting in the pool.
func (p *ChainPool[T]) Len() int {
	return len(p.chains)
}
