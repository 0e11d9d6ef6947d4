package art

import "matchbook/infra/memory"

// PoolConfig bounds how many free nodes of each shape a NodePool retains.
type PoolConfig struct {
	Node4   int `mapstructure:"node4"`
	Node16  int `mapstructure:"node16"`
	Node48  int `mapstructure:"node48"`
	Node256 int `mapstructure:"node256"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Node4:   1024,
		Node16:  512,
		Node48:  128,
		Node256: 64,
	}
}

// NodePool recycles the four node shapes of one or more trees that share an
// owner goroutine.
type NodePool[V any] struct {
	n4   *memory.FreeList[node4[V]]
	n16  *memory.FreeList[node16[V]]
	n48  *memory.FreeList[node48[V]]
	n256 *memory.FreeList[node256[V]]
}

// PoolStats reports the number of free nodes held per shape.
type PoolStats struct {
	Node4, Node16, Node48, Node256 int
}

func NewNodePool[V any](cfg PoolConfig) *NodePool[V] {
	return &NodePool[V]{
		n4:   memory.NewFreeList(cfg.Node4, func() *node4[V] { return new(node4[V]) }),
		n16:  memory.NewFreeList(cfg.Node16, func() *node16[V] { return new(node16[V]) }),
		n48:  memory.NewFreeList(cfg.Node48, func() *node48[V] { return new(node48[V]) }),
		n256: memory.NewFreeList(cfg.Node256, func() *node256[V] { return new(node256[V]) }),
	}
}

func (p *NodePool[V]) Stats() PoolStats {
	return PoolStats{
		Node4:   p.n4.Len(),
		Node16:  p.n16.Len(),
		Node48:  p.n48.Len(),
		Node256: p.n256.Len(),
	}
}

func (p *NodePool[V]) newNode4() *node4[V] {
	n := p.n4.Get()
	n.pool = p
	return n
}

func (p *NodePool[V]) newNode16() *node16[V] {
	n := p.n16.Get()
	n.pool = p
	return n
}

func (p *NodePool[V]) newNode48() *node48[V] {
	n := p.n48.Get()
	n.pool = p
	for i := range n.indexes {
		n.indexes[i] = -1
	}
	return n
}

func (p *NodePool[V]) newNode256() *node256[V] {
	n := p.n256.Get()
	n.pool = p
	return n
}

// leaf returns a level-0 node4 holding exactly one key.
func (p *NodePool[V]) leaf(key uint64, value V) *node4[V] {
	n := p.newNode4()
	n.initFirstKey(key, value)
	return n
}

func (p *NodePool[V]) releaseNode4(n *node4[V]) {
	*n = node4[V]{}
	p.n4.Put(n)
}

func (p *NodePool[V]) releaseNode16(n *node16[V]) {
	*n = node16[V]{}
	p.n16.Put(n)
}

func (p *NodePool[V]) releaseNode48(n *node48[V]) {
	*n = node48[V]{}
	p.n48.Put(n)
}

func (p *NodePool[V]) releaseNode256(n *node256[V]) {
	*n = node256[V]{}
	p.n256.Put(n)
}
