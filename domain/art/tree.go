package art

import "math"

const rootLevel = 56

// Entry is one key/value pair as returned by Entries.
type Entry[V any] struct {
	Key   int64
	Value V
}

// Tree is an ordered map from 64-bit keys to V. Keys are ordered as
// unsigned integers. A Tree is owned by a single goroutine.
type Tree[V any] struct {
	root node[V]
	pool *NodePool[V]
}

// New returns an empty tree recycling nodes through pool. A nil pool gets a
// private one with default limits.
func New[V any](pool *NodePool[V]) *Tree[V] {
	if pool == nil {
		pool = NewNodePool[V](DefaultPoolConfig())
	}
	return &Tree[V]{pool: pool}
}

func (t *Tree[V]) Get(key int64) (V, bool) {
	if t.root == nil {
		var zero V
		return zero, false
	}
	return t.root.get(uint64(key), rootLevel)
}

// Put inserts or replaces the value stored under key.
func (t *Tree[V]) Put(key int64, value V) {
	if t.root == nil {
		t.root = t.pool.leaf(uint64(key), value)
		return
	}
	if resized := t.root.put(uint64(key), rootLevel, value); resized != nil {
		t.root = resized
	}
}

// Remove deletes key; removing an absent key is a no-op.
func (t *Tree[V]) Remove(key int64) {
	if t.root == nil {
		return
	}
	t.root = t.root.remove(uint64(key), rootLevel)
}

// Ceiling returns the value of the smallest key >= key.
func (t *Tree[V]) Ceiling(key int64) (V, bool) {
	if t.root == nil {
		var zero V
		return zero, false
	}
	return t.root.ceiling(uint64(key), rootLevel)
}

// Floor returns the value of the largest key <= key.
func (t *Tree[V]) Floor(key int64) (V, bool) {
	if t.root == nil {
		var zero V
		return zero, false
	}
	return t.root.floor(uint64(key), rootLevel)
}

// Higher returns the value of the smallest key strictly greater than key.
func (t *Tree[V]) Higher(key int64) (V, bool) {
	if uint64(key) == math.MaxUint64 {
		var zero V
		return zero, false
	}
	return t.Ceiling(int64(uint64(key) + 1))
}

// Lower returns the value of the largest key strictly less than key.
func (t *Tree[V]) Lower(key int64) (V, bool) {
	if key == 0 {
		var zero V
		return zero, false
	}
	return t.Floor(int64(uint64(key) - 1))
}

// ForEach visits up to limit entries in ascending key order and returns the
// number visited.
func (t *Tree[V]) ForEach(fn func(key int64, value V), limit int) int {
	if t.root == nil {
		return 0
	}
	return t.root.forEach(fn, limit)
}

func (t *Tree[V]) ForEachDesc(fn func(key int64, value V), limit int) int {
	if t.root == nil {
		return 0
	}
	return t.root.forEachDesc(fn, limit)
}

// Size counts entries, stopping at limit.
func (t *Tree[V]) Size(limit int) int {
	if t.root == nil || limit <= 0 {
		return 0
	}
	return t.root.size(limit)
}

func (t *Tree[V]) IsEmpty() bool {
	return t.root == nil
}

// Clear drops every entry and returns all nodes to the pool.
func (t *Tree[V]) Clear() {
	if t.root != nil {
		t.root.release()
		t.root = nil
	}
}

// Entries materialises the whole tree in ascending key order.
func (t *Tree[V]) Entries() []Entry[V] {
	var out []Entry[V]
	t.ForEach(func(k int64, v V) {
		out = append(out, Entry[V]{Key: k, Value: v})
	}, math.MaxInt)
	return out
}

// ValidateInternalState walks the whole tree and reports the first broken
// structural invariant.
func (t *Tree[V]) ValidateInternalState() error {
	if t.root == nil {
		return nil
	}
	return t.root.validate(64, 0)
}
