package art

import (
	"fmt"
	"math/bits"
)

const (
	node48Capacity  = 48
	node48ShrinkAt  = 12
	node256ShrinkAt = 37
)

// node48 maps each key byte to one of 48 slots through a 256-entry index;
// freeMask marks occupied slots.
type node48[V any] struct {
	header
	numChildren int
	indexes     [256]int8
	slots       [node48Capacity]slot[V]
	freeMask    uint64
	pool        *NodePool[V]
}

func (n *node48[V]) kind() string    { return "Node48" }
func (n *node48[V]) childCount() int { return n.numChildren }

func (n *node48[V]) place(b uint8, s slot[V]) {
	idx := bits.TrailingZeros64(^n.freeMask)
	n.slots[idx] = s
	n.indexes[b] = int8(idx)
	n.freeMask |= 1 << idx
	n.numChildren++
}

func (n *node48[V]) drop(b uint8) {
	idx := n.indexes[b]
	n.slots[idx] = slot[V]{}
	n.indexes[b] = -1
	n.freeMask &^= 1 << idx
	n.numChildren--
}

// initFromNode16 takes the sixteen entries of a full node16 plus one more
// and recycles src.
func (n *node48[V]) initFromNode16(src *node16[V], b uint8, s slot[V]) {
	n.header = src.header
	for i := 0; i < src.numChildren; i++ {
		n.place(src.keys[i], src.slots[i])
	}
	n.place(b, s)
	src.pool.releaseNode16(src)
}

func (n *node48[V]) initFromNode256(src *node256[V]) {
	n.header = src.header
	for b := 0; b < 256; b++ {
		if src.has(uint8(b)) {
			n.place(uint8(b), src.slots[b])
		}
	}
	src.pool.releaseNode256(src)
}

func (n *node48[V]) get(key uint64, level int) (V, bool) {
	if n.prefixMismatch(key, level) {
		var zero V
		return zero, false
	}
	idx := n.indexes[n.byteOf(key)]
	if idx < 0 {
		var zero V
		return zero, false
	}
	return n.slots[idx].get(key, n.nodeLevel)
}

func (n *node48[V]) put(key uint64, level int, value V) node[V] {
	if level != n.nodeLevel {
		if branch := branchIfRequired(n.pool, key, value, node[V](n)); branch != nil {
			return branch
		}
	}
	b := n.byteOf(key)
	if idx := n.indexes[b]; idx >= 0 {
		n.slots[idx].put(key, n.nodeLevel, value)
		return nil
	}
	s := newSlot(n.pool, key, n.nodeLevel, value)
	if n.numChildren < node48Capacity {
		n.place(b, s)
		return nil
	}
	grown := n.pool.newNode256()
	grown.initFromNode48(n, b, s)
	return grown
}

func (n *node48[V]) remove(key uint64, level int) node[V] {
	if n.prefixMismatch(key, level) {
		return n
	}
	b := n.byteOf(key)
	idx := n.indexes[b]
	if idx < 0 {
		return n
	}
	if n.nodeLevel == 0 {
		n.drop(b)
	} else {
		child := n.slots[idx].child
		resized := child.remove(key, n.nodeLevel-8)
		if resized != child {
			n.slots[idx].child = resized
			if resized == nil {
				n.drop(b)
			}
		}
	}
	if n.numChildren == node48ShrinkAt {
		shrunk := n.pool.newNode16()
		shrunk.initFromNode48(n)
		return shrunk
	}
	return n
}

func (n *node48[V]) ceiling(key uint64, level int) (V, bool) {
	key, ok := n.ceilingStart(key, level)
	if !ok {
		var zero V
		return zero, false
	}
	b := int(n.byteOf(key))
	if idx := n.indexes[b]; idx >= 0 {
		if v, ok := n.slots[idx].ceiling(key, n.nodeLevel); ok {
			return v, true
		}
	}
	for b++; b < 256; b++ {
		if idx := n.indexes[b]; idx >= 0 {
			return n.slots[idx].ceiling(0, n.nodeLevel)
		}
	}
	var zero V
	return zero, false
}

func (n *node48[V]) floor(key uint64, level int) (V, bool) {
	key, ok := n.floorStart(key, level)
	if !ok {
		var zero V
		return zero, false
	}
	b := int(n.byteOf(key))
	if idx := n.indexes[b]; idx >= 0 {
		if v, ok := n.slots[idx].floor(key, n.nodeLevel); ok {
			return v, true
		}
	}
	for b--; b >= 0; b-- {
		if idx := n.indexes[b]; idx >= 0 {
			return n.slots[idx].floor(allOnes, n.nodeLevel)
		}
	}
	var zero V
	return zero, false
}

func (n *node48[V]) forEach(fn func(int64, V), limit int) int {
	left := limit
	for b := 0; b < 256 && left > 0; b++ {
		idx := n.indexes[b]
		if idx < 0 {
			continue
		}
		if n.nodeLevel == 0 {
			fn(n.leafKey(uint8(b)), n.slots[idx].value)
			left--
		} else {
			left -= n.slots[idx].child.forEach(fn, left)
		}
	}
	return limit - left
}

func (n *node48[V]) forEachDesc(fn func(int64, V), limit int) int {
	left := limit
	for b := 255; b >= 0 && left > 0; b-- {
		idx := n.indexes[b]
		if idx < 0 {
			continue
		}
		if n.nodeLevel == 0 {
			fn(n.leafKey(uint8(b)), n.slots[idx].value)
			left--
		} else {
			left -= n.slots[idx].child.forEachDesc(fn, left)
		}
	}
	return limit - left
}

func (n *node48[V]) size(limit int) int {
	if n.nodeLevel == 0 {
		return min(n.numChildren, limit)
	}
	left := limit
	for b := 0; b < 256 && left > 0; b++ {
		if idx := n.indexes[b]; idx >= 0 {
			left -= n.slots[idx].child.size(left)
		}
	}
	return limit - left
}

func (n *node48[V]) validate(parentLevel int, pathKey uint64) error {
	if err := n.validateHeader(n.kind(), parentLevel, pathKey); err != nil {
		return err
	}
	if n.numChildren <= node48ShrinkAt || n.numChildren > node48Capacity {
		return fmt.Errorf("%s: %d children outside [%d, %d]", n.kind(), n.numChildren, node48ShrinkAt+1, node48Capacity)
	}
	if bits.OnesCount64(n.freeMask) != n.numChildren {
		return fmt.Errorf("%s: free mask %016x disagrees with %d children", n.kind(), n.freeMask, n.numChildren)
	}
	var seen uint64
	found := 0
	for b := 0; b < 256; b++ {
		idx := n.indexes[b]
		if idx < 0 {
			continue
		}
		if int(idx) >= node48Capacity || n.freeMask&(1<<idx) == 0 {
			return fmt.Errorf("%s: byte %02x points at unused slot %d", n.kind(), b, idx)
		}
		if seen&(1<<idx) != 0 {
			return fmt.Errorf("%s: slot %d referenced twice", n.kind(), idx)
		}
		seen |= 1 << idx
		found++
		if err := n.slots[idx].validate(&n.header, uint8(b)); err != nil {
			return fmt.Errorf("%s/%02x: %w", n.kind(), b, err)
		}
	}
	if found != n.numChildren {
		return fmt.Errorf("%s: index holds %d entries, expected %d", n.kind(), found, n.numChildren)
	}
	for i := 0; i < node48Capacity; i++ {
		if n.freeMask&(1<<i) == 0 && n.slots[i].child != nil {
			return fmt.Errorf("%s: free slot %d holds a sub-node", n.kind(), i)
		}
	}
	return nil
}

func (n *node48[V]) eachChild(fn func(uint8, *slot[V])) {
	for b := 0; b < 256; b++ {
		if idx := n.indexes[b]; idx >= 0 {
			fn(uint8(b), &n.slots[idx])
		}
	}
}

func (n *node48[V]) release() {
	if n.nodeLevel != 0 {
		for b := 0; b < 256; b++ {
			if idx := n.indexes[b]; idx >= 0 {
				n.slots[idx].child.release()
			}
		}
	}
	n.pool.releaseNode48(n)
}
