package art

import (
	"fmt"
	"math/bits"
)

// node256 addresses its children directly by key byte; present tracks
// which bytes are in use.
type node256[V any] struct {
	header
	numChildren int
	present     [4]uint64
	slots       [256]slot[V]
	pool        *NodePool[V]
}

func (n *node256[V]) kind() string    { return "Node256" }
func (n *node256[V]) childCount() int { return n.numChildren }

func (n *node256[V]) has(b uint8) bool {
	return n.present[b>>6]&(1<<(b&63)) != 0
}

func (n *node256[V]) set(b uint8, s slot[V]) {
	n.slots[b] = s
	n.present[b>>6] |= 1 << (b & 63)
	n.numChildren++
}

func (n *node256[V]) clear(b uint8) {
	n.slots[b] = slot[V]{}
	n.present[b>>6] &^= 1 << (b & 63)
	n.numChildren--
}

// nextFrom returns the first used byte >= from, or -1.
func (n *node256[V]) nextFrom(from int) int {
	for w := from >> 6; w < 4; w++ {
		word := n.present[w]
		if w == from>>6 {
			word &= allOnes << (from & 63)
		}
		if word != 0 {
			return w<<6 + bits.TrailingZeros64(word)
		}
	}
	return -1
}

// prevFrom returns the last used byte <= from, or -1.
func (n *node256[V]) prevFrom(from int) int {
	for w := from >> 6; w >= 0; w-- {
		word := n.present[w]
		if w == from>>6 {
			word &= allOnes >> (63 - from&63)
		}
		if word != 0 {
			return w<<6 + 63 - bits.LeadingZeros64(word)
		}
	}
	return -1
}

func (n *node256[V]) initFromNode48(src *node48[V], b uint8, s slot[V]) {
	n.header = src.header
	for k := 0; k < 256; k++ {
		if idx := src.indexes[k]; idx >= 0 {
			n.set(uint8(k), src.slots[idx])
		}
	}
	n.set(b, s)
	src.pool.releaseNode48(src)
}

func (n *node256[V]) get(key uint64, level int) (V, bool) {
	if n.prefixMismatch(key, level) {
		var zero V
		return zero, false
	}
	b := n.byteOf(key)
	if !n.has(b) {
		var zero V
		return zero, false
	}
	return n.slots[b].get(key, n.nodeLevel)
}

func (n *node256[V]) put(key uint64, level int, value V) node[V] {
	if level != n.nodeLevel {
		if branch := branchIfRequired(n.pool, key, value, node[V](n)); branch != nil {
			return branch
		}
	}
	b := n.byteOf(key)
	if n.has(b) {
		n.slots[b].put(key, n.nodeLevel, value)
		return nil
	}
	n.set(b, newSlot(n.pool, key, n.nodeLevel, value))
	return nil
}

func (n *node256[V]) remove(key uint64, level int) node[V] {
	if n.prefixMismatch(key, level) {
		return n
	}
	b := n.byteOf(key)
	if !n.has(b) {
		return n
	}
	if n.nodeLevel == 0 {
		n.clear(b)
	} else {
		child := n.slots[b].child
		resized := child.remove(key, n.nodeLevel-8)
		if resized != child {
			n.slots[b].child = resized
			if resized == nil {
				n.clear(b)
			}
		}
	}
	if n.numChildren == node256ShrinkAt {
		shrunk := n.pool.newNode48()
		shrunk.initFromNode256(n)
		return shrunk
	}
	return n
}

func (n *node256[V]) ceiling(key uint64, level int) (V, bool) {
	key, ok := n.ceilingStart(key, level)
	if !ok {
		var zero V
		return zero, false
	}
	b := int(n.byteOf(key))
	if n.has(uint8(b)) {
		if v, ok := n.slots[b].ceiling(key, n.nodeLevel); ok {
			return v, true
		}
	}
	if b < 255 {
		if next := n.nextFrom(b + 1); next >= 0 {
			return n.slots[next].ceiling(0, n.nodeLevel)
		}
	}
	var zero V
	return zero, false
}

func (n *node256[V]) floor(key uint64, level int) (V, bool) {
	key, ok := n.floorStart(key, level)
	if !ok {
		var zero V
		return zero, false
	}
	b := int(n.byteOf(key))
	if n.has(uint8(b)) {
		if v, ok := n.slots[b].floor(key, n.nodeLevel); ok {
			return v, true
		}
	}
	if b > 0 {
		if prev := n.prevFrom(b - 1); prev >= 0 {
			return n.slots[prev].floor(allOnes, n.nodeLevel)
		}
	}
	var zero V
	return zero, false
}

func (n *node256[V]) forEach(fn func(int64, V), limit int) int {
	left := limit
	for b := n.nextFrom(0); b >= 0 && left > 0; {
		if n.nodeLevel == 0 {
			fn(n.leafKey(uint8(b)), n.slots[b].value)
			left--
		} else {
			left -= n.slots[b].child.forEach(fn, left)
		}
		if b == 255 {
			break
		}
		b = n.nextFrom(b + 1)
	}
	return limit - left
}

func (n *node256[V]) forEachDesc(fn func(int64, V), limit int) int {
	left := limit
	for b := n.prevFrom(255); b >= 0 && left > 0; {
		if n.nodeLevel == 0 {
			fn(n.leafKey(uint8(b)), n.slots[b].value)
			left--
		} else {
			left -= n.slots[b].child.forEachDesc(fn, left)
		}
		if b == 0 {
			break
		}
		b = n.prevFrom(b - 1)
	}
	return limit - left
}

func (n *node256[V]) size(limit int) int {
	if n.nodeLevel == 0 {
		return min(n.numChildren, limit)
	}
	left := limit
	for b := n.nextFrom(0); b >= 0 && left > 0; {
		left -= n.slots[b].child.size(left)
		if b == 255 {
			break
		}
		b = n.nextFrom(b + 1)
	}
	return limit - left
}

func (n *node256[V]) validate(parentLevel int, pathKey uint64) error {
	if err := n.validateHeader(n.kind(), parentLevel, pathKey); err != nil {
		return err
	}
	if n.numChildren <= node256ShrinkAt || n.numChildren > 256 {
		return fmt.Errorf("%s: %d children outside [%d, 256]", n.kind(), n.numChildren, node256ShrinkAt+1)
	}
	count := 0
	for b := 0; b < 256; b++ {
		if !n.has(uint8(b)) {
			if n.slots[b].child != nil {
				return fmt.Errorf("%s: unused byte %02x holds a sub-node", n.kind(), b)
			}
			continue
		}
		count++
		if err := n.slots[b].validate(&n.header, uint8(b)); err != nil {
			return fmt.Errorf("%s/%02x: %w", n.kind(), b, err)
		}
	}
	if count != n.numChildren {
		return fmt.Errorf("%s: %d bytes present, expected %d", n.kind(), count, n.numChildren)
	}
	return nil
}

func (n *node256[V]) eachChild(fn func(uint8, *slot[V])) {
	for b := 0; b < 256; b++ {
		if n.has(uint8(b)) {
			fn(uint8(b), &n.slots[b])
		}
	}
}

func (n *node256[V]) release() {
	if n.nodeLevel != 0 {
		for b := 0; b < 256; b++ {
			if n.has(uint8(b)) {
				n.slots[b].child.release()
			}
		}
	}
	n.pool.releaseNode256(n)
}
