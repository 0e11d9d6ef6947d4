package art

import (
	"fmt"
	"math"
	"math/bits"
)

// node is the contract shared by the four node shapes. key is the full
// 64-bit key and level is the bit offset the caller expects this node to
// branch on; a node sitting below a compacted path has a lower nodeLevel
// than the level it is entered with.
//
// put returns a node that must replace the callee in its parent (growth or
// a new branch) or nil. remove returns the callee, its replacement, or nil
// once the node is empty.
type node[V any] interface {
	get(key uint64, level int) (V, bool)
	put(key uint64, level int, value V) node[V]
	remove(key uint64, level int) node[V]
	ceiling(key uint64, level int) (V, bool)
	floor(key uint64, level int) (V, bool)
	forEach(fn func(int64, V), limit int) int
	forEachDesc(fn func(int64, V), limit int) int
	size(limit int) int
	validate(parentLevel int, pathKey uint64) error
	eachChild(fn func(b uint8, s *slot[V]))
	release()
	hdr() *header
	kind() string
	childCount() int
}

const allOnes uint64 = math.MaxUint64

// header carries the compacted path of a node: nodeKey is the key observed
// when the node was created, only its bits above nodeLevel+8 are the shared
// prefix; nodeLevel is the bit offset this node branches on.
type header struct {
	nodeKey   uint64
	nodeLevel int
}

func (h *header) hdr() *header { return h }

func (h *header) byteOf(key uint64) uint8 {
	return uint8(key >> h.nodeLevel)
}

// prefixMask selects the bits above the byte a node at level branches on.
func prefixMask(level int) uint64 {
	if level >= 56 {
		return 0
	}
	return allOnes << (level + 8)
}

func (h *header) prefixMismatch(key uint64, level int) bool {
	return level != h.nodeLevel && (key^h.nodeKey)&prefixMask(h.nodeLevel) != 0
}

// ceilingStart adapts a ceiling query entering the node from level. It
// returns false when every key below this node is smaller than key, and
// resets the query to 0 when every key below it is greater.
func (h *header) ceilingStart(key uint64, level int) (uint64, bool) {
	if level == h.nodeLevel {
		return key, true
	}
	mask := prefixMask(h.nodeLevel)
	nodePrefix, keyPrefix := h.nodeKey&mask, key&mask
	if nodePrefix < keyPrefix {
		return 0, false
	}
	if nodePrefix != keyPrefix {
		return 0, true
	}
	return key, true
}

// floorStart is the mirror of ceilingStart.
func (h *header) floorStart(key uint64, level int) (uint64, bool) {
	if level == h.nodeLevel {
		return key, true
	}
	mask := prefixMask(h.nodeLevel)
	nodePrefix, keyPrefix := h.nodeKey&mask, key&mask
	if nodePrefix > keyPrefix {
		return 0, false
	}
	if nodePrefix != keyPrefix {
		return allOnes, true
	}
	return key, true
}

// leafKey rebuilds a full key from a leaf node's prefix and a slot byte.
func (h *header) leafKey(b uint8) int64 {
	return int64(h.nodeKey&^0xFF | uint64(b))
}

// childPath is the path a child stored under byte b must agree with.
func (h *header) childPath(b uint8) uint64 {
	return h.nodeKey&^(0xFF<<h.nodeLevel) | uint64(b)<<h.nodeLevel
}

func (h *header) validateHeader(kind string, parentLevel int, pathKey uint64) error {
	if h.nodeLevel < 0 || h.nodeLevel > rootLevel || h.nodeLevel%8 != 0 {
		return fmt.Errorf("%s: invalid level %d", kind, h.nodeLevel)
	}
	if h.nodeLevel >= parentLevel {
		return fmt.Errorf("%s: level %d is not below parent level %d", kind, h.nodeLevel, parentLevel)
	}
	if (h.nodeKey^pathKey)&(allOnes<<parentLevel) != 0 {
		return fmt.Errorf("%s: key %016x disagrees with parent path %016x above level %d",
			kind, h.nodeKey, pathKey, parentLevel)
	}
	return nil
}

// slot is one child position: a value at level 0, a sub-node above it.
type slot[V any] struct {
	child node[V]
	value V
}

func (s *slot[V]) get(key uint64, level int) (V, bool) {
	if level == 0 {
		return s.value, true
	}
	return s.child.get(key, level-8)
}

func (s *slot[V]) put(key uint64, level int, value V) {
	if level == 0 {
		s.value = value
		return
	}
	if resized := s.child.put(key, level-8, value); resized != nil {
		s.child = resized
	}
}

func (s *slot[V]) ceiling(key uint64, level int) (V, bool) {
	if level == 0 {
		return s.value, true
	}
	return s.child.ceiling(key, level-8)
}

func (s *slot[V]) floor(key uint64, level int) (V, bool) {
	if level == 0 {
		return s.value, true
	}
	return s.child.floor(key, level-8)
}

func (s *slot[V]) validate(h *header, b uint8) error {
	if h.nodeLevel == 0 {
		if s.child != nil {
			return fmt.Errorf("leaf slot %02x holds a sub-node", b)
		}
		return nil
	}
	if s.child == nil {
		return fmt.Errorf("level %d slot %02x has no sub-node", h.nodeLevel, b)
	}
	return s.child.validate(h.nodeLevel, h.childPath(b))
}

// newSlot wraps value for insertion into a node at level: directly on a
// leaf, inside a fresh single-key leaf node otherwise.
func newSlot[V any](p *NodePool[V], key uint64, level int, value V) slot[V] {
	if level == 0 {
		return slot[V]{value: value}
	}
	return slot[V]{child: p.leaf(key, value)}
}

// branchIfRequired splits a compacted path when key leaves it above the
// caller's level. It returns the node that replaces caller in its parent, or
// nil when key belongs below caller.
func branchIfRequired[V any](p *NodePool[V], key uint64, value V, caller node[V]) node[V] {
	h := caller.hdr()
	keyDiff := key ^ h.nodeKey
	if keyDiff&(allOnes<<h.nodeLevel) == 0 {
		return nil
	}
	newLevel := (63 - bits.LeadingZeros64(keyDiff)) & 0xF8
	if newLevel == h.nodeLevel {
		return nil
	}
	sub := p.leaf(key, value)
	branch := p.newNode4()
	branch.initTwoKeys(h.nodeKey, caller, key, sub, newLevel)
	return branch
}

// ---- sorted nodes (node4, node16) ----

func sortedIndex(keys []uint8, b uint8) (int, bool) {
	for i, k := range keys {
		if k == b {
			return i, true
		}
		if b < k {
			return i, false
		}
	}
	return len(keys), false
}

// insertAt shifts keys[pos:n] right by one; the arrays must have room.
func insertAt[V any](keys []uint8, slots []slot[V], n, pos int, b uint8, s slot[V]) {
	copy(keys[pos+1:n+1], keys[pos:n])
	copy(slots[pos+1:n+1], slots[pos:n])
	keys[pos] = b
	slots[pos] = s
}

func removeAt[V any](keys []uint8, slots []slot[V], n, pos int) {
	copy(keys[pos:n-1], keys[pos+1:n])
	copy(slots[pos:n-1], slots[pos+1:n])
	keys[n-1] = 0
	slots[n-1] = slot[V]{}
}

func sortedGet[V any](h *header, keys []uint8, slots []slot[V], key uint64) (V, bool) {
	if pos, ok := sortedIndex(keys, h.byteOf(key)); ok {
		return slots[pos].get(key, h.nodeLevel)
	}
	var zero V
	return zero, false
}

func sortedCeiling[V any](h *header, keys []uint8, slots []slot[V], key uint64) (V, bool) {
	b := h.byteOf(key)
	for i, k := range keys {
		if k == b {
			if v, ok := slots[i].ceiling(key, h.nodeLevel); ok {
				return v, true
			}
		} else if k > b {
			return slots[i].ceiling(0, h.nodeLevel)
		}
	}
	var zero V
	return zero, false
}

func sortedFloor[V any](h *header, keys []uint8, slots []slot[V], key uint64) (V, bool) {
	b := h.byteOf(key)
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		if k == b {
			if v, ok := slots[i].floor(key, h.nodeLevel); ok {
				return v, true
			}
		} else if k < b {
			return slots[i].floor(allOnes, h.nodeLevel)
		}
	}
	var zero V
	return zero, false
}

func sortedForEach[V any](h *header, keys []uint8, slots []slot[V], fn func(int64, V), limit int) int {
	if limit <= 0 {
		return 0
	}
	if h.nodeLevel == 0 {
		n := min(len(keys), limit)
		for i := 0; i < n; i++ {
			fn(h.leafKey(keys[i]), slots[i].value)
		}
		return n
	}
	left := limit
	for i := 0; i < len(keys) && left > 0; i++ {
		left -= slots[i].child.forEach(fn, left)
	}
	return limit - left
}

func sortedForEachDesc[V any](h *header, keys []uint8, slots []slot[V], fn func(int64, V), limit int) int {
	if limit <= 0 {
		return 0
	}
	if h.nodeLevel == 0 {
		n := 0
		for i := len(keys) - 1; i >= 0 && n < limit; i-- {
			fn(h.leafKey(keys[i]), slots[i].value)
			n++
		}
		return n
	}
	left := limit
	for i := len(keys) - 1; i >= 0 && left > 0; i-- {
		left -= slots[i].child.forEachDesc(fn, left)
	}
	return limit - left
}

func sortedSize[V any](h *header, slots []slot[V], limit int) int {
	if h.nodeLevel == 0 {
		return min(len(slots), limit)
	}
	left := limit
	for i := 0; i < len(slots) && left > 0; i++ {
		left -= slots[i].child.size(left)
	}
	return limit - left
}

func sortedValidate[V any](kind string, h *header, keys []uint8, slots []slot[V], n, minChildren int) error {
	if n < minChildren || n > len(keys) {
		return fmt.Errorf("%s: %d children outside [%d, %d]", kind, n, minChildren, len(keys))
	}
	for i := 1; i < n; i++ {
		if keys[i-1] >= keys[i] {
			return fmt.Errorf("%s: keys not strictly ascending at %d (%02x, %02x)", kind, i, keys[i-1], keys[i])
		}
	}
	for i := n; i < len(keys); i++ {
		if keys[i] != 0 || slots[i].child != nil {
			return fmt.Errorf("%s: dangling slot %d", kind, i)
		}
	}
	for i := 0; i < n; i++ {
		if err := slots[i].validate(h, keys[i]); err != nil {
			return fmt.Errorf("%s/%02x: %w", kind, keys[i], err)
		}
	}
	return nil
}

func sortedRelease[V any](h *header, slots []slot[V]) {
	if h.nodeLevel == 0 {
		return
	}
	for i := range slots {
		slots[i].child.release()
	}
}
