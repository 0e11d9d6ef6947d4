package art

const node4Capacity = 4

// node4 holds up to four children in parallel arrays sorted by key byte.
type node4[V any] struct {
	header
	numChildren int
	keys        [node4Capacity]uint8
	slots       [node4Capacity]slot[V]
	pool        *NodePool[V]
}

func (n *node4[V]) kind() string    { return "Node4" }
func (n *node4[V]) childCount() int { return n.numChildren }

func (n *node4[V]) initFirstKey(key uint64, value V) {
	n.numChildren = 1
	n.keys[0] = uint8(key)
	n.slots[0] = slot[V]{value: value}
	n.nodeKey = key
	n.nodeLevel = 0
}

// initTwoKeys makes n the branch at level over two subtrees whose keys
// first differ in the byte at level.
func (n *node4[V]) initTwoKeys(key1 uint64, child1 node[V], key2 uint64, child2 node[V], level int) {
	n.numChildren = 2
	b1, b2 := uint8(key1>>level), uint8(key2>>level)
	if b1 < b2 {
		n.keys[0], n.slots[0] = b1, slot[V]{child: child1}
		n.keys[1], n.slots[1] = b2, slot[V]{child: child2}
	} else {
		n.keys[0], n.slots[0] = b2, slot[V]{child: child2}
		n.keys[1], n.slots[1] = b1, slot[V]{child: child1}
	}
	n.nodeKey = key1
	n.nodeLevel = level
}

// initFromNode16 takes over the (three) remaining entries of src and
// recycles it.
func (n *node4[V]) initFromNode16(src *node16[V]) {
	n.header = src.header
	n.numChildren = src.numChildren
	copy(n.keys[:], src.keys[:src.numChildren])
	copy(n.slots[:], src.slots[:src.numChildren])
	src.pool.releaseNode16(src)
}

func (n *node4[V]) get(key uint64, level int) (V, bool) {
	if n.prefixMismatch(key, level) {
		var zero V
		return zero, false
	}
	return sortedGet(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], key)
}

func (n *node4[V]) put(key uint64, level int, value V) node[V] {
	if level != n.nodeLevel {
		if branch := branchIfRequired(n.pool, key, value, node[V](n)); branch != nil {
			return branch
		}
	}
	b := n.byteOf(key)
	pos, found := sortedIndex(n.keys[:n.numChildren], b)
	if found {
		n.slots[pos].put(key, n.nodeLevel, value)
		return nil
	}
	s := newSlot(n.pool, key, n.nodeLevel, value)
	if n.numChildren < node4Capacity {
		insertAt(n.keys[:], n.slots[:], n.numChildren, pos, b, s)
		n.numChildren++
		return nil
	}
	grown := n.pool.newNode16()
	grown.initFromNode4(n, b, s)
	return grown
}

func (n *node4[V]) remove(key uint64, level int) node[V] {
	if n.prefixMismatch(key, level) {
		return n
	}
	pos, found := sortedIndex(n.keys[:n.numChildren], n.byteOf(key))
	if !found {
		return n
	}
	if n.nodeLevel == 0 {
		removeAt(n.keys[:], n.slots[:], n.numChildren, pos)
		n.numChildren--
	} else {
		child := n.slots[pos].child
		resized := child.remove(key, n.nodeLevel-8)
		if resized != child {
			n.slots[pos].child = resized
			if resized == nil {
				removeAt(n.keys[:], n.slots[:], n.numChildren, pos)
				n.numChildren--
				if n.numChildren == 1 {
					// the remaining child keeps its own compacted path and
					// takes this node's place in the parent
					only := n.slots[0].child
					n.pool.releaseNode4(n)
					return only
				}
			}
		}
	}
	if n.numChildren == 0 {
		n.pool.releaseNode4(n)
		return nil
	}
	return n
}

func (n *node4[V]) ceiling(key uint64, level int) (V, bool) {
	key, ok := n.ceilingStart(key, level)
	if !ok {
		var zero V
		return zero, false
	}
	return sortedCeiling(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], key)
}

func (n *node4[V]) floor(key uint64, level int) (V, bool) {
	key, ok := n.floorStart(key, level)
	if !ok {
		var zero V
		return zero, false
	}
	return sortedFloor(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], key)
}

func (n *node4[V]) forEach(fn func(int64, V), limit int) int {
	return sortedForEach(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], fn, limit)
}

func (n *node4[V]) forEachDesc(fn func(int64, V), limit int) int {
	return sortedForEachDesc(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], fn, limit)
}

func (n *node4[V]) size(limit int) int {
	return sortedSize(&n.header, n.slots[:n.numChildren], limit)
}

func (n *node4[V]) validate(parentLevel int, pathKey uint64) error {
	if err := n.validateHeader(n.kind(), parentLevel, pathKey); err != nil {
		return err
	}
	minChildren := 2
	if n.nodeLevel == 0 {
		minChildren = 1
	}
	return sortedValidate(n.kind(), &n.header, n.keys[:], n.slots[:], n.numChildren, minChildren)
}

func (n *node4[V]) eachChild(fn func(uint8, *slot[V])) {
	for i := 0; i < n.numChildren; i++ {
		fn(n.keys[i], &n.slots[i])
	}
}

func (n *node4[V]) release() {
	sortedRelease(&n.header, n.slots[:n.numChildren])
	n.pool.releaseNode4(n)
}
