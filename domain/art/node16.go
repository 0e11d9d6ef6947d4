package art

const node16Capacity = 16

type node16[V any] struct {
	header
	numChildren int
	keys        [node16Capacity]uint8
	slots       [node16Capacity]slot[V]
	pool        *NodePool[V]
}

func (n *node16[V]) kind() string    { return "Node16" }
func (n *node16[V]) childCount() int { return n.numChildren }

// initFromNode4 merges a full node4 with one extra entry and recycles src.
func (n *node16[V]) initFromNode4(src *node4[V], b uint8, s slot[V]) {
	n.header = src.header
	pos, _ := sortedIndex(src.keys[:], b)
	copy(n.keys[:pos], src.keys[:pos])
	copy(n.slots[:pos], src.slots[:pos])
	n.keys[pos], n.slots[pos] = b, s
	copy(n.keys[pos+1:], src.keys[pos:])
	copy(n.slots[pos+1:], src.slots[pos:])
	n.numChildren = node4Capacity + 1
	src.pool.releaseNode4(src)
}

// initFromNode48 collects the remaining entries of src in key order and
// recycles it.
func (n *node16[V]) initFromNode48(src *node48[V]) {
	n.header = src.header
	i := 0
	for b := 0; b < 256; b++ {
		idx := src.indexes[b]
		if idx < 0 {
			continue
		}
		n.keys[i] = uint8(b)
		n.slots[i] = src.slots[idx]
		i++
	}
	n.numChildren = i
	src.pool.releaseNode48(src)
}

func (n *node16[V]) get(key uint64, level int) (V, bool) {
	if n.prefixMismatch(key, level) {
		var zero V
		return zero, false
	}
	return sortedGet(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], key)
}

func (n *node16[V]) put(key uint64, level int, value V) node[V] {
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
	if n.numChildren < node16Capacity {
		insertAt(n.keys[:], n.slots[:], n.numChildren, pos, b, s)
		n.numChildren++
		return nil
	}
	grown := n.pool.newNode48()
	grown.initFromNode16(n, b, s)
	return grown
}

func (n *node16[V]) remove(key uint64, level int) node[V] {
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
			}
		}
	}
	if n.numChildren == node4Capacity-1 {
		shrunk := n.pool.newNode4()
		shrunk.initFromNode16(n)
		return shrunk
	}
	return n
}

func (n *node16[V]) ceiling(key uint64, level int) (V, bool) {
	key, ok := n.ceilingStart(key, level)
	if !ok {
		var zero V
		return zero, false
	}
	return sortedCeiling(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], key)
}

func (n *node16[V]) floor(key uint64, level int) (V, bool) {
	key, ok := n.floorStart(key, level)
	if !ok {
		var zero V
		return zero, false
	}
	return sortedFloor(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], key)
}

func (n *node16[V]) forEach(fn func(int64, V), limit int) int {
	return sortedForEach(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], fn, limit)
}

func (n *node16[V]) forEachDesc(fn func(int64, V), limit int) int {
	return sortedForEachDesc(&n.header, n.keys[:n.numChildren], n.slots[:n.numChildren], fn, limit)
}

func (n *node16[V]) size(limit int) int {
	return sortedSize(&n.header, n.slots[:n.numChildren], limit)
}

func (n *node16[V]) validate(parentLevel int, pathKey uint64) error {
	if err := n.validateHeader(n.kind(), parentLevel, pathKey); err != nil {
		return err
	}
	return sortedValidate(n.kind(), &n.header, n.keys[:], n.slots[:], n.numChildren, node4Capacity)
}

func (n *node16[V]) eachChild(fn func(uint8, *slot[V])) {
	for i := 0; i < n.numChildren; i++ {
		fn(n.keys[i], &n.slots[i])
	}
}

func (n *node16[V]) release() {
	sortedRelease(&n.header, n.slots[:n.numChildren])
	n.pool.releaseNode16(n)
}
