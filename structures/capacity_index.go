package structures

// Capacitied is anything that can be stored in a CapacityIndex, keyed by its
// current available capacity.
type Capacitied interface {
	NodeID() int
	AvailableCapacityValue() float64
}

type capAVLNode struct {
	key         float64
	value       Capacitied
	left, right *capAVLNode
	height      int
}

// CapacityIndex is an AVL tree keyed by available capacity, giving an
// O(log n) ordered view of nodes by free headroom. Duplicate keys are
// permitted (ties break arbitrarily); in-order traversal yields all of them.
type CapacityIndex struct {
	root *capAVLNode
	size int
}

// NewCapacityIndex returns an empty index.
func NewCapacityIndex() *CapacityIndex {
	return &CapacityIndex{}
}

// Len returns the number of entries currently stored.
func (idx *CapacityIndex) Len() int { return idx.size }

// Insert adds v keyed by its current AvailableCapacityValue().
func (idx *CapacityIndex) Insert(v Capacitied) {
	idx.root = capInsert(idx.root, v.AvailableCapacityValue(), v)
	idx.size++
}

// Update refreshes v's position in the index after its load (and hence its
// available capacity) changed. Per spec this is implemented as a full
// rebuild-on-mismatch: extract every entry, drop the one matching v's id,
// rebuild the tree, then reinsert v with its current key.
func (idx *CapacityIndex) Update(v Capacitied) {
	all := idx.ExtractAll()
	idx.root = nil
	idx.size = 0
	for _, entry := range all {
		if entry.NodeID() == v.NodeID() {
			continue
		}
		idx.Insert(entry)
	}
	idx.Insert(v)
}

// Remove drops every entry whose id matches id.
func (idx *CapacityIndex) Remove(id int) {
	all := idx.ExtractAll()
	idx.root = nil
	idx.size = 0
	for _, entry := range all {
		if entry.NodeID() == id {
			continue
		}
		idx.Insert(entry)
	}
}

// FindWithCapacity returns a node with available capacity >= min, preferring
// the largest qualifying node, found by descending to the rightmost (max
// key) node and checking it clears min.
func (idx *CapacityIndex) FindWithCapacity(min float64) (Capacitied, bool) {
	n := idx.root
	if n == nil {
		return nil, false
	}
	for n.right != nil {
		n = n.right
	}
	if n.key >= min {
		return n.value, true
	}
	return nil, false
}

// GetAllSorted returns every entry ordered ascending by available capacity.
func (idx *CapacityIndex) GetAllSorted() []Capacitied {
	return idx.ExtractAll()
}

// ExtractAll returns every entry, in ascending key order, without modifying
// the index.
func (idx *CapacityIndex) ExtractAll() []Capacitied {
	out := make([]Capacitied, 0, idx.size)
	var walk func(n *capAVLNode)
	walk = func(n *capAVLNode) {
		if n == nil {
			return
		}
		walk(n.left)
		out = append(out, n.value)
		walk(n.right)
	}
	walk(idx.root)
	return out
}

func capInsert(n *capAVLNode, key float64, v Capacitied) *capAVLNode {
	if n == nil {
		return &capAVLNode{key: key, value: v, height: 1}
	}
	if key < n.key {
		n.left = capInsert(n.left, key, v)
	} else {
		n.right = capInsert(n.right, key, v)
	}
	return capRebalance(n)
}

func capHeight(n *capAVLNode) int {
	if n == nil {
		return 0
	}
	return n.height
}

func capBalanceFactor(n *capAVLNode) int {
	if n == nil {
		return 0
	}
	return capHeight(n.left) - capHeight(n.right)
}

func capUpdateHeight(n *capAVLNode) {
	l, r := capHeight(n.left), capHeight(n.right)
	if l > r {
		n.height = l + 1
	} else {
		n.height = r + 1
	}
}

func capRotateRight(y *capAVLNode) *capAVLNode {
	x := y.left
	y.left = x.right
	x.right = y
	capUpdateHeight(y)
	capUpdateHeight(x)
	return x
}

func capRotateLeft(x *capAVLNode) *capAVLNode {
	y := x.right
	x.right = y.left
	y.left = x
	capUpdateHeight(x)
	capUpdateHeight(y)
	return y
}

func capRebalance(n *capAVLNode) *capAVLNode {
	capUpdateHeight(n)
	balance := capBalanceFactor(n)

	switch {
	case balance > 1 && capBalanceFactor(n.left) >= 0:
		return capRotateRight(n)
	case balance > 1:
		n.left = capRotateLeft(n.left)
		return capRotateRight(n)
	case balance < -1 && capBalanceFactor(n.right) <= 0:
		return capRotateLeft(n)
	case balance < -1:
		n.right = capRotateRight(n.right)
		return capRotateLeft(n)
	default:
		return n
	}
}
