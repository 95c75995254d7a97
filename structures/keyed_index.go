package structures

// Keyed is anything that can be stored in a KeyedIndex by integer id.
type Keyed interface {
	NodeID() int
}

// keyedAVLNode is one node of the id-keyed AVL tree.
type keyedAVLNode struct {
	key         int
	value       Keyed
	left, right *keyedAVLNode
	height      int
}

// KeyedIndex is an AVL tree keyed by node id, giving O(log n) lookup of a
// node handle by id. Duplicate keys overwrite the stored handle.
type KeyedIndex struct {
	root *keyedAVLNode
	size int
}

// NewKeyedIndex returns an empty index.
func NewKeyedIndex() *KeyedIndex {
	return &KeyedIndex{}
}

// Len returns the number of distinct ids stored.
func (idx *KeyedIndex) Len() int { return idx.size }

// Insert adds or overwrites the handle stored under v.NodeID().
func (idx *KeyedIndex) Insert(v Keyed) {
	inserted := false
	idx.root, inserted = keyedInsert(idx.root, v)
	if inserted {
		idx.size++
	}
}

// Search returns the handle stored under id, if any.
func (idx *KeyedIndex) Search(id int) (Keyed, bool) {
	n := idx.root
	for n != nil {
		switch {
		case id == n.key:
			return n.value, true
		case id < n.key:
			n = n.left
		default:
			n = n.right
		}
	}
	return nil, false
}

// Delete removes the entry for id, if present.
func (idx *KeyedIndex) Delete(id int) {
	removed := false
	idx.root, removed = keyedDelete(idx.root, id)
	if removed {
		idx.size--
	}
}

func keyedInsert(n *keyedAVLNode, v Keyed) (*keyedAVLNode, bool) {
	key := v.NodeID()
	if n == nil {
		return &keyedAVLNode{key: key, value: v, height: 1}, true
	}

	var inserted bool
	switch {
	case key == n.key:
		n.value = v
		return n, false
	case key < n.key:
		n.left, inserted = keyedInsert(n.left, v)
	default:
		n.right, inserted = keyedInsert(n.right, v)
	}

	return keyedRebalance(n), inserted
}

func keyedDelete(n *keyedAVLNode, key int) (*keyedAVLNode, bool) {
	if n == nil {
		return nil, false
	}

	var removed bool
	switch {
	case key < n.key:
		n.left, removed = keyedDelete(n.left, key)
	case key > n.key:
		n.right, removed = keyedDelete(n.right, key)
	default:
		removed = true
		if n.left == nil {
			return n.right, true
		}
		if n.right == nil {
			return n.left, true
		}
		succ := keyedMin(n.right)
		n.key, n.value = succ.key, succ.value
		n.right, _ = keyedDelete(n.right, succ.key)
	}

	if n == nil {
		return nil, removed
	}
	return keyedRebalance(n), removed
}

func keyedMin(n *keyedAVLNode) *keyedAVLNode {
	for n.left != nil {
		n = n.left
	}
	return n
}

func keyedHeight(n *keyedAVLNode) int {
	if n == nil {
		return 0
	}
	return n.height
}

func keyedBalanceFactor(n *keyedAVLNode) int {
	if n == nil {
		return 0
	}
	return keyedHeight(n.left) - keyedHeight(n.right)
}

func keyedUpdateHeight(n *keyedAVLNode) {
	l, r := keyedHeight(n.left), keyedHeight(n.right)
	if l > r {
		n.height = l + 1
	} else {
		n.height = r + 1
	}
}

func keyedRotateRight(y *keyedAVLNode) *keyedAVLNode {
	x := y.left
	y.left = x.right
	x.right = y
	keyedUpdateHeight(y)
	keyedUpdateHeight(x)
	return x
}

func keyedRotateLeft(x *keyedAVLNode) *keyedAVLNode {
	y := x.right
	x.right = y.left
	y.left = x
	keyedUpdateHeight(x)
	keyedUpdateHeight(y)
	return y
}

// keyedRebalance restores |balance| <= 1 at n after an insert/delete below it.
func keyedRebalance(n *keyedAVLNode) *keyedAVLNode {
	keyedUpdateHeight(n)
	balance := keyedBalanceFactor(n)

	switch {
	case balance > 1 && keyedBalanceFactor(n.left) >= 0:
		return keyedRotateRight(n)
	case balance > 1:
		n.left = keyedRotateLeft(n.left)
		return keyedRotateRight(n)
	case balance < -1 && keyedBalanceFactor(n.right) <= 0:
		return keyedRotateLeft(n)
	case balance < -1:
		n.right = keyedRotateRight(n.right)
		return keyedRotateLeft(n)
	default:
		return n
	}
}
