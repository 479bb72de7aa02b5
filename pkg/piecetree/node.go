package piecetree

// node is a red-black tree node carrying a Piece and six subtree
// aggregates. Nodes are stored in a dense arena ([]node) and referenced by
// uint32 index rather than pointer, per the source's own design note: this
// sidesteps parent/child reference cycles and keeps rotations branch
// friendly. Index 0 is the shared sentinel: black, zero aggregates, never
// mutated.
type node struct {
	piece Piece

	parent, left, right uint32
	color               bool // false = red, true = black.

	leftSize, rightSize       int
	leftLineFeedCnt           int
	rightLineFeedCnt          int
	leftNodeCnt, rightNodeCnt int
}

const (
	red   = false
	black = true

	// sentinelIdx is the permanent zero slot: both the tree's "no
	// child"/"no parent" marker and the allocator's reserved slot 0.
	sentinelIdx uint32 = 0
)

// allocator is an arena allocator for piece tree nodes: a dense vector of
// nodes with a free list for reuse, the same design as the teacher's
// rbtree.Allocator, generalized to store a Piece instead of a Key/Value
// Item.
type allocator struct {
	storage []node
	gaps    map[uint32]bool
}

func newAllocator() *allocator {
	a := &allocator{storage: []node{}, gaps: map[uint32]bool{}}
	// Reserve index 0 for the sentinel.
	a.storage = append(a.storage, node{color: black})

	return a
}

func (a *allocator) malloc() uint32 {
	if len(a.gaps) > 0 {
		var key uint32

		for key = range a.gaps {
			break
		}

		delete(a.gaps, key)
		a.storage[key] = node{}

		return key
	}

	idx := len(a.storage)
	a.storage = append(a.storage, node{})

	return uint32(idx) //nolint:gosec // arena size is bounded well under uint32 in practice.
}

func (a *allocator) free(idx uint32) {
	if idx == sentinelIdx {
		panic("piecetree: sentinel node cannot be deallocated")
	}

	if a.gaps[idx] {
		panic("piecetree: double free of node")
	}

	a.storage[idx] = node{}
	a.gaps[idx] = true
}

func (a *allocator) get(idx uint32) *node {
	return &a.storage[idx]
}

// used returns the number of live (non-sentinel, non-freed) nodes.
func (a *allocator) used() int {
	return len(a.storage) - 1 - len(a.gaps)
}

func getColor(idx uint32, a *allocator) bool {
	if idx == sentinelIdx {
		return black
	}

	return a.get(idx).color
}

func isLeftChild(idx uint32, a *allocator) bool {
	p := a.get(idx).parent

	return idx == a.get(p).left
}

func isRightChild(idx uint32, a *allocator) bool {
	p := a.get(idx).parent

	return idx == a.get(p).right
}

func sibling(idx uint32, a *allocator) uint32 {
	p := a.get(idx).parent
	if isLeftChild(idx, a) {
		return a.get(p).right
	}

	return a.get(p).left
}

// doNext returns the in-order successor of idx, or sentinelIdx if idx is the
// maximum node.
func doNext(idx uint32, a *allocator) uint32 {
	if a.get(idx).right != sentinelIdx {
		cursor := a.get(idx).right
		for a.get(cursor).left != sentinelIdx {
			cursor = a.get(cursor).left
		}

		return cursor
	}

	for idx != sentinelIdx {
		p := a.get(idx).parent
		if p == sentinelIdx {
			return sentinelIdx
		}

		if isLeftChild(idx, a) {
			return p
		}

		idx = p
	}

	return sentinelIdx
}

// doPrev returns the in-order predecessor of idx, or sentinelIdx if idx is
// the minimum node.
func doPrev(idx uint32, a *allocator) uint32 {
	if a.get(idx).left != sentinelIdx {
		return maxPredecessor(idx, a)
	}

	for idx != sentinelIdx {
		p := a.get(idx).parent
		if p == sentinelIdx {
			break
		}

		if isRightChild(idx, a) {
			return p
		}

		idx = p
	}

	return sentinelIdx
}

func maxPredecessor(idx uint32, a *allocator) uint32 {
	cursor := a.get(idx).left
	for a.get(cursor).right != sentinelIdx {
		cursor = a.get(cursor).right
	}

	return cursor
}
