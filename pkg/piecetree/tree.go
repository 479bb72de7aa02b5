package piecetree

// tree is the order-statistic red-black tree: nodes are ordered purely by
// in-order position (there is no key comparison), augmented with six
// subtree aggregates that let offset and line lookups run in O(log n).
type tree struct {
	alloc *allocator
	root  uint32
}

func newTree() *tree {
	return &tree{alloc: newAllocator(), root: sentinelIdx}
}

// nodeCount returns the number of live nodes in the tree.
func (t *tree) nodeCount() int {
	if t.root == sentinelIdx {
		return 0
	}

	n := t.alloc.get(t.root)

	return n.leftNodeCnt + n.rightNodeCnt + 1
}

// totalSize returns the aggregate length of every piece in the tree.
func (t *tree) totalSize() int {
	if t.root == sentinelIdx {
		return 0
	}

	n := t.alloc.get(t.root)

	return n.leftSize + n.rightSize + n.piece.Length
}

// totalLineFeedCount returns the aggregate line-feed count over every piece
// in the tree (excluding the +1 leading-sentinel adjustment the caller adds
// for a line count).
func (t *tree) totalLineFeedCount() int {
	if t.root == sentinelIdx {
		return 0
	}

	n := t.alloc.get(t.root)

	return n.leftLineFeedCnt + n.rightLineFeedCnt + n.piece.LineFeedCount
}

// updateMeta recomputes idx's six aggregates from its current children.
// Children must already carry correct aggregates; callers are responsible
// for calling this bottom-up (see updateMetaUpward, and the pivot-then-child
// order used by the rotation helpers).
func (t *tree) updateMeta(idx uint32) {
	if idx == sentinelIdx {
		return
	}

	n := t.alloc.get(idx)

	if n.left == sentinelIdx {
		n.leftSize, n.leftLineFeedCnt, n.leftNodeCnt = 0, 0, 0
	} else {
		l := t.alloc.get(n.left)
		n.leftSize = l.leftSize + l.rightSize + l.piece.Length
		n.leftLineFeedCnt = l.leftLineFeedCnt + l.rightLineFeedCnt + l.piece.LineFeedCount
		n.leftNodeCnt = l.leftNodeCnt + l.rightNodeCnt + 1
	}

	if n.right == sentinelIdx {
		n.rightSize, n.rightLineFeedCnt, n.rightNodeCnt = 0, 0, 0
	} else {
		r := t.alloc.get(n.right)
		n.rightSize = r.leftSize + r.rightSize + r.piece.Length
		n.rightLineFeedCnt = r.leftLineFeedCnt + r.rightLineFeedCnt + r.piece.LineFeedCount
		n.rightNodeCnt = r.leftNodeCnt + r.rightNodeCnt + 1
	}
}

// updateMetaUpward recomputes x's aggregates, then walks up through every
// ancestor to the root doing the same. Called after every structural
// change: insertion, deletion, rotation, or an in-place edit of a piece's
// Length/LineFeedCount.
func (t *tree) updateMetaUpward(x uint32) {
	for x != sentinelIdx {
		t.updateMeta(x)
		x = t.alloc.get(x).parent
	}
}

// nodeAt returns the node whose in-order rank equals index (1-based), or
// the sentinel if index is out of [1, nodeCount] range.
func (t *tree) nodeAt(index int) uint32 {
	x := t.root

	for x != sentinelIdx {
		n := t.alloc.get(x)
		rank := n.leftNodeCnt + 1

		switch {
		case index < rank:
			x = n.left
		case index > rank:
			index -= rank
			x = n.right
		default:
			return x
		}
	}

	return sentinelIdx
}

// findResult is the outcome of a position search: the node containing the
// target offset, the remainder within that node's piece, and the
// accumulated size/line-feed-count preceding the node.
type findResult struct {
	node               uint32
	remainder          int
	startOffset        int
	startLineFeedCount int
}

// findByOffset locates the node containing the given internal offset.
// offset <= 0 clamps to the leftmost node with remainder 0; offset >=
// totalSize clamps to the rightmost node with remainder = its length.
func (t *tree) findByOffset(offset int) findResult {
	if t.root == sentinelIdx {
		return findResult{}
	}

	if offset <= 0 {
		x := t.root
		for t.alloc.get(x).left != sentinelIdx {
			x = t.alloc.get(x).left
		}

		return findResult{node: x}
	}

	total := t.totalSize()
	if offset >= total {
		x := t.root
		for t.alloc.get(x).right != sentinelIdx {
			x = t.alloc.get(x).right
		}

		n := t.alloc.get(x)

		return findResult{
			node:               x,
			remainder:          n.piece.Length,
			startOffset:        total - n.piece.Length,
			startLineFeedCount: t.totalLineFeedCount() - n.piece.LineFeedCount,
		}
	}

	x := t.root

	var accOffset, accLF int

	for {
		n := t.alloc.get(x)

		switch {
		case n.leftSize > offset:
			x = n.left
		case n.leftSize+n.piece.Length >= offset:
			return findResult{
				node:               x,
				remainder:          offset - n.leftSize,
				startOffset:        accOffset + n.leftSize,
				startLineFeedCount: accLF + n.leftLineFeedCnt,
			}
		default:
			offset -= n.leftSize + n.piece.Length
			accOffset += n.leftSize + n.piece.Length
			accLF += n.leftLineFeedCnt + n.piece.LineFeedCount
			x = n.right
		}
	}
}

// findByLineNumber returns the node that carries the k-th line-feed and the
// internal offset immediately after it (i.e. the start of line k+1, or
// equivalently where line k's content begins once the caller accounts for
// the 1-based line/offset convention described in the engine). k is clamped
// to [1, totalLineFeedCount()+1] by the caller.
//
// Every piece produced by the mutation engine carries at most one line feed,
// and when it does, that line feed is the piece's final code unit (pieces
// are split at every "\n" as they are typed or loaded). This lets the search
// stop at node granularity without re-scanning buffer contents.
func (t *tree) findByLineNumber(k int) (idx uint32, endOffset int) {
	x := t.root

	var accOffset int

	for x != sentinelIdx {
		n := t.alloc.get(x)

		switch {
		case n.leftLineFeedCnt >= k:
			x = n.left
		case n.leftLineFeedCnt+n.piece.LineFeedCount >= k:
			return x, accOffset + n.leftSize + n.piece.Length
		default:
			accOffset += n.leftSize + n.piece.Length
			x = n.right
		}
	}

	return sentinelIdx, accOffset
}

// precedingCounts returns the cumulative size and line-feed count of every
// node strictly before idx in in-order sequence. idx == sentinelIdx is
// treated as "one past the end", returning the tree's totals.
func (t *tree) precedingCounts(idx uint32) (offset, lineFeeds int) {
	if idx == sentinelIdx {
		return t.totalSize(), t.totalLineFeedCount()
	}

	n := t.alloc.get(idx)
	offset, lineFeeds = n.leftSize, n.leftLineFeedCnt

	x := idx
	for t.alloc.get(x).parent != sentinelIdx {
		p := t.alloc.get(x).parent
		if isRightChild(x, t.alloc) {
			pn := t.alloc.get(p)
			offset += pn.leftSize + pn.piece.Length
			lineFeeds += pn.leftLineFeedCnt + pn.piece.LineFeedCount
		}

		x = p
	}

	return offset, lineFeeds
}

// forEach visits every live node in in-order sequence.
func (t *tree) forEach(visit func(idx uint32)) {
	if t.root == sentinelIdx {
		return
	}

	x := t.root
	for t.alloc.get(x).left != sentinelIdx {
		x = t.alloc.get(x).left
	}

	for x != sentinelIdx {
		visit(x)
		x = doNext(x, t.alloc)
	}
}

// insertBefore places newIdx immediately before ref in in-order sequence.
// If ref is the sentinel, newIdx becomes the root (valid only when the tree
// is currently empty). The attach slot follows the tie-break rule in the
// engine design: left child of ref if free, else right child of ref's
// in-order predecessor — this guarantees newIdx becomes ref's immediate
// predecessor.
func (t *tree) insertBefore(newIdx, ref uint32) {
	if ref == sentinelIdx {
		t.attachRoot(newIdx)

		return
	}

	refNode := t.alloc.get(ref)
	if refNode.left == sentinelIdx {
		t.attachChild(newIdx, ref, true)
	} else {
		pred := maxPredecessor(ref, t.alloc)
		t.attachChild(newIdx, pred, false)
	}

	t.fixupAfterInsert(newIdx)
}

// insertAfter places newIdx immediately after ref in in-order sequence.
// Symmetric to insertBefore: right child of ref if free, else left child of
// ref's in-order successor.
func (t *tree) insertAfter(newIdx, ref uint32) {
	if ref == sentinelIdx {
		t.attachRoot(newIdx)

		return
	}

	refNode := t.alloc.get(ref)
	if refNode.right == sentinelIdx {
		t.attachChild(newIdx, ref, false)
	} else {
		succ := doNext(ref, t.alloc)
		t.attachChild(newIdx, succ, true)
	}

	t.fixupAfterInsert(newIdx)
}

func (t *tree) attachRoot(idx uint32) {
	n := t.alloc.get(idx)
	n.parent, n.left, n.right = sentinelIdx, sentinelIdx, sentinelIdx
	n.color = black
	t.root = idx
	t.updateMetaUpward(idx)
}

func (t *tree) attachChild(idx, parent uint32, asLeft bool) {
	n := t.alloc.get(idx)
	n.parent, n.left, n.right = parent, sentinelIdx, sentinelIdx
	n.color = red

	p := t.alloc.get(parent)
	if asLeft {
		p.left = idx
	} else {
		p.right = idx
	}
}

// fixupAfterInsert refreshes aggregates from the new red leaf to the root,
// then runs the classical CLRS red-black fix-up, followed by another
// aggregate refresh to the root.
//
//nolint:gocognit // RB-tree insertion with rebalancing is inherently complex.
func (t *tree) fixupAfterInsert(idx uint32) {
	a := t.alloc

	t.updateMetaUpward(idx)

	for {
		n := a.get(idx)
		if n.parent == sentinelIdx {
			n.color = black

			break
		}

		if getColor(n.parent, a) == black {
			break
		}

		grandparent := a.get(n.parent).parent

		var uncle uint32
		if isLeftChild(n.parent, a) {
			uncle = a.get(grandparent).right
		} else {
			uncle = a.get(grandparent).left
		}

		if uncle != sentinelIdx && getColor(uncle, a) == red {
			a.get(n.parent).color = black
			a.get(uncle).color = black
			a.get(grandparent).color = red
			idx = grandparent

			continue
		}

		if isRightChild(idx, a) && isLeftChild(n.parent, a) {
			t.rotateLeft(n.parent)
			idx = a.get(idx).left

			continue
		}

		if isLeftChild(idx, a) && isRightChild(n.parent, a) {
			t.rotateRight(n.parent)
			idx = a.get(idx).right

			continue
		}

		n = a.get(idx)
		a.get(n.parent).color = black
		a.get(grandparent).color = red

		if isLeftChild(idx, a) {
			t.rotateRight(grandparent)
		} else {
			t.rotateLeft(grandparent)
		}

		break
	}

	t.updateMetaUpward(idx)
}

// delete removes idx from the tree using the in-order successor when both
// children are present, and returns the piece value it carried.
//
//nolint:gocognit // RB-tree deletion with rebalancing is inherently complex.
func (t *tree) delete(idx uint32) Piece {
	a := t.alloc
	detached := a.get(idx).piece

	workIdx := idx

	if a.get(workIdx).left != sentinelIdx && a.get(workIdx).right != sentinelIdx {
		succ := doNext(workIdx, a)
		// swapNodes relocates idx to succ's old (<=1 child) structural
		// slot and succ to idx's old slot; the deletion plumbing below
		// continues to operate on workIdx (still idx) so it always
		// unlinks a node with at most one child. succ keeps its own
		// piece and inherits idx's old position.
		t.swapNodes(workIdx, succ)
	}

	n := a.get(workIdx)

	child := n.right
	if child == sentinelIdx {
		child = n.left
	}

	fixupParent := n.parent

	if n.color == black {
		a.get(workIdx).color = getColor(child, a)
		t.deleteCase1(workIdx)
	}

	t.replaceNode(workIdx, child)

	if a.get(workIdx).parent == sentinelIdx && child != sentinelIdx {
		a.get(child).color = black
	}

	a.free(workIdx)

	if fixupParent != sentinelIdx {
		t.updateMetaUpward(fixupParent)
	} else if child != sentinelIdx {
		t.updateMetaUpward(child)
	}

	return detached
}

// swapNodes relocates idx's piece onto succ's structural slot and vice
// versa: succ inherits idx's old position (and idx's original children),
// while idx is relocated to succ's old position, which by construction has
// at most one child (succ must be idx's in-order successor, which never has
// a left child). The caller then deletes the relocated idx slot, which
// always unlinks a node with at most one child — the standard BST
// delete-by-successor reduction.
//
//nolint:gocognit,nestif // mirrors the structural complexity of the source rbtree swap.
func (t *tree) swapNodes(idx, pred uint32) {
	a := t.alloc
	isLeft := isLeftChild(pred, a)
	tmp := *a.get(pred)

	t.replaceNode(idx, pred)
	a.get(pred).color = a.get(idx).color

	if tmp.parent == idx {
		if isLeft {
			a.get(pred).left = idx
			a.get(pred).right = tmp.right

			if tmp.right != sentinelIdx {
				a.get(tmp.right).parent = pred
			}
		} else {
			a.get(pred).left = a.get(idx).left

			if a.get(idx).left != sentinelIdx {
				a.get(a.get(idx).left).parent = pred
			}

			a.get(pred).right = idx
		}

		a.get(idx).piece = tmp.piece
		a.get(idx).parent = pred
		a.get(idx).left = tmp.left

		if a.get(idx).left != sentinelIdx {
			a.get(a.get(idx).left).parent = idx
		}

		a.get(idx).right = tmp.right

		if a.get(idx).right != sentinelIdx && tmp.right != idx {
			a.get(a.get(idx).right).parent = idx
		}
	} else {
		a.get(pred).left = a.get(idx).left

		if a.get(pred).left != sentinelIdx {
			a.get(a.get(pred).left).parent = pred
		}

		a.get(pred).right = a.get(idx).right

		if a.get(pred).right != sentinelIdx {
			a.get(a.get(pred).right).parent = pred
		}

		if isLeft {
			a.get(tmp.parent).left = idx
		} else {
			a.get(tmp.parent).right = idx
		}

		a.get(idx).piece = tmp.piece
		a.get(idx).parent = tmp.parent
		a.get(idx).left = tmp.left

		if a.get(idx).left != sentinelIdx {
			a.get(a.get(idx).left).parent = idx
		}

		a.get(idx).right = tmp.right

		if a.get(idx).right != sentinelIdx {
			a.get(a.get(idx).right).parent = idx
		}
	}

	a.get(idx).color = tmp.color
}

func (t *tree) deleteCase1(idx uint32) {
	a := t.alloc

	for a.get(idx).parent != sentinelIdx {
		if getColor(sibling(idx, a), a) == red {
			a.get(a.get(idx).parent).color = red
			a.get(sibling(idx, a)).color = black

			if idx == a.get(a.get(idx).parent).left {
				t.rotateLeft(a.get(idx).parent)
			} else {
				t.rotateRight(a.get(idx).parent)
			}
		}

		sib := sibling(idx, a)

		if getColor(a.get(idx).parent, a) == black &&
			getColor(sib, a) == black &&
			getColor(a.get(sib).left, a) == black &&
			getColor(a.get(sib).right, a) == black {
			a.get(sib).color = red
			idx = a.get(idx).parent

			continue
		}

		if getColor(a.get(idx).parent, a) == red &&
			getColor(sib, a) == black &&
			getColor(a.get(sib).left, a) == black &&
			getColor(a.get(sib).right, a) == black {
			a.get(sib).color = red
			a.get(a.get(idx).parent).color = black
		} else {
			t.deleteCase5(idx)
		}

		break
	}
}

func (t *tree) deleteCase5(idx uint32) {
	a := t.alloc
	sib := sibling(idx, a)

	if idx == a.get(a.get(idx).parent).left &&
		getColor(sib, a) == black &&
		getColor(a.get(sib).left, a) == red &&
		getColor(a.get(sib).right, a) == black {
		a.get(sib).color = red
		a.get(a.get(sib).left).color = black
		t.rotateRight(sib)
	} else if idx == a.get(a.get(idx).parent).right &&
		getColor(sib, a) == black &&
		getColor(a.get(sib).right, a) == red &&
		getColor(a.get(sib).left, a) == black {
		a.get(sib).color = red
		a.get(a.get(sib).right).color = black
		t.rotateLeft(sib)
	}

	sib = sibling(idx, a)
	a.get(sib).color = getColor(a.get(idx).parent, a)
	a.get(a.get(idx).parent).color = black

	if idx == a.get(a.get(idx).parent).left {
		a.get(a.get(sib).right).color = black
		t.rotateLeft(a.get(idx).parent)
	} else {
		a.get(a.get(sib).left).color = black
		t.rotateRight(a.get(idx).parent)
	}
}

func (t *tree) replaceNode(oldIdx, newIdx uint32) {
	a := t.alloc
	p := a.get(oldIdx).parent

	if p == sentinelIdx {
		t.root = newIdx
	} else if oldIdx == a.get(p).left {
		a.get(p).left = newIdx
	} else {
		a.get(p).right = newIdx
	}

	if newIdx != sentinelIdx {
		a.get(newIdx).parent = p
	}
}

// rotateLeft and rotateRight mirror the classical CLRS rotations. Per the
// engine design, both recompute the two pivoted nodes' own aggregates
// (pivot first, then the node taking its place) immediately, so that a
// subsequent updateMetaUpward from any descendant sees correct data as it
// walks past this point.
func (t *tree) rotateLeft(pivot uint32) {
	t.rotateDirection(pivot, true)
}

func (t *tree) rotateRight(pivot uint32) {
	t.rotateDirection(pivot, false)
}

func (t *tree) rotateDirection(pivot uint32, isLeft bool) {
	a := t.alloc

	var child uint32
	if isLeft {
		child = a.get(pivot).right
	} else {
		child = a.get(pivot).left
	}

	var innerSubtree uint32
	if isLeft {
		innerSubtree = a.get(child).left
		a.get(pivot).right = innerSubtree
	} else {
		innerSubtree = a.get(child).right
		a.get(pivot).left = innerSubtree
	}

	if innerSubtree != sentinelIdx {
		a.get(innerSubtree).parent = pivot
	}

	a.get(child).parent = a.get(pivot).parent

	if a.get(pivot).parent == sentinelIdx {
		t.root = child
	} else if isLeftChild(pivot, a) {
		a.get(a.get(pivot).parent).left = child
	} else {
		a.get(a.get(pivot).parent).right = child
	}

	if isLeft {
		a.get(child).left = pivot
	} else {
		a.get(child).right = pivot
	}

	a.get(pivot).parent = child

	t.updateMeta(pivot)
	t.updateMeta(child)
}
