package piecetree

import "github.com/Sumatoshi-tech/piecetree/pkg/textutil"

// splitNode splits the node at idx at the given remainder (0 < remainder <
// piece.Length): the left remainder-length slice becomes a new node inserted
// immediately before idx, and idx's own piece is shrunk to the trailing
// slice. Returns the new left node's index; idx keeps its identity (the
// tree.delete/find machinery that already holds idx continues to refer to
// the trailing half).
//
// If idx is registered as a child of a structural container (see
// SetContainer), the container itself is duplicated: a clone of the
// container's piece is inserted as a new sibling right after the container,
// and every node that falls after the split point within that container is
// reparented onto the new one. This mirrors paragraph-break semantics: a
// split inside a paragraph produces two paragraphs.
func (e *Engine) splitNode(idx uint32, remainder int) uint32 {
	n := e.tree.alloc.get(idx)
	p := n.piece

	leftText := e.buffers.Text(p.BufferIndex, p.Start, remainder)
	leftLineFeeds := textutil.CountLineFeeds([]byte(leftText))

	leftPiece := Piece{
		BufferIndex:   p.BufferIndex,
		Start:         p.Start,
		Length:        remainder,
		LineFeedCount: leftLineFeeds,
		Meta:          p.Meta.Clone(),
		Structural:    p.Structural,
	}

	n.piece.Start += remainder
	n.piece.Length -= remainder
	n.piece.LineFeedCount -= leftLineFeeds

	leftIdx := e.tree.alloc.malloc()
	e.tree.alloc.get(leftIdx).piece = leftPiece
	e.tree.insertBefore(leftIdx, idx)

	if container, ok := e.structuralParent.get(idx); ok {
		e.structuralParent.set(leftIdx, container)
		e.splitContainer(container, idx, leftIdx)
	}

	return leftIdx
}

// SetContainer records that node belongs under the structural container
// node container, for the purposes of splitNode's structural-split rule.
// Higher-level paragraph-aware callers (not the core engine) are
// responsible for calling this as they build up a document.
func (e *Engine) SetContainer(node, container uint32) {
	if e.structuralParent == nil {
		e.structuralParent = newStructuralIndex()
	}

	e.structuralParent.set(node, container)
}

// splitContainer duplicates the structural container node, then reparents
// every node from splitPoint onward (left half already split out stays with
// the original container) onto the new container. Nodes under container that
// precede splitPoint in in-order sequence are left alone.
func (e *Engine) splitContainer(container, splitPoint, leftHalf uint32) {
	orig := e.tree.alloc.get(container)

	newContainerIdx := e.tree.alloc.malloc()
	e.tree.alloc.get(newContainerIdx).piece = orig.piece.clone()
	e.tree.insertAfter(newContainerIdx, container)

	splitOffset, _ := e.tree.precedingCounts(splitPoint)

	var toReparent []uint32

	e.structuralParent.forEach(func(node, parent uint32) {
		if parent != container || node == leftHalf {
			return
		}

		nodeOffset, _ := e.tree.precedingCounts(node)
		if nodeOffset < splitOffset {
			return
		}

		toReparent = append(toReparent, node)
	})

	for _, node := range toReparent {
		e.structuralParent.set(node, newContainerIdx)
	}

	e.structuralParent.set(splitPoint, newContainerIdx)
}
