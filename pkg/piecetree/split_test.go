package piecetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S3 — node split law: splitting a piece preserves total length and total
// line-feed count across the two halves.
func TestSplitNode_PreservesLengthAndLineFeedCount(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "abc\ndef", nil)
	require.NoError(t, err)

	pieces := e.GetPieces() // "abc", "\n", "def"
	require.Len(t, pieces, 3)

	totalBefore := pieces[0].Length
	lfBefore := pieces[0].LineFeedCount

	idx := e.tree.nodeAt(2) // second node, after the leading sentinel.
	leftIdx := e.splitNode(idx, 2)

	left := e.tree.alloc.get(leftIdx).piece
	right := e.tree.alloc.get(idx).piece

	assert.Equal(t, totalBefore, left.Length+right.Length)
	assert.Equal(t, lfBefore, left.LineFeedCount+right.LineFeedCount)
}

func TestSplitNode_ClonesMetaIndependently(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	meta := NewOrderedMap().Set("bold", true)
	_, err := e.Insert(0, "hello", meta)
	require.NoError(t, err)

	idx := e.tree.nodeAt(2)
	leftIdx := e.splitNode(idx, 2)

	left := e.tree.alloc.get(leftIdx)
	right := e.tree.alloc.get(idx)

	left.piece.Meta.Set("bold", false)

	rightVal, ok := right.piece.Meta.Get("bold")
	require.True(t, ok)
	assert.Equal(t, true, rightVal)
}

// Structural split: splitting a node registered under a structural container
// duplicates the container and reparents only the nodes at or after the
// split point.
func TestSplitContainer_ReparentsOnlyNodesAfterSplitPoint(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "one two three", nil)
	require.NoError(t, err)

	contentIdx := e.tree.nodeAt(2)

	container := e.tree.alloc.malloc()
	e.tree.alloc.get(container).piece = Piece{BufferIndex: -1, Length: 0, Structural: true}
	e.tree.insertBefore(container, contentIdx)

	e.SetContainer(contentIdx, container)

	leftIdx := e.splitNode(contentIdx, 4) // split "one " | "two three"

	gotContainer, ok := e.structuralParent.get(leftIdx)
	require.True(t, ok)
	assert.Equal(t, container, gotContainer)

	newContainer, ok := e.structuralParent.get(contentIdx)
	require.True(t, ok)
	assert.NotEqual(t, container, newContainer)
}

func TestSplitContainer_PrecedingNodeStaysOnOriginalContainer(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "aaaa", nil)
	require.NoError(t, err)

	container := e.tree.nodeAt(2)
	another := e.tree.alloc.malloc()
	e.tree.alloc.get(another).piece = newLeafPiece(2, 0)
	e.tree.insertBefore(another, container)

	e.SetContainer(another, container)
	e.SetContainer(container, container)

	_ = e.splitNode(container, 2)

	gotContainer, ok := e.structuralParent.get(another)
	require.True(t, ok)
	assert.Equal(t, container, gotContainer)
}
