package piecetree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLeafPiece(length, lineFeeds int) Piece {
	return Piece{BufferIndex: appendBufferIndex, Start: 0, Length: length, LineFeedCount: lineFeeds}
}

// appendLeaf inserts length-long, zero-line-feed pieces at the tree's end,
// returning the index of the newly inserted node.
func appendLeaf(tr *tree, length int) uint32 {
	idx := tr.alloc.malloc()
	tr.alloc.get(idx).piece = newLeafPiece(length, 0)

	last := tr.root
	if last == sentinelIdx {
		tr.attachRoot(idx)

		return idx
	}

	for tr.alloc.get(last).right != sentinelIdx {
		last = tr.alloc.get(last).right
	}

	tr.insertAfter(idx, last)

	return idx
}

// checkRBInvariants walks the tree verifying the classical red-black
// properties (no red node has a red child, every root-to-nil path carries
// the same black height) and that every node's aggregates match what a
// direct subtree scan computes.
func checkRBInvariants(t *testing.T, tr *tree) {
	t.Helper()

	if tr.root == sentinelIdx {
		return
	}

	assert.True(t, getColor(tr.root, tr.alloc) == black, "root must be black")

	blackHeight := -1
	var walk func(idx uint32, depth int, blackCount int)

	walk = func(idx uint32, depth int, blackCount int) {
		if idx == sentinelIdx {
			if blackHeight == -1 {
				blackHeight = blackCount
			} else {
				assert.Equal(t, blackHeight, blackCount, "black height mismatch")
			}

			return
		}

		n := tr.alloc.get(idx)

		if getColor(idx, tr.alloc) == red {
			assert.True(t, getColor(n.left, tr.alloc) == black, "red node has red left child")
			assert.True(t, getColor(n.right, tr.alloc) == black, "red node has red right child")
		}

		nextBlack := blackCount
		if getColor(idx, tr.alloc) == black {
			nextBlack++
		}

		walk(n.left, depth+1, nextBlack)
		walk(n.right, depth+1, nextBlack)

		checkAggregates(t, tr, idx)
	}

	walk(tr.root, 0, 0)
}

func checkAggregates(t *testing.T, tr *tree, idx uint32) {
	t.Helper()

	n := tr.alloc.get(idx)

	var wantLeftSize, wantLeftLF, wantLeftCnt int

	if n.left != sentinelIdx {
		l := tr.alloc.get(n.left)
		wantLeftSize = l.leftSize + l.rightSize + l.piece.Length
		wantLeftLF = l.leftLineFeedCnt + l.rightLineFeedCnt + l.piece.LineFeedCount
		wantLeftCnt = l.leftNodeCnt + l.rightNodeCnt + 1
	}

	assert.Equal(t, wantLeftSize, n.leftSize, "leftSize at node %d", idx)
	assert.Equal(t, wantLeftLF, n.leftLineFeedCnt, "leftLineFeedCnt at node %d", idx)
	assert.Equal(t, wantLeftCnt, n.leftNodeCnt, "leftNodeCnt at node %d", idx)

	var wantRightSize, wantRightLF, wantRightCnt int

	if n.right != sentinelIdx {
		r := tr.alloc.get(n.right)
		wantRightSize = r.leftSize + r.rightSize + r.piece.Length
		wantRightLF = r.leftLineFeedCnt + r.rightLineFeedCnt + r.piece.LineFeedCount
		wantRightCnt = r.leftNodeCnt + r.rightNodeCnt + 1
	}

	assert.Equal(t, wantRightSize, n.rightSize, "rightSize at node %d", idx)
	assert.Equal(t, wantRightLF, n.rightLineFeedCnt, "rightLineFeedCnt at node %d", idx)
	assert.Equal(t, wantRightCnt, n.rightNodeCnt, "rightNodeCnt at node %d", idx)
}

func TestTree_InsertManyKeepsInvariants(t *testing.T) {
	t.Parallel()

	tr := newTree()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		appendLeaf(tr, 1+rng.Intn(5))
	}

	checkRBInvariants(t, tr)
	assert.Equal(t, 200, tr.nodeCount())
}

func TestTree_DeleteManyKeepsInvariants(t *testing.T) {
	t.Parallel()

	tr := newTree()
	rng := rand.New(rand.NewSource(2))

	var indices []uint32
	for i := 0; i < 100; i++ {
		indices = append(indices, appendLeaf(tr, 1))
	}

	rng.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

	for i, idx := range indices {
		tr.delete(idx)

		if i < len(indices)-1 {
			checkRBInvariants(t, tr)
		}
	}

	assert.Equal(t, 0, tr.nodeCount())
	assert.Equal(t, sentinelIdx, tr.root)
}

func TestTree_FindByOffsetClampsBounds(t *testing.T) {
	t.Parallel()

	tr := newTree()
	appendLeaf(tr, 3)
	appendLeaf(tr, 4)
	appendLeaf(tr, 5)

	below := tr.findByOffset(-5)
	assert.Equal(t, 0, below.remainder)

	total := tr.totalSize()
	above := tr.findByOffset(total + 100)
	assert.Equal(t, 5, above.remainder)

	mid := tr.findByOffset(4)
	n := tr.alloc.get(mid.node)
	assert.Equal(t, 4, n.piece.Length)
	assert.Equal(t, 1, mid.remainder)
}

func TestTree_FindByLineNumber(t *testing.T) {
	t.Parallel()

	tr := newTree()
	appendLeaf(tr, 3) // "abc"

	lfIdx := tr.alloc.malloc()
	tr.alloc.get(lfIdx).piece = newLeafPiece(1, 1)
	last := tr.root
	for tr.alloc.get(last).right != sentinelIdx {
		last = tr.alloc.get(last).right
	}
	tr.insertAfter(lfIdx, last)

	appendLeaf(tr, 2) // "de"

	idx, end := tr.findByLineNumber(1)
	assert.Equal(t, lfIdx, idx)
	assert.Equal(t, 4, end)
}

func TestTree_NodeAtRank(t *testing.T) {
	t.Parallel()

	tr := newTree()
	first := appendLeaf(tr, 1)
	second := appendLeaf(tr, 1)
	third := appendLeaf(tr, 1)

	assert.Equal(t, first, tr.nodeAt(1))
	assert.Equal(t, second, tr.nodeAt(2))
	assert.Equal(t, third, tr.nodeAt(3))
	assert.Equal(t, sentinelIdx, tr.nodeAt(0))
	assert.Equal(t, sentinelIdx, tr.nodeAt(4))
}

func TestTree_InsertBeforeTieBreak(t *testing.T) {
	t.Parallel()

	tr := newTree()
	ref := appendLeaf(tr, 1)

	newIdx := tr.alloc.malloc()
	tr.alloc.get(newIdx).piece = newLeafPiece(1, 0)
	tr.insertBefore(newIdx, ref)

	require.Equal(t, newIdx, doPrev(ref, tr.alloc))
	require.Equal(t, ref, doNext(newIdx, tr.alloc))
}

func TestTree_InsertAfterTieBreak(t *testing.T) {
	t.Parallel()

	tr := newTree()
	ref := appendLeaf(tr, 1)

	newIdx := tr.alloc.malloc()
	tr.alloc.get(newIdx).piece = newLeafPiece(1, 0)
	tr.insertAfter(newIdx, ref)

	require.Equal(t, newIdx, doNext(ref, tr.alloc))
	require.Equal(t, ref, doPrev(newIdx, tr.alloc))
}

func TestTree_ForEachVisitsInOrder(t *testing.T) {
	t.Parallel()

	tr := newTree()
	a := appendLeaf(tr, 1)
	b := appendLeaf(tr, 1)
	c := appendLeaf(tr, 1)

	var visited []uint32
	tr.forEach(func(idx uint32) { visited = append(visited, idx) })

	assert.Equal(t, []uint32{a, b, c}, visited)
}

func TestTree_PrecedingCounts(t *testing.T) {
	t.Parallel()

	tr := newTree()
	appendLeaf(tr, 3)
	appendLeaf(tr, 4)
	third := appendLeaf(tr, 5)

	offset, _ := tr.precedingCounts(third)
	assert.Equal(t, 7, offset)

	offset, _ = tr.precedingCounts(sentinelIdx)
	assert.Equal(t, tr.totalSize(), offset)
}
