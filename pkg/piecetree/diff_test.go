package piecetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff_FlippedReversesInsertAndRemove(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Diff{Type: DiffRemove, LineNumber: 3}, Diff{Type: DiffInsert, LineNumber: 3}.flipped())
	assert.Equal(t, Diff{Type: DiffInsert, LineNumber: 5}, Diff{Type: DiffRemove, LineNumber: 5}.flipped())
	assert.Equal(t, Diff{Type: DiffReplace, LineNumber: 2}, Diff{Type: DiffReplace, LineNumber: 2}.flipped())
}

func TestFlipDiffs_PreservesOrder(t *testing.T) {
	t.Parallel()

	in := []Diff{
		{Type: DiffReplace, LineNumber: 1},
		{Type: DiffInsert, LineNumber: 2},
		{Type: DiffInsert, LineNumber: 3},
	}

	out := flipDiffs(in)

	want := []Diff{
		{Type: DiffReplace, LineNumber: 1},
		{Type: DiffRemove, LineNumber: 2},
		{Type: DiffRemove, LineNumber: 3},
	}

	assert.Equal(t, want, out)
}
