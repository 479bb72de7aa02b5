package piecetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/piecetree/pkg/piecetree/internal/difftest"
)

func TestDocument_GetLengthAndLineCountOnFreshEngine(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	assert.Equal(t, 0, e.GetLength())
	assert.Equal(t, 1, e.GetLineCount())
	assert.Equal(t, "", e.GetText())
}

func TestDocument_NewEngineWithInitialText(t *testing.T) {
	t.Parallel()

	e := NewEngine("hello\nworld")
	difftest.AssertTextEqual(t, "hello\nworld", e.GetText())
	assert.Equal(t, 2, e.GetLineCount())
}

func TestDocument_GetLinesMatchesGetLine(t *testing.T) {
	t.Parallel()

	e := NewEngine("a\nb\nc")

	lines := e.GetLines()
	require.Len(t, lines, 3)

	for i, l := range lines {
		assert.Equal(t, e.GetLine(i+1), l)
	}
}

func TestDocument_GetLineMetaNilWhenNoTerminatingLineFeed(t *testing.T) {
	t.Parallel()

	e := NewEngine("last line has no newline")
	assert.Nil(t, e.GetLineMeta(1))
}

func TestDocument_GetLineMetaOnTaggedLine(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "line one", nil)
	require.NoError(t, err)

	meta := NewOrderedMap().Set("heading", "h2")
	_, err = e.InsertLineBreak(e.GetLength(), meta)
	require.NoError(t, err)

	_, err = e.Insert(e.GetLength(), "line two", nil)
	require.NoError(t, err)

	got := e.GetLineMeta(1)
	require.NotNil(t, got)

	v, ok := got.Get("heading")
	require.True(t, ok)
	assert.Equal(t, "h2", v)

	assert.Nil(t, e.GetLineMeta(2))
}

func TestDocument_GetLineMetaOutOfRangeIsNil(t *testing.T) {
	t.Parallel()

	e := NewEngine("only one line")
	assert.Nil(t, e.GetLineMeta(0))
	assert.Nil(t, e.GetLineMeta(99))
}

func TestDocument_GetTextInRangeClampsAndEmptyOnInverted(t *testing.T) {
	t.Parallel()

	e := NewEngine("abcdef")

	assert.Equal(t, "abcdef", e.GetTextInRange(-5, 100))
	assert.Equal(t, "", e.GetTextInRange(4, 2))
	assert.Equal(t, "", e.GetTextInRange(3, 3))
	assert.Equal(t, "cd", e.GetTextInRange(2, 4))
}

func TestDocument_StartEndChangeGroupsUndo(t *testing.T) {
	t.Parallel()

	e := NewEngine("")

	e.StartChange()
	_, err := e.Insert(0, "a", nil)
	require.NoError(t, err)
	_, err = e.Insert(1, "b", nil)
	require.NoError(t, err)
	_, err = e.Insert(2, "c", nil)
	require.NoError(t, err)
	e.EndChange()

	assert.Equal(t, "abc", e.GetText())

	e.Undo()
	assert.Equal(t, "", e.GetText())
}

func TestDocument_InsertLineAndDeleteLineRoundTrip(t *testing.T) {
	t.Parallel()

	e := NewEngine("first\nthird")

	e.InsertLine(2, "second", nil)
	difftest.AssertTextEqual(t, "first\nsecond\nthird", e.GetText())

	e.DeleteLine(2)
	difftest.AssertTextEqual(t, "first\nthird", e.GetText())
}

func TestDocument_InsertLineBeyondLineCountAppends(t *testing.T) {
	t.Parallel()

	e := NewEngine("only")

	e.InsertLine(10, "appended", nil)
	difftest.AssertTextEqual(t, "only\nappended\n", e.GetText())
}

func TestDocument_DeleteLineOnLastLineHasNoTrailingNewline(t *testing.T) {
	t.Parallel()

	e := NewEngine("first\nlast")

	e.DeleteLine(2)
	difftest.AssertTextEqual(t, "first\n", e.GetText())
}

func TestDocument_FormatInLineRespectsSubRange(t *testing.T) {
	t.Parallel()

	e := NewEngine("hello world")

	e.FormatInLine(1, 6, 5, NewOrderedMap().Set("bold", true))

	pieces := e.GetPiecesInRange(0, 6)
	for _, p := range pieces {
		_, ok := p.Meta.Get("bold")
		assert.False(t, ok)
	}

	pieces = e.GetPiecesInRange(6, 11)
	require.NotEmpty(t, pieces)

	for _, p := range pieces {
		v, ok := p.Meta.Get("bold")
		require.True(t, ok)
		assert.Equal(t, true, v)
	}
}

func TestDocument_PiecesInRangeRecomputesLineFeedCountWhenClipped(t *testing.T) {
	t.Parallel()

	e := NewEngine("ab\ncd")

	pieces := e.GetPiecesInRange(1, 4) // "b" (clipped from "ab"), "\n", "c" (clipped from "cd")
	require.Len(t, pieces, 3)
	assert.Equal(t, 0, pieces[0].LineFeedCount)
	assert.Equal(t, 1, pieces[1].LineFeedCount)
	assert.Equal(t, 0, pieces[2].LineFeedCount)
}
