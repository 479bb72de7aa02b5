package piecetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/piecetree/pkg/piecetree/internal/difftest"
)

// S1 — basic insert and line fetch.
func TestEngine_BasicInsertAndLineFetch(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "This is a test paragraph.\n这是测试段落，只有文字\n", nil)
	require.NoError(t, err)

	line1 := e.GetLine(1)
	require.Len(t, line1.Pieces, 1)
	assert.Equal(t, "This is a test paragraph.", line1.Pieces[0].Text)
	assert.Equal(t, 25, line1.Pieces[0].Length)
	assert.Nil(t, line1.Pieces[0].Meta)
	assert.Nil(t, line1.Meta)

	line2 := e.GetLine(2)
	require.Len(t, line2.Pieces, 1)
	assert.Equal(t, "这是测试段落，只有文字", line2.Pieces[0].Text)
	assert.Equal(t, 11, line2.Pieces[0].Length)

	line3 := e.GetLine(3)
	require.Len(t, line3.Pieces, 1)
	assert.Equal(t, "", line3.Pieces[0].Text)
	assert.Equal(t, 0, line3.Pieces[0].Length)

	// get_line(0) clamps to line 1.
	assert.Equal(t, line1, e.GetLine(0))

	// get_line(4) is beyond the line count: the empty-line form.
	line4 := e.GetLine(4)
	require.Len(t, line4.Pieces, 1)
	assert.Equal(t, "", line4.Pieces[0].Text)
}

// S2 — mid-piece insert splits.
func TestEngine_MidPieceInsertSplits(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "This is a test paragraph.\n这是测试段落，只有文字\n", nil)
	require.NoError(t, err)

	_, err = e.Insert(2, "abc", nil)
	require.NoError(t, err)

	pieces := e.GetPieces()

	type want struct {
		text   string
		length int
	}

	wants := []want{
		{"Th", 2},
		{"abc", 3},
		{"is is a test paragraph.", 23},
		{"\n", 1},
		{"这是测试段落，只有文字", 11},
		{"\n", 1},
	}

	require.Len(t, pieces, len(wants))

	for i, w := range wants {
		assert.Equal(t, w.length, pieces[i].Length, "piece %d length", i)
		assert.Nil(t, pieces[i].Meta, "piece %d meta", i)

		text := e.GetTextInRange(sumLengths(pieces[:i]), sumLengths(pieces[:i+1]))
		assert.Equal(t, w.text, text, "piece %d text", i)
	}
}

func sumLengths(pieces []Piece) int {
	total := 0
	for _, p := range pieces {
		total += p.Length
	}

	return total
}

// S5 — continuous-input coalescing: typing one character at a time should
// not grow the node count for the typed run.
func TestEngine_ContinuousAppendCoalescing(t *testing.T) {
	t.Parallel()

	e := NewEngine("")

	_, err := e.Insert(0, "a", nil)
	require.NoError(t, err)
	_, err = e.Insert(1, "b", nil)
	require.NoError(t, err)
	_, err = e.Insert(2, "c", nil)
	require.NoError(t, err)

	assert.Equal(t, "abc", e.GetText())

	pieces := e.GetPieces()
	require.Len(t, pieces, 1)
	assert.Equal(t, 3, pieces[0].Length)
}

// S6 — undo/redo restores text.
func TestEngine_UndoRedoRoundTrip(t *testing.T) {
	t.Parallel()

	e := NewEngine("")

	_, err := e.Insert(0, "hello", nil)
	require.NoError(t, err)
	_, err = e.Insert(5, " world", nil)
	require.NoError(t, err)

	assert.Equal(t, "hello world", e.GetText())

	e.Undo()
	assert.Equal(t, "hello", e.GetText())

	e.Undo()
	assert.Equal(t, "", e.GetText())

	e.Redo()
	assert.Equal(t, "hello", e.GetText())

	e.Redo()
	assert.Equal(t, "hello world", e.GetText())
}

func TestEngine_InsertRejectsEmptyTextWithoutMeta(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "", nil)
	require.ErrorIs(t, err, ErrEmptyInsertWithoutMeta)
}

func TestEngine_InsertEmptyTextWithMetaCreatesNonTextPiece(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	meta := NewOrderedMap().Set("widget", "checkbox")

	_, err := e.Insert(0, "", meta)
	require.NoError(t, err)

	pieces := e.GetPieces()
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Length)
	gotMeta, ok := pieces[0].Meta.Get("widget")
	require.True(t, ok)
	assert.Equal(t, "checkbox", gotMeta)
}

func TestEngine_DeleteAcrossMultiplePieces(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "hello", nil)
	require.NoError(t, err)
	_, err = e.Insert(5, " world", nil)
	require.NoError(t, err)

	diffs := e.Delete(3, 5)
	require.NotEmpty(t, diffs)
	difftest.AssertTextEqual(t, "helrld", e.GetText())
}

func TestEngine_DeletePartialPieceRecomputesLineFeedCount(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "ab\ncd\nef", nil)
	require.NoError(t, err)

	e.Delete(1, 3) // removes "b\nc"
	difftest.AssertTextEqual(t, "ad\nef", e.GetText())
	assert.Equal(t, 2, e.GetLineCount())
}

func TestEngine_FormatMergesMetaAndRecordsUndo(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "hello world", nil)
	require.NoError(t, err)

	meta := NewOrderedMap().Set("bold", true)
	diffs := e.Format(0, 5, meta, FilterAll)
	require.NotEmpty(t, diffs)

	pieces := e.GetPieces()
	found := false

	for _, p := range pieces {
		if v, ok := p.Meta.Get("bold"); ok {
			assert.Equal(t, true, v)
			found = true
		}
	}

	assert.True(t, found)

	e.Undo()

	for _, p := range e.GetPieces() {
		_, ok := p.Meta.Get("bold")
		assert.False(t, ok)
	}
}

func TestEngine_FormatTextAndNonTextFilters(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "hello", nil)
	require.NoError(t, err)
	_, err = e.Insert(5, "", NewOrderedMap().Set("kind", "widget"))
	require.NoError(t, err)

	textMeta := NewOrderedMap().Set("color", "red")
	e.FormatText(0, 6, textMeta)

	nonTextMeta := NewOrderedMap().Set("size", "large")
	e.FormatNonText(0, 6, nonTextMeta)

	for _, p := range e.GetPieces() {
		switch p.Type() {
		case TypeText:
			_, hasColor := p.Meta.Get("color")
			assert.True(t, hasColor)
			_, hasSize := p.Meta.Get("size")
			assert.False(t, hasSize)
		case TypeNonText:
			_, hasSize := p.Meta.Get("size")
			assert.True(t, hasSize)
		}
	}
}

func TestEngine_FormatBeforeFirstLine(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "hello", nil)
	require.NoError(t, err)

	meta := NewOrderedMap().Set("heading", true)
	diffs := e.FormatBeforeFirstLine(5, meta)
	require.NotEmpty(t, diffs)

	pieces := e.GetPieces()
	require.NotEmpty(t, pieces)

	v, ok := pieces[0].Meta.Get("heading")
	require.True(t, ok)
	assert.Equal(t, true, v)

	e.Undo()

	for _, p := range e.GetPieces() {
		_, ok := p.Meta.Get("heading")
		assert.False(t, ok)
	}

	e.Redo()

	v, ok = e.GetPieces()[0].Meta.Get("heading")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestEngine_GroupedUndoRedo(t *testing.T) {
	t.Parallel()

	e := NewEngine("")

	e.StartChange()
	_, err := e.Insert(0, "one", nil)
	require.NoError(t, err)
	_, err = e.Insert(3, "two", nil)
	require.NoError(t, err)
	e.EndChange()

	assert.Equal(t, "onetwo", e.GetText())

	e.Undo()
	assert.Equal(t, "", e.GetText())

	e.Redo()
	assert.Equal(t, "onetwo", e.GetText())
}

func TestEngine_ChangeSwallowsCallbackErrorByDefault(t *testing.T) {
	t.Parallel()

	e := NewEngine("")

	err := e.Change(func() error {
		_, insertErr := e.Insert(0, "x", nil)
		require.NoError(t, insertErr)

		return assert.AnError
	})

	require.NoError(t, err)
	assert.Equal(t, "x", e.GetText())

	// The group still closed: undo removes the whole bracket at once.
	e.Undo()
	assert.Equal(t, "", e.GetText())
}

func TestEngine_ChangePropagatesCallbackErrorWhenConfigured(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	e.PropagateChangeErrors = true

	err := e.Change(func() error {
		return assert.AnError
	})

	require.ErrorIs(t, err, assert.AnError)
}

func TestEngine_NewMutationDiscardsRedoStack(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "hello", nil)
	require.NoError(t, err)

	e.Undo()
	assert.Equal(t, "", e.GetText())

	_, err = e.Insert(0, "bye", nil)
	require.NoError(t, err)

	assert.Empty(t, e.Redo())
	assert.Equal(t, "bye", e.GetText())
}

func TestEngine_DeleteClampsNonPositiveLength(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "hello", nil)
	require.NoError(t, err)

	assert.Nil(t, e.Delete(0, 0))
	assert.Nil(t, e.Delete(0, -1))
	assert.Equal(t, "hello", e.GetText())
}

func TestEngine_LineHelpers(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "first\nsecond\nthird", nil)
	require.NoError(t, err)

	e.InsertLine(2, "inserted", nil)
	difftest.AssertTextEqual(t, "first\ninserted\nsecond\nthird", e.GetText())

	e.DeleteLine(2)
	difftest.AssertTextEqual(t, "first\nsecond\nthird", e.GetText())

	meta := NewOrderedMap().Set("tag", "h1")
	e.FormatLine(1, meta)
	lineMeta := e.GetLineMeta(1)
	v, ok := lineMeta.Get("tag")
	require.True(t, ok)
	assert.Equal(t, "h1", v)

	e.FormatInLine(2, 0, 3, NewOrderedMap().Set("bold", true))

	line2 := e.GetLine(2)
	foundBold := false

	for _, p := range line2.Pieces {
		if v, ok := p.Meta.Get("bold"); ok {
			assert.Equal(t, true, v)
			foundBold = true
		}
	}

	assert.True(t, foundBold)
}

func TestEngine_InsertLineBreak(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "helloworld", nil)
	require.NoError(t, err)

	_, err = e.InsertLineBreak(5, nil)
	require.NoError(t, err)

	difftest.AssertTextEqual(t, "hello\nworld", e.GetText())
	assert.Equal(t, 2, e.GetLineCount())
}

func TestEngine_GetTextInRangeAndPiecesInRange(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "hello world", nil)
	require.NoError(t, err)

	assert.Equal(t, "hello", e.GetTextInRange(0, 5))
	assert.Equal(t, "world", e.GetTextInRange(6, 11))
	assert.Equal(t, "", e.GetTextInRange(5, 5))
	assert.Equal(t, "", e.GetTextInRange(20, 30))

	pieces := e.GetPiecesInRange(0, 5)
	require.Len(t, pieces, 1)
	assert.Equal(t, 5, pieces[0].Length)
}

func TestEngine_SplitLawPreservesLineFeedCount(t *testing.T) {
	t.Parallel()

	e := NewEngine("")
	_, err := e.Insert(0, "ab\ncd", nil)
	require.NoError(t, err)

	before := e.GetLineCount()
	beforeText := e.GetText()

	_, err = e.Insert(1, "XY", nil)
	require.NoError(t, err)

	assert.Equal(t, before, e.GetLineCount())
	difftest.AssertTextEqual(t, "aXYb\ncd", e.GetText())
	assert.NotEqual(t, beforeText, e.GetText())
}
