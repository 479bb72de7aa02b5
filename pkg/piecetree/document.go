package piecetree

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/piecetree/pkg/textutil"
)

// LinePiece is one piece's contribution to a Line, trimmed to that line's
// span (never including the terminating line feed).
type LinePiece struct {
	Text   string
	Length int
	Meta   *OrderedMap
}

// Line is the §6 wire shape for a single logical line: the meta carried by
// its terminating line-feed piece (nil for the last line, which has none),
// plus the ordered pieces that make up its content.
type Line struct {
	Meta   *OrderedMap
	Pieces []LinePiece
}

func emptyLine() Line {
	return Line{Pieces: []LinePiece{{Text: "", Length: 0}}}
}

// GetText returns the full document text, excluding the permanent leading
// line-feed sentinel.
func (e *Engine) GetText() string {
	var sb strings.Builder

	first := true
	e.tree.forEach(func(idx uint32) {
		if first {
			first = false

			return
		}

		n := e.tree.alloc.get(idx)
		sb.WriteString(e.buffers.Text(n.piece.BufferIndex, n.piece.Start, n.piece.Length))
	})

	return sb.String()
}

// GetLength returns the total code-unit length of the document text (the
// internal tree size minus the leading sentinel's single unit).
func (e *Engine) GetLength() int {
	return e.tree.totalSize() - 1
}

// GetLineCount returns the number of logical lines; a freshly constructed
// document always has exactly 1.
func (e *Engine) GetLineCount() int {
	return e.tree.totalLineFeedCount() + 1
}

// GetTextInRange returns the half-open external range [from, to) of document
// text. Out-of-range bounds clamp to the document's extent.
func (e *Engine) GetTextInRange(fromExt, toExt int) string {
	if toExt <= fromExt {
		return ""
	}

	internalFrom := biasOffset(fromExt)
	total := e.tree.totalSize()
	internalTo := toExt + 1

	if internalTo > total {
		internalTo = total
	}

	if internalFrom >= internalTo {
		return ""
	}

	var sb strings.Builder

	remaining := internalTo - internalFrom
	fr := e.tree.findByOffset(internalFrom)
	node := fr.node
	offsetInNode := fr.remainder

	for remaining > 0 && node != sentinelIdx {
		n := e.tree.alloc.get(node)
		avail := n.piece.Length - offsetInNode
		take := avail

		if take > remaining {
			take = remaining
		}

		if take > 0 {
			sb.WriteString(e.buffers.Text(n.piece.BufferIndex, n.piece.Start+offsetInNode, take))
		}

		remaining -= take
		offsetInNode = 0
		node = doNext(node, e.tree.alloc)
	}

	return sb.String()
}

// GetPieces returns every piece in in-order sequence, excluding the
// permanent leading line-feed sentinel.
func (e *Engine) GetPieces() []Piece {
	var out []Piece

	first := true
	e.tree.forEach(func(idx uint32) {
		if first {
			first = false

			return
		}

		out = append(out, e.tree.alloc.get(idx).piece.clone())
	})

	return out
}

// GetPiecesInRange returns clipped copies of every piece overlapping the
// half-open external range [from, to).
func (e *Engine) GetPiecesInRange(fromExt, toExt int) []Piece {
	if toExt <= fromExt {
		return nil
	}

	internalFrom := biasOffset(fromExt)
	total := e.tree.totalSize()
	internalTo := toExt + 1

	if internalTo > total {
		internalTo = total
	}

	if internalFrom >= internalTo {
		return nil
	}

	var out []Piece

	remaining := internalTo - internalFrom
	fr := e.tree.findByOffset(internalFrom)
	node := fr.node
	offsetInNode := fr.remainder

	for remaining > 0 && node != sentinelIdx {
		n := e.tree.alloc.get(node)
		avail := n.piece.Length - offsetInNode
		take := avail

		if take > remaining {
			take = remaining
		}

		if take > 0 {
			clipped := n.piece.clone()
			clipped.Start += offsetInNode
			clipped.Length = take

			if offsetInNode > 0 || take < avail {
				text := e.buffers.Text(clipped.BufferIndex, clipped.Start, clipped.Length)
				clipped.LineFeedCount = textutil.CountLineFeeds([]byte(text))
			}

			out = append(out, clipped)
		}

		remaining -= take
		offsetInNode = 0
		node = doNext(node, e.tree.alloc)
	}

	return out
}

// lineBounds resolves lineNumber (1-based) to the internal offset span of
// its content, excluding the terminating line feed. lineNumber < 1 clamps to
// line 1; lineNumber beyond the line count reports tooHigh so callers can
// produce the empty-line form instead.
func (e *Engine) lineBounds(lineNumber int) (clamped, start, endExclNL int, hasNL, tooHigh bool) {
	lineCount := e.GetLineCount()

	if lineNumber < 1 {
		lineNumber = 1
	}

	if lineNumber > lineCount {
		return lineNumber, 0, 0, false, true
	}

	if lineNumber == 1 {
		start = 1
	} else {
		_, end := e.tree.findByLineNumber(lineNumber - 1)
		start = end
	}

	if lineNumber <= e.tree.totalLineFeedCount() {
		_, end := e.tree.findByLineNumber(lineNumber)
		endExclNL = end - 1
		hasNL = true
	} else {
		endExclNL = e.tree.totalSize()
		hasNL = false
	}

	return lineNumber, start, endExclNL, hasNL, false
}

func (e *Engine) collectLinePieces(internalStart, internalEnd int) []LinePiece {
	if internalEnd <= internalStart {
		return nil
	}

	var out []LinePiece

	remaining := internalEnd - internalStart
	fr := e.tree.findByOffset(internalStart)
	node := fr.node
	offsetInNode := fr.remainder

	for remaining > 0 && node != sentinelIdx {
		n := e.tree.alloc.get(node)
		avail := n.piece.Length - offsetInNode
		take := avail

		if take > remaining {
			take = remaining
		}

		if take > 0 {
			text := e.buffers.Text(n.piece.BufferIndex, n.piece.Start+offsetInNode, take)
			out = append(out, LinePiece{Text: text, Length: take, Meta: n.piece.Meta.Clone()})
		}

		remaining -= take
		offsetInNode = 0
		node = doNext(node, e.tree.alloc)
	}

	return out
}

// GetLine returns the 1-based logical line. Numbers below 1 clamp to line 1;
// numbers beyond GetLineCount return the empty single-piece form.
func (e *Engine) GetLine(lineNumber int) Line {
	clamped, start, end, hasNL, tooHigh := e.lineBounds(lineNumber)
	if tooHigh {
		return emptyLine()
	}

	var meta *OrderedMap

	if hasNL {
		idx, _ := e.tree.findByLineNumber(clamped)
		meta = e.tree.alloc.get(idx).piece.Meta.Clone()
	}

	pieces := e.collectLinePieces(start, end)
	if len(pieces) == 0 {
		pieces = []LinePiece{{Text: "", Length: 0}}
	}

	return Line{Meta: meta, Pieces: pieces}
}

// GetLines returns every logical line in order.
func (e *Engine) GetLines() []Line {
	n := e.GetLineCount()
	lines := make([]Line, n)

	for i := 1; i <= n; i++ {
		lines[i-1] = e.GetLine(i)
	}

	return lines
}

// GetLineMeta returns the meta carried by lineNumber's terminating
// line-feed piece, or nil if it has none (the last line) or the number is
// above the line count. Numbers below 1 clamp to line 1, as in GetLine.
func (e *Engine) GetLineMeta(lineNumber int) *OrderedMap {
	clamped, _, _, hasNL, tooHigh := e.lineBounds(lineNumber)
	if tooHigh || !hasNL {
		return nil
	}

	idx, _ := e.tree.findByLineNumber(clamped)

	return e.tree.alloc.get(idx).piece.Meta.Clone()
}

// FormatText formats only TEXT pieces in [offset, offset+length).
func (e *Engine) FormatText(offset, length int, meta *OrderedMap) []Diff {
	return e.Format(offset, length, meta, FilterText)
}

// FormatNonText formats only NON_TEXT pieces in [offset, offset+length).
func (e *Engine) FormatNonText(offset, length int, meta *OrderedMap) []Diff {
	return e.Format(offset, length, meta, FilterNonText)
}

// InsertLineBreak inserts a single "\n" at offset, optionally tagging the new
// line-feed piece with meta.
func (e *Engine) InsertLineBreak(offset int, meta *OrderedMap) ([]Diff, error) {
	return e.Insert(offset, "\n", meta)
}

// lineInsertOffset returns the external offset at which a new line should be
// inserted to become lineNumber (pushing the current lineNumber, if any,
// down). Numbers beyond the line count append past the document's end.
func (e *Engine) lineInsertOffset(lineNumber int) int {
	_, start, _, _, tooHigh := e.lineBounds(lineNumber)
	if tooHigh {
		return e.GetLength()
	}

	return start - 1
}

// InsertLine inserts text followed by a line break so that it becomes
// lineNumber, pushing any existing content at that position down.
func (e *Engine) InsertLine(lineNumber int, text string, meta *OrderedMap) []Diff {
	offset := e.lineInsertOffset(lineNumber)
	diffs, _ := e.Insert(offset, text+"\n", meta)

	return diffs
}

// DeleteLine removes lineNumber's content along with its terminating line
// feed (the last line, which has none, loses only its content).
func (e *Engine) DeleteLine(lineNumber int) []Diff {
	_, start, end, hasNL, tooHigh := e.lineBounds(lineNumber)
	if tooHigh {
		return nil
	}

	stop := end
	if hasNL {
		stop = end + 1
	}

	length := stop - start
	if length <= 0 {
		return nil
	}

	return e.Delete(start-1, length)
}

// FormatLine merges meta into every piece of lineNumber, including its
// terminating line feed (so GetLineMeta observes the change).
func (e *Engine) FormatLine(lineNumber int, meta *OrderedMap) []Diff {
	_, start, end, hasNL, tooHigh := e.lineBounds(lineNumber)
	if tooHigh {
		return nil
	}

	stop := end
	if hasNL {
		stop = end + 1
	}

	length := stop - start
	if length <= 0 {
		return nil
	}

	return e.Format(start-1, length, meta, FilterAll)
}

// formatInLine formats [startInLine, startInLine+length) within lineNumber's
// content (never reaching its terminating line feed), subject to filter.
func (e *Engine) formatInLine(lineNumber, startInLine, length int, meta *OrderedMap, filter TypeFilter) []Diff {
	_, start, end, _, tooHigh := e.lineBounds(lineNumber)
	if tooHigh {
		return nil
	}

	lineLen := end - start
	if startInLine < 0 {
		startInLine = 0
	}

	if startInLine > lineLen {
		return nil
	}

	avail := lineLen - startInLine
	if length > avail {
		length = avail
	}

	if length <= 0 {
		return nil
	}

	externalStart := start + startInLine - 1

	return e.Format(externalStart, length, meta, filter)
}

// FormatInLine formats a sub-range of lineNumber's content regardless of
// piece type.
func (e *Engine) FormatInLine(lineNumber, startInLine, length int, meta *OrderedMap) []Diff {
	return e.formatInLine(lineNumber, startInLine, length, meta, FilterAll)
}

// FormatTextInLine formats only TEXT pieces within a sub-range of
// lineNumber's content.
func (e *Engine) FormatTextInLine(lineNumber, startInLine, length int, meta *OrderedMap) []Diff {
	return e.formatInLine(lineNumber, startInLine, length, meta, FilterText)
}

// FormatNonTextInLine formats only NON_TEXT pieces within a sub-range of
// lineNumber's content.
func (e *Engine) FormatNonTextInLine(lineNumber, startInLine, length int, meta *OrderedMap) []Diff {
	return e.formatInLine(lineNumber, startInLine, length, meta, FilterNonText)
}

// StartChange opens a change-group bracket; every push until the matching
// EndChange joins the same undo/redo unit.
func (e *Engine) StartChange() {
	e.changes.startChange()
}

// EndChange closes the currently open change-group bracket.
func (e *Engine) EndChange() {
	e.changes.endChange()
}

// Change brackets fn's mutations into a single undo/redo group. Per §7, the
// source silently swallows any error or panic from the callback and still
// closes the group; set e.PropagateChangeErrors to have it returned instead.
func (e *Engine) Change(fn func() error) (err error) {
	e.StartChange()

	defer func() {
		if r := recover(); r != nil && e.PropagateChangeErrors {
			err = fmt.Errorf("piecetree: change callback panicked: %v", r)
		}

		e.EndChange()
	}()

	if cbErr := fn(); cbErr != nil && e.PropagateChangeErrors {
		err = cbErr
	}

	return err
}

// Undo pops the most recent change group and applies each change's inverse
// in reverse order, returning the concatenated diffs with insert/remove
// directionality flipped.
func (e *Engine) Undo() []Diff {
	return e.changes.undo(e)
}

// Redo re-applies the most recently undone group in its original order.
func (e *Engine) Redo() []Diff {
	group, ok := e.changes.redo()
	if !ok {
		return nil
	}

	var diffs []Diff

	for _, c := range group {
		diffs = append(diffs, e.redoApply(c)...)
	}

	return diffs
}

// redoApply replays a single recorded change's forward mutation directly
// against the tree/buffers, bypassing the public Insert/Delete/Format
// wrappers (which would push a new change and clear the redo stack).
func (e *Engine) redoApply(c Change) []Diff {
	switch v := c.(type) {
	case InsertChange:
		text := e.buffers.Text(appendBufferIndex, v.BufferStart, v.BufferLength)
		internal := biasOffset(v.Offset)
		diffs, _, _ := e.insertDecomposed(internal, text, v.Meta, false, v.BufferStart)

		return diffs
	case DeleteChange:
		diffs, _ := e.deleteInternal(biasOffset(v.Offset), v.OriginalLength)

		return diffs
	case FormatChange:
		internal := biasOffset(v.Offset)
		if v.BeforeFirstLine {
			internal = 0
		}

		diffs, _ := e.formatInternal(internal, v.Length, v.Meta, FilterAll)

		return diffs
	default:
		return nil
	}
}
