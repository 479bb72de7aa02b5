package piecetree

import (
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/piecetree/pkg/textutil"
)

// ErrEmptyInsertWithoutMeta is returned by Insert when text is empty and no
// meta is supplied: an empty, meta-less insertion carries no information and
// is rejected rather than silently becoming a no-op.
var ErrEmptyInsertWithoutMeta = errors.New("piecetree: insert requires non-empty text or non-nil meta")

// TypeFilter restricts Format to pieces of a particular classification.
type TypeFilter int

const (
	FilterAll TypeFilter = iota
	FilterText
	FilterNonText
)

func (f TypeFilter) matches(t PieceType) bool {
	switch f {
	case FilterText:
		return t == TypeText
	case FilterNonText:
		return t == TypeNonText
	default:
		return true
	}
}

// Engine is the Mutation Engine: it owns the order-statistic tree and the
// buffer pool beneath it, and is the sole entry point for structural change.
// Every public call here operates on external, 0-based offsets; internally
// offsets are biased by +1 for the permanent leading line-feed piece (see
// seedLeadingLineFeed).
type Engine struct {
	tree    *tree
	buffers *BufferPool
	changes *changeStack

	structuralParent *structuralIndex

	// leadingNode is the permanent line-zero anchor installed by
	// seedLeadingLineFeed. GetText/GetPieces skip it entirely, so it must
	// never be chosen as a continuous-append coalescing target: doing so
	// would merge typed content into a node whose text is never read back.
	leadingNode uint32

	// PropagateChangeErrors controls Change's behavior when the callback
	// panics or returns an error. The source silently swallows it and
	// still closes the group; set true to have Change report it back to
	// the caller after the group still closes (see engineconfig.Config).
	PropagateChangeErrors bool

	// tracer and logger back the Ctx-suffixed entry points in telemetry.go.
	// Both are nil on a plain NewEngine and fall back to no-op/default
	// implementations; NewEngineFromConfig populates them from a
	// telemetry.Providers.
	tracer trace.Tracer
	logger *slog.Logger
}

// NewEngine builds an engine seeded with initialText (which may be empty).
func NewEngine(initialText string) *Engine {
	e := &Engine{
		tree:    newTree(),
		buffers: NewBufferPool(),
		changes: newChangeStack(),
	}

	e.seedLeadingLineFeed()

	if initialText != "" {
		e.insertDecomposed(1, initialText, nil, true, 0)
	}

	return e
}

// seedLeadingLineFeed installs the permanent line-zero anchor: a real node
// holding "\n", but with LineFeedCount forced to 0 so it is never counted by
// get_line_count or found by find_by_line_number. Its content is skipped by
// GetText. This is the engine's sole special-case; every other piece's
// LineFeedCount always matches its buffer slice's actual content.
func (e *Engine) seedLeadingLineFeed() {
	start := e.buffers.Append("\n")
	idx := e.tree.alloc.malloc()
	e.tree.alloc.get(idx).piece = Piece{
		BufferIndex:   appendBufferIndex,
		Start:         start,
		Length:        1,
		LineFeedCount: 0,
	}
	e.tree.attachRoot(idx)
	e.leadingNode = idx
}

// Insert adds text at the given external offset. text may be empty only
// when meta is non-nil (a non-text piece).
func (e *Engine) Insert(offset int, text string, meta *OrderedMap) ([]Diff, error) {
	if text == "" && meta == nil {
		return nil, ErrEmptyInsertWithoutMeta
	}

	internal := biasOffset(offset)

	diffs, bufStart, bufLen := e.insertDecomposed(internal, text, meta, true, 0)

	e.changes.push(InsertChange{
		Offset:       offset,
		BufferStart:  bufStart,
		BufferLength: bufLen,
		Meta:         meta.Clone(),
		Diffs:        diffs,
	})

	return diffs, nil
}

// delete is the internal entry point used by change inversion
// (InsertChange.invert); unlike the public Delete it never pushes a Change.
func (e *Engine) delete(offset, length int) []Diff {
	if length <= 0 {
		return nil
	}

	internal := biasOffset(offset)
	diffs, _ := e.deleteInternal(internal, length)

	return diffs
}

// Delete removes length code units starting at the given external offset.
func (e *Engine) Delete(offset, length int) []Diff {
	if length <= 0 {
		return nil
	}

	internal := biasOffset(offset)
	diffs, captured := e.deleteInternal(internal, length)

	e.changes.push(DeleteChange{
		Offset:         offset,
		OriginalLength: length,
		Captured:       captured,
		Diffs:          diffs,
	})

	return diffs
}

// Format merges meta into every piece overlapping [offset, offset+length),
// subject to filter.
func (e *Engine) Format(offset, length int, meta *OrderedMap, filter TypeFilter) []Diff {
	if length <= 0 || meta == nil {
		return nil
	}

	internal := biasOffset(offset)
	diffs, patches := e.formatInternal(internal, length, meta, filter)

	e.changes.push(FormatChange{
		Offset:       offset,
		Length:       length,
		Meta:         meta.Clone(),
		PiecePatches: patches,
		Diffs:        diffs,
	})

	return diffs
}

// FormatBeforeFirstLine formats length code units anchored at the document's
// start, replacing the source's FIRST_LINE_SPECIAL_SYMBOL sentinel offset
// with a named entry point.
func (e *Engine) FormatBeforeFirstLine(length int, meta *OrderedMap) []Diff {
	if length <= 0 || meta == nil {
		return nil
	}

	diffs, patches := e.formatInternal(0, length, meta, FilterAll)

	e.changes.push(FormatChange{
		Offset:          0,
		Length:          length,
		Meta:            meta.Clone(),
		PiecePatches:    patches,
		Diffs:           diffs,
		BeforeFirstLine: true,
	})

	return diffs
}

// biasOffset maps an external 0-based offset to the internal offset biased
// by the leading line-feed piece; offsets <= 0 clamp to the internal minimum
// of 1 (immediately after that piece).
func biasOffset(offset int) int {
	if offset <= 0 {
		return 1
	}

	return offset + 1
}

// insertDecomposed implements §4.3.2: it locates the insertion anchor, walks
// text splitting on '\n' into TEXT/LINE_FEED pieces, applying the
// continuous-append coalescing optimisation when appendToBuffer is true. If
// appendToBuffer is false the text is assumed to already reside in buffer 0
// starting at reuseStart (used by redo, which must never grow the buffer
// again); in that mode every segment becomes a fresh piece with no
// coalescing, since redo is not a hot typing path.
func (e *Engine) insertDecomposed(
	internalOffset int, text string, meta *OrderedMap, appendToBuffer bool, reuseStart int,
) (diffs []Diff, bufStart, bufLen int) {
	bufStart = -1

	node := e.locateInsertAnchor(internalOffset)

	isContinuousAppend := appendToBuffer && node != sentinelIdx && node != e.leadingNode && e.isAppendTail(node)
	isEmptyMeta := meta == nil || meta.Len() == 0
	isNotLineBreak := node != sentinelIdx && e.tree.alloc.get(node).piece.LineFeedCount == 0

	baseOffset, baseLF := e.tree.precedingCounts(node)
	if node != sentinelIdx {
		n := e.tree.alloc.get(node)
		baseOffset += n.piece.Length
		baseLF += n.piece.LineFeedCount
	}

	consumed := 0
	lineFeedsInserted := 0
	firstLineFeedSeen := false

	var run strings.Builder

	place := func(s string) int {
		if appendToBuffer {
			return e.buffers.Append(s)
		}

		start := reuseStart + consumed
		consumed += len(s)

		return start
	}

	flushRun := func() {
		s := run.String()
		run.Reset()

		if s == "" {
			if meta == nil {
				return
			}
		}

		if !firstLineFeedSeen && isContinuousAppend && isEmptyMeta && isNotLineBreak && s != "" {
			n := e.tree.alloc.get(node)
			if bufStart < 0 {
				bufStart = n.piece.Start + n.piece.Length
			}

			n.piece.Length += len(s)
			_ = place(s) // append buffer bytes; position already implied by coalescing.
			e.tree.updateMetaUpward(node)

			return
		}

		if s == "" && meta == nil {
			return
		}

		start := place(s)
		if bufStart < 0 {
			bufStart = start
		}

		bufferIndex := appendBufferIndex
		if text == "" {
			bufferIndex = -1 // an empty insert with meta is a non-text piece.
		}

		idx := e.tree.alloc.malloc()
		e.tree.alloc.get(idx).piece = Piece{
			BufferIndex:   bufferIndex,
			Start:         start,
			Length:        len(s),
			LineFeedCount: 0,
			Meta:          meta.Clone(),
		}
		e.tree.insertAfter(idx, node)
		node = idx
	}

	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			flushRun()

			start := place("\n")
			if bufStart < 0 {
				bufStart = start
			}

			idx := e.tree.alloc.malloc()
			e.tree.alloc.get(idx).piece = Piece{
				BufferIndex:   appendBufferIndex,
				Start:         start,
				Length:        1,
				LineFeedCount: 1,
				Meta:          meta.Clone(),
			}
			e.tree.insertAfter(idx, node)
			node = idx

			lineFeedsInserted++
			firstLineFeedSeen = true

			continue
		}

		run.WriteByte(text[i])
	}

	flushRun()

	if bufStart < 0 {
		bufStart = reuseStart
		if appendToBuffer {
			bufStart = e.buffers.AppendLength()
		}
	}

	bufLen = len(text)

	diffs = []Diff{{Type: DiffReplace, LineNumber: baseLF + 1}}
	for i := 1; i <= lineFeedsInserted; i++ {
		diffs = append(diffs, Diff{Type: DiffInsert, LineNumber: baseLF + 1 + i})
	}

	return diffs, bufStart, bufLen
}

// isAppendTail reports whether node's piece is the append buffer's current
// tail slice.
func (e *Engine) isAppendTail(node uint32) bool {
	n := e.tree.alloc.get(node)

	return n.piece.BufferIndex == appendBufferIndex && n.piece.Start+n.piece.Length == e.buffers.AppendLength()
}

// locateInsertAnchor implements §4.3.2 step 1: it returns the node after
// which new content should be inserted (sentinelIdx meaning "before
// everything", which cannot occur once the leading piece exists).
func (e *Engine) locateInsertAnchor(internalOffset int) uint32 {
	fr := e.tree.findByOffset(internalOffset)

	switch {
	case fr.remainder == 0:
		return doPrev(fr.node, e.tree.alloc)
	case fr.remainder < e.tree.alloc.get(fr.node).piece.Length:
		return e.splitNode(fr.node, fr.remainder)
	default:
		return fr.node
	}
}

// alignStartBoundary implements the shared delete/format alignment rule: the
// returned node always begins exactly at internalOffset.
func (e *Engine) alignStartBoundary(internalOffset int) uint32 {
	fr := e.tree.findByOffset(internalOffset)

	switch {
	case fr.remainder == 0:
		return fr.node
	case fr.remainder == e.tree.alloc.get(fr.node).piece.Length:
		return doNext(fr.node, e.tree.alloc)
	default:
		e.splitNode(fr.node, fr.remainder)

		return fr.node
	}
}

func (e *Engine) deleteInternal(internalOffset, length int) (diffs []Diff, captured []Piece) {
	node := e.alignStartBoundary(internalOffset)
	_, startLF := e.tree.precedingCounts(node)

	remaining := length
	linesRemoved := 0

	for remaining > 0 && node != sentinelIdx {
		n := e.tree.alloc.get(node)
		p := n.piece

		if remaining >= p.Length {
			linesRemoved += p.LineFeedCount
			captured = append(captured, p.clone())
			next := doNext(node, e.tree.alloc)
			remaining -= p.Length
			e.tree.delete(node)
			node = next

			continue
		}

		tailText := e.buffers.Text(p.BufferIndex, p.Start+remaining, p.Length-remaining)
		newLineFeedCount := textutil.CountLineFeeds([]byte(tailText))
		removedLF := p.LineFeedCount - newLineFeedCount

		captured = append(captured, Piece{
			BufferIndex:   p.BufferIndex,
			Start:         p.Start,
			Length:        remaining,
			LineFeedCount: removedLF,
			Meta:          p.Meta.Clone(),
			Structural:    p.Structural,
		})
		linesRemoved += removedLF

		n.piece.Start += remaining
		n.piece.Length -= remaining
		n.piece.LineFeedCount = newLineFeedCount
		e.tree.updateMetaUpward(node)
		remaining = 0
	}

	diffs = []Diff{{Type: DiffReplace, LineNumber: startLF + 1}}
	for i := 1; i <= linesRemoved; i++ {
		diffs = append(diffs, Diff{Type: DiffRemove, LineNumber: startLF + 1 + i})
	}

	return diffs, captured
}

func (e *Engine) formatInternal(
	internalOffset, length int, meta *OrderedMap, filter TypeFilter,
) (diffs []Diff, patches []PiecePatch) {
	node := e.alignStartBoundary(internalOffset)
	_, startLF := e.tree.precedingCounts(node)

	remaining := length
	linesAffected := 0

	applyTo := func(idx uint32) {
		n := e.tree.alloc.get(idx)
		merged, fwd, inv := MergeMeta(n.piece.Meta, meta)

		if len(fwd) > 0 {
			start, _ := e.tree.precedingCounts(idx)
			patches = append(patches, PiecePatch{StartOffset: start, Length: n.piece.Length, InversePatches: inv})
		}

		n.piece.Meta = merged
		linesAffected += n.piece.LineFeedCount
	}

	for remaining > 0 && node != sentinelIdx {
		n := e.tree.alloc.get(node)
		p := n.piece

		if !filter.matches(p.Type()) {
			next := doNext(node, e.tree.alloc)
			remaining -= p.Length
			node = next

			continue
		}

		if remaining >= p.Length {
			applyTo(node)
			next := doNext(node, e.tree.alloc)
			remaining -= p.Length
			node = next

			continue
		}

		left := e.splitNode(node, remaining)
		applyTo(left)
		remaining = 0
	}

	diffs = make([]Diff, 0, linesAffected+1)
	for i := 0; i <= linesAffected; i++ {
		diffs = append(diffs, Diff{Type: DiffReplace, LineNumber: startLF + 1 + i})
	}

	return diffs, patches
}

// reinsertPieces implements DeleteChange's inverse: re-insert the captured
// pieces, in original order, at the external offset the deletion started
// from.
func (e *Engine) reinsertPieces(offset int, pieces []Piece) {
	internal := biasOffset(offset)
	node := e.locateInsertAnchor(internal)

	for _, p := range pieces {
		idx := e.tree.alloc.malloc()
		e.tree.alloc.get(idx).piece = p.clone()
		e.tree.insertAfter(idx, node)
		node = idx
	}
}

// applyInverseMetaPatch implements FormatChange's inverse: find the node at
// pp.StartOffset and replay its inverse patches against the node's meta.
// findByOffset may report the node that ends at that offset, so such a hit
// advances to the node that begins there.
func (e *Engine) applyInverseMetaPatch(pp PiecePatch) {
	fr := e.tree.findByOffset(pp.StartOffset)
	if fr.node == sentinelIdx {
		return
	}

	node := fr.node
	if fr.remainder > 0 && fr.remainder == e.tree.alloc.get(node).piece.Length {
		node = doNext(node, e.tree.alloc)
		if node == sentinelIdx {
			return
		}
	}

	n := e.tree.alloc.get(node)
	n.piece.Meta = applyPatches(n.piece.Meta, pp.InversePatches)
}

// applyPatches replays a flat patch list (as produced by MergeMeta) against
// target, returning a new map with each patch's path resolved and applied.
func applyPatches(target *OrderedMap, patches []Patch) *OrderedMap {
	out := target.Clone()
	if out == nil {
		out = NewOrderedMap()
	}

	for _, p := range patches {
		applyPatch(out, p)
	}

	return out
}

func applyPatch(m *OrderedMap, p Patch) {
	if len(p.Path) == 0 {
		return
	}

	if len(p.Path) == 1 {
		switch p.Op {
		case PatchRemove:
			m.Delete(p.Path[0])
		default:
			m.Set(p.Path[0], p.Value)
		}

		return
	}

	head := p.Path[0]

	childAny, ok := m.Get(head)

	child, isObj := childAny.(*OrderedMap)
	if !ok || !isObj {
		child = NewOrderedMap()
		m.Set(head, child)
	}

	applyPatch(child, Patch{Op: p.Op, Path: p.Path[1:], Value: p.Value})
}
