package piecetree

// PiecePatch records one formatted piece's meta patch, enough to invert a
// FormatChange: locate the node again at StartOffset and replay
// InversePatches against its meta.
type PiecePatch struct {
	StartOffset    int
	Length         int
	InversePatches []Patch
}

// Change is one recorded mutation: InsertChange, DeleteChange or
// FormatChange. invert returns the diffs the inverse application produced.
type Change interface {
	invert(e *Engine) []Diff
}

// InsertChange records an insertion so it can be undone (by deleting the
// inserted span) and redone (by re-inserting buffer 0's recorded slice).
type InsertChange struct {
	Offset int
	// BufferStart/BufferLength address the slice of buffer 0 that was
	// written by this insert; redo replays exactly this slice, never
	// re-running the coalescing logic.
	BufferStart, BufferLength int
	Meta                      *OrderedMap
	Diffs                     []Diff
}

func (c InsertChange) invert(e *Engine) []Diff {
	e.delete(c.Offset, c.BufferLength)

	return flipDiffs(c.Diffs)
}

// DeleteChange records a deletion so it can be undone by re-inserting the
// captured pieces.
type DeleteChange struct {
	Offset         int
	OriginalLength int
	Captured       []Piece
	Diffs          []Diff
}

func (c DeleteChange) invert(e *Engine) []Diff {
	e.reinsertPieces(c.Offset, c.Captured)

	return flipDiffs(c.Diffs)
}

// FormatChange records a format pass so it can be undone by replaying each
// piece's inverse meta patches.
type FormatChange struct {
	Offset       int
	Length       int
	Meta         *OrderedMap
	PiecePatches []PiecePatch
	Diffs        []Diff
	// BeforeFirstLine marks a change produced by FormatBeforeFirstLine:
	// redo must resolve it to internal offset 0 directly rather than
	// biasing Offset by the leading line-feed piece.
	BeforeFirstLine bool
}

func (c FormatChange) invert(e *Engine) []Diff {
	for _, pp := range c.PiecePatches {
		e.applyInverseMetaPatch(pp)
	}

	return flipDiffs(c.Diffs)
}

// changeStack is a grouped, reversible history of changes. A push outside an
// open bracket becomes a singleton group.
type changeStack struct {
	undoGroups  [][]Change
	redoGroups  [][]Change
	openGroup   []Change
	groupOpen   bool
	groupDepth  int
}

func newChangeStack() *changeStack {
	return &changeStack{}
}

// startChange opens a bracket; pushes until the matching endChange join the
// same group. Nested start/end calls are flattened into one group.
func (s *changeStack) startChange() {
	s.groupDepth++

	if s.groupOpen {
		return
	}

	s.groupOpen = true
	s.openGroup = nil
}

// endChange closes the bracket and commits the accumulated group, if any.
func (s *changeStack) endChange() {
	if !s.groupOpen {
		return
	}

	s.groupDepth--
	if s.groupDepth > 0 {
		return
	}

	s.groupOpen = false

	if len(s.openGroup) > 0 {
		s.undoGroups = append(s.undoGroups, s.openGroup)
		s.redoGroups = nil
	}

	s.openGroup = nil
}

// push records a change, joining the currently open group if any, otherwise
// committing it as a singleton group. Any new mutation discards the redo
// stack.
func (s *changeStack) push(c Change) {
	s.redoGroups = nil

	if s.groupOpen {
		s.openGroup = append(s.openGroup, c)

		return
	}

	s.undoGroups = append(s.undoGroups, []Change{c})
}

// undo pops the most recent group and applies each change's inverse in
// reverse order, returning the concatenated diffs with insert/remove
// directionality flipped.
func (s *changeStack) undo(e *Engine) []Diff {
	if len(s.undoGroups) == 0 {
		return nil
	}

	group := s.undoGroups[len(s.undoGroups)-1]
	s.undoGroups = s.undoGroups[:len(s.undoGroups)-1]

	var diffs []Diff

	for i := len(group) - 1; i >= 0; i-- {
		diffs = append(diffs, group[i].invert(e)...)
	}

	s.redoGroups = append(s.redoGroups, group)

	return diffs
}

// redo pops the most recently undone group, moves it back onto the undo
// stack and returns it. It applies nothing itself: Engine.Redo replays each
// returned change's forward mutation from the fields the change recorded.
func (s *changeStack) redo() ([]Change, bool) {
	if len(s.redoGroups) == 0 {
		return nil, false
	}

	group := s.redoGroups[len(s.redoGroups)-1]
	s.redoGroups = s.redoGroups[:len(s.redoGroups)-1]
	s.undoGroups = append(s.undoGroups, group)

	return group, true
}
