package piecetree

// DiffType classifies how a line-level delta should be applied by an
// external consumer.
type DiffType int

const (
	// DiffReplace indicates the content of an existing line changed.
	DiffReplace DiffType = iota
	// DiffInsert indicates a new line was introduced.
	DiffInsert
	// DiffRemove indicates a line was removed.
	DiffRemove
)

// Diff is a line-level description of how an external view should update
// after a mutation. LineNumber is 1-based; for Insert/Replace it refers to
// the state after the operation, for Remove to the state before.
type Diff struct {
	Type       DiffType
	LineNumber int
}

// flipped returns the diff with insert/remove directionality reversed
// (replace is unchanged), as required when undo() replays a group's diffs.
func (d Diff) flipped() Diff {
	switch d.Type {
	case DiffInsert:
		return Diff{Type: DiffRemove, LineNumber: d.LineNumber}
	case DiffRemove:
		return Diff{Type: DiffInsert, LineNumber: d.LineNumber}
	default:
		return d
	}
}

func flipDiffs(diffs []Diff) []Diff {
	out := make([]Diff, len(diffs))
	for i, d := range diffs {
		out[i] = d.flipped()
	}

	return out
}
