package piecetree

// PieceType classifies a Piece for format filtering and diagnostics.
type PieceType int

const (
	// TypeText is a piece addressing ordinary, non-line-feed text.
	TypeText PieceType = iota
	// TypeLineFeed is a piece holding exactly one "\n".
	TypeLineFeed
	// TypeNonText is a piece with no buffer backing (BufferIndex < 0),
	// carrying only metadata.
	TypeNonText
	// TypeStructural is an explicit tag for container pieces (e.g. a
	// paragraph) set by the caller and preserved across mutation.
	TypeStructural
)

// Piece describes a slice of one buffer plus associated metadata. Pieces are
// value types, freely cloned; the tree mutates a node's piece in place only
// for Start, Length, LineFeedCount and Meta, never BufferIndex.
type Piece struct {
	// BufferIndex selects a buffer in the owning BufferPool. A negative
	// value denotes a non-text piece: it carries no text, only Meta.
	BufferIndex int

	// Start and Length address [Start, Start+Length) within the
	// selected buffer, in code units.
	Start, Length int

	// LineFeedCount is the number of '\n' within [Start, Start+Length).
	LineFeedCount int

	// Meta is an optional ordered map of JSON-like attributes. It is an
	// *OrderedMap rather than a bare map[string]any because merge_meta's
	// patch ordering depends on the order keys were first seen, which a
	// Go map cannot preserve.
	Meta *OrderedMap

	// Structural marks this piece as an explicit container tag set by
	// the caller (e.g. a paragraph boundary). It survives splits and is
	// copied onto both halves.
	Structural bool
}

// Type classifies the piece per the source's ordering rule: the Structural
// tag takes priority over every content-based test, so a container piece is
// always reported as TypeStructural even if it also happens to hold a single
// embedded line feed.
func (p Piece) Type() PieceType {
	switch {
	case p.Structural:
		return TypeStructural
	case p.LineFeedCount == 1:
		return TypeLineFeed
	case p.BufferIndex < 0:
		return TypeNonText
	default:
		return TypeText
	}
}

// clone returns a deep copy of p, duplicating Meta so that mutating the
// clone's metadata never affects the original.
func (p Piece) clone() Piece {
	c := p
	c.Meta = p.Meta.Clone()

	return c
}
