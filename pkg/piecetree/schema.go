package piecetree

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMetaSchemaViolation is returned by MergeMetaWithSchema when the merged
// metadata fails the caller's JSON Schema.
var ErrMetaSchemaViolation = fmt.Errorf("piecetree: merged meta violates schema")

// MergeMetaWithSchema runs MergeMeta and then validates the merged result
// against schema before returning it, for callers that want piece/line
// metadata to conform to a contract (e.g. a shared editor-wide attribute
// set). On violation it returns the error and discards the merge: the
// caller's target and the tree are left untouched by formatInternal's
// caller, matching MergeMeta's own no-patches-on-no-op behavior.
func MergeMetaWithSchema(
	target, source *OrderedMap, schema gojsonschema.JSONLoader,
) (merged *OrderedMap, forward, inverse []Patch, err error) {
	merged, forward, inverse = MergeMeta(target, source)

	documentLoader := gojsonschema.NewGoLoader(merged.ToPlain())

	result, validateErr := gojsonschema.Validate(schema, documentLoader)
	if validateErr != nil {
		return nil, nil, nil, fmt.Errorf("piecetree: validate merged meta: %w", validateErr)
	}

	if !result.Valid() {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrMetaSchemaViolation, result.Errors())
	}

	return merged, forward, inverse, nil
}

// FormatWithSchema behaves like Format, except every piece meta merge the
// range would perform is validated against schema before any of them are
// applied: the whole call fails atomically rather than leaving some pieces
// formatted and others not.
func (e *Engine) FormatWithSchema(
	offset, length int, meta *OrderedMap, filter TypeFilter, schema gojsonschema.JSONLoader,
) ([]Diff, error) {
	if length <= 0 || meta == nil {
		return nil, nil
	}

	internal := biasOffset(offset)

	if err := e.validateFormatSchema(internal, length, meta, filter, schema); err != nil {
		return nil, err
	}

	diffs, patches := e.formatInternal(internal, length, meta, filter)

	e.changes.push(FormatChange{
		Offset:       offset,
		Length:       length,
		Meta:         meta.Clone(),
		PiecePatches: patches,
		Diffs:        diffs,
	})

	return diffs, nil
}

// validateFormatSchema dry-runs MergeMetaWithSchema against every piece
// Format would touch, without mutating any of them.
func (e *Engine) validateFormatSchema(
	internalOffset, length int, meta *OrderedMap, filter TypeFilter, schema gojsonschema.JSONLoader,
) error {
	node := e.alignStartBoundary(internalOffset)
	remaining := length

	for remaining > 0 && node != sentinelIdx {
		n := e.tree.alloc.get(node)
		p := n.piece

		if !filter.matches(p.Type()) {
			next := doNext(node, e.tree.alloc)
			remaining -= p.Length
			node = next

			continue
		}

		if _, _, _, err := MergeMetaWithSchema(p.Meta, meta, schema); err != nil {
			return err
		}

		next := doNext(node, e.tree.alloc)
		remaining -= p.Length
		node = next
	}

	return nil
}
