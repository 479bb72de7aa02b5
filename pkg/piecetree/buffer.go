package piecetree

import "strings"

// appendBufferIndex is the reserved index of the buffer that newly typed
// text is appended to. It is the only buffer that ever grows.
const appendBufferIndex = 0

// BufferPool is a growing set of immutable-by-convention character buffers.
// Buffer 0 is the append buffer: initially empty, it only ever grows by
// concatenation at the end. Buffers 1..N are original buffers loaded at
// construction time and are never mutated.
//
// The append buffer is kept as a [strings.Builder] rather than repeated
// string concatenation, per the source's own design note that a real
// implementation should track logical length separately from capacity;
// continuous-append detection below uses Len(), the logical length.
type BufferPool struct {
	original []string
	add      strings.Builder

	// hibernated, hibernatedData and hibernatedLens back the non-core
	// compaction pass in compact.go; see Hibernate/Boot.
	hibernated     bool
	hibernatedData [][]byte
	hibernatedLens []int
}

// NewBufferPool creates a pool with the given original buffers (buffer
// indices 1..len(originals)) and an empty append buffer (index 0).
func NewBufferPool(originals ...string) *BufferPool {
	return &BufferPool{original: append([]string{""}, originals...)}
}

// Text returns the substring [start, start+length) of the buffer at
// bufferIndex. A negative bufferIndex (non-text piece) yields the empty
// string.
func (bp *BufferPool) Text(bufferIndex, start, length int) string {
	if bp.hibernated {
		panic(ErrHibernatedBufferPool)
	}

	if bufferIndex < 0 || length == 0 {
		return ""
	}

	if bufferIndex == appendBufferIndex {
		s := bp.add.String()

		return s[start : start+length]
	}

	s := bp.original[bufferIndex]

	return s[start : start+length]
}

// Append concatenates text onto the append buffer and returns the offset at
// which it begins (i.e. the append buffer's length before the call).
func (bp *BufferPool) Append(text string) int {
	start := bp.add.Len()
	bp.add.WriteString(text)

	return start
}

// AppendLength returns the current logical length of the append buffer.
func (bp *BufferPool) AppendLength() int {
	return bp.add.Len()
}

// LoadOriginal appends a new immutable original buffer and returns its
// index. NewEngine does not call it: initial text goes to the append buffer.
func (bp *BufferPool) LoadOriginal(text string) int {
	bp.original = append(bp.original, text)

	return len(bp.original) - 1
}
