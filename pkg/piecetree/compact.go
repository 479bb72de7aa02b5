package piecetree

import (
	"fmt"
	"os"

	gitbinary "github.com/go-git/go-git/v6/utils/binary"
	"github.com/pierrec/lz4/v4"
)

// ErrHibernatedBufferPool is returned when an operation that needs live
// buffer contents is attempted on a hibernated pool.
var ErrHibernatedBufferPool = fmt.Errorf("piecetree: buffer pool is hibernated, call Boot first")

// ErrNotHibernated is returned when Serialize is attempted on a pool that
// has not been hibernated.
var ErrNotHibernated = fmt.Errorf("piecetree: Serialize requires a hibernated buffer pool")

// Hibernate LZ4-compresses every original buffer (indices 1..N) in place,
// freeing their uncompressed string storage. The append buffer (index 0) is
// excluded: it is still being written to by continuous-append inserts, so
// the source's own "compact" note (§5, §9) only ever applies to buffers that
// are immutable after load. Mirrors rbtree.Allocator.Hibernate's
// deinterleave-then-compress shape, simplified to one buffer per slot
// instead of six parallel columns.
func (bp *BufferPool) Hibernate() {
	if bp.hibernated {
		return
	}

	bp.hibernatedData = make([][]byte, len(bp.original))
	bp.hibernatedLens = make([]int, len(bp.original))

	for idx, s := range bp.original {
		if idx == appendBufferIndex {
			continue
		}

		bp.hibernatedLens[idx] = len(s)
		bp.hibernatedData[idx] = compressBytes([]byte(s))
	}

	bp.original = nil
	bp.hibernated = true
}

// Boot reverses Hibernate, decompressing every original buffer back into
// live strings.
func (bp *BufferPool) Boot() {
	if !bp.hibernated {
		return
	}

	bp.original = make([]string, len(bp.hibernatedData))

	for idx, compressed := range bp.hibernatedData {
		if idx == appendBufferIndex {
			bp.original[idx] = ""

			continue
		}

		bp.original[idx] = string(decompressBytes(compressed, bp.hibernatedLens[idx]))
	}

	bp.hibernatedData = nil
	bp.hibernatedLens = nil
	bp.hibernated = false
}

// Serialize writes a hibernated pool's compressed original buffers to path,
// framed with go-git's variable-width integers exactly as
// rbtree.Allocator.Serialize frames its own compressed columns.
func (bp *BufferPool) Serialize(path string) error {
	if !bp.hibernated {
		return ErrNotHibernated
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if err := gitbinary.WriteVariableWidthInt(file, int64(len(bp.hibernatedData))); err != nil {
		return fmt.Errorf("write buffer count: %w", err)
	}

	for idx, compressed := range bp.hibernatedData {
		if err := gitbinary.WriteVariableWidthInt(file, int64(bp.hibernatedLens[idx])); err != nil {
			return fmt.Errorf("write original length %d: %w", idx, err)
		}

		if err := gitbinary.WriteVariableWidthInt(file, int64(len(compressed))); err != nil {
			return fmt.Errorf("write compressed length %d: %w", idx, err)
		}

		if _, err := file.Write(compressed); err != nil {
			return fmt.Errorf("write buffer %d: %w", idx, err)
		}
	}

	return nil
}

// Deserialize loads a pool previously written by Serialize. The pool is left
// hibernated; call Boot to resume normal reads.
func (bp *BufferPool) Deserialize(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	count, err := gitbinary.ReadVariableWidthInt(file)
	if err != nil {
		return fmt.Errorf("read buffer count: %w", err)
	}

	bp.hibernatedData = make([][]byte, count)
	bp.hibernatedLens = make([]int, count)

	for idx := range int(count) {
		origLen, err := gitbinary.ReadVariableWidthInt(file)
		if err != nil {
			return fmt.Errorf("read original length %d: %w", idx, err)
		}

		bp.hibernatedLens[idx] = int(origLen)

		compLen, err := gitbinary.ReadVariableWidthInt(file)
		if err != nil {
			return fmt.Errorf("read compressed length %d: %w", idx, err)
		}

		buf := make([]byte, compLen)

		n, err := file.Read(buf)
		if err != nil {
			return fmt.Errorf("read buffer %d: %w", idx, err)
		}

		if int64(n) != compLen {
			return fmt.Errorf("%w %d: %d instead of %d", ErrIncompleteBufferRead, idx, n, compLen)
		}

		bp.hibernatedData[idx] = buf
	}

	bp.original = nil
	bp.hibernated = true

	return nil
}

// ErrIncompleteBufferRead is returned when Deserialize reads fewer bytes
// than a buffer's recorded compressed length.
var ErrIncompleteBufferRead = fmt.Errorf("piecetree: incomplete buffer read")

func compressBytes(data []byte) []byte {
	if len(data) == 0 {
		return []byte{}
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	written, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil || written == 0 {
		// Incompressible input: store literal bytes, same length as original.
		return append([]byte{}, data...)
	}

	return compressed[:written]
}

func decompressBytes(compressed []byte, originalLen int) []byte {
	if originalLen == 0 {
		return nil
	}

	out := make([]byte, originalLen)

	n, err := lz4.UncompressBlock(compressed, out)
	if err != nil || n != originalLen {
		// Fell back to storing the literal bytes in compressBytes.
		if len(compressed) == originalLen {
			return append([]byte{}, compressed...)
		}

		return out
	}

	return out
}
