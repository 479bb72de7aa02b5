package piecetree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool_HibernateBootRoundTrip(t *testing.T) {
	t.Parallel()

	bp := NewBufferPool("the quick brown fox", "jumps over the lazy dog")
	bp.Append("typed text")

	before1 := bp.Text(1, 0, 19)
	before2 := bp.Text(2, 0, 23)

	bp.Hibernate()
	assert.True(t, bp.hibernated)

	assert.Panics(t, func() { bp.Text(1, 0, 1) })

	bp.Boot()
	assert.False(t, bp.hibernated)

	assert.Equal(t, before1, bp.Text(1, 0, 19))
	assert.Equal(t, before2, bp.Text(2, 0, 23))
	assert.Equal(t, "typed text", bp.Text(appendBufferIndex, 0, 10))
}

func TestBufferPool_HibernateIsIdempotent(t *testing.T) {
	t.Parallel()

	bp := NewBufferPool("abc")
	bp.Hibernate()
	bp.Hibernate()

	assert.True(t, bp.hibernated)
}

func TestBufferPool_BootOnNonHibernatedIsNoop(t *testing.T) {
	t.Parallel()

	bp := NewBufferPool("abc")
	bp.Boot()

	assert.Equal(t, "abc", bp.Text(1, 0, 3))
}

func TestBufferPool_SerializeRequiresHibernation(t *testing.T) {
	t.Parallel()

	bp := NewBufferPool("abc")
	err := bp.Serialize(filepath.Join(t.TempDir(), "buf.bin"))
	require.ErrorIs(t, err, ErrNotHibernated)
}

func TestBufferPool_SerializeDeserializeRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "buf.bin")

	bp := NewBufferPool("the quick brown fox jumps over the lazy dog", "second original buffer")
	bp.Hibernate()

	require.NoError(t, bp.Serialize(path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded := NewBufferPool()
	require.NoError(t, loaded.Deserialize(path))
	assert.True(t, loaded.hibernated)

	loaded.Boot()
	assert.Equal(t, "the quick brown fox jumps over the lazy dog", loaded.Text(1, 0, 43))
	assert.Equal(t, "second original buffer", loaded.Text(2, 0, 22))
}

func TestBufferPool_SerializeDeserializeEmptyBuffer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.bin")

	bp := NewBufferPool("")
	bp.Hibernate()
	require.NoError(t, bp.Serialize(path))

	loaded := NewBufferPool()
	require.NoError(t, loaded.Deserialize(path))
	loaded.Boot()

	assert.Equal(t, "", loaded.Text(1, 0, 0))
}

func TestCompressDecompressBytes_RoundTrip(t *testing.T) {
	t.Parallel()

	data := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaabbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	compressed := compressBytes(data)
	decompressed := decompressBytes(compressed, len(data))

	assert.Equal(t, data, decompressed)
}

func TestCompressDecompressBytes_EmptyInput(t *testing.T) {
	t.Parallel()

	compressed := compressBytes(nil)
	assert.Empty(t, compressed)

	decompressed := decompressBytes(compressed, 0)
	assert.Empty(t, decompressed)
}
