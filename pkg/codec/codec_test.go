package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoneRoundTrip(t *testing.T) {
	c, err := ByKind(None)
	require.NoError(t, err)

	data := []byte("hello nyarudb2")
	compressed, err := c.Compress(data)
	require.NoError(t, err)
	assert.Equal(t, data, compressed)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestGeneralRoundTrip(t *testing.T) {
	c, err := ByKind(General)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	compressed, err := c.Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data), "general codec should shrink repetitive input")

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestGeneralDecompressMalformed(t *testing.T) {
	c, err := ByKind(General)
	require.NoError(t, err)

	_, err = c.Decompress([]byte("not a zstd frame"))
	require.Error(t, err)

	var failure *Failure
	assert.ErrorAs(t, err, &failure)
}

func TestByKindUnknown(t *testing.T) {
	_, err := ByKind(Kind(99))
	require.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "general", General.String())
	assert.Contains(t, Kind(7).String(), "unknown")
}
