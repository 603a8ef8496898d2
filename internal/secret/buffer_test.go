package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	b, err := New(32)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 32, b.Len())
	assert.Len(t, b.Bytes(), 32)
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)

	_, err = New(-1)
	assert.Error(t, err)
}

func TestNewFromBytes_ZeroesSource(t *testing.T) {
	source := []byte{1, 2, 3, 4}
	b, err := NewFromBytes(source)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []byte{1, 2, 3, 4}, b.Bytes())
	assert.Equal(t, []byte{0, 0, 0, 0}, source)
}

func TestNewFromBytes_Empty(t *testing.T) {
	_, err := NewFromBytes(nil)
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	b, err := NewFromBytes([]byte("correct horse"))
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, b.Equal([]byte("correct horse")))
	assert.False(t, b.Equal([]byte("battery staple")))
	assert.False(t, b.Equal(nil))
}

func TestClose_Idempotent(t *testing.T) {
	b, err := New(16)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestClose_ZeroesContents(t *testing.T) {
	b, err := NewFromBytes([]byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)

	// Hold a reference into the mapping before Close releases it.
	data := b.Bytes()
	copied := make([]byte, len(data))
	copy(copied, data)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, copied)

	require.NoError(t, b.Close())

	assert.Panics(t, func() { b.Bytes() })
	assert.Panics(t, func() { b.Equal([]byte{0xde, 0xad, 0xbe, 0xef}) })
}
