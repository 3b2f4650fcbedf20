package h2core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefragSingleFrameNoContinuation(t *testing.T) {
	var d defragmenter
	done, block, err := d.Begin(1, []byte("abc"), true, true)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, []byte("abc"), block)
}

func TestDefragWithContinuation(t *testing.T) {
	var d defragmenter
	done, _, err := d.Begin(1, []byte("ab"), false, false)
	require.NoError(t, err)
	require.False(t, done)

	done, block, endStream, err := d.Append(1, []byte("cd"), true)
	require.NoError(t, err)
	require.True(t, done)
	require.False(t, endStream)
	require.Equal(t, []byte("abcd"), block)
}

func TestDefragRejectsOverlappingHeaders(t *testing.T) {
	var d defragmenter
	_, _, err := d.Begin(1, []byte("a"), false, false)
	require.NoError(t, err)

	_, _, err = d.Begin(3, []byte("b"), false, false)
	require.Error(t, err)
}

func TestDefragRejectsContinuationWrongStream(t *testing.T) {
	var d defragmenter
	_, _, err := d.Begin(1, []byte("a"), false, false)
	require.NoError(t, err)

	_, _, _, err = d.Append(3, []byte("b"), true)
	require.Error(t, err)
}

func TestDefragRejectsStrayContinuation(t *testing.T) {
	var d defragmenter
	_, _, _, err := d.Append(1, []byte("x"), true)
	require.Error(t, err)
}
