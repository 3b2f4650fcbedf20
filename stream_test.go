package h2core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamStateTransitions(t *testing.T) {
	s := newStream(nil, 1, 65535, 65535)
	require.Equal(t, StreamIdle, s.State())

	require.NoError(t, s.transition(StreamOpen))
	require.NoError(t, s.transition(StreamHalfClosedRemote))
	require.NoError(t, s.transition(StreamClosed))
	require.Equal(t, StreamClosed, s.State())
}

func TestStreamStateIllegalTransitionRejected(t *testing.T) {
	s := newStream(nil, 1, 65535, 65535)
	require.NoError(t, s.transition(StreamOpen))
	require.NoError(t, s.transition(StreamClosed))
	err := s.transition(StreamOpen)
	require.Error(t, err)
}

func TestStreamEventsChannelClosesOnClose(t *testing.T) {
	s := newStream(nil, 1, 65535, 65535)
	require.NoError(t, s.transition(StreamOpen))
	require.NoError(t, s.transition(StreamClosed))

	_, ok := <-s.Events()
	require.False(t, ok, "events channel must be closed once stream is closed")
}
