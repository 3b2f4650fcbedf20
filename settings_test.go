package h2core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsHandlerDefaults(t *testing.T) {
	s := NewSettingsHandler()
	require.EqualValues(t, 4096, s.Local(SettingHeaderTableSize))
	require.EqualValues(t, 65535, s.Peer(SettingInitialWindowSize))
}

func TestSettingsHandlerChangeAckFIFO(t *testing.T) {
	s := NewSettingsHandler()

	frame1, change1 := s.BeginChange(map[SettingID]uint32{SettingInitialWindowSize: 1000})
	require.Len(t, frame1.Values, 1)
	frame2, change2 := s.BeginChange(map[SettingID]uint32{SettingMaxFrameSize: 20000})
	require.Len(t, frame2.Values, 1)

	require.NoError(t, s.ResolveAck())
	select {
	case err := <-change1.done:
		require.NoError(t, err)
	default:
		t.Fatal("expected change1 to resolve first")
	}

	// Only change1's own value must be visible; change2 is still unacked.
	require.EqualValues(t, 1000, s.Local(SettingInitialWindowSize))
	require.NotEqualValues(t, 20000, s.Local(SettingMaxFrameSize))

	select {
	case <-change2.done:
		t.Fatal("change2 should not resolve yet")
	default:
	}

	require.NoError(t, s.ResolveAck())
	select {
	case err := <-change2.done:
		require.NoError(t, err)
	default:
		t.Fatal("expected change2 to resolve")
	}
	require.EqualValues(t, 20000, s.Local(SettingMaxFrameSize))
}

func TestSettingsHandlerRejectsUnmatchedAck(t *testing.T) {
	s := NewSettingsHandler()
	require.Error(t, s.ResolveAck())
}

func TestSettingsHandlerApplyPeerValidates(t *testing.T) {
	s := NewSettingsHandler()
	_, _, err := s.ApplyPeer([]SettingEntry{{ID: SettingEnablePush, Value: 2}})
	require.Error(t, err)
}

func TestSettingsHandlerInitialWindowDelta(t *testing.T) {
	s := NewSettingsHandler()
	delta, ok, err := s.ApplyPeer([]SettingEntry{{ID: SettingInitialWindowSize, Value: 60000}})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, -5535, delta)
	require.EqualValues(t, 60000, s.Peer(SettingInitialWindowSize))
}
