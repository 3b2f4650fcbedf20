package h2core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamRegistryLocalIDParity(t *testing.T) {
	client := newStreamRegistry(nil, RoleClient)
	s1, err := client.OpenLocal(65535, 65535)
	require.NoError(t, err)
	require.EqualValues(t, 1, s1.ID)
	s2, err := client.OpenLocal(65535, 65535)
	require.NoError(t, err)
	require.EqualValues(t, 3, s2.ID)

	server := newStreamRegistry(nil, RoleServer)
	s3, err := server.OpenLocal(65535, 65535)
	require.NoError(t, err)
	require.EqualValues(t, 2, s3.ID)
}

func TestStreamRegistryAcceptPeerMonotonic(t *testing.T) {
	r := newStreamRegistry(nil, RoleServer)
	_, err := r.AcceptPeer(1, 65535, 65535)
	require.NoError(t, err)
	_, err = r.AcceptPeer(1, 65535, 65535)
	require.Error(t, err, "reusing a stream ID must fail")

	_, err = r.AcceptPeer(3, 65535, 65535)
	require.NoError(t, err)
	require.EqualValues(t, 3, r.HighestPeerID())
}

func TestStreamRegistryMaxConcurrent(t *testing.T) {
	r := newStreamRegistry(nil, RoleServer)
	r.SetMaxConcurrent(1)
	_, err := r.AcceptPeer(1, 65535, 65535)
	require.NoError(t, err)
	_, err = r.AcceptPeer(3, 65535, 65535)
	require.Error(t, err)
}

func TestStreamRegistryRemove(t *testing.T) {
	r := newStreamRegistry(nil, RoleClient)
	s, err := r.OpenLocal(65535, 65535)
	require.NoError(t, err)
	r.Remove(s.ID)
	_, ok := r.Get(s.ID)
	require.False(t, ok)
}
