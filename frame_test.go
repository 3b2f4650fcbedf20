package h2core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, frame Frame, stream uint32) *FrameHeader {
	t.Helper()

	out := AcquireFrameHeader()
	out.Stream = stream
	out.Frame = frame

	var buf bytes.Buffer
	require.NoError(t, out.WriteTo(&buf))

	in := AcquireFrameHeader()
	require.NoError(t, in.ReadFrom(&buf, maxAllowedFrameSize))
	require.Equal(t, out.Kind, in.Kind)
	require.Equal(t, stream, in.Stream)
	return in
}

func TestDataFrameRoundTrip(t *testing.T) {
	d := &Data{EndStream: true}
	d.SetData([]byte("hello world"))

	in := roundTrip(t, d, 1)
	got := in.Frame.(*Data)
	require.Equal(t, []byte("hello world"), got.Bytes())
	require.True(t, got.EndStream)
}

func TestHeadersFrameRoundTrip(t *testing.T) {
	h := &Headers{
		EndStream:   false,
		EndHeaders:  true,
		HasPriority: true,
		Exclusive:   true,
		Dependency:  7,
		Weight:      42,
		RawBlock:    []byte{0x82, 0x84},
	}

	in := roundTrip(t, h, 3)
	got := in.Frame.(*Headers)
	require.True(t, got.EndHeaders)
	require.True(t, got.HasPriority)
	require.True(t, got.Exclusive)
	require.EqualValues(t, 7, got.Dependency)
	require.EqualValues(t, 42, got.Weight)
	require.Equal(t, []byte{0x82, 0x84}, got.RawBlock)
}

func TestSettingsFrameRoundTrip(t *testing.T) {
	s := &Settings{Values: []SettingEntry{
		{ID: SettingInitialWindowSize, Value: 65535},
		{ID: SettingMaxFrameSize, Value: 16384},
	}}

	in := roundTrip(t, s, 0)
	got := in.Frame.(*Settings)
	require.False(t, got.Ack)
	require.Len(t, got.Values, 2)
	require.Equal(t, SettingInitialWindowSize, got.Values[0].ID)
	require.EqualValues(t, 65535, got.Values[0].Value)
}

func TestSettingsAckHasNoPayload(t *testing.T) {
	s := &Settings{Ack: true}
	in := roundTrip(t, s, 0)
	got := in.Frame.(*Settings)
	require.True(t, got.Ack)
	require.Empty(t, got.Values)
}

func TestPingFrameRoundTrip(t *testing.T) {
	p := &Ping{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	in := roundTrip(t, p, 0)
	got := in.Frame.(*Ping)
	require.Equal(t, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, got.Data)
	require.False(t, got.Ack)
}

func TestGoAwayFrameRoundTrip(t *testing.T) {
	g := &GoAway{LastStreamID: 17, Code: ProtocolError, Debug: []byte("bye")}
	in := roundTrip(t, g, 0)
	got := in.Frame.(*GoAway)
	require.EqualValues(t, 17, got.LastStreamID)
	require.Equal(t, ProtocolError, got.Code)
	require.Equal(t, []byte("bye"), got.Debug)
}

func TestWindowUpdateFrameRoundTrip(t *testing.T) {
	w := &WindowUpdate{Increment: 1000}
	in := roundTrip(t, w, 5)
	got := in.Frame.(*WindowUpdate)
	require.EqualValues(t, 1000, got.Increment)
}

func TestWindowUpdateZeroIncrementIsError(t *testing.T) {
	fr := AcquireFrameHeader()
	fr.Stream = 5
	fr.Length = 4
	fr.Kind = FrameWindowUpdate
	fr.Frame = &WindowUpdate{}
	fr.payload = []byte{0, 0, 0, 0}

	err := fr.Frame.Deserialize(fr)
	require.Error(t, err)
}

func TestRstStreamFrameRoundTrip(t *testing.T) {
	r := &RstStream{Code: Cancel}
	in := roundTrip(t, r, 9)
	got := in.Frame.(*RstStream)
	require.Equal(t, Cancel, got.Code)
}

func TestPriorityFrameRejectsSelfDependency(t *testing.T) {
	fr := AcquireFrameHeader()
	fr.Stream = 3
	fr.Length = 5
	p := &Priority{Dependency: 3, Weight: 10}
	fr.payload = make([]byte, 5)
	fr.payload[3] = 3
	err := p.Deserialize(fr)
	require.Error(t, err)
}

func TestFrameExceedingMaxSizeIsRejected(t *testing.T) {
	d := &Data{}
	d.SetData(make([]byte, 100))

	out := AcquireFrameHeader()
	out.Frame = d
	var buf bytes.Buffer
	require.NoError(t, out.WriteTo(&buf))

	in := AcquireFrameHeader()
	err := in.ReadFrom(&buf, 50)
	require.Error(t, err)
}
