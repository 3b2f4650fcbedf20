package h2core

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2/hpack"
)

func newTestConnPair(t *testing.T) (*Connection, *Connection) {
	t.Helper()

	clientConn, serverConn := net.Pipe()

	type result struct {
		c   *Connection
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		c, err := NewClient(clientConn, ClientOptions{})
		clientCh <- result{c, err}
	}()
	go func() {
		s, err := NewServer(serverConn, ServerOptions{})
		serverCh <- result{s, err}
	}()

	cr := <-clientCh
	sr := <-serverCh
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)
	return cr.c, sr.c
}

func TestHandshakeReachesOperational(t *testing.T) {
	client, server := newTestConnPair(t)
	defer client.Terminate(context.Background())
	defer server.Terminate(context.Background())

	require.Eventually(t, func() bool {
		return client.State() == StateOperational && server.State() == StateOperational
	}, time.Second, time.Millisecond)
}

func TestPingRoundTrip(t *testing.T) {
	client, server := newTestConnPair(t)
	defer client.Terminate(context.Background())
	defer server.Terminate(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx))
}

func TestFinishSendsGoAway(t *testing.T) {
	client, server := newTestConnPair(t)
	defer client.Terminate(context.Background())
	defer server.Terminate(context.Background())

	require.NoError(t, client.Finish())
	require.Eventually(t, func() bool {
		return client.State() == StateFinishing
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return server.State() == StateFinishing
	}, time.Second, time.Millisecond)
}

func TestTerminateIsIdempotent(t *testing.T) {
	client, _ := newTestConnPair(t)
	require.NoError(t, client.Terminate(context.Background()))
	require.NoError(t, client.Terminate(context.Background()))
	require.Equal(t, StateTerminated, client.State())
}

func TestPingAfterTerminateReturnsErrTerminated(t *testing.T) {
	client, server := newTestConnPair(t)
	defer server.Terminate(context.Background())

	require.NoError(t, client.Terminate(context.Background()))
	err := client.Ping(context.Background())
	require.ErrorIs(t, err, ErrTerminated)
}

func TestClientRequestReachesServerAsStreamEvents(t *testing.T) {
	client, server := newTestConnPair(t)
	defer client.Terminate(context.Background())
	defer server.Terminate(context.Background())

	require.Eventually(t, func() bool {
		return client.State() == StateOperational && server.State() == StateOperational
	}, time.Second, time.Millisecond)

	stream, err := client.OpenStream()
	require.NoError(t, err)

	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/"},
	}
	require.NoError(t, stream.SendHeaders(fields, false))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, stream.SendData(ctx, []byte("payload"), true))

	serverStream, ok := waitForServerStream(t, server, stream.ID)
	require.True(t, ok)

	var headerEvent, dataEvent *StreamEvent
	deadline := time.After(2 * time.Second)
	for headerEvent == nil || dataEvent == nil {
		select {
		case ev, ok := <-serverStream.Events():
			if !ok {
				t.Fatal("server stream events closed early")
			}
			if ev.Headers != nil {
				headerEvent = ev
			}
			if ev.Data != nil {
				dataEvent = ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for stream events")
		}
	}

	require.Equal(t, "GET", findHeader(headerEvent.Headers, ":method"))
	require.Equal(t, []byte("payload"), dataEvent.Data)
	require.True(t, dataEvent.EndStream)
}

func waitForServerStream(t *testing.T, server *Connection, id uint32) (*Stream, bool) {
	t.Helper()
	var st *Stream
	var ok bool
	require.Eventually(t, func() bool {
		st, ok = server.streams.Get(id)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return st, ok
}

func findHeader(fields []hpack.HeaderField, name string) string {
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func TestFailEmitsGoAwayWithClassifiedCode(t *testing.T) {
	clientConn, peerConn := net.Pipe()

	goAwayCh := make(chan *GoAway, 1)
	go func() {
		br := bufio.NewReader(peerConn)
		bw := bufio.NewWriter(peerConn)

		buf := make([]byte, len(ClientPreface))
		if _, err := io.ReadFull(br, buf); err != nil {
			return
		}

		settingsFr := AcquireFrameHeader()
		settingsFr.Frame = &Settings{}
		if err := settingsFr.WriteTo(bw); err != nil {
			return
		}
		bw.Flush()

		for {
			fr := AcquireFrameHeader()
			if err := fr.ReadFrom(br, defaultMaxFrameSize); err != nil {
				return
			}
			if ga, ok := fr.Frame.(*GoAway); ok {
				goAwayCh <- ga
				return
			}
		}
	}()

	client, err := NewClient(clientConn, ClientOptions{})
	require.NoError(t, err)
	defer client.Terminate(context.Background())

	require.Eventually(t, func() bool {
		return client.State() == StateOperational
	}, time.Second, time.Millisecond)

	client.fail(NewError(FlowControlError, "synthetic failure"))

	select {
	case ga := <-goAwayCh:
		require.Equal(t, FlowControlError, ga.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive a GOAWAY carrying the classified error code")
	}
}

func TestFinishRefusesNewLocalStreams(t *testing.T) {
	client, server := newTestConnPair(t)
	defer client.Terminate(context.Background())
	defer server.Terminate(context.Background())

	require.Eventually(t, func() bool {
		return client.State() == StateOperational
	}, time.Second, time.Millisecond)

	require.NoError(t, client.Finish())
	_, err := client.OpenStream()
	require.Error(t, err)
}
