package h2core

import "github.com/valyala/bytebufferpool"

// outboundQueue fragments a stream's pending send buffer into DATA
// frames sized to the lesser of the connection/stream flow-control
// window and the peer's MAX_FRAME_SIZE.
type outboundQueue struct {
	connWindow   *outgoingWindowHandler
	streamWindow *outgoingWindowHandler
	peerMaxFrame func() uint32
}

func newOutboundQueue(connWindow, streamWindow *outgoingWindowHandler, peerMaxFrame func() uint32) *outboundQueue {
	return &outboundQueue{connWindow: connWindow, streamWindow: streamWindow, peerMaxFrame: peerMaxFrame}
}

// NextFragment reserves credit from both windows and returns the slice
// of b that may be sent right now (possibly empty if no credit is
// available yet — the caller should Wait() on both handlers in that
// case). The returned buffer is drawn from a pooled scratch buffer.
func (q *outboundQueue) NextFragment(b []byte) (fragment []byte, release func()) {
	buf := bytebufferpool.Get()

	limit := int32(len(b))
	if m := int32(q.peerMaxFrame()); m < limit {
		limit = m
	}

	got := q.connWindow.Reserve(limit)
	if got == 0 {
		bytebufferpool.Put(buf)
		return nil, func() {}
	}
	reserved := got
	got = q.streamWindow.Reserve(got)
	if got == 0 {
		q.connWindow.Increase(reserved) //nolint:errcheck // returning credit, delta is in-range by construction
		bytebufferpool.Put(buf)
		return nil, func() {}
	}
	if got < reserved {
		// stream window only took part of what we reserved from the
		// connection window; hand the remainder back.
		q.connWindow.Increase(reserved - got) //nolint:errcheck
	}

	buf.Write(b[:got])
	return buf.Bytes(), func() { bytebufferpool.Put(buf) }
}

// inboundQueue accounts DATA bytes arriving on one stream against its
// window and the connection window, and decides when to emit
// replenishing WINDOW_UPDATEs.
type inboundQueue struct {
	connWindow   *incomingWindowHandler
	streamWindow *incomingWindowHandler
}

func newInboundQueue(connWindow, streamWindow *incomingWindowHandler) *inboundQueue {
	return &inboundQueue{connWindow: connWindow, streamWindow: streamWindow}
}

// Accept records n octets of DATA received on the stream, returning the
// WINDOW_UPDATE increments (connection-level, stream-level) that must
// now be sent, either of which may be zero.
func (q *inboundQueue) Accept(n int32) (connIncrement, streamIncrement int32, err error) {
	if err := q.connWindow.Consume(n); err != nil {
		return 0, 0, err
	}
	if err := q.streamWindow.Consume(n); err != nil {
		return 0, 0, err
	}

	if inc, ok := q.connWindow.NeedsTopUp(); ok {
		if err := q.connWindow.ApplyTopUp(inc); err != nil {
			return 0, 0, err
		}
		connIncrement = inc
	}
	if inc, ok := q.streamWindow.NeedsTopUp(); ok {
		if err := q.streamWindow.ApplyTopUp(inc); err != nil {
			return 0, 0, err
		}
		streamIncrement = inc
	}
	return connIncrement, streamIncrement, nil
}
