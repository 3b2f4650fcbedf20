package h2core

import (
	"context"

	"golang.org/x/net/http2/hpack"
)

// StreamEvent is one inbound occurrence delivered on a stream's event
// channel: a reassembled, HPACK-decoded header set, a DATA fragment, or
// an RST_STREAM notice.
type StreamEvent struct {
	Headers   []hpack.HeaderField
	Data      []byte
	EndStream bool
	Reset     *Error
}

// Stream is one multiplexed logical request/response exchange. All
// mutation happens from the connection's single dispatch goroutine;
// Events is read by whatever caller owns the stream.
type Stream struct {
	ID    uint32
	state StreamState
	conn  *Connection

	sendWindow *outgoingWindowHandler
	recvWindow *incomingWindowHandler

	events chan *StreamEvent
	closed bool
}

func newStream(conn *Connection, id uint32, initialSend, initialRecv int32) *Stream {
	return &Stream{
		ID:         id,
		state:      StreamIdle,
		conn:       conn,
		sendWindow: newOutgoingWindowHandler(initialSend),
		recvWindow: newIncomingWindowHandler(initialRecv),
		events:     make(chan *StreamEvent, 16),
	}
}

func (s *Stream) State() StreamState { return s.state }

// Events exposes the inbound notification channel; it is closed when
// the stream reaches StreamClosed.
func (s *Stream) Events() <-chan *StreamEvent { return s.events }

func (s *Stream) deliver(ev *StreamEvent) {
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		// A slow consumer must not stall the single dispatch goroutine;
		// drop and let the RST_STREAM/GOAWAY path surface the loss.
	}
}

func (s *Stream) close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// transition validates and applies a state change per the RFC 7540
// section 5.1 diagram, rejecting transitions the diagram disallows.
func (s *Stream) transition(next StreamState) error {
	if !streamTransitionAllowed(s.state, next) {
		return NewResetStreamError(s.ID, ProtocolError, "illegal stream state transition")
	}
	s.state = next
	if next == StreamClosed {
		s.close()
	}
	return nil
}

// SendHeaders HPACK-encodes fields and writes them as a HEADERS frame,
// splitting into a leading HEADERS plus CONTINUATIONs if the compressed
// block would not fit the peer's MAX_FRAME_SIZE.
func (s *Stream) SendHeaders(fields []hpack.HeaderField, endStream bool) error {
	block, err := s.conn.hpack.EncodeFields(fields)
	if err != nil {
		return err
	}
	return s.conn.sendHeaderBlock(s.ID, block, endStream)
}

// SendData writes data as one or more DATA frames, blocking until flow
// control credit is available for each fragment. ctx bounds the wait.
func (s *Stream) SendData(ctx context.Context, data []byte, endStream bool) error {
	return s.conn.sendData(ctx, s, data, endStream)
}

// Close resets the stream locally, telling the peer to stop sending or
// processing it.
func (s *Stream) Close(code ErrorCode) error {
	return s.conn.resetLocalStream(s, code)
}

func streamTransitionAllowed(from, to StreamState) bool {
	if from == to {
		return true
	}
	switch from {
	case StreamIdle:
		return to == StreamOpen || to == StreamReservedLocal || to == StreamReservedRemote
	case StreamReservedLocal:
		return to == StreamHalfClosedRemote || to == StreamClosed
	case StreamReservedRemote:
		return to == StreamHalfClosedLocal || to == StreamClosed
	case StreamOpen:
		return to == StreamHalfClosedLocal || to == StreamHalfClosedRemote || to == StreamClosed
	case StreamHalfClosedLocal:
		return to == StreamClosed
	case StreamHalfClosedRemote:
		return to == StreamClosed
	case StreamClosed:
		return false
	default:
		return false
	}
}
