package h2core

import "time"

// streamRegistry is the connection's stream table: role-correct
// monotonic ID allocation, MAX_CONCURRENT_STREAMS enforcement, and the
// highest-peer-initiated-ID tracking GOAWAY needs. It is only ever
// touched from the dispatch goroutine, so it needs no internal locking.
type streamRegistry struct {
	role Role
	conn *Connection

	streams map[uint32]*Stream

	nextLocalID   uint32
	highestPeerID uint32
	openLocalCount int
	openPeerCount  int
	maxConcurrent  uint32
}

func newStreamRegistry(conn *Connection, role Role) *streamRegistry {
	r := &streamRegistry{
		role:          role,
		conn:          conn,
		streams:       make(map[uint32]*Stream),
		maxConcurrent: 0xffffffff,
	}
	if role == RoleServer {
		r.nextLocalID = 2
	} else {
		r.nextLocalID = 1
	}
	return r
}

func (r *streamRegistry) SetMaxConcurrent(n uint32) { r.maxConcurrent = n }

func (r *streamRegistry) Get(id uint32) (*Stream, bool) {
	s, ok := r.streams[id]
	return s, ok
}

// OpenLocal allocates the next locally-initiated stream ID (odd for
// clients, even for servers), refusing if MAX_CONCURRENT_STREAMS would
// be exceeded.
func (r *streamRegistry) OpenLocal(initialSend, initialRecv int32) (*Stream, error) {
	if r.conn != nil && r.conn.State() >= StateFinishing {
		return nil, NewUserError("no new streams may be opened once the connection is finishing")
	}
	if uint32(r.openLocalCount) >= r.maxConcurrent {
		return nil, NewError(RefusedStream, "MAX_CONCURRENT_STREAMS exceeded")
	}
	id := r.nextLocalID
	r.nextLocalID += 2
	s := newStream(r.conn, id, initialSend, initialRecv)
	s.state = StreamOpen
	r.streams[id] = s
	r.openLocalCount++
	r.scheduleLifetimeTimeout(id)
	return s, nil
}

// AcceptPeer registers a peer-initiated stream discovered via an
// inbound HEADERS frame. It enforces monotonic IDs and
// MAX_CONCURRENT_STREAMS, and implicitly closes any lower-numbered idle
// stream the peer skipped over (RFC 7540 section 5.1.1).
func (r *streamRegistry) AcceptPeer(id uint32, initialSend, initialRecv int32) (*Stream, error) {
	if id <= r.highestPeerID {
		return nil, NewError(ProtocolError, "stream ID reused or out of order")
	}
	if r.conn != nil && r.conn.State() >= StateFinishing {
		return nil, NewResetStreamError(id, RefusedStream, "connection is finishing, new streams refused")
	}
	if uint32(r.openPeerCount) >= r.maxConcurrent {
		return nil, NewResetStreamError(id, RefusedStream, "MAX_CONCURRENT_STREAMS exceeded")
	}
	r.highestPeerID = id
	s := newStream(r.conn, id, initialSend, initialRecv)
	s.state = StreamOpen
	r.streams[id] = s
	r.openPeerCount++
	r.scheduleLifetimeTimeout(id)
	return s, nil
}

// scheduleLifetimeTimeout arranges for the stream to be reset with Cancel
// once it has been open longer than the connection's configured
// MaxStreamLifetime. The timer fires on its own goroutine and only hands
// the stream ID to the dispatch goroutine via conn.streamTimeout, since
// resetStream itself may only run there.
func (r *streamRegistry) scheduleLifetimeTimeout(id uint32) {
	if r.conn == nil || r.conn.streamLifetime <= 0 {
		return
	}
	conn := r.conn
	time.AfterFunc(conn.streamLifetime, func() {
		select {
		case conn.streamTimeout <- id:
		case <-conn.closed:
		}
	})
}

// Remove drops a stream from the table once it is fully closed and no
// longer needs RST_STREAM/WINDOW_UPDATE bookkeeping.
func (r *streamRegistry) Remove(id uint32) {
	if s, ok := r.streams[id]; ok {
		if isLocalID(r.role, id) {
			r.openLocalCount--
		} else {
			r.openPeerCount--
		}
		delete(r.streams, id)
		s.close()
	}
}

// HighestPeerID is the last-stream-id value this connection would
// report in a GOAWAY.
func (r *streamRegistry) HighestPeerID() uint32 { return r.highestPeerID }

// ForEach applies fn to every currently tracked stream, used when
// propagating an INITIAL_WINDOW_SIZE delta.
func (r *streamRegistry) ForEach(fn func(*Stream)) {
	for _, s := range r.streams {
		fn(s)
	}
}

func isLocalID(role Role, id uint32) bool {
	isEven := id%2 == 0
	return (role == RoleServer) == isEven
}
