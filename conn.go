package h2core

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// Connection is the multiplexing core of one HTTP/2 endpoint: frame
// codec, HPACK, flow control, settings/ping/goaway handling and the
// stream registry, all serialized onto a single dispatch goroutine so
// none of it needs its own lock. Reader and writer goroutines only move
// bytes in and out of channels; they never touch connection state
// directly.
type Connection struct {
	role   Role
	rw     io.ReadWriteCloser
	br     *bufio.Reader
	bw     *bufio.Writer
	logger fasthttp.Logger

	state int32 // ConnState, atomic

	settings   *SettingsHandler
	hpack      *HPACKContext
	connOutWin *outgoingWindowHandler
	connInWin  *incomingWindowHandler
	streams    *streamRegistry
	defrag     defragmenter
	ping       *pingController

	peerMaxFrameSize uint32

	in            chan *FrameHeader
	out           chan *FrameHeader
	closed        chan struct{}
	streamTimeout chan uint32
	stopErr       error

	goAwaySent bool

	streamLifetime time.Duration
	idleTimeout    time.Duration
	idleTimer      *time.Timer
}

// NewClient writes the client connection preface to rw, starts the
// dispatch, reader and writer goroutines and queues the initial SETTINGS
// frame. It returns without waiting for the peer's SETTINGS; the
// connection stays StateInitialized until that frame is dispatched.
func NewClient(rw io.ReadWriteCloser, opts ClientOptions) (*Connection, error) {
	return newConnection(rw, RoleClient, opts.ConnOptions)
}

// NewServer reads and validates the client connection preface from rw,
// starts the dispatch, reader and writer goroutines and queues the
// initial SETTINGS frame. It returns without waiting for the peer's
// SETTINGS; the connection stays StateInitialized until that frame is
// dispatched.
func NewServer(rw io.ReadWriteCloser, opts ServerOptions) (*Connection, error) {
	return newConnection(rw, RoleServer, opts.ConnOptions)
}

func newConnection(rw io.ReadWriteCloser, role Role, opts ConnOptions) (*Connection, error) {
	opts.defaults()

	c := &Connection{
		role:             role,
		rw:               rw,
		br:               bufio.NewReader(rw),
		bw:               bufio.NewWriter(rw),
		logger:           opts.Logger,
		settings:         NewSettingsHandler(),
		hpack:            NewHPACKContext(opts.HeaderTableSize),
		connOutWin:       newOutgoingWindowHandler(int32(settingsDefaults[SettingInitialWindowSize])),
		connInWin:        newIncomingWindowHandler(int32(opts.InitialWindowSize)),
		ping:             newPingController(),
		peerMaxFrameSize: defaultMaxFrameSize,
		in:               make(chan *FrameHeader, 64),
		out:              make(chan *FrameHeader, 64),
		closed:           make(chan struct{}),
		streamTimeout:    make(chan uint32, 16),
	}
	c.streams = newStreamRegistry(c, role)
	c.streams.SetMaxConcurrent(opts.MaxConcurrentStreams)
	c.streamLifetime = opts.MaxStreamLifetime
	atomic.StoreInt32(&c.state, int32(StateInitialized))

	if role == RoleClient {
		if err := writePreface(c.bw); err != nil {
			return nil, err
		}
	} else {
		if err := readPreface(c.br); err != nil {
			return nil, err
		}
	}

	initial := &Settings{Values: []SettingEntry{
		{ID: SettingHeaderTableSize, Value: opts.HeaderTableSize},
		{ID: SettingEnablePush, Value: boolToUint32(opts.EnablePush)},
		{ID: SettingMaxConcurrentStreams, Value: opts.MaxConcurrentStreams},
		{ID: SettingInitialWindowSize, Value: opts.InitialWindowSize},
		{ID: SettingMaxFrameSize, Value: opts.MaxFrameSize},
		{ID: SettingMaxHeaderListSize, Value: opts.MaxHeaderListSize},
	}}
	// state stays Initialized until the peer's own first frame — which
	// must be a non-ack SETTINGS — is processed in dispatch().

	if opts.MaxIdleTime > 0 {
		c.idleTimeout = opts.MaxIdleTime
		c.idleTimer = time.AfterFunc(opts.MaxIdleTime, func() {
			c.fail(NewError(ProtocolError, "connection idle timeout"))
		})
	}
	if opts.PingInterval > 0 {
		go c.keepalive(opts.PingInterval)
	}

	go c.readLoop()
	go c.writeLoop()
	go c.dispatchLoop()

	// Queued through the same channel the writer goroutine drains for
	// every other outbound frame, rather than written synchronously here:
	// a synchronous write could block on the peer's read before either
	// side has started its loops, since this duplex offers no send
	// buffering beyond what the channel itself provides.
	fr := AcquireFrameHeader()
	fr.Frame = initial
	c.send(fr)

	return c, nil
}

// keepalive sends an automatic PING on every tick until the connection
// closes, discarding individual failures since a single dropped
// keepalive is not itself fatal — the idle timer (if configured) is
// what eventually tears down a truly dead peer.
func (c *Connection) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_ = c.Ping(ctx)
			cancel()
		case <-c.closed:
			return
		}
	}
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (c *Connection) State() ConnState { return ConnState(atomic.LoadInt32(&c.state)) }

// readLoop only parses frames off the wire and hands them to the
// dispatch goroutine; it never mutates connection state itself.
func (c *Connection) readLoop() {
	for {
		fr := AcquireFrameHeader()
		if err := fr.ReadFrom(c.br, c.peerMaxFrameSize); err != nil {
			ReleaseFrameHeader(fr)
			c.fail(err)
			return
		}
		select {
		case c.in <- fr:
		case <-c.closed:
			ReleaseFrameHeader(fr)
			return
		}
	}
}

// writeLoop drains the outbound frame channel, the only goroutine
// allowed to write to bw.
func (c *Connection) writeLoop() {
	for {
		select {
		case fr, ok := <-c.out:
			if !ok {
				return
			}
			err := fr.WriteTo(c.bw)
			flushErr := c.bw.Flush()
			ReleaseFrameHeader(fr)
			if err != nil {
				c.fail(err)
				return
			}
			if flushErr != nil {
				c.fail(NewTransportError(flushErr))
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) send(fr *FrameHeader) {
	select {
	case c.out <- fr:
	case <-c.closed:
		ReleaseFrameHeader(fr)
	}
}

// dispatchLoop is the sole mutator of all connection and stream state.
func (c *Connection) dispatchLoop() {
	for {
		select {
		case fr := <-c.in:
			err := c.dispatch(fr)
			ReleaseFrameHeader(fr)
			if err != nil {
				if e, ok := err.(*Error); ok && !e.ConnectionScoped() {
					c.resetStream(e.Stream, e.Code)
					continue
				}
				c.fail(err)
				return
			}
		case id := <-c.streamTimeout:
			if st, ok := c.streams.Get(id); ok && st.State() != StreamClosed {
				c.resetStream(id, Cancel)
			}
		case <-c.closed:
			return
		}
	}
}

// dispatch implements the inbound frame algorithm: stream-0 frames are
// handled by the connection-level components; everything else is
// defragmented (if needed), HPACK-decoded (if it carries headers) and
// routed to its stream.
func (c *Connection) dispatch(fr *FrameHeader) error {
	if atomic.LoadInt32(&c.state) == int32(StateTerminated) {
		return nil
	}
	if c.idleTimer != nil {
		c.idleTimer.Reset(c.idleTimeout)
	}

	if atomic.LoadInt32(&c.state) == int32(StateInitialized) {
		s, ok := fr.Frame.(*Settings)
		if !ok || s.Ack {
			return NewGoAwayError(ProtocolError, "first frame on a connection must be a non-ack SETTINGS frame")
		}
	}

	if pendingStream, pending := c.defrag.Pending(); pending {
		if _, ok := fr.Frame.(*Continuation); !ok || fr.Stream != pendingStream {
			return NewGoAwayError(ProtocolError, "frame interleaved with an in-progress HEADERS/PUSH_PROMISE block")
		}
	}

	if fr.Frame == nil {
		return nil // unknown frame type, ignored per RFC 7540 section 4.1
	}

	switch f := fr.Frame.(type) {
	case *Settings:
		if atomic.LoadInt32(&c.state) == int32(StateInitialized) {
			atomic.StoreInt32(&c.state, int32(StateOperational))
		}
		return c.handleSettings(f)
	case *Ping:
		return c.handlePing(f)
	case *WindowUpdate:
		return c.handleWindowUpdate(fr.Stream, f)
	case *GoAway:
		return c.handleGoAway(f)
	case *RstStream:
		return c.handleRstStream(fr.Stream, f)
	case *Priority:
		return nil // acknowledged only; no dependency tree is maintained
	case *Headers:
		return c.handleHeadersFrame(fr.Stream, f)
	case *Continuation:
		return c.handleContinuation(fr.Stream, f)
	case *PushPromise:
		return c.handlePushPromise(fr.Stream, f)
	case *Data:
		return c.handleData(fr.Stream, f)
	default:
		return nil
	}
}

func (c *Connection) handleSettings(s *Settings) error {
	if s.Ack {
		return c.settings.ResolveAck()
	}
	delta, hasDelta, err := c.settings.ApplyPeer(s.Values)
	if err != nil {
		return err
	}
	for _, e := range s.Values {
		switch e.ID {
		case SettingMaxFrameSize:
			c.peerMaxFrameSize = e.Value
		case SettingHeaderTableSize:
			c.hpack.SetEncoderTableSize(e.Value)
		case SettingMaxConcurrentStreams:
			c.streams.SetMaxConcurrent(e.Value)
		}
	}
	if hasDelta {
		var werr error
		c.streams.ForEach(func(st *Stream) {
			if err := st.sendWindow.Increase(delta); err != nil && werr == nil {
				werr = err
			}
		})
		if werr != nil {
			return werr
		}
	}
	ack := AcquireFrameHeader()
	ack.Frame = &Settings{Ack: true}
	c.send(ack)
	return nil
}

func (c *Connection) handlePing(p *Ping) error {
	if p.Ack {
		return c.ping.Ack(p.Data)
	}
	fr := AcquireFrameHeader()
	fr.Frame = &Ping{Ack: true, Data: p.Data}
	c.send(fr)
	return nil
}

func (c *Connection) handleWindowUpdate(stream uint32, w *WindowUpdate) error {
	if stream == 0 {
		return c.connOutWin.Increase(int32(w.Increment))
	}
	st, ok := c.streams.Get(stream)
	if !ok {
		return nil // stream already closed; ignore per RFC 7540 section 5.1
	}
	return st.sendWindow.Increase(int32(w.Increment))
}

func (c *Connection) handleGoAway(g *GoAway) error {
	atomic.StoreInt32(&c.state, int32(StateFinishing))
	c.streams.ForEach(func(st *Stream) {
		st.deliver(&StreamEvent{Reset: NewError(g.Code, "peer is going away")})
	})
	return nil
}

func (c *Connection) handleRstStream(stream uint32, r *RstStream) error {
	st, ok := c.streams.Get(stream)
	if !ok {
		return nil
	}
	st.deliver(&StreamEvent{Reset: NewError(r.Code, "stream reset by peer")})
	_ = st.transition(StreamClosed)
	c.streams.Remove(stream)
	return nil
}

func (c *Connection) handleHeadersFrame(stream uint32, h *Headers) error {
	done, block, err := c.defrag.Begin(stream, h.RawBlock, h.EndStream, h.EndHeaders)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	return c.deliverHeaders(stream, block, h.EndStream)
}

func (c *Connection) handleContinuation(stream uint32, cont *Continuation) error {
	done, block, endStream, err := c.defrag.Append(stream, cont.RawBlock, cont.EndHeaders)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	return c.deliverHeaders(stream, block, endStream)
}

func (c *Connection) deliverHeaders(stream uint32, block []byte, endStream bool) error {
	fields, err := c.hpack.DecodeFragment(block)
	if err != nil {
		return err
	}

	st, ok := c.streams.Get(stream)
	if !ok {
		st, err = c.streams.AcceptPeer(stream, int32(c.settings.Peer(SettingInitialWindowSize)), int32(c.settings.Local(SettingInitialWindowSize)))
		if err != nil {
			return err
		}
	}
	st.deliver(&StreamEvent{Headers: fields, EndStream: endStream})
	if endStream {
		_ = st.transition(nextHalfClosed(st.state, c.role, stream))
	}
	return nil
}

func (c *Connection) handlePushPromise(stream uint32, p *PushPromise) error {
	done, block, err := c.defrag.Begin(stream, p.RawBlock, false, p.EndHeaders)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	fields, err := c.hpack.DecodeFragment(block)
	if err != nil {
		return err
	}
	st, err := c.streams.AcceptPeer(p.PromisedStream, int32(c.settings.Peer(SettingInitialWindowSize)), int32(c.settings.Local(SettingInitialWindowSize)))
	if err != nil {
		return err
	}
	_ = st.transition(StreamReservedRemote)
	st.deliver(&StreamEvent{Headers: fields})
	return nil
}

func (c *Connection) handleData(stream uint32, d *Data) error {
	st, ok := c.streams.Get(stream)
	if !ok {
		return NewError(StreamClosedError, "DATA on unknown stream")
	}

	q := newInboundQueue(c.connInWin, st.recvWindow)
	connInc, streamInc, err := q.Accept(int32(len(d.Bytes())))
	if err != nil {
		return NewResetStreamError(stream, FlowControlError, "flow control violation")
	}

	st.deliver(&StreamEvent{Data: d.Bytes(), EndStream: d.EndStream})
	if d.EndStream {
		_ = st.transition(nextHalfClosed(st.state, c.role, stream))
	}

	if connInc > 0 {
		fr := AcquireFrameHeader()
		fr.Frame = &WindowUpdate{Increment: uint32(connInc)}
		c.send(fr)
	}
	if streamInc > 0 {
		fr := AcquireFrameHeader()
		fr.Stream = stream
		fr.Frame = &WindowUpdate{Increment: uint32(streamInc)}
		c.send(fr)
	}
	return nil
}

// nextHalfClosed picks which half-closed state an END_STREAM flag
// drives a stream into, based on whether this side is the one that just
// received it (remote data ended) or would be the one sending it.
func nextHalfClosed(cur StreamState, role Role, stream uint32) StreamState {
	if cur == StreamHalfClosedLocal || cur == StreamHalfClosedRemote {
		return StreamClosed
	}
	return StreamHalfClosedRemote
}

func (c *Connection) resetStream(stream uint32, code ErrorCode) {
	if stream == 0 {
		return
	}
	fr := AcquireFrameHeader()
	fr.Stream = stream
	fr.Frame = &RstStream{Code: code}
	c.send(fr)
	if st, ok := c.streams.Get(stream); ok {
		st.deliver(&StreamEvent{Reset: NewError(code, "stream reset")})
		_ = st.transition(StreamClosed)
		c.streams.Remove(stream)
	}
}

// OpenStream allocates a new locally-initiated stream and returns it
// ready for SendHeaders.
func (c *Connection) OpenStream() (*Stream, error) {
	return c.streams.OpenLocal(
		int32(c.settings.Peer(SettingInitialWindowSize)),
		int32(c.settings.Local(SettingInitialWindowSize)),
	)
}

// maxFrameSizeFunc is shared by every per-send outboundQueue so changes
// to the peer's SETTINGS_MAX_FRAME_SIZE take effect on the next
// fragment without re-wiring anything.
func (c *Connection) maxFrameSizeFunc() uint32 { return c.peerMaxFrameSize }

// sendHeaderBlock writes an already-HPACK-encoded header block as a
// HEADERS frame, continuing with CONTINUATION frames if it does not fit
// within one MAX_FRAME_SIZE.
func (c *Connection) sendHeaderBlock(stream uint32, block []byte, endStream bool) error {
	limit := int(c.peerMaxFrameSize)
	first := block
	rest := []byte(nil)
	if len(first) > limit {
		first, rest = block[:limit], block[limit:]
	}

	fr := AcquireFrameHeader()
	fr.Stream = stream
	fr.Frame = &Headers{EndStream: endStream, EndHeaders: len(rest) == 0, RawBlock: first}
	c.send(fr)

	for len(rest) > 0 {
		chunk := rest
		end := len(chunk) <= limit
		if !end {
			chunk, rest = rest[:limit], rest[limit:]
		} else {
			rest = nil
		}
		cfr := AcquireFrameHeader()
		cfr.Stream = stream
		cfr.Frame = &Continuation{EndHeaders: end, RawBlock: chunk}
		c.send(cfr)
	}
	return nil
}

// sendData fragments data against the connection and stream windows and
// the peer's MAX_FRAME_SIZE, blocking for credit as needed.
func (c *Connection) sendData(ctx context.Context, st *Stream, data []byte, endStream bool) error {
	q := newOutboundQueue(c.connOutWin, st.sendWindow, c.maxFrameSizeFunc)

	if len(data) == 0 && endStream {
		d := &Data{EndStream: true}
		fr := AcquireFrameHeader()
		fr.Stream = st.ID
		fr.Frame = d
		c.send(fr)
		_ = st.transition(nextHalfClosed(st.state, c.role, st.ID))
		return nil
	}

	for len(data) > 0 {
		fragment, release := q.NextFragment(data)
		if fragment == nil {
			select {
			case <-c.connOutWin.Wait():
			case <-ctx.Done():
				return NewTransportError(ctx.Err())
			case <-c.closed:
				return ErrTerminated
			}
			select {
			case <-st.sendWindow.Wait():
			case <-ctx.Done():
				return NewTransportError(ctx.Err())
			case <-c.closed:
				return ErrTerminated
			}
			continue
		}

		data = data[len(fragment):]
		d := &Data{EndStream: endStream && len(data) == 0}
		d.SetData(fragment)
		release()

		fr := AcquireFrameHeader()
		fr.Stream = st.ID
		fr.Frame = d
		c.send(fr)
	}
	if endStream && len(data) == 0 {
		_ = st.transition(nextHalfClosed(st.state, c.role, st.ID))
	}
	return nil
}

// resetLocalStream sends RST_STREAM for a stream this side is
// abandoning, distinct from resetStream which also reacts to a
// dispatch-time protocol violation.
func (c *Connection) resetLocalStream(st *Stream, code ErrorCode) error {
	fr := AcquireFrameHeader()
	fr.Stream = st.ID
	fr.Frame = &RstStream{Code: code}
	c.send(fr)
	_ = st.transition(StreamClosed)
	c.streams.Remove(st.ID)
	return nil
}

// ChangeSettings stages a local settings change, sends the SETTINGS
// frame, and blocks until the peer's ack resolves it. Values that take
// effect locally (MAX_CONCURRENT_STREAMS, INITIAL_WINDOW_SIZE,
// HEADER_TABLE_SIZE) are applied once the ack arrives, per RFC 7540
// section 6.5.3.
func (c *Connection) ChangeSettings(ctx context.Context, values map[SettingID]uint32) error {
	if c.State() == StateTerminated {
		return ErrTerminated
	}
	frame, change := c.settings.BeginChange(values)
	fr := AcquireFrameHeader()
	fr.Frame = frame
	c.send(fr)

	select {
	case err := <-change.done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return NewTransportError(ctx.Err())
	case <-c.closed:
		return ErrTerminated
	}

	for id, v := range values {
		switch id {
		case SettingMaxConcurrentStreams:
			c.streams.SetMaxConcurrent(v)
		case SettingInitialWindowSize:
			c.connInWin.SetInitial(int32(v))
		case SettingHeaderTableSize:
			c.hpack.SetPeerTableSize(v)
		}
	}
	return nil
}

// Ping sends a PING and blocks until the peer's ack arrives or ctx is
// done.
func (c *Connection) Ping(ctx context.Context) error {
	if c.State() == StateTerminated {
		return ErrTerminated
	}
	frame, done := c.ping.NewPing()
	fr := AcquireFrameHeader()
	fr.Frame = frame
	c.send(fr)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return NewTransportError(ctx.Err())
	case <-c.closed:
		return ErrTerminated
	}
}

// Finish begins a graceful shutdown: a GOAWAY naming the highest stream
// this side has already accepted is sent, but existing streams are left
// to drain. On an already-terminated connection it returns the
// ErrTerminated sentinel rather than a fresh failure; if the connection
// is already finishing it returns nil without sending anything.
func (c *Connection) Finish() error {
	if !atomic.CompareAndSwapInt32(&c.state, int32(StateOperational), int32(StateFinishing)) &&
		!atomic.CompareAndSwapInt32(&c.state, int32(StateInitialized), int32(StateFinishing)) {
		if c.State() == StateTerminated {
			return ErrTerminated
		}
		return nil
	}
	fr := AcquireFrameHeader()
	fr.Frame = &GoAway{LastStreamID: c.streams.HighestPeerID(), Code: NoError}
	c.send(fr)
	c.goAwaySent = true
	return nil
}

// Terminate forcibly tears the connection down: any pending pings are
// failed, a GOAWAY is sent if one has not already gone out, the
// transport is closed and every goroutine this Connection owns exits.
// Terminate itself never fails in a way the caller must react to; its
// only non-nil result is the error from closing the transport. ctx is
// not consulted: the final GOAWAY write and flush are not bounded by it.
func (c *Connection) Terminate(ctx context.Context) error {
	if atomic.SwapInt32(&c.state, int32(StateTerminated)) == int32(StateTerminated) {
		return nil
	}

	if !c.goAwaySent {
		// Written directly rather than queued: the writer goroutine is
		// about to be told to stop via c.closed, and a queued frame could
		// lose the race against that shutdown signal.
		fr := AcquireFrameHeader()
		fr.Frame = &GoAway{LastStreamID: c.streams.HighestPeerID(), Code: NoError}
		if err := fr.WriteTo(c.bw); err == nil {
			c.bw.Flush()
		}
		ReleaseFrameHeader(fr)
	}
	c.ping.FailAll(ErrTerminated)
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}

	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return c.rw.Close()
}

// fail terminates the connection in reaction to a local failure: a
// transport error gets no GOAWAY (there is no working connection left to
// carry one); anything else is reported to the peer with its classified
// ErrorCode so it knows why.
func (c *Connection) fail(err error) {
	if atomic.SwapInt32(&c.state, int32(StateTerminated)) == int32(StateTerminated) {
		return
	}
	c.stopErr = err
	c.logger.Printf("h2core: connection terminating: %v", err)

	if e, ok := err.(*Error); !c.goAwaySent && (!ok || e.Kind != KindTransport) {
		code := InternalError
		if ok {
			code = e.Code
		}
		// Written directly rather than queued: the writer goroutine is
		// about to be told to stop via c.closed, and a queued frame could
		// lose the race against that shutdown signal.
		fr := AcquireFrameHeader()
		fr.Frame = &GoAway{LastStreamID: c.streams.HighestPeerID(), Code: code}
		if werr := fr.WriteTo(c.bw); werr == nil {
			c.bw.Flush()
		}
		ReleaseFrameHeader(fr)
		c.goAwaySent = true
	}

	c.ping.FailAll(err)
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	c.rw.Close()
}
