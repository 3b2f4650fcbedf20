package h2core

import (
	"encoding/binary"
	"sync"

	"github.com/valyala/fastrand"
)

// pingController tracks our own outstanding PING requests and answers
// the peer's. Payloads are generated with fastrand rather than a
// cryptographic source since uniqueness, not unpredictability, is all
// the protocol needs.
type pingController struct {
	mu      sync.Mutex
	pending map[uint64]chan error
}

func newPingController() *pingController {
	return &pingController{pending: make(map[uint64]chan error)}
}

// NewPing stages an outbound, non-ack PING and returns the frame to
// write plus a channel that resolves when its ack arrives (or the
// connection reports a failure by closing it with an error pushed
// first).
func (p *pingController) NewPing() (*Ping, chan error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var payload uint64
	for {
		payload = uint64(fastrand.Uint32())<<32 | uint64(fastrand.Uint32())
		if _, exists := p.pending[payload]; !exists {
			break
		}
	}
	ch := make(chan error, 1)
	p.pending[payload] = ch

	var data [8]byte
	binary.BigEndian.PutUint64(data[:], payload)
	return &Ping{Data: data}, ch
}

// Ack resolves the pending ping matching data's payload, or reports a
// protocol error if the peer acked something we never sent.
func (p *pingController) Ack(data [8]byte) error {
	key := binary.BigEndian.Uint64(data[:])

	p.mu.Lock()
	ch, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.mu.Unlock()

	if !ok {
		return NewError(ProtocolError, "PING ack for unknown payload")
	}
	close(ch)
	return nil
}

// FailAll resolves every outstanding ping with err, used when the
// connection is terminating with pings still in flight.
func (p *pingController) FailAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, ch := range p.pending {
		ch <- err
		close(ch)
		delete(p.pending, key)
	}
}
