package h2core

import "github.com/domsolutions/h2core/http2utils"

// Priority is the PRIORITY frame payload (RFC 7540 section 6.3). This
// core acknowledges priority frames per spec scope but does not maintain
// a dependency tree; Dependency/Weight are surfaced for observability
// only.
type Priority struct {
	Exclusive  bool
	Dependency uint32
	Weight     uint8
}

func (p *Priority) Type() FrameType { return FramePriority }

func (p *Priority) Deserialize(fr *FrameHeader) error {
	if fr.Stream == 0 {
		return NewError(ProtocolError, "PRIORITY frame on stream 0")
	}
	if len(fr.payload) != 5 {
		return NewError(FrameSizeError, "PRIORITY frame must be 5 octets")
	}
	dep := http2utils.BytesToUint32(fr.payload[:4])
	p.Exclusive = dep&0x80000000 != 0
	p.Dependency = dep &^ 0x80000000
	p.Weight = fr.payload[4]
	if p.Dependency == fr.Stream {
		return NewResetStreamError(fr.Stream, ProtocolError, "stream cannot depend on itself")
	}
	return nil
}

func (p *Priority) Serialize(fr *FrameHeader) error {
	var b [5]byte
	dep := p.Dependency
	if p.Exclusive {
		dep |= 0x80000000
	}
	http2utils.Uint32ToBytes(b[:4], dep)
	b[4] = p.Weight
	fr.payload = append(fr.payload, b[:]...)
	return nil
}
