package h2core

// Ping is the PING frame payload (RFC 7540 section 6.7): exactly 8
// opaque octets, echoed back unchanged with the ACK flag set.
type Ping struct {
	Ack  bool
	Data [8]byte
}

func (p *Ping) Type() FrameType { return FramePing }

func (p *Ping) Deserialize(fr *FrameHeader) error {
	if fr.Stream != 0 {
		return NewError(ProtocolError, "PING frame on non-zero stream")
	}
	if len(fr.payload) != 8 {
		return NewError(FrameSizeError, "PING payload must be 8 octets")
	}
	p.Ack = fr.HasFlag(FlagAck)
	copy(p.Data[:], fr.payload)
	return nil
}

func (p *Ping) Serialize(fr *FrameHeader) error {
	if p.Ack {
		fr.Flags |= FlagAck
	}
	fr.payload = append(fr.payload, p.Data[:]...)
	return nil
}
