package h2core

import "github.com/domsolutions/h2core/http2utils"

// PushPromise is the PUSH_PROMISE frame payload (RFC 7540 section 6.6).
type PushPromise struct {
	EndHeaders     bool
	PromisedStream uint32
	RawBlock       []byte
}

func (p *PushPromise) Type() FrameType { return FramePushPromise }

func (p *PushPromise) Deserialize(fr *FrameHeader) error {
	p.EndHeaders = fr.HasFlag(FlagEndHeaders)

	payload := fr.payload
	if fr.HasFlag(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, fr.Length)
		if err != nil {
			return NewResetStreamError(fr.Stream, ProtocolError, err.Error())
		}
	}
	if len(payload) < 4 {
		return NewError(FrameSizeError, "PUSH_PROMISE truncated")
	}
	p.PromisedStream = http2utils.BytesToUint32(payload[:4]) &^ 0x80000000
	p.RawBlock = append(p.RawBlock[:0], payload[4:]...)
	return nil
}

func (p *PushPromise) Serialize(fr *FrameHeader) error {
	if p.EndHeaders {
		fr.Flags |= FlagEndHeaders
	}
	var b [4]byte
	http2utils.Uint32ToBytes(b[:], p.PromisedStream&^0x80000000)
	fr.payload = append(fr.payload, b[:]...)
	fr.payload = append(fr.payload, p.RawBlock...)
	return nil
}
