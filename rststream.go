package h2core

import "github.com/domsolutions/h2core/http2utils"

// RstStream is the RST_STREAM frame payload (RFC 7540 section 6.4).
type RstStream struct {
	Code ErrorCode
}

func (r *RstStream) Type() FrameType { return FrameResetStream }

func (r *RstStream) Deserialize(fr *FrameHeader) error {
	if fr.Stream == 0 {
		return NewError(ProtocolError, "RST_STREAM frame on stream 0")
	}
	if len(fr.payload) != 4 {
		return NewError(FrameSizeError, "RST_STREAM frame must be 4 octets")
	}
	r.Code = ErrorCode(http2utils.BytesToUint32(fr.payload))
	return nil
}

func (r *RstStream) Serialize(fr *FrameHeader) error {
	var b [4]byte
	http2utils.Uint32ToBytes(b[:], uint32(r.Code))
	fr.payload = append(fr.payload, b[:]...)
	return nil
}
