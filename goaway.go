package h2core

import "github.com/domsolutions/h2core/http2utils"

// GoAway is the GOAWAY frame payload (RFC 7540 section 6.8).
type GoAway struct {
	LastStreamID uint32
	Code         ErrorCode
	Debug        []byte
}

func (g *GoAway) Type() FrameType { return FrameGoAway }

func (g *GoAway) Deserialize(fr *FrameHeader) error {
	if fr.Stream != 0 {
		return NewError(ProtocolError, "GOAWAY frame on non-zero stream")
	}
	if len(fr.payload) < 8 {
		return NewError(FrameSizeError, "GOAWAY payload truncated")
	}
	g.LastStreamID = http2utils.BytesToUint32(fr.payload[:4]) &^ 0x80000000
	g.Code = ErrorCode(http2utils.BytesToUint32(fr.payload[4:8]))
	g.Debug = append(g.Debug[:0], fr.payload[8:]...)
	return nil
}

func (g *GoAway) Serialize(fr *FrameHeader) error {
	var b [8]byte
	http2utils.Uint32ToBytes(b[:4], g.LastStreamID&^0x80000000)
	http2utils.Uint32ToBytes(b[4:], uint32(g.Code))
	fr.payload = append(fr.payload, b[:]...)
	fr.payload = append(fr.payload, g.Debug...)
	return nil
}
