package h2core

import "github.com/domsolutions/h2core/http2utils"

// WindowUpdate is the WINDOW_UPDATE frame payload (RFC 7540 section 6.9).
type WindowUpdate struct {
	Increment uint32
}

func (w *WindowUpdate) Type() FrameType { return FrameWindowUpdate }

func (w *WindowUpdate) Deserialize(fr *FrameHeader) error {
	if len(fr.payload) != 4 {
		return NewError(FrameSizeError, "WINDOW_UPDATE payload must be 4 octets")
	}
	w.Increment = http2utils.BytesToUint32(fr.payload) &^ 0x80000000
	if w.Increment == 0 {
		if fr.Stream == 0 {
			return NewError(ProtocolError, "WINDOW_UPDATE increment must be non-zero")
		}
		return NewResetStreamError(fr.Stream, ProtocolError, "WINDOW_UPDATE increment must be non-zero")
	}
	return nil
}

func (w *WindowUpdate) Serialize(fr *FrameHeader) error {
	var b [4]byte
	http2utils.Uint32ToBytes(b[:], w.Increment&^0x80000000)
	fr.payload = append(fr.payload, b[:]...)
	return nil
}
