package h2core

import "github.com/domsolutions/h2core/http2utils"

// Data is the DATA frame payload (RFC 7540 section 6.1).
type Data struct {
	EndStream bool
	b         []byte
}

func (d *Data) Type() FrameType { return FrameData }

func (d *Data) Bytes() []byte { return d.b }

func (d *Data) SetData(b []byte) {
	d.b = append(d.b[:0], b...)
}

func (d *Data) Len() int { return len(d.b) }

func (d *Data) Deserialize(fr *FrameHeader) error {
	d.EndStream = fr.HasFlag(FlagEndStream)

	payload := fr.payload
	if fr.HasFlag(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, fr.Length)
		if err != nil {
			return NewResetStreamError(fr.Stream, ProtocolError, err.Error())
		}
	}
	if fr.Stream == 0 {
		return NewError(ProtocolError, "DATA frame on stream 0")
	}
	d.b = append(d.b[:0], payload...)
	return nil
}

func (d *Data) Serialize(fr *FrameHeader) error {
	if d.EndStream {
		fr.Flags |= FlagEndStream
	}
	fr.payload = append(fr.payload, d.b...)
	return nil
}
