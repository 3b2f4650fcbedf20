package h2core

import "github.com/domsolutions/h2core/http2utils"

// Headers is the HEADERS frame payload (RFC 7540 section 6.2). RawBlock
// holds the still-compressed header block fragment; reassembly across
// CONTINUATION frames and HPACK decoding both happen above this type.
type Headers struct {
	EndStream  bool
	EndHeaders bool
	HasPriority bool
	Exclusive  bool
	Dependency uint32
	Weight     uint8
	RawBlock   []byte
}

func (h *Headers) Type() FrameType { return FrameHeaders }

func (h *Headers) Deserialize(fr *FrameHeader) error {
	h.EndStream = fr.HasFlag(FlagEndStream)
	h.EndHeaders = fr.HasFlag(FlagEndHeaders)

	payload := fr.payload
	if fr.HasFlag(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, fr.Length)
		if err != nil {
			return NewResetStreamError(fr.Stream, ProtocolError, err.Error())
		}
	}

	h.HasPriority = fr.HasFlag(FlagPriority)
	if h.HasPriority {
		if len(payload) < 5 {
			return NewError(FrameSizeError, "HEADERS priority prefix truncated")
		}
		dep := http2utils.BytesToUint32(payload[:4])
		h.Exclusive = dep&0x80000000 != 0
		h.Dependency = dep &^ 0x80000000
		h.Weight = payload[4]
		payload = payload[5:]
	}

	if fr.Stream == 0 {
		return NewError(ProtocolError, "HEADERS frame on stream 0")
	}

	h.RawBlock = append(h.RawBlock[:0], payload...)
	return nil
}

func (h *Headers) Serialize(fr *FrameHeader) error {
	if h.EndStream {
		fr.Flags |= FlagEndStream
	}
	if h.EndHeaders {
		fr.Flags |= FlagEndHeaders
	}
	if h.HasPriority {
		fr.Flags |= FlagPriority
		var depBytes [4]byte
		dep := h.Dependency
		if h.Exclusive {
			dep |= 0x80000000
		}
		http2utils.Uint32ToBytes(depBytes[:], dep)
		fr.payload = append(fr.payload, depBytes[:]...)
		fr.payload = append(fr.payload, h.Weight)
	}
	fr.payload = append(fr.payload, h.RawBlock...)
	return nil
}
