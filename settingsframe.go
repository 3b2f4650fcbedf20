package h2core

import "github.com/domsolutions/h2core/http2utils"

// SettingID identifies one entry of a SETTINGS frame, RFC 7540 section
// 6.5.2.
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// Settings is the SETTINGS frame payload: an ordered list of ID/value
// pairs (order matters on apply per RFC 7540 section 6.5.3) plus the ACK
// flag.
type Settings struct {
	Ack    bool
	Values []SettingEntry
}

// SettingEntry is one ID/value pair carried by a SETTINGS frame.
type SettingEntry struct {
	ID    SettingID
	Value uint32
}

func (s *Settings) Type() FrameType { return FrameSettings }

func (s *Settings) Deserialize(fr *FrameHeader) error {
	s.Ack = fr.HasFlag(FlagAck)
	if s.Ack {
		if fr.Length != 0 {
			return NewError(FrameSizeError, "SETTINGS ack must be empty")
		}
		return nil
	}
	if fr.Stream != 0 {
		return NewError(ProtocolError, "SETTINGS frame on non-zero stream")
	}
	if fr.Length%6 != 0 {
		return NewError(FrameSizeError, "SETTINGS payload not a multiple of 6")
	}
	s.Values = s.Values[:0]
	for i := 0; i+6 <= len(fr.payload); i += 6 {
		id := SettingID(uint16(fr.payload[i])<<8 | uint16(fr.payload[i+1]))
		val := http2utils.BytesToUint32(fr.payload[i+2 : i+6])
		s.Values = append(s.Values, SettingEntry{ID: id, Value: val})
	}
	return nil
}

func (s *Settings) Serialize(fr *FrameHeader) error {
	if s.Ack {
		fr.Flags |= FlagAck
		return nil
	}
	for _, e := range s.Values {
		var idb [2]byte
		idb[0] = byte(e.ID >> 8)
		idb[1] = byte(e.ID)
		fr.payload = append(fr.payload, idb[:]...)
		fr.payload = http2utils.AppendUint32Bytes(fr.payload, e.Value)
	}
	return nil
}
