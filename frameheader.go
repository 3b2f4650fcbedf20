package h2core

import (
	"io"
	"sync"

	"github.com/domsolutions/h2core/http2utils"
)

const frameHeaderLen = 9

// defaultMaxFrameSize is the RFC 7540 section 4.2 floor every endpoint
// must accept before any SETTINGS negotiation raises it.
const defaultMaxFrameSize = 1 << 14

// maxAllowedFrameSize is the RFC 7540 section 6.5.2 ceiling for
// MAX_FRAME_SIZE (2^24 - 1).
const maxAllowedFrameSize = 1<<24 - 1

// Frame is implemented by every frame payload type. Deserialize reads the
// payload out of fr.payload (already sized to fr.Length); Serialize
// appends the wire payload to fr.payload ahead of Length being fixed up.
type Frame interface {
	Type() FrameType
	Deserialize(fr *FrameHeader) error
	Serialize(fr *FrameHeader) error
}

// FrameHeader is the 9-octet frame header plus the decoded/encoded
// payload type it owns for the duration of one read or write.
type FrameHeader struct {
	Length  int
	Kind    FrameType
	Flags   FrameFlags
	Stream  uint32
	payload []byte
	Frame   Frame
}

var frameHeaderPool = sync.Pool{
	New: func() interface{} { return new(FrameHeader) },
}

func AcquireFrameHeader() *FrameHeader {
	return frameHeaderPool.Get().(*FrameHeader)
}

func ReleaseFrameHeader(fr *FrameHeader) {
	fr.reset()
	frameHeaderPool.Put(fr)
}

func (fr *FrameHeader) reset() {
	fr.Length = 0
	fr.Kind = 0
	fr.Flags = 0
	fr.Stream = 0
	fr.payload = fr.payload[:0]
	fr.Frame = nil
}

func (fr *FrameHeader) HasFlag(flag FrameFlags) bool { return fr.Flags.Has(flag) }

// ReadFrom parses one frame header and its payload from r, enforcing
// maxFrameSize (the peer's advertised MAX_FRAME_SIZE), then builds and
// populates the concrete Frame for fr.Kind.
func (fr *FrameHeader) ReadFrom(r io.Reader, maxFrameSize uint32) error {
	var raw [frameHeaderLen]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return NewTransportError(err)
	}

	fr.Length = int(http2utils.BytesToUint24(raw[:3]))
	fr.Kind = FrameType(raw[3])
	fr.Flags = FrameFlags(raw[4])
	fr.Stream = http2utils.BytesToUint32(raw[5:9]) & 0x7fffffff

	if uint32(fr.Length) > maxFrameSize {
		return NewError(FrameSizeError, "frame exceeds MAX_FRAME_SIZE")
	}

	fr.payload = http2utils.Resize(fr.payload, fr.Length)
	if fr.Length > 0 {
		if _, err := io.ReadFull(r, fr.payload); err != nil {
			return NewTransportError(err)
		}
	}

	frame, err := newFrame(fr.Kind)
	if err != nil {
		// Unknown frame types are ignored per RFC 7540 section 4.1, not
		// a protocol error; the caller gets a nil Frame and moves on.
		fr.Frame = nil
		return nil
	}
	fr.Frame = frame
	return fr.Frame.Deserialize(fr)
}

// WriteTo serializes fr.Frame into fr.payload and writes the full frame
// (header + payload) to w.
func (fr *FrameHeader) WriteTo(w io.Writer) error {
	fr.payload = fr.payload[:0]
	if fr.Frame != nil {
		fr.Kind = fr.Frame.Type()
		if err := fr.Frame.Serialize(fr); err != nil {
			return err
		}
	}
	fr.Length = len(fr.payload)

	var raw [frameHeaderLen]byte
	http2utils.Uint24ToBytes(raw[:3], uint32(fr.Length))
	raw[3] = byte(fr.Kind)
	raw[4] = byte(fr.Flags)
	http2utils.Uint32ToBytes(raw[5:9], fr.Stream&0x7fffffff)

	if _, err := w.Write(raw[:]); err != nil {
		return NewTransportError(err)
	}
	if fr.Length > 0 {
		if _, err := w.Write(fr.payload); err != nil {
			return NewTransportError(err)
		}
	}
	return nil
}

func newFrame(kind FrameType) (Frame, error) {
	switch kind {
	case FrameData:
		return &Data{}, nil
	case FrameHeaders:
		return &Headers{}, nil
	case FramePriority:
		return &Priority{}, nil
	case FrameResetStream:
		return &RstStream{}, nil
	case FrameSettings:
		return &Settings{}, nil
	case FramePushPromise:
		return &PushPromise{}, nil
	case FramePing:
		return &Ping{}, nil
	case FrameGoAway:
		return &GoAway{}, nil
	case FrameWindowUpdate:
		return &WindowUpdate{}, nil
	case FrameContinuation:
		return &Continuation{}, nil
	default:
		return nil, NewError(ProtocolError, "unknown frame type")
	}
}
