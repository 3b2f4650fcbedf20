package h2core

// Continuation is the CONTINUATION frame payload (RFC 7540 section 6.10).
// It only ever legally follows a HEADERS or PUSH_PROMISE frame that did
// not set END_HEADERS; the defragmenter enforces that ordering.
type Continuation struct {
	EndHeaders bool
	RawBlock   []byte
}

func (c *Continuation) Type() FrameType { return FrameContinuation }

func (c *Continuation) Deserialize(fr *FrameHeader) error {
	c.EndHeaders = fr.HasFlag(FlagEndHeaders)
	if fr.Stream == 0 {
		return NewError(ProtocolError, "CONTINUATION frame on stream 0")
	}
	c.RawBlock = append(c.RawBlock[:0], fr.payload...)
	return nil
}

func (c *Continuation) Serialize(fr *FrameHeader) error {
	if c.EndHeaders {
		fr.Flags |= FlagEndHeaders
	}
	fr.payload = append(fr.payload, c.RawBlock...)
	return nil
}
