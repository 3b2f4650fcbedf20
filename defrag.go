package h2core

// defragmenter reassembles a HEADERS/PUSH_PROMISE frame plus any trailing
// CONTINUATION frames into one header block, connection-wide: RFC 7540
// section 4.3 requires the whole sequence be treated as a single unit
// regardless of which stream it targets, since an interleaved frame of
// any other type (on any stream) leaves the HPACK decoder unable to ever
// resynchronize.
type defragmenter struct {
	pending   bool
	stream    uint32
	block     []byte
	endStream bool
}

// Begin opens a new in-progress header block. It is an error to call
// Begin while one is already pending.
func (d *defragmenter) Begin(stream uint32, initial []byte, endStream, endHeaders bool) (done bool, block []byte, err error) {
	if d.pending {
		return false, nil, NewError(ProtocolError, "HEADERS/PUSH_PROMISE received while another header block is in progress")
	}
	if endHeaders {
		return true, initial, nil
	}
	d.pending = true
	d.stream = stream
	d.endStream = endStream
	d.block = append(d.block[:0], initial...)
	return false, nil, nil
}

// Append feeds a CONTINUATION frame's fragment into the in-progress
// block. Any CONTINUATION not immediately following the opening frame
// (or its own stream mismatching) is a connection-fatal protocol error.
func (d *defragmenter) Append(stream uint32, frag []byte, endHeaders bool) (done bool, block []byte, endStream bool, err error) {
	if !d.pending {
		return false, nil, false, NewError(ProtocolError, "CONTINUATION frame without a preceding HEADERS/PUSH_PROMISE")
	}
	if stream != d.stream {
		return false, nil, false, NewError(ProtocolError, "CONTINUATION frame for wrong stream")
	}
	d.block = append(d.block, frag...)
	if !endHeaders {
		return false, nil, false, nil
	}
	d.pending = false
	out := d.block
	d.block = nil
	return true, out, d.endStream, nil
}

// Pending reports whether a header block reassembly is currently open,
// and for which stream.
func (d *defragmenter) Pending() (stream uint32, ok bool) {
	return d.stream, d.pending
}
