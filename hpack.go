package h2core

import (
	"bytes"

	"golang.org/x/net/http2/hpack"
)

// HPACKContext owns the single encoder and single decoder for one
// connection direction pair. The decoder must see every header-carrying
// frame's fully reassembled block, in receive order, regardless of which
// stream it belongs to or whether that stream is still of interest —
// otherwise its dynamic table desyncs from the peer's encoder and the
// whole connection is unrecoverable.
type HPACKContext struct {
	enc *hpack.Encoder
	dec *hpack.Decoder

	encBuf bytes.Buffer
	fields []hpack.HeaderField
}

// NewHPACKContext builds an HPACK context whose decoder's dynamic table
// is bounded by maxDecodeTableSize (our own advertised
// HEADER_TABLE_SIZE) and whose encoder starts with the RFC 7541 default
// of 4096, shrunk as the peer's SETTINGS lower it.
func NewHPACKContext(maxDecodeTableSize uint32) *HPACKContext {
	h := &HPACKContext{}
	h.enc = hpack.NewEncoder(&h.encBuf)
	h.dec = hpack.NewDecoder(maxDecodeTableSize, h.onField)
	return h
}

func (h *HPACKContext) onField(f hpack.HeaderField) {
	h.fields = append(h.fields, f)
}

// SetPeerTableSize applies a HEADER_TABLE_SIZE change the peer
// acknowledged from us, bounding how large our own decoder's dynamic
// table is allowed to grow.
func (h *HPACKContext) SetPeerTableSize(size uint32) {
	h.dec.SetMaxDynamicTableSize(size)
}

// SetEncoderTableSize applies a HEADER_TABLE_SIZE the peer advertised to
// us, bounding the encoder's dynamic table so its dynamic-table-size
// updates stay within what the peer's decoder will accept.
func (h *HPACKContext) SetEncoderTableSize(size uint32) {
	h.enc.SetMaxDynamicTableSize(size)
}

// DecodeFragment feeds one reassembled header block (already
// defragmented across CONTINUATIONs) through the decoder and returns the
// header fields it yielded.
func (h *HPACKContext) DecodeFragment(block []byte) ([]hpack.HeaderField, error) {
	h.fields = h.fields[:0]
	if _, err := h.dec.Write(block); err != nil {
		return nil, NewError(CompressionError, "hpack decode failed: "+err.Error())
	}
	if err := h.dec.Close(); err != nil {
		return nil, NewError(CompressionError, "hpack decode close failed: "+err.Error())
	}
	// Close ends this header block and readies the decoder, dynamic
	// table intact, for the next one. The fields are copied out because
	// h.fields is reused by the next call.
	out := make([]hpack.HeaderField, len(h.fields))
	copy(out, h.fields)
	return out, nil
}

// EncodeFields compresses fields into one header block and hands the
// caller an owned copy; the encoder writes into the context's reused
// scratch buffer rather than allocating one per call.
func (h *HPACKContext) EncodeFields(fields []hpack.HeaderField) ([]byte, error) {
	h.encBuf.Reset()
	for _, f := range fields {
		if err := h.enc.WriteField(f); err != nil {
			return nil, NewError(CompressionError, "hpack encode failed: "+err.Error())
		}
	}
	out := make([]byte, h.encBuf.Len())
	copy(out, h.encBuf.Bytes())
	return out, nil
}
