package h2core

import (
	"bytes"
	"io"
)

// ClientPreface is the fixed 24-octet sequence a client must send before
// any frame, per RFC 7540 section 3.5.
const ClientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// writePreface sends the client preface on the wire. Servers never send it.
func writePreface(w io.Writer) error {
	_, err := io.WriteString(w, ClientPreface)
	return err
}

// readPreface reads and validates the 24-octet client preface. Any
// mismatch is a connection-fatal protocol error; RFC 7540 section 3.5
// requires the server to not even attempt a GOAWAY in this case since the
// peer may not be speaking HTTP/2 at all, but this package still reports
// it uniformly as an Error for the caller to act on.
func readPreface(r io.Reader) error {
	buf := make([]byte, len(ClientPreface))
	if _, err := io.ReadFull(r, buf); err != nil {
		return NewTransportError(err)
	}
	if !bytes.Equal(buf, []byte(ClientPreface)) {
		return NewError(ProtocolError, "invalid connection preface")
	}
	return nil
}
