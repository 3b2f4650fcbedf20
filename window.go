package h2core

import "math"

// maxWindowSize is the largest value a flow-control window may hold, per
// RFC 7540 section 6.9.1.
const maxWindowSize = 1<<31 - 1

// Window is a flow-control credit counter. It is signed because a
// SETTINGS_INITIAL_WINDOW_SIZE decrease can legally drive a stream's
// window negative (RFC 7540 section 6.9.2); further WINDOW_UPDATEs bring
// it back up before any more DATA may be sent.
type Window int32

// Add applies delta, returning a FLOW_CONTROL_ERROR if the result would
// overflow the 31-bit window space defined by RFC 7540 section 6.9.1.
func (w *Window) Add(delta int32) error {
	next := int64(*w) + int64(delta)
	if next > maxWindowSize || next < math.MinInt32 {
		return NewError(FlowControlError, "window update overflows 31-bit space")
	}
	*w = Window(next)
	return nil
}

func (w Window) Available() int32 { return int32(w) }
