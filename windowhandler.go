package h2core

import "sync"

// outgoingWindowHandler gates writers against a flow-control window,
// waking waiters as credit is replenished by WINDOW_UPDATE frames from
// the peer. Increase runs on the dispatch goroutine and Reserve/Wait on
// the sending goroutine; all of them hold mu, so a writer can block on
// its own wait channel without the dispatch goroutine ever blocking.
type outgoingWindowHandler struct {
	mu      sync.Mutex
	window  Window
	waiters []chan struct{}
}

func newOutgoingWindowHandler(initial int32) *outgoingWindowHandler {
	return &outgoingWindowHandler{window: Window(initial)}
}

// Increase applies a WINDOW_UPDATE increment and wakes every waiter,
// closing their channels in the order they queued. The freed credit is
// not assigned to any waiter: woken writers race on Reserve, so the
// order in which they actually obtain credit is not defined.
func (h *outgoingWindowHandler) Increase(delta int32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.window.Add(delta); err != nil {
		return err
	}
	woken := h.waiters
	h.waiters = nil
	for _, ch := range woken {
		close(ch)
	}
	return nil
}

// SetWindow forcibly rewrites the window without waking waiters. The
// SETTINGS_INITIAL_WINDOW_SIZE delta (RFC 7540 section 6.9.2) is applied
// through Increase instead, and this package has no caller of SetWindow.
func (h *outgoingWindowHandler) SetWindow(v Window) {
	h.mu.Lock()
	h.window = v
	h.mu.Unlock()
}

func (h *outgoingWindowHandler) Get() Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.window
}

// Reserve consumes up to want octets of credit and returns how much was
// actually reserved (possibly 0, possibly less than want). The caller is
// responsible for not exceeding MAX_FRAME_SIZE on top of this.
func (h *outgoingWindowHandler) Reserve(want int32) int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	avail := h.window.Available()
	if avail <= 0 {
		return 0
	}
	got := want
	if got > avail {
		got = avail
	}
	h.window -= Window(got)
	return got
}

// Wait returns a channel that closes once more credit might be
// available. Callers must re-check Reserve after it fires since credit
// is not pre-allocated to a particular waiter.
func (h *outgoingWindowHandler) Wait() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan struct{})
	if h.window.Available() > 0 {
		close(ch)
		return ch
	}
	h.waiters = append(h.waiters, ch)
	return ch
}

// incomingWindowHandler tracks how much of our advertised receive window
// the peer has consumed and decides when to emit a WINDOW_UPDATE to top
// it back up. The replenishment threshold is half the initial size.
type incomingWindowHandler struct {
	initial int32
	window  Window
}

func newIncomingWindowHandler(initial int32) *incomingWindowHandler {
	return &incomingWindowHandler{initial: initial, window: Window(initial)}
}

// Consume accounts for n octets of DATA the peer just sent.
func (h *incomingWindowHandler) Consume(n int32) error {
	return h.window.Add(-n)
}

// NeedsTopUp reports whether consumption has crossed the replenishment
// threshold, and if so the increment to send and apply locally.
func (h *incomingWindowHandler) NeedsTopUp() (increment int32, ok bool) {
	if int64(h.window) > int64(h.initial)/2 {
		return 0, false
	}
	increment = h.initial - int32(h.window)
	return increment, increment > 0
}

func (h *incomingWindowHandler) ApplyTopUp(increment int32) error {
	return h.window.Add(increment)
}

// SetInitial changes the size NeedsTopUp replenishes this handler's
// window to; it does not resize the current window.
func (h *incomingWindowHandler) SetInitial(initial int32) {
	h.initial = initial
}
