package h2core

import "sync"

// settingsDefaults are the RFC 7540 section 6.5.2 initial values, before
// any SETTINGS frame is ever sent or received.
var settingsDefaults = map[SettingID]uint32{
	SettingHeaderTableSize:      4096,
	SettingEnablePush:           1,
	SettingMaxConcurrentStreams: 0xffffffff, // unbounded until peer says otherwise
	SettingInitialWindowSize:    65535,
	SettingMaxFrameSize:         defaultMaxFrameSize,
	SettingMaxHeaderListSize:    0xffffffff,
}

// settingsChange is one outstanding local Change() call, resolved when
// the peer's SETTINGS ack for it arrives. Changes are resolved strictly
// FIFO, matching the order SETTINGS frames themselves must be applied
// in (RFC 7540 section 6.5.3). values holds only this change's own
// proposed settings, so resolving one change in a FIFO of several never
// promotes another, still-unacked change's values early.
type settingsChange struct {
	values map[SettingID]uint32
	done   chan error
}

// SettingsHandler tracks the two independent settings views a connection
// needs: what we've told the peer and it has acknowledged ("acknowledged",
// i.e. our own outbound settings once confirmed) and what the peer has
// told us ("peer", applied immediately on receipt, no ack wait required
// on the receiving side since SETTINGS frames self-apply before the ack
// is even sent).
type SettingsHandler struct {
	mu           sync.Mutex
	acknowledged map[SettingID]uint32
	peer         map[SettingID]uint32
	pendingAcks  []*settingsChange
}

func NewSettingsHandler() *SettingsHandler {
	s := &SettingsHandler{
		acknowledged: make(map[SettingID]uint32, len(settingsDefaults)),
		peer:         make(map[SettingID]uint32, len(settingsDefaults)),
	}
	for k, v := range settingsDefaults {
		s.acknowledged[k] = v
		s.peer[k] = v
	}
	return s
}

func (s *SettingsHandler) Local(id SettingID) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acknowledged[id]
}

func (s *SettingsHandler) Peer(id SettingID) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer[id]
}

// BeginChange stages a local settings change and returns the frame to
// send plus a change handle whose done channel resolves once the peer
// acks it.
func (s *SettingsHandler) BeginChange(values map[SettingID]uint32) (*Settings, *settingsChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make(map[SettingID]uint32, len(values))
	entries := make([]SettingEntry, 0, len(values))
	for id, v := range values {
		owned[id] = v
		entries = append(entries, SettingEntry{ID: id, Value: v})
	}
	change := &settingsChange{values: owned, done: make(chan error, 1)}
	s.pendingAcks = append(s.pendingAcks, change)
	return &Settings{Values: entries}, change
}

// ResolveAck pops the oldest pending local change and applies only that
// change's own staged values into the acknowledged view, per the FIFO
// ack-ordering rule — any other change still waiting in the queue is left
// untouched until its own ack arrives.
func (s *SettingsHandler) ResolveAck() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pendingAcks) == 0 {
		return NewError(ProtocolError, "unexpected SETTINGS ack")
	}
	change := s.pendingAcks[0]
	s.pendingAcks = s.pendingAcks[1:]

	for id, v := range change.values {
		s.acknowledged[id] = v
	}

	close(change.done)
	return nil
}

// ApplyPeer validates and applies an inbound (non-ack) SETTINGS frame's
// entries to the peer view, returning the INITIAL_WINDOW_SIZE delta (and
// whether the frame carried that setting at all) the caller must
// propagate to every open stream's send window.
func (s *SettingsHandler) ApplyPeer(values []SettingEntry) (windowDelta int32, hasWindowDelta bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range values {
		if err := validateSetting(e.ID, e.Value); err != nil {
			return 0, false, err
		}
	}
	for _, e := range values {
		if e.ID == SettingInitialWindowSize {
			old := s.peer[SettingInitialWindowSize]
			windowDelta = int32(e.Value) - int32(old)
			hasWindowDelta = true
		}
		s.peer[e.ID] = e.Value
	}
	return windowDelta, hasWindowDelta, nil
}

func validateSetting(id SettingID, v uint32) error {
	switch id {
	case SettingEnablePush:
		if v > 1 {
			return NewError(ProtocolError, "SETTINGS_ENABLE_PUSH must be 0 or 1")
		}
	case SettingInitialWindowSize:
		if v > maxWindowSize {
			return NewError(FlowControlError, "SETTINGS_INITIAL_WINDOW_SIZE exceeds 31-bit space")
		}
	case SettingMaxFrameSize:
		if v < defaultMaxFrameSize || v > maxAllowedFrameSize {
			return NewError(ProtocolError, "SETTINGS_MAX_FRAME_SIZE out of range")
		}
	}
	return nil
}
