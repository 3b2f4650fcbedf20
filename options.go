package h2core

import (
	"time"

	"github.com/valyala/fasthttp"
)

// ConnOptions carries the settings common to both roles: the initial
// SETTINGS to advertise and the ambient timers layered on top of the
// bare protocol (idle reaping, per-stream lifetime, keepalive pings).
type ConnOptions struct {
	Logger fasthttp.Logger

	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32

	// MaxIdleTime closes the connection if no frame of any kind has
	// arrived from the peer for this long. Zero disables the reaper.
	MaxIdleTime time.Duration
	// MaxStreamLifetime resets any stream that stays open longer than
	// this. Zero disables the per-stream timeout.
	MaxStreamLifetime time.Duration
	// PingInterval schedules an automatic keepalive Ping at this
	// cadence. Zero disables scheduled pings.
	PingInterval time.Duration
}

func (o *ConnOptions) defaults() {
	if o.Logger == nil {
		o.Logger = defaultLogger
	}
	if o.HeaderTableSize == 0 {
		o.HeaderTableSize = settingsDefaults[SettingHeaderTableSize]
	}
	if o.MaxConcurrentStreams == 0 {
		o.MaxConcurrentStreams = settingsDefaults[SettingMaxConcurrentStreams]
	}
	if o.InitialWindowSize == 0 {
		o.InitialWindowSize = settingsDefaults[SettingInitialWindowSize]
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = settingsDefaults[SettingMaxFrameSize]
	}
	if o.MaxHeaderListSize == 0 {
		o.MaxHeaderListSize = settingsDefaults[SettingMaxHeaderListSize]
	}
}

// ClientOptions configures NewClient. Embedding ConnOptions keeps the
// role-agnostic fields in one place without duplicating them.
type ClientOptions struct {
	ConnOptions
}

// ServerOptions configures NewServer.
type ServerOptions struct {
	ConnOptions
}
