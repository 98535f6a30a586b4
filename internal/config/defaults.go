package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "https://api.arcade.live/v1"
	DefaultGatewayURL         = "wss://gw.arcade.live"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultIdentityPath       = "tablesync.db"
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultFrameBuffer        = 256
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultMaxAttempts        = 5
	DefaultRefreshInterval    = 5 * time.Minute
	DefaultRefreshConcurrency = 4
	DefaultRefreshTimeout     = 10 * time.Second
	DefaultDebugPort          = 8090
)

func (c *ClientConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.GatewayURL == "" {
		c.API.GatewayURL = DefaultGatewayURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Identity defaults
	if c.Identity.Path == "" {
		c.Identity.Path = DefaultIdentityPath
	}

	// Stream defaults
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.FrameBuffer == 0 {
		c.Stream.FrameBuffer = DefaultFrameBuffer
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxAttempts == 0 {
		c.Stream.MaxAttempts = DefaultMaxAttempts
	}

	// Refresh defaults
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = DefaultRefreshInterval
	}
	if c.Refresh.Concurrency == 0 {
		c.Refresh.Concurrency = DefaultRefreshConcurrency
	}
	if c.Refresh.Timeout == 0 {
		c.Refresh.Timeout = DefaultRefreshTimeout
	}

	// Debug defaults
	if c.Debug.Port == 0 {
		c.Debug.Port = DefaultDebugPort
	}
}
