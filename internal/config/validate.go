package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Instance.Name == "" {
		return errors.New("instance.name is required")
	}

	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.GatewayURL == "" {
		return errors.New("api.gateway_url is required")
	}
	if c.API.Timeout < time.Second {
		return fmt.Errorf("api.timeout must be >= 1s, got %s", c.API.Timeout)
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Identity.Path == "" {
		return errors.New("identity.path is required")
	}

	if c.Stream.FrameBuffer < 1 {
		return errors.New("stream.frame_buffer must be >= 1")
	}
	if c.Stream.ReconnectBaseDelay < time.Millisecond {
		return errors.New("stream.reconnect_base_delay must be >= 1ms")
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return fmt.Errorf("stream.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			c.Stream.ReconnectMaxDelay, c.Stream.ReconnectBaseDelay)
	}
	if c.Stream.MaxAttempts < 0 {
		return errors.New("stream.max_attempts must be >= 0")
	}

	if c.Refresh.Interval < time.Second {
		return fmt.Errorf("refresh.interval must be >= 1s, got %s", c.Refresh.Interval)
	}
	if c.Refresh.Concurrency < 1 {
		return errors.New("refresh.concurrency must be >= 1")
	}

	if c.Debug.Enabled && (c.Debug.Port < 1 || c.Debug.Port > 65535) {
		return fmt.Errorf("debug.port must be between 1 and 65535, got %d", c.Debug.Port)
	}

	return nil
}
