package config

import "time"

// ClientConfig is the root configuration for a syncd instance.
type ClientConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Identity IdentityConfig `yaml:"identity"`
	Stream   StreamConfig   `yaml:"stream"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Debug    DebugConfig    `yaml:"debug"`
}

// InstanceConfig identifies this client instance in logs.
type InstanceConfig struct {
	Name string `yaml:"name"`
}

// APIConfig holds platform endpoints and credentials.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	GatewayURL string        `yaml:"gateway_url"`
	InitData   string        `yaml:"init_data"` // Signed session token, usually ${ARCADE_INIT_DATA}
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// IdentityConfig holds client identity persistence settings.
type IdentityConfig struct {
	Path string `yaml:"path"` // SQLite file holding the stable client ID
}

// StreamConfig holds gateway connection settings.
type StreamConfig struct {
	GameID             string        `yaml:"game_id"` // Empty = watch the whole games list
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	FrameBuffer        int           `yaml:"frame_buffer"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxAttempts        int           `yaml:"max_attempts"`
}

// RefreshConfig holds REST reconcile settings.
type RefreshConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DebugConfig holds the local debug HTTP server settings.
type DebugConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}
