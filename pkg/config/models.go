package config

import "time"

type Config struct {
	Log       LogConfig
	Canvas    CanvasConfig
	Input     InputConfig
	API       APIConfig       `mapstructure:"api"`
	Transport TransportConfig `mapstructure:"transport"`
	Session   SessionConfig   `mapstructure:"session"`
	Topics    TopicsConfig    `mapstructure:"topics"`
	Presence  PresenceConfig  `mapstructure:"presence"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Edit      EditConfig      `mapstructure:"edit"`
	Identity  IdentityConfig  `mapstructure:"identity"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type CanvasConfig struct {
	Size        int     `mapstructure:"size"`
	CellSize    float64 `mapstructure:"cellSize"`
	Padding     float64 `mapstructure:"padding"`
	MinZoom     float64 `mapstructure:"minZoom"`
	MaxZoom     float64 `mapstructure:"maxZoom"`
	InitialZoom float64 `mapstructure:"initialZoom"`
	OffsetX     float64 `mapstructure:"offsetX"`
	OffsetY     float64 `mapstructure:"offsetY"`
}

type InputConfig struct {
	ClickThreshold float64 `mapstructure:"clickThreshold"`
	ZoomStep       float64 `mapstructure:"zoomStep"`
}

type APIConfig struct {
	BaseURL     string        `mapstructure:"baseURL"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxInFlight int           `mapstructure:"maxInFlight"`
}

type TransportConfig struct {
	Kind          string        `mapstructure:"kind"` // "websocket", "redis" or "loopback"
	URL           string        `mapstructure:"url"`
	RedisURL      string        `mapstructure:"redisURL"`
	ChannelPrefix string        `mapstructure:"channelPrefix"`
	// PingInterval paces liveness checks on both transports; a broker that
	// misses a pong for PongTimeout ends the session.
	PingInterval time.Duration `mapstructure:"pingInterval"`
	PongTimeout  time.Duration `mapstructure:"pongTimeout"`
}

type SessionConfig struct {
	ReconnectDelay time.Duration `mapstructure:"reconnectDelay"`
	MaxAttempts    int           `mapstructure:"maxAttempts"`
}

// TopicsConfig maps the logical topics onto broker destinations.
type TopicsConfig struct {
	Canvas          string `mapstructure:"canvas"`
	Chat            string `mapstructure:"chat"`
	Presence        string `mapstructure:"presence"`
	PresenceRemoval string `mapstructure:"presenceRemoval"`
	ChatSend        string `mapstructure:"chatSend"`
}

type PresenceConfig struct {
	Threshold     time.Duration `mapstructure:"threshold"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

type ChatConfig struct {
	DedupWindow time.Duration `mapstructure:"dedupWindow"`
	MaxLength   int           `mapstructure:"maxLength"`
}

type EditConfig struct {
	HighlightDuration time.Duration `mapstructure:"highlightDuration"`
}

type IdentityConfig struct {
	StorePath     string `mapstructure:"storePath"`
	TokenSecret   string `mapstructure:"tokenSecret"`
	MaxNameLength int    `mapstructure:"maxNameLength"`
}
