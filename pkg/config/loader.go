package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := newViper()

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	v.SetEnvPrefix("GOPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Debug("Configuration loaded",
		slog.String("transport", cfg.Transport.Kind),
		slog.Int("canvasSize", cfg.Canvas.Size),
	)
	return &cfg, nil
}

// Defaults returns the configuration produced by the default values alone.
func Defaults() *Config {
	var cfg Config
	if err := newViper().Unmarshal(&cfg); err != nil {
		panic("config defaults do not decode: " + err.Error())
	}
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "info")

	v.SetDefault("canvas.size", 256)
	v.SetDefault("canvas.cellSize", 16)
	v.SetDefault("canvas.padding", 20)
	v.SetDefault("canvas.minZoom", 1)
	v.SetDefault("canvas.maxZoom", 4)
	v.SetDefault("canvas.initialZoom", 2)
	v.SetDefault("canvas.offsetX", 0)
	v.SetDefault("canvas.offsetY", 0)

	v.SetDefault("input.clickThreshold", 5)
	v.SetDefault("input.zoomStep", 1.1)

	v.SetDefault("api.baseURL", "http://localhost:8080")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.maxInFlight", 4)

	v.SetDefault("transport.kind", "websocket")
	v.SetDefault("transport.url", "ws://localhost:8080/ws")
	v.SetDefault("transport.redisURL", "redis://localhost:6379/0")
	v.SetDefault("transport.channelPrefix", "place:")
	v.SetDefault("transport.pingInterval", "30s")
	v.SetDefault("transport.pongTimeout", "10s")

	v.SetDefault("session.reconnectDelay", "5s")
	v.SetDefault("session.maxAttempts", 5)

	v.SetDefault("topics.canvas", "canvas-updates")
	v.SetDefault("topics.chat", "chat")
	v.SetDefault("topics.presence", "presence")
	v.SetDefault("topics.presenceRemoval", "presence-removal")
	v.SetDefault("topics.chatSend", "chat-send")

	v.SetDefault("presence.threshold", "5s")
	v.SetDefault("presence.sweepInterval", "1s")

	v.SetDefault("chat.dedupWindow", "1s")
	v.SetDefault("chat.maxLength", 200)

	v.SetDefault("edit.highlightDuration", "1s")

	v.SetDefault("identity.storePath", "place-identity.db")
	v.SetDefault("identity.tokenSecret", "")
	v.SetDefault("identity.maxNameLength", 20)
	return v
}

func (c *Config) Validate() error {
	var errs []error
	if c.Canvas.Size <= 0 {
		errs = append(errs, errors.New("canvas.size must be positive"))
	}
	if c.Canvas.CellSize <= 0 {
		errs = append(errs, errors.New("canvas.cellSize must be positive"))
	}
	if c.Canvas.MinZoom <= 0 || c.Canvas.MinZoom > c.Canvas.MaxZoom {
		errs = append(errs, fmt.Errorf("canvas zoom range [%v, %v] is invalid", c.Canvas.MinZoom, c.Canvas.MaxZoom))
	}
	if c.Session.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("session.reconnectDelay must be positive"))
	}
	if c.Presence.Threshold <= 0 {
		errs = append(errs, errors.New("presence.threshold must be positive"))
	}
	if c.Presence.SweepInterval <= 0 {
		errs = append(errs, errors.New("presence.sweepInterval must be positive"))
	}
	if c.Transport.PingInterval < 0 || c.Transport.PongTimeout < 0 {
		errs = append(errs, errors.New("transport keepalive durations cannot be negative"))
	}
	if c.Session.MaxAttempts < 0 {
		errs = append(errs, errors.New("session.maxAttempts cannot be negative"))
	}
	switch c.Transport.Kind {
	case "websocket", "redis", "loopback":
	default:
		errs = append(errs, fmt.Errorf("unknown transport kind '%s'", c.Transport.Kind))
	}
	if err := c.Topics.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
