package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/a-essam23/go-place/pkg/config"
	"github.com/a-essam23/go-place/pkg/pipeline"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestDefaults(t *testing.T) {
	cfg := config.Defaults()

	if cfg.Canvas.Size != 256 {
		t.Errorf("Expected canvas size 256, got %d", cfg.Canvas.Size)
	}
	if cfg.Session.ReconnectDelay != 5*time.Second {
		t.Errorf("Expected reconnect delay 5s, got %v", cfg.Session.ReconnectDelay)
	}
	if cfg.Session.MaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", cfg.Session.MaxAttempts)
	}
	if cfg.Topics.PresenceRemoval != "presence-removal" {
		t.Errorf("Unexpected removal topic %q", cfg.Topics.PresenceRemoval)
	}
	if cfg.Chat.DedupWindow != time.Second {
		t.Errorf("Expected dedup window 1s, got %v", cfg.Chat.DedupWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("canvas:\n  size: 64\ntransport:\n  kind: redis\n")
	if err := os.WriteFile(filepath.Join(dir, "place.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	t.Setenv("GOPLACE_SESSION_MAXATTEMPTS", "2")

	cfg, err := config.Load(newTestLogger(), "place")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Canvas.Size != 64 {
		t.Errorf("Expected file override size 64, got %d", cfg.Canvas.Size)
	}
	if cfg.Transport.Kind != "redis" {
		t.Errorf("Expected redis transport, got %s", cfg.Transport.Kind)
	}
	if cfg.Session.MaxAttempts != 2 {
		t.Errorf("Expected env override 2, got %d", cfg.Session.MaxAttempts)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(c *config.Config){
		"size":      func(c *config.Config) { c.Canvas.Size = 0 },
		"zoom":      func(c *config.Config) { c.Canvas.MinZoom = 5 },
		"attempts":  func(c *config.Config) { c.Session.MaxAttempts = -1 },
		"transport": func(c *config.Config) { c.Transport.Kind = "carrier-pigeon" },
		"topic":     func(c *config.Config) { c.Topics.Chat = "" },
		"shared":    func(c *config.Config) { c.Topics.Presence = c.Topics.Canvas },
		"chatSend":  func(c *config.Config) { c.Topics.ChatSend = "" },
		"sweep":     func(c *config.Config) { c.Presence.SweepInterval = 0 },
		"threshold": func(c *config.Config) { c.Presence.Threshold = -time.Second },
		"delay":     func(c *config.Config) { c.Session.ReconnectDelay = 0 },
		"ping":      func(c *config.Config) { c.Transport.PingInterval = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Defaults()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestCheckHandlers(t *testing.T) {
	cfg := config.Defaults()
	bound := map[string]bool{}
	provider := func(topic string) (pipeline.HandlerFunc, bool) {
		if !bound[topic] {
			return nil, false
		}
		return func(*pipeline.Cargo) error { return nil }, true
	}

	for _, topic := range cfg.Topics.Inbound()[:3] {
		bound[topic] = true
	}
	if err := config.CheckHandlers(cfg, provider); err == nil {
		t.Error("Expected the unbound removal topic to be reported")
	}
	bound[cfg.Topics.PresenceRemoval] = true
	if err := config.CheckHandlers(cfg, provider); err != nil {
		t.Errorf("Expected every topic bound, got %v", err)
	}
}
