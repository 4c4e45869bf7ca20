package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/a-essam23/go-place/pkg/api"
	"github.com/a-essam23/go-place/pkg/api/middleware"
	"github.com/a-essam23/go-place/pkg/identity"
	"github.com/a-essam23/go-place/pkg/transport"
	"github.com/a-essam23/go-place/pkg/transport/loopback"
	"github.com/a-essam23/go-place/pkg/transport/redisbus"
)

const tokenTTL = 24 * time.Hour

// tokenSource mints a fresh session token per request so a rename shows up
// in the next one. It returns "" when no secret is configured.
func (a *App) tokenSource() (string, error) {
	secret := a.config.Identity.TokenSecret
	if secret == "" {
		return "", nil
	}
	return a.Identity().Token([]byte(secret), tokenTTL)
}

func (a *App) handshakeHeaders() (http.Header, error) {
	token, err := a.tokenSource()
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	if token != "" {
		h.Set("Cookie", (&http.Cookie{Name: identity.CookieName, Value: token}).String())
	}
	return h, nil
}

func (a *App) newAPIClient() (*api.Client, error) {
	rt := middleware.Chain(http.DefaultTransport,
		middleware.RequestMetadataMiddleware(a.selfKey),
		middleware.NewRequestLogger(a.logger),
		middleware.NewAuthMiddleware(a.logger, identity.CookieName, a.tokenSource),
		middleware.NewInFlightLimiter(a.logger, a.config.API.MaxInFlight),
	)
	return api.NewClient(a.logger, api.Options{
		BaseURL:   a.config.API.BaseURL,
		Timeout:   a.config.API.Timeout,
		Transport: rt,
	})
}

func (a *App) newDialer() (transport.Dialer, error) {
	cfg := a.config.Transport
	switch cfg.Kind {
	case "websocket":
		return &transport.WebsocketDialer{
			URL:     cfg.URL,
			Config:  transport.ConnectionConfig{PingInterval: cfg.PingInterval, PongTimeout: cfg.PongTimeout},
			Headers: a.handshakeHeaders,
			Logger:  a.logger,
		}, nil
	case "redis":
		return &redisbus.Dialer{
			URL:          cfg.RedisURL,
			Prefix:       cfg.ChannelPrefix,
			PingInterval: cfg.PingInterval,
			Logger:       a.logger,
		}, nil
	case "loopback":
		return loopback.NewBroker(), nil
	default:
		return nil, fmt.Errorf("unknown transport kind '%s'", cfg.Kind)
	}
}
