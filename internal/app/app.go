// Package app wires the engine together and is the only surface a UI shell
// talks to. Every input method posts to the engine loop and returns at once.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/a-essam23/go-place/internal/edit"
	"github.com/a-essam23/go-place/internal/engine"
	"github.com/a-essam23/go-place/internal/router"
	"github.com/a-essam23/go-place/internal/session"
	"github.com/a-essam23/go-place/internal/viewport"
	"github.com/a-essam23/go-place/pkg/chat"
	"github.com/a-essam23/go-place/pkg/config"
	"github.com/a-essam23/go-place/pkg/geometry"
	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/identity"
	"github.com/a-essam23/go-place/pkg/state"
	"github.com/a-essam23/go-place/pkg/transport"
)

const shutdownTimeout = 5 * time.Second

type SnapshotSource interface {
	FetchCanvas(ctx context.Context) ([]grid.Cell, error)
}

// Deps are the collaborators NewApp would otherwise build from config.
// Any nil field is built from config.
type Deps struct {
	Dialer     transport.Dialer
	Snapshot   SnapshotSource
	Writer     edit.PixelWriter
	Identities identity.Store
}

// Hooks are called on the engine loop; they must not block.
type Hooks struct {
	OnStatus func(session.Status)
	OnChat   func(chat.Message)
	OnPlaced func(edit.Result)
}

type App struct {
	logger *slog.Logger
	config *config.Config
	ctx    context.Context
	hooks  Hooks

	loop     *engine.Loop
	stopLoop context.CancelFunc
	state    *state.State
	registry *engine.Registry
	router   *router.EventRouter
	manager  *session.Manager
	viewport *viewport.Controller
	edit     *edit.Session
	snapshot SnapshotSource

	identities identity.Store
	identity   atomic.Pointer[identity.Identity]
	// color is the palette selection used for clicks. Loop-owned.
	color grid.Color

	shutdownOnce sync.Once
	shutdownErr  error
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, deps Deps, hooks Hooks) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a := &App{
		logger:     logger.With(slog.String("component", "app")),
		config:     cfg,
		ctx:        rootCtx,
		hooks:      hooks,
		identities: deps.Identities,
		color:      "#000000",
	}

	id, err := a.loadIdentity()
	if err != nil {
		return nil, err
	}
	a.identity.Store(&id)

	// the loop outlives rootCtx so Shutdown can still announce and disconnect
	loopCtx, stopLoop := context.WithCancel(context.Background())
	a.stopLoop = stopLoop
	a.loop = engine.NewLoop(logger)
	go a.loop.Run(loopCtx)

	a.state = state.New(state.Options{
		GridSize:    cfg.Canvas.Size,
		DedupWindow: cfg.Chat.DedupWindow,
	})
	if hooks.OnChat != nil {
		a.state.Chat.OnAppend = hooks.OnChat
	}

	a.registry = engine.New(logger)
	a.registry.RegisterCore(&engine.RegisterCoreOptions{Topics: cfg.Topics})
	if err := config.CheckHandlers(cfg, a.registry.GetHandlerFunc); err != nil {
		stopLoop()
		return nil, err
	}
	a.router = router.NewEventRouter(logger, a.registry.GetHandlerFunc, a.state)

	if deps.Snapshot == nil || deps.Writer == nil {
		client, err := a.newAPIClient()
		if err != nil {
			stopLoop()
			return nil, err
		}
		if deps.Snapshot == nil {
			deps.Snapshot = client
		}
		if deps.Writer == nil {
			deps.Writer = client
		}
	}
	if deps.Dialer == nil {
		dialer, err := a.newDialer()
		if err != nil {
			stopLoop()
			return nil, err
		}
		deps.Dialer = dialer
	}
	a.snapshot = deps.Snapshot

	a.manager = session.NewManager(rootCtx, session.Options{
		Dialer:         deps.Dialer,
		Loop:           a.loop,
		Router:         a.router,
		State:          a.state,
		Topics:         cfg.Topics,
		ReconnectDelay: cfg.Session.ReconnectDelay,
		MaxAttempts:    cfg.Session.MaxAttempts,
		ChatMaxLength:  cfg.Chat.MaxLength,
		Identity:       a.Identity,
		OnStatus:       a.onStatus,
		Logger:         logger,
	})

	tr := transformFrom(cfg.Canvas)
	a.viewport = viewport.NewController(tr, tr.Centered(cfg.Canvas.InitialZoom), a.manager, viewport.Options{
		ClickThreshold: cfg.Input.ClickThreshold,
		ZoomStep:       cfg.Input.ZoomStep,
	})
	a.edit = edit.NewSession(rootCtx, logger, a.loop, a.state, deps.Writer, cfg.Edit.HighlightDuration)
	return a, nil
}

func transformFrom(c config.CanvasConfig) geometry.Transform {
	return geometry.Transform{
		GridSize: c.Size,
		CellSize: c.CellSize,
		Padding:  c.Padding,
		MinZoom:  c.MinZoom,
		MaxZoom:  c.MaxZoom,
		OffsetX:  c.OffsetX,
		OffsetY:  c.OffsetY,
	}
}

// loadIdentity restores the persisted display name or makes one up. The
// session id is always new.
func (a *App) loadIdentity() (identity.Identity, error) {
	id := identity.New("")
	if a.identities != nil {
		name, ok, err := a.identities.LoadName()
		if err != nil {
			return identity.Identity{}, err
		}
		if ok {
			id.DisplayName = name
		}
	}
	if id.DisplayName == "" {
		id.DisplayName = "guest-" + id.SessionID.String()[:4]
	}
	return id, nil
}

// Identity is safe to call from any goroutine.
func (a *App) Identity() identity.Identity {
	return *a.identity.Load()
}

func (a *App) selfKey() string {
	return a.Identity().Key()
}

func (a *App) onStatus(s session.Status) {
	switch s {
	case session.Offline:
		a.logger.Error("Connection lost for good, working offline")
	case session.Connected:
		a.logger.Info("Realtime session ready")
	}
	if a.hooks.OnStatus != nil {
		a.hooks.OnStatus(s)
	}
}

// Run loads the canvas, connects and then blocks until the root context
// ends, at which point it shuts down.
func (a *App) Run() error {
	cells, err := a.snapshot.FetchCanvas(a.ctx)
	if err != nil {
		a.logger.Error("Failed to load the canvas snapshot", slog.Any("error", err))
		return errors.Join(fmt.Errorf("load snapshot: %w", err), a.Shutdown())
	}
	a.loop.Post(func() {
		a.state.Grid.Initialize(cells)
		a.manager.Connect()
	})
	a.loop.Every(a.ctx, a.config.Presence.SweepInterval, a.sweepPresence)
	a.logger.Info("Engine running",
		slog.Int("snapshotCells", len(cells)),
		slog.String("identity", a.Identity().DisplayName),
	)

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) sweepPresence() {
	removed := a.state.Presence.SweepExpired(time.Now(), a.config.Presence.Threshold)
	if len(removed) > 0 {
		a.logger.Debug("Expired stale cursors", slog.Int("count", len(removed)))
	}
}

// Shutdown announces our departure, disconnects, and stops the loop. Only
// the first call does anything.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Info("Shutting down engine...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := a.loop.Do(ctx, func() {
			a.manager.AnnounceDeparture()
			a.manager.Disconnect()
			a.state.Highlights.Clear()
		})
		if err == nil {
			// let the departure notice flush
			err = a.manager.WaitClosed(ctx)
		}
		a.stopLoop()
		<-a.loop.Done()
		a.shutdownErr = err
		a.logger.Info("Engine shut down.")
	})
	return a.shutdownErr
}
