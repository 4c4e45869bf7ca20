package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/a-essam23/go-place/internal/app"
	"github.com/a-essam23/go-place/internal/edit"
	"github.com/a-essam23/go-place/internal/session"
	"github.com/a-essam23/go-place/pkg/chat"
	"github.com/a-essam23/go-place/pkg/config"
	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/identity"
	"github.com/a-essam23/go-place/pkg/logging"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		return 1
	}
	if level, err := logging.ParseLevel(cfg.Log.Level); err == nil {
		logger = logging.New(level)
		slog.SetDefault(logger)
	} else {
		logger.Warn("Ignoring log level", slog.Any("error", err))
	}

	store, err := identity.OpenBoltStore(cfg.Identity.StorePath)
	if err != nil {
		logger.Error("Failed to open identity store", slog.Any("error", err))
		return 1
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(logger, ctx, cfg, app.Deps{Identities: store}, app.Hooks{
		OnStatus: func(s session.Status) { fmt.Printf("* %s\n", s) },
		OnChat:   func(m chat.Message) { fmt.Printf("<%s> %s\n", m.Sender, m.Content) },
		OnPlaced: func(r edit.Result) {
			if r.Err != nil {
				fmt.Printf("* placement failed: %v\n", r.Err)
			}
		},
	})
	if err != nil {
		logger.Error("Failed to build engine", slog.Any("error", err))
		return 1
	}
	go readCommands(logger, os.Stdin, a, stop)

	if err := a.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		return 1
	}
	logger.Info("Application shut down successfully.")
	return 0
}

type shell interface {
	Rename(name string) error
	SetColor(c grid.Color)
	Reconnect()
	SendChat(content string)
}

// readCommands turns input lines into engine calls. Lines starting with a
// slash are commands; everything else is chat.
func readCommands(logger *slog.Logger, in io.Reader, a shell, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "/nick":
			if err := a.Rename(arg); err != nil {
				fmt.Printf("* %v\n", err)
			}
		case "/color":
			a.SetColor(grid.Color(strings.TrimSpace(arg)))
		case "/reconnect":
			a.Reconnect()
		case "/quit":
			quit()
			return
		default:
			a.SendChat(line)
		}
	}
	// without stdin the engine keeps running until a signal arrives
	if err := scanner.Err(); err != nil {
		logger.Warn("Stopped reading commands", slog.Any("error", err))
	}
}
