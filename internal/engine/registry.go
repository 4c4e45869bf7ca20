package engine

import (
	"log/slog"
)

// RegisterCore binds the four inbound topics to their handlers.
func (e *Registry) RegisterCore(opts *RegisterCoreOptions) {
	e.RegisterHandler(opts.Topics.Canvas, handleCanvasUpdate)
	e.RegisterHandler(opts.Topics.Chat, handleChat)
	e.RegisterHandler(opts.Topics.Presence, handlePresence)
	e.RegisterHandler(opts.Topics.PresenceRemoval, handlePresenceRemoval)
	e.logger.Info("Registered core handlers", slog.Any("topics", e.Topics()))
}
