package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/a-essam23/go-place/pkg/pipeline"
	"github.com/a-essam23/go-place/pkg/state"
)

type HandlerProvider func(topic string) (pipeline.HandlerFunc, bool)

// EventRouter hands inbound messages to their topic handler. It must be
// called from the engine loop.
type EventRouter struct {
	logger   *slog.Logger
	handlers HandlerProvider
	state    *state.State
	now      func() time.Time
}

func NewEventRouter(logger *slog.Logger, handlers HandlerProvider, st *state.State) *EventRouter {
	return &EventRouter{
		logger:   logger.With(slog.String("component", "event_router")),
		handlers: handlers,
		state:    st,
		now:      time.Now,
	}
}

// HandleMessage never fails: unknown topics and malformed payloads are
// logged and discarded. Nothing is applied once ctx has ended.
func (r *EventRouter) HandleMessage(ctx context.Context, topic string, payload []byte) {
	if ctx.Err() != nil {
		r.logger.Debug("Dropping message after shutdown", slog.String("topic", topic))
		return
	}
	fn, ok := r.handlers(topic)
	if !ok {
		r.logger.Warn("Received message on unknown topic", slog.String("topic", topic))
		return
	}

	pctx := &pipeline.Cargo{
		Logger:  r.logger.With(slog.String("topic", topic)),
		Topic:   topic,
		Payload: json.RawMessage(payload),
		State:   r.state,
		Now:     r.now(),
	}
	if err := r.execute(pctx, fn); err != nil {
		r.logger.Warn("Discarding message", slog.String("topic", topic), slog.Any("error", err), slog.Int("size", len(payload)))
	}
}
