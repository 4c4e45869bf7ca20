package router

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/a-essam23/go-place/internal/engine"
	"github.com/a-essam23/go-place/pkg/config"
	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/pipeline"
	"github.com/a-essam23/go-place/pkg/state"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRouter(t *testing.T) (*EventRouter, *state.State, *engine.Registry) {
	t.Helper()
	st := state.New(state.Options{GridSize: 4})
	reg := engine.New(newTestLogger())
	reg.RegisterCore(&engine.RegisterCoreOptions{Topics: config.Defaults().Topics})
	r := NewEventRouter(newTestLogger(), reg.GetHandlerFunc, st)
	return r, st, reg
}

func TestRouterDispatchesByTopic(t *testing.T) {
	r, st, _ := newTestRouter(t)
	ctx := context.Background()

	r.HandleMessage(ctx, "canvas-updates", []byte(`{"x":1,"y":2,"color":"#000"}`))
	r.HandleMessage(ctx, "chat", []byte(`{"sender":"a","content":"b","timestampMs":1}`))
	r.HandleMessage(ctx, "presence", []byte(`{"identity":"a","x":1,"y":1}`))

	if st.Grid.Get(1, 2).Color != "#000" {
		t.Error("canvas update not applied")
	}
	if st.Chat.Len() != 1 {
		t.Error("chat message not appended")
	}
	if st.Presence.Len() != 1 {
		t.Error("presence not recorded")
	}

	r.HandleMessage(ctx, "presence-removal", []byte(`{"identity":"a"}`))
	if st.Presence.Len() != 0 {
		t.Error("presence not removed")
	}
}

func TestRouterDiscardsGarbage(t *testing.T) {
	r, st, _ := newTestRouter(t)
	ctx := context.Background()

	r.HandleMessage(ctx, "canvas-updates", []byte(`{{{`))
	r.HandleMessage(ctx, "chat", nil)
	r.HandleMessage(ctx, "nobody-listens", []byte(`{}`))

	if st.Chat.Len() != 0 || st.Grid.Get(0, 0).Color != grid.White {
		t.Error("Garbage payloads changed state")
	}
}

func TestRouterRecoversHandlerPanic(t *testing.T) {
	r, _, reg := newTestRouter(t)
	reg.RegisterHandler("explosive", func(*pipeline.Cargo) error { panic("kaboom") })

	// must not panic
	r.HandleMessage(context.Background(), "explosive", []byte(`{}`))

	err := r.execute(&pipeline.Cargo{Topic: "explosive"}, func(*pipeline.Cargo) error { panic("again") })
	if err == nil {
		t.Fatal("Expected the panic to become an error")
	}
}

func TestRouterStampsCargo(t *testing.T) {
	r, _, reg := newTestRouter(t)
	fixed := time.UnixMilli(42)
	r.now = func() time.Time { return fixed }

	var seen *pipeline.Cargo
	reg.RegisterHandler("stamped", func(pctx *pipeline.Cargo) error {
		seen = pctx
		return errors.New("logged, not returned")
	})
	r.HandleMessage(context.Background(), "stamped", []byte(`{"a":1}`))

	if seen == nil {
		t.Fatal("handler was not called")
	}
	if !seen.Now.Equal(fixed) || seen.Topic != "stamped" || string(seen.Payload) != `{"a":1}` {
		t.Errorf("Unexpected cargo: %+v", seen)
	}
}

func TestRouterDropsAfterCancel(t *testing.T) {
	r, st, _ := newTestRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.HandleMessage(ctx, "canvas-updates", []byte(`{"x":1,"y":2,"color":"#000"}`))
	if st.Grid.Get(1, 2).Color != grid.White {
		t.Error("Message applied after the context ended")
	}
}
