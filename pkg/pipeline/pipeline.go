package pipeline

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/a-essam23/go-place/pkg/state"
)

/*
 * The purpose of this is to detach the topic handlers from the router and
 * the transport they arrive on.
 */

type Cargo struct {
	Logger  *slog.Logger
	Topic   string
	Payload json.RawMessage
	State   *state.State
	// Now is the arrival time, stamped once so a handler sees a single clock.
	Now time.Time
}

// simple, testable functions that receive a Cargo and mutate the state it
// carries. They run on the engine loop.
type HandlerFunc func(pctx *Cargo) error
