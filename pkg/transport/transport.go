// Package transport defines the pub/sub session the engine runs on and a
// websocket implementation of it.
package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrClosed       = errors.New("transport session closed")
	ErrBackpressure = errors.New("transport send buffer full")
	ErrProtocol     = errors.New("transport protocol error")
)

// Handler receives the raw payload of one inbound message. Handlers for a
// single subscription are called sequentially in delivery order.
type Handler func(payload []byte)

type Subscription interface {
	Topic() string
	// Unsubscribe is idempotent.
	Unsubscribe() error
}

// Session is one live connection to the broker. Publish and Subscribe must
// not block on the network; implementations queue and report failures by
// ending the session.
type Session interface {
	ID() uuid.UUID
	Subscribe(topic string, h Handler) (Subscription, error)
	Publish(topic string, payload []byte) error
	// Done is closed once the session has ended for any reason.
	Done() <-chan struct{}
	// Err is the reason the session ended, nil for a local Close.
	Err() error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Frame types of the websocket envelope.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePublish     = "publish"
	FrameMessage     = "message"
	FrameError       = "error"
)

// Frame is the websocket envelope. Target carries the subscription id on
// subscribe, unsubscribe and message frames.
type Frame struct {
	Type    string          `json:"type"`
	Target  string          `json:"target,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}
