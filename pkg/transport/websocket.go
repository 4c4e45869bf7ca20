package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 256
	readLimit      = 1 << 20
	closeGrace     = time.Second
)

// ConnectionConfig controls the keepalive. A quiet broker is fine; only a
// ping left unanswered for PongTimeout ends the session. A zero
// PingInterval disables pings.
type ConnectionConfig struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// HeaderFunc returns extra handshake headers, e.g. the session-token cookie.
type HeaderFunc func() (http.Header, error)

// WebsocketDialer opens a broker session over a websocket.
type WebsocketDialer struct {
	URL     string
	Config  ConnectionConfig
	Headers HeaderFunc
	Logger  *slog.Logger
}

var _ Dialer = (*WebsocketDialer)(nil)

func (d *WebsocketDialer) Dial(ctx context.Context) (Session, error) {
	opts := &websocket.DialOptions{}
	if d.Headers != nil {
		h, err := d.Headers()
		if err != nil {
			return nil, fmt.Errorf("build handshake headers: %w", err)
		}
		opts.HTTPHeader = h
	}
	conn, _, err := websocket.Dial(ctx, d.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	conn.SetReadLimit(readLimit)

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := newWSSession(conn, d.Config, logger)
	s.run()
	return s, nil
}

type wsSubscription struct {
	id      string
	topic   string
	handler Handler
	session *wsSession
	once    sync.Once
}

func (s *wsSubscription) Topic() string { return s.topic }

func (s *wsSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.session.unsubscribe(s)
	})
	return err
}

// wsSession represents a single websocket connection to the broker.
type wsSession struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	mu     sync.Mutex
	subs   map[string]*wsSubscription
	closed bool
	err    error

	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	logger *slog.Logger
}

func newWSSession(conn *websocket.Conn, config ConnectionConfig, logger *slog.Logger) *wsSession {
	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	return &wsSession{
		id:         id,
		conn:       conn,
		config:     config,
		send:       make(chan []byte, sendBufferSize),
		subs:       make(map[string]*wsSubscription),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		logger:     logger.With(slog.String("component", "transport_ws"), slog.String("sessionID", id.String())),
	}
}

func (s *wsSession) run() {
	go s.readPump()
	go s.writePump()
	go s.keepAlive()
	s.logger.Info("transport session established")
}

// readPump pumps frames from the websocket to the subscription handlers.
func (s *wsSession) readPump() {
	for {
		// pongs are only processed while a read is pending
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			s.shutdown(err, false)
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("Discarding undecodable frame", slog.Any("error", err))
			continue
		}
		switch frame.Type {
		case FrameMessage:
			s.deliver(frame)
		case FrameError:
			s.shutdown(fmt.Errorf("%w: %s", ErrProtocol, frame.Message), false)
			return
		default:
			s.logger.Debug("Ignoring frame", slog.String("type", frame.Type))
		}
	}
}

// keepAlive pings the broker every PingInterval and ends the session when a
// pong does not come back in time.
func (s *wsSession) keepAlive() {
	if s.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := s.ctx, context.CancelFunc(func() {})
			if s.config.PongTimeout > 0 {
				pingCtx, cancel = context.WithTimeout(s.ctx, s.config.PongTimeout)
			}
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.shutdown(fmt.Errorf("keepalive: %w", err), false)
				return
			}
		}
	}
}

func (s *wsSession) deliver(frame Frame) {
	s.mu.Lock()
	sub, ok := s.subs[frame.Target]
	s.mu.Unlock()
	if !ok {
		s.logger.Debug("Message for unknown subscription", slog.String("target", frame.Target), slog.String("topic", frame.Topic))
		return
	}
	sub.handler(frame.Payload)
}

// writePump pumps queued frames from the send channel to the websocket.
func (s *wsSession) writePump() {
	defer close(s.writerDone)
	for msg := range s.send {
		if err := s.conn.Write(s.ctx, websocket.MessageText, msg); err != nil {
			// shutdown waits for this goroutine, so it cannot run inline
			go s.shutdown(err, false)
			return
		}
	}
}

func (s *wsSession) enqueue(frame Frame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", frame.Type, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *wsSession) ID() uuid.UUID {
	return s.id
}

func (s *wsSession) Subscribe(topic string, h Handler) (Subscription, error) {
	sub := &wsSubscription{id: uuid.NewString(), topic: topic, handler: h, session: s}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	if err := s.enqueue(Frame{Type: FrameSubscribe, Target: sub.id, Topic: topic}); err != nil {
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
		return nil, err
	}
	return sub, nil
}

func (s *wsSession) unsubscribe(sub *wsSubscription) error {
	s.mu.Lock()
	delete(s.subs, sub.id)
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	return s.enqueue(Frame{Type: FrameUnsubscribe, Target: sub.id, Topic: sub.topic})
}

func (s *wsSession) Publish(topic string, payload []byte) error {
	return s.enqueue(Frame{Type: FramePublish, Topic: topic, Payload: payload})
}

func (s *wsSession) Done() <-chan struct{} {
	return s.done
}

func (s *wsSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes queued frames for up to a second, then closes the socket.
func (s *wsSession) Close() error {
	s.shutdown(nil, true)
	return nil
}

func (s *wsSession) shutdown(err error, drain bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = err
		s.subs = make(map[string]*wsSubscription)
		close(s.send)
		s.mu.Unlock()

		if drain {
			select {
			case <-s.writerDone:
			case <-time.After(closeGrace):
			}
		}
		s.cancel()
		<-s.writerDone

		status := websocket.CloseStatus(err)
		s.logger.Info("Transport session closing", slog.Any("reason", err), slog.String("status", status.String()))
		if err != nil {
			// the peer is gone or misbehaving, skip the close handshake
			s.conn.CloseNow()
		} else {
			s.conn.Close(websocket.StatusNormalClosure, "")
		}
		close(s.done)
	})
}
