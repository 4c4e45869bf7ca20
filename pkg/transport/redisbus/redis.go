// Package redisbus runs the transport session over Redis pub/sub. Each topic
// maps to one Redis channel under a configurable prefix.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/a-essam23/go-place/pkg/transport"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sendBufferSize      = 256
	closeGrace          = time.Second
	defaultPingInterval = 5 * time.Second
	dialTimeout         = 5 * time.Second
)

type Dialer struct {
	URL    string
	Prefix string
	// PingInterval is how often the session checks the server is still
	// reachable. A failed ping ends the session.
	PingInterval time.Duration
	Logger       *slog.Logger
}

var _ transport.Dialer = (*Dialer)(nil)

func (d *Dialer) Dial(ctx context.Context) (transport.Session, error) {
	opts, err := redis.ParseURL(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := d.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	s := newSession(client, d.Prefix, logger)
	go s.writeLoop()
	go s.watch(interval)
	s.logger.Info("transport session established")
	return s, nil
}

type outbound struct {
	channel string
	payload []byte
}

type subscription struct {
	topic   string
	handler transport.Handler
	session *session

	mu     sync.Mutex
	pubsub *redis.PubSub
	gone   bool
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Unsubscribe() error {
	s.session.forget(s)
	return s.stop()
}

func (s *subscription) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return nil
	}
	s.gone = true
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}

// attach hands the pubsub to the subscription unless it was already
// stopped, in which case the caller closes it.
func (s *subscription) attach(ps *redis.PubSub) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return false
	}
	s.pubsub = ps
	return true
}

type session struct {
	id     uuid.UUID
	client *redis.Client
	prefix string
	send   chan outbound

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
	err    error

	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	logger *slog.Logger
}

func newSession(client *redis.Client, prefix string, logger *slog.Logger) *session {
	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:         id,
		client:     client,
		prefix:     prefix,
		send:       make(chan outbound, sendBufferSize),
		subs:       make(map[*subscription]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		logger:     logger.With(slog.String("component", "transport_redis"), slog.String("sessionID", id.String())),
	}
}

func (s *session) channel(topic string) string {
	return s.prefix + topic
}

func (s *session) ID() uuid.UUID { return s.id }

func (s *session) Subscribe(topic string, h transport.Handler) (transport.Subscription, error) {
	sub := &subscription{topic: topic, handler: h, session: s}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, transport.ErrClosed
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go s.receive(sub)
	return sub, nil
}

// receive owns one Redis subscription and feeds its handler in order.
func (s *session) receive(sub *subscription) {
	ps := s.client.Subscribe(s.ctx, s.channel(sub.topic))
	if !sub.attach(ps) {
		ps.Close()
		return
	}
	if _, err := ps.Receive(s.ctx); err != nil {
		if s.ctx.Err() == nil && !s.isGone(sub) {
			s.shutdown(fmt.Errorf("subscribe %s: %w", sub.topic, err), false)
		}
		return
	}
	for msg := range ps.Channel() {
		if s.isGone(sub) {
			return
		}
		sub.handler([]byte(msg.Payload))
	}
}

func (s *session) isGone(sub *subscription) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.gone
}

func (s *session) forget(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (s *session) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrClosed
	}
	select {
	case s.send <- outbound{channel: s.channel(topic), payload: payload}:
		return nil
	default:
		return transport.ErrBackpressure
	}
}

func (s *session) writeLoop() {
	defer close(s.writerDone)
	for m := range s.send {
		if err := s.client.Publish(s.ctx, m.channel, m.payload).Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// shutdown waits for this goroutine
			go s.shutdown(fmt.Errorf("publish %s: %w", m.channel, err), false)
			return
		}
	}
}

func (s *session) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, interval)
			err := s.client.Ping(ctx).Err()
			cancel()
			if err != nil && s.ctx.Err() == nil {
				s.shutdown(fmt.Errorf("ping redis: %w", err), false)
				return
			}
		}
	}
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes queued publishes for up to a second, then releases the
// client.
func (s *session) Close() error {
	s.shutdown(nil, true)
	return nil
}

func (s *session) shutdown(err error, drain bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = err
		subs := s.subs
		s.subs = make(map[*subscription]struct{})
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

		for sub := range subs {
			sub.stop()
		}
		s.logger.Info("Transport session closing", slog.Any("reason", err))
		s.client.Close()
		close(s.done)
	})
}
