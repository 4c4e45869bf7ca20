// Package loopback is an in-process broker. Every session dialed from the
// same Broker shares its topics, so a publish is delivered to every
// subscriber, the publisher included. It backs offline runs and tests.
package loopback

import (
	"context"
	"errors"
	"sync"

	"github.com/a-essam23/go-place/pkg/transport"
	"github.com/google/uuid"
)

const inboxSize = 256

var ErrDialRefused = errors.New("loopback: dial refused")

type Broker struct {
	mu        sync.Mutex
	sessions  map[*session]struct{}
	published map[string][][]byte
	dials     int
	failNext  int
	refuseAll bool
}

func NewBroker() *Broker {
	return &Broker{
		sessions:  make(map[*session]struct{}),
		published: make(map[string][][]byte),
	}
}

var _ transport.Dialer = (*Broker)(nil)

func (b *Broker) Dial(ctx context.Context) (transport.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.refuseAll {
		return nil, ErrDialRefused
	}
	if b.failNext > 0 {
		b.failNext--
		return nil, ErrDialRefused
	}
	s := newSession(b)
	b.sessions[s] = struct{}{}
	return s, nil
}

// FailNextDials makes the next n dials fail.
func (b *Broker) FailNextDials(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = n
}

// RefuseAll makes every dial fail until called with false.
func (b *Broker) RefuseAll(refuse bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refuseAll = refuse
}

func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Sessions returns the number of live sessions.
func (b *Broker) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for s := range b.sessions {
		n += s.count(topic)
	}
	return n
}

// Published returns every payload sessions published on topic.
func (b *Broker) Published(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.published[topic]))
	copy(out, b.published[topic])
	return out
}

// Inject delivers payload to every subscriber of topic as if another peer
// had published it.
func (b *Broker) Inject(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fanOut(topic, payload)
}

// DropAll ends every live session with err, like a broker restart.
func (b *Broker) DropAll(err error) {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		s.end(err)
	}
}

func (b *Broker) publish(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := append([]byte(nil), payload...)
	b.published[topic] = append(b.published[topic], cp)
	b.fanOut(topic, cp)
}

func (b *Broker) fanOut(topic string, payload []byte) {
	for s := range b.sessions {
		s.offer(topic, payload)
	}
}

func (b *Broker) remove(s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, s)
}

type delivery struct {
	sub     *subscription
	payload []byte
}

type subscription struct {
	topic   string
	handler transport.Handler
	session *session
	once    sync.Once
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.session.mu.Lock()
		delete(s.session.subs, s)
		s.session.mu.Unlock()
	})
	return nil
}

type session struct {
	id     uuid.UUID
	broker *Broker
	inbox  chan delivery

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
	err    error

	done chan struct{}
	once sync.Once
}

func newSession(b *Broker) *session {
	s := &session{
		id:     uuid.New(),
		broker: b,
		inbox:  make(chan delivery, inboxSize),
		subs:   make(map[*subscription]struct{}),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *session) pump() {
	for {
		select {
		case d := <-s.inbox:
			s.mu.Lock()
			_, live := s.subs[d.sub]
			s.mu.Unlock()
			if live {
				d.sub.handler(d.payload)
			}
		case <-s.done:
			return
		}
	}
}

// offer queues payload for every matching subscription. Called with the
// broker lock held.
func (s *session) offer(topic string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for sub := range s.subs {
		if sub.topic != topic {
			continue
		}
		select {
		case s.inbox <- delivery{sub: sub, payload: payload}:
		default:
			// slow consumer, drop like a real broker would
		}
	}
}

func (s *session) count(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sub := range s.subs {
		if sub.topic == topic {
			n++
		}
	}
	return n
}

func (s *session) ID() uuid.UUID { return s.id }

func (s *session) Subscribe(topic string, h transport.Handler) (transport.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, transport.ErrClosed
	}
	sub := &subscription{topic: topic, handler: h, session: s}
	s.subs[sub] = struct{}{}
	return sub, nil
}

func (s *session) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	s.broker.publish(topic, payload)
	return nil
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) Close() error {
	s.end(nil)
	return nil
}

func (s *session) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = err
		s.subs = make(map[*subscription]struct{})
		s.mu.Unlock()
		s.broker.remove(s)
		close(s.done)
	})
}
