// Package session owns the pub/sub session lifecycle: dialing, the four
// inbound subscriptions, outbound publishes and bounded reconnects.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/a-essam23/go-place/internal/engine"
	"github.com/a-essam23/go-place/internal/router"
	"github.com/a-essam23/go-place/pkg/chat"
	"github.com/a-essam23/go-place/pkg/config"
	"github.com/a-essam23/go-place/pkg/identity"
	"github.com/a-essam23/go-place/pkg/state"
	"github.com/a-essam23/go-place/pkg/transport"
	"github.com/cenkalti/backoff"
)

var errSessionEnded = errors.New("transport session ended")

type Inbound interface {
	HandleMessage(ctx context.Context, topic string, payload []byte)
}

type Options struct {
	Dialer         transport.Dialer
	Loop           *engine.Loop
	Router         Inbound
	State          *state.State
	Topics         config.TopicsConfig
	ReconnectDelay time.Duration
	// MaxAttempts bounds consecutive reconnects. Zero retries forever.
	MaxAttempts   int
	ChatMaxLength int
	// Identity returns the current local identity. It is read on every
	// publish so a rename takes effect immediately.
	Identity func() identity.Identity
	// OnStatus, if set, is called on the loop after every status change.
	OnStatus func(Status)
	Logger   *slog.Logger
}

// Manager is the connection state machine. Every method must be called
// from the engine loop; background work re-enters it by posting.
type Manager struct {
	opts   Options
	logger *slog.Logger
	ctx    context.Context
	now    func() time.Time

	status  Status
	epoch   uint64
	session transport.Session
	subs    []transport.Subscription
	timer   *time.Timer
	policy  backoff.BackOff

	cancelDial context.CancelFunc
	closing    sync.WaitGroup
}

func NewManager(ctx context.Context, opts Options) *Manager {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	attempts := opts.MaxAttempts
	if attempts < 0 {
		attempts = 0
	}
	return &Manager{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "session_manager")),
		ctx:    ctx,
		now:    time.Now,
		status: Disconnected,
		policy: backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts)),
	}
}

func (m *Manager) Status() Status {
	return m.status
}

func (m *Manager) Connected() bool {
	return m.status == Connected
}

func (m *Manager) setStatus(s Status) {
	if m.status == s {
		return
	}
	m.logger.Debug("Status change", slog.String("from", m.status.String()), slog.String("to", s.String()))
	m.status = s
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(s)
	}
}

// Connect is a no-op while connected or connecting. From any other state
// it cancels a pending reconnect, resets the attempt budget and dials.
func (m *Manager) Connect() {
	if m.status == Connected || m.status == Connecting {
		return
	}
	m.stopTimer()
	m.policy.Reset()
	m.dial()
}

func (m *Manager) dial() {
	m.epoch++
	epoch := m.epoch
	m.setStatus(Connecting)

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelDial = cancel
	go func() {
		s, err := m.opts.Dialer.Dial(ctx)
		posted := m.opts.Loop.Post(func() { m.onDialResult(epoch, s, err) })
		if !posted && s != nil {
			s.Close()
		}
	}()
}

func (m *Manager) onDialResult(epoch uint64, s transport.Session, err error) {
	if epoch != m.epoch {
		// superseded by Disconnect or another Connect
		if s != nil {
			m.closeAsync(s)
		}
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if err != nil {
		m.fail(err)
		return
	}

	m.session = s
	if err := m.resubscribe(epoch); err != nil {
		m.fail(err)
		return
	}
	m.policy.Reset()
	m.setStatus(Connected)
	m.logger.Info("Connected", slog.String("sessionID", s.ID().String()))
	go func() {
		<-s.Done()
		m.opts.Loop.Post(func() { m.onSessionEnded(epoch, s) })
	}()
}

// resubscribe drops whatever subscriptions are left from an earlier
// session and subscribes the current one to every inbound topic.
func (m *Manager) resubscribe(epoch uint64) error {
	m.unsubscribeAll()
	for _, topic := range m.opts.Topics.Inbound() {
		sub, err := m.session.Subscribe(topic, m.deliver(epoch, topic))
		if err != nil {
			return err
		}
		m.subs = append(m.subs, sub)
	}
	m.logger.Debug("Subscribed", slog.Int("topics", len(m.subs)))
	return nil
}

func (m *Manager) deliver(epoch uint64, topic string) transport.Handler {
	return func(payload []byte) {
		m.opts.Loop.Post(func() {
			if epoch != m.epoch {
				return
			}
			m.opts.Router.HandleMessage(m.ctx, topic, payload)
		})
	}
}

func (m *Manager) onSessionEnded(epoch uint64, s transport.Session) {
	if epoch != m.epoch || m.session != s {
		return
	}
	err := s.Err()
	if err == nil {
		err = errSessionEnded
	}
	m.fail(err)
}

// fail is the single recovery path for dial errors, protocol errors and
// dropped sessions.
func (m *Manager) fail(err error) {
	m.logger.Warn("Transport failure", slog.Any("error", err))
	m.teardown()

	next := m.policy.NextBackOff()
	if next == backoff.Stop {
		m.epoch++
		m.logger.Error("Giving up on the transport", slog.Int("maxAttempts", m.opts.MaxAttempts))
		m.setStatus(Offline)
		return
	}

	m.epoch++
	epoch := m.epoch
	m.setStatus(Recovering)
	m.timer = m.opts.Loop.AfterFunc(next, func() {
		if epoch != m.epoch {
			return
		}
		m.timer = nil
		m.dial()
	})
	m.logger.Info("Reconnect scheduled", slog.Duration("in", next))
}

// Disconnect cancels any pending reconnect or dial, drops the
// subscriptions and closes the session. Safe to call in any state.
func (m *Manager) Disconnect() {
	m.epoch++
	m.stopTimer()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.teardown()
	m.setStatus(Disconnected)
}

func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) unsubscribeAll() {
	for _, sub := range m.subs {
		if err := sub.Unsubscribe(); err != nil {
			m.logger.Debug("Unsubscribe failed", slog.String("topic", sub.Topic()), slog.Any("error", err))
		}
	}
	m.subs = nil
}

func (m *Manager) teardown() {
	m.unsubscribeAll()
	if m.session != nil {
		m.closeAsync(m.session)
		m.session = nil
	}
}

// closeAsync closes s off the loop: a close may flush queued frames.
func (m *Manager) closeAsync(s transport.Session) {
	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		s.Close()
	}()
}

// WaitClosed blocks until every session handed to close has finished
// flushing, or ctx ends. Call it off the loop.
func (m *Manager) WaitClosed(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.closing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends payload when connected and silently drops it otherwise.
// There is no outbound queue.
func (m *Manager) Publish(topic string, payload []byte) bool {
	if m.status != Connected || m.session == nil {
		m.logger.Debug("Dropping publish while not connected", slog.String("topic", topic), slog.String("status", m.status.String()))
		return false
	}
	if err := m.session.Publish(topic, payload); err != nil {
		// a dead session reports itself through Done
		m.logger.Debug("Publish failed", slog.String("topic", topic), slog.Any("error", err))
		return false
	}
	return true
}

func (m *Manager) publishJSON(topic string, v any) bool {
	if m.status != Connected {
		m.logger.Debug("Dropping publish while not connected", slog.String("topic", topic), slog.String("status", m.status.String()))
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("Failed to encode outbound payload", slog.String("topic", topic), slog.Any("error", err))
		return false
	}
	return m.Publish(topic, b)
}

// PublishPresence broadcasts the local cursor in grid space.
func (m *Manager) PublishPresence(gx, gy float64) bool {
	id := m.opts.Identity()
	return m.publishJSON(m.opts.Topics.Presence, router.PresenceMessage{
		Identity:  id.DisplayName,
		SessionID: id.Key(),
		X:         gx,
		Y:         gy,
	})
}

// AnnounceDeparture tells peers to drop our cursor. Fire and forget.
func (m *Manager) AnnounceDeparture() bool {
	id := m.opts.Identity()
	return m.publishJSON(m.opts.Topics.PresenceRemoval, router.RemovalMessage{
		Identity:  id.DisplayName,
		SessionID: id.Key(),
	})
}

// SendChat publishes content as the local user and echoes it into the chat
// log; the redelivered copy is absorbed by dedup. Blank messages, an unset
// display name, or a session that is not connected send nothing.
func (m *Manager) SendChat(content string) bool {
	if m.status != Connected {
		return false
	}
	content = strings.TrimSpace(content)
	sender := m.opts.Identity().DisplayName
	if content == "" || sender == "" {
		return false
	}
	if limit := m.opts.ChatMaxLength; limit > 0 && utf8.RuneCountInString(content) > limit {
		content = string([]rune(content)[:limit])
	}
	msg := chat.Message{Sender: sender, Content: content, TimestampMs: m.now().UnixMilli()}
	if !m.publishJSON(m.opts.Topics.ChatSend, msg) {
		return false
	}
	m.opts.State.Chat.Append(msg)
	return true
}
