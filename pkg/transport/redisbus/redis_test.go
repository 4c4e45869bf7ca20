package redisbus

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/a-essam23/go-place/pkg/transport"
	"github.com/alicebob/miniredis/v2"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func dialTest(t *testing.T, m *miniredis.Miniredis, ping time.Duration) transport.Session {
	t.Helper()
	d := &Dialer{
		URL:          "redis://" + m.Addr(),
		Prefix:       "place:",
		PingInterval: ping,
		Logger:       newTestLogger(),
	}
	s, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDialUnreachable(t *testing.T) {
	m := miniredis.RunT(t)
	addr := m.Addr()
	m.Close()

	d := &Dialer{URL: "redis://" + addr, Logger: newTestLogger()}
	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatal("Expected dial to an unreachable server to fail")
	}
}

func TestDialBadURL(t *testing.T) {
	d := &Dialer{URL: "not a url", Logger: newTestLogger()}
	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatal("Expected an invalid url to fail")
	}
}

func TestPublishSubscribe(t *testing.T) {
	m := miniredis.RunT(t)
	pub := dialTest(t, m, time.Minute)
	sub := dialTest(t, m, time.Minute)

	got := make(chan string, 16)
	if _, err := sub.Subscribe("chat", func(p []byte) { got <- string(p) }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// subscribing is asynchronous, keep publishing until it lands
	deadline := time.After(2 * time.Second)
	for {
		if err := pub.Publish("chat", []byte("hi")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		select {
		case p := <-got:
			if p != "hi" {
				t.Fatalf("Unexpected payload %q", p)
			}
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("Timed out waiting for the published message")
		}
	}
}

func TestChannelPrefix(t *testing.T) {
	m := miniredis.RunT(t)
	s := dialTest(t, m, time.Minute)
	s.Subscribe("canvas", func([]byte) {})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.PubSubNumSub("place:canvas")["place:canvas"] == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Expected a subscriber on the prefixed channel")
}

func TestServerLossEndsSession(t *testing.T) {
	m := miniredis.RunT(t)
	s := dialTest(t, m, 20*time.Millisecond)

	m.Close()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Session did not end after the server went away")
	}
	if s.Err() == nil {
		t.Error("Expected a non-nil error after losing the server")
	}
}

func TestLocalCloseIsClean(t *testing.T) {
	m := miniredis.RunT(t)
	s := dialTest(t, m, time.Minute)
	s.Subscribe("chat", func([]byte) {})

	s.Close()
	s.Close()
	<-s.Done()
	if s.Err() != nil {
		t.Errorf("Expected nil error, got %v", s.Err())
	}
	if err := s.Publish("chat", nil); err != transport.ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
