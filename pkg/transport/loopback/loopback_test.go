package loopback_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/a-essam23/go-place/pkg/transport"
	"github.com/a-essam23/go-place/pkg/transport/loopback"
)

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for delivery")
		return ""
	}
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	b := loopback.NewBroker()
	ctx := context.Background()
	s1, _ := b.Dial(ctx)
	s2, _ := b.Dial(ctx)

	got1 := make(chan string, 1)
	got2 := make(chan string, 1)
	s1.Subscribe("chat", func(p []byte) { got1 <- string(p) })
	s2.Subscribe("chat", func(p []byte) { got2 <- string(p) })

	if err := s1.Publish("chat", []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if v := recv(t, got1); v != "hello" {
		t.Errorf("Publisher did not receive its own message: %q", v)
	}
	if v := recv(t, got2); v != "hello" {
		t.Errorf("Peer did not receive the message: %q", v)
	}
	if n := len(b.Published("chat")); n != 1 {
		t.Errorf("Expected 1 recorded publish, got %d", n)
	}
}

func TestDeliveryOrderPerTopic(t *testing.T) {
	b := loopback.NewBroker()
	s, _ := b.Dial(context.Background())
	got := make(chan string, 10)
	s.Subscribe("t", func(p []byte) { got <- string(p) })

	for _, p := range []string{"1", "2", "3"} {
		b.Inject("t", []byte(p))
	}
	for _, want := range []string{"1", "2", "3"} {
		if v := recv(t, got); v != want {
			t.Fatalf("Expected %s, got %s", want, v)
		}
	}
}

func TestFailNextDials(t *testing.T) {
	b := loopback.NewBroker()
	b.FailNextDials(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := b.Dial(ctx); !errors.Is(err, loopback.ErrDialRefused) {
			t.Fatalf("Dial %d: expected refusal, got %v", i, err)
		}
	}
	if _, err := b.Dial(ctx); err != nil {
		t.Fatalf("Third dial should succeed, got %v", err)
	}
	if b.Dials() != 3 {
		t.Errorf("Expected 3 dials, got %d", b.Dials())
	}
}

func TestDropAllEndsSessions(t *testing.T) {
	b := loopback.NewBroker()
	s, _ := b.Dial(context.Background())
	s.Subscribe("t", func([]byte) {})
	boom := errors.New("broker restarted")

	b.DropAll(boom)

	<-s.Done()
	if !errors.Is(s.Err(), boom) {
		t.Errorf("Expected drop error, got %v", s.Err())
	}
	if b.Sessions() != 0 || b.Subscribers("t") != 0 {
		t.Error("Dropped session still registered")
	}
	if err := s.Publish("t", nil); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := loopback.NewBroker()
	s, _ := b.Dial(context.Background())
	sub, _ := s.Subscribe("t", func([]byte) {})

	if b.Subscribers("t") != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", b.Subscribers("t"))
	}
	sub.Unsubscribe()
	sub.Unsubscribe()
	if b.Subscribers("t") != 0 {
		t.Errorf("Expected 0 subscribers, got %d", b.Subscribers("t"))
	}
}
