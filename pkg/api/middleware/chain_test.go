package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func okResponse(r *http.Request) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("")), Request: r}
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(r)
			})
		}
	}
	final := RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		order = append(order, "final")
		return okResponse(r), nil
	})

	rt := Chain(final, tag("first"), tag("second"))
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if strings.Join(order, ",") != "first,second,final" {
		t.Errorf("Unexpected order %v", order)
	}
}

func TestMetadataDoesNotMutateCallerRequest(t *testing.T) {
	var seen *http.Request
	final := RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return okResponse(r), nil
	})
	rt := Chain(final,
		RequestMetadataMiddleware(func() string { return "abc" }),
		NewAuthMiddleware(newTestLogger(), "session-token", func() (string, error) { return "tok", nil }),
	)

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	rt.RoundTrip(req)

	if req.Header.Get(SessionHeader) != "" || len(req.Cookies()) != 0 {
		t.Error("Middleware modified the caller's request")
	}
	meta, ok := ReqMetadataFrom(seen.Context())
	if !ok || meta.SessionID != "abc" {
		t.Errorf("Expected metadata in context, got %+v", meta)
	}
	if c, err := seen.Cookie("session-token"); err != nil || c.Value != "tok" {
		t.Errorf("Expected token cookie, got %v (%v)", c, err)
	}
}

func TestAuthWithoutToken(t *testing.T) {
	var seen *http.Request
	final := RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return okResponse(r), nil
	})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)

	Chain(final, NewAuthMiddleware(newTestLogger(), "session-token", func() (string, error) { return "", nil })).RoundTrip(req)
	if len(seen.Cookies()) != 0 {
		t.Error("Expected no cookie when no token is available")
	}

	boom := errors.New("no secret")
	_, err := Chain(final, NewAuthMiddleware(newTestLogger(), "session-token", func() (string, error) { return "", boom })).RoundTrip(req)
	if !errors.Is(err, boom) {
		t.Errorf("Expected token error, got %v", err)
	}
}

func TestInFlightLimiterHonoursContext(t *testing.T) {
	final := RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return okResponse(r), nil
	})
	rt := Chain(final, NewInFlightLimiter(newTestLogger(), 1))

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	held, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := rt.RoundTrip(req.WithContext(ctx)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected the second request to wait and time out, got %v", err)
	}

	held.Body.Close()
	held.Body.Close()
	if _, err := rt.RoundTrip(req); err != nil {
		t.Errorf("Slot was not released: %v", err)
	}
}
