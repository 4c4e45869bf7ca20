package middleware

import (
	"context"
	"net/http"
	"time"
)

type contextKey string

const reqMetaKey = contextKey("r-metadata")

const SessionHeader = "X-Session-ID"

type RequestMetadata struct {
	SessionID string
	StartedAt time.Time
}

func ReqMetadataFrom(ctx context.Context) (*RequestMetadata, bool) {
	reqMeta, ok := ctx.Value(reqMetaKey).(*RequestMetadata)
	return reqMeta, ok
}

// creates and injects the RequestMetadata struct into the request and marks
// it uncacheable, since the canvas changes under every reader.
// **This should be the first middleware in the chain.**
func RequestMetadataMiddleware(sessionID func() string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			reqMeta := &RequestMetadata{StartedAt: time.Now()}
			if sessionID != nil {
				reqMeta.SessionID = sessionID()
			}
			ctx := context.WithValue(r.Context(), reqMetaKey, reqMeta)
			// a RoundTripper must not modify the caller's request
			r = r.Clone(ctx)
			r.Header.Set("Cache-Control", "no-cache")
			if reqMeta.SessionID != "" {
				r.Header.Set(SessionHeader, reqMeta.SessionID)
			}
			return next.RoundTrip(r)
		})
	}
}
