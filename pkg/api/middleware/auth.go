package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
)

// TokenSource returns the session token to present, or "" for none.
type TokenSource func() (string, error)

// NewAuthMiddleware attaches the session token as the cookie the backend
// reads. Requests go out unauthenticated when the source has no token.
func NewAuthMiddleware(logger *slog.Logger, cookieName string, tokens TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if tokens == nil {
				return next.RoundTrip(r)
			}
			token, err := tokens()
			if err != nil {
				logger.Error("Failed to mint session token", slog.Any("error", err))
				return nil, fmt.Errorf("session token: %w", err)
			}
			if token == "" {
				return next.RoundTrip(r)
			}
			if _, ok := r.Context().Value(reqMetaKey).(*RequestMetadata); !ok {
				logger.Debug("Auth middleware running without request metadata. Check middleware order.")
			}
			r = r.Clone(r.Context())
			r.AddCookie(&http.Cookie{Name: cookieName, Value: token})
			return next.RoundTrip(r)
		})
	}
}
