package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// NewRequestLogger creates a middleware that logs every outgoing request and
// how it ended.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				start = reqMeta.StartedAt
			}

			resp, err := next.RoundTrip(r)
			if err != nil {
				logger.Warn("Outgoing HTTP request failed",
					slog.String("method", r.Method),
					slog.String("uri", r.URL.RequestURI()),
					slog.Any("error", err),
				)
				return nil, err
			}
			logger.Debug("Outgoing HTTP request",
				slog.String("method", r.Method),
				slog.String("uri", r.URL.RequestURI()),
				slog.Int("status", resp.StatusCode),
				slog.Duration("took", time.Since(start)),
			)
			return resp, nil
		})
	}
}
