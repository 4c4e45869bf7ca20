package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// NewInFlightLimiter bounds how many requests are on the wire at once. A
// slot is held until the response body is closed. Callers over the limit
// wait until a slot frees or their context ends. A limit of zero or less
// disables the limit.
func NewInFlightLimiter(logger *slog.Logger, limit int) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if limit <= 0 {
			return next
		}
		slots := make(chan struct{}, limit)
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			select {
			case slots <- struct{}{}:
			default:
				logger.Debug("In-flight request limit reached, waiting", slog.Int("limit", limit))
				select {
				case slots <- struct{}{}:
				case <-r.Context().Done():
					return nil, r.Context().Err()
				}
			}
			release := func() { <-slots }

			resp, err := next.RoundTrip(r)
			if err != nil {
				release()
				return nil, err
			}
			resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
			return resp, nil
		})
	}
}

type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
