package router

import (
	"fmt"
	"log/slog"

	"github.com/a-essam23/go-place/pkg/pipeline"
)

// execute runs one handler and turns a panic into an error, so a bad
// payload can never unwind past the router.
func (r *EventRouter) execute(pctx *pipeline.Cargo, fn pipeline.HandlerFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	r.logger.Debug("Executing handler", slog.String("topic", pctx.Topic))
	return fn(pctx)
}
