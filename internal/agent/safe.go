package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/naviable/naviable-go/internal/logger"
)

// Safe bounds every call to a with timeout and turns failures, including
// panics, into a degraded result. The returned agent never returns an error.
func Safe(a Agent, timeout time.Duration) Agent {
	return Func(func(ctx context.Context, req Request) (res Result, err error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		defer func() {
			if r := recover(); r != nil {
				logger.L.Error("capability agent panicked", "capability", req.Capability, "panic", r)
				res, err = Degraded(req.Capability, fmt.Errorf("panic: %v", r)), nil
			}
		}()

		res, err = a.Invoke(ctx, req)
		if err != nil {
			logger.L.Warn("capability agent failed; degrading", "capability", req.Capability, "error", err)
			return Degraded(req.Capability, err), nil
		}
		res.Capability = req.Capability
		return res, nil
	})
}

// Degraded builds the placeholder result reported when a capability fails.
func Degraded(c Capability, cause error) Result {
	reply := fmt.Sprintf("The %s is currently unavailable. Please try again in a moment.", c.label())
	if errors.Is(cause, context.DeadlineExceeded) {
		reply = fmt.Sprintf("The %s took too long to respond and is currently unavailable. Please try again in a moment.", c.label())
	}
	return Result{Capability: c, Reply: reply, Degraded: true}
}
