// internal/browser/session/context_utils.go
package session

import "context"

// CombineContext returns a context that carries primary's values (the CDP
// target) and ends when either primary or secondary ends. Call the returned
// cancel to release the link.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// Detach returns a context that keeps ctx's values but not its deadline or
// cancellation. Cleanup that must outlive a cancelled operation uses it.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
