package httpapi

import "context"

// serverBaseCtx is canceled when the daemon shuts down. /predict joins it
// with the request context so SIGTERM stops in-flight classifications;
// /switch joins it alone, so a client disconnect cannot abort a model
// switch mid-load.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level context handlers derive from.
// Passing nil resets to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context that is done as soon as either parent is.
// The returned cancel releases the bridging goroutine; handlers defer it.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	joined, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		select {
		case <-a.Done():
		case <-b.Done():
		}
	}()
	return joined, cancel
}
