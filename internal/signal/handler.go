// Package signal maps process signals onto the session lifecycle.
//
// The first SIGINT asks the orchestrator to pause at the next step
// boundary. A second SIGINT, or any SIGTERM, interrupts the session: the
// OnInterrupt callback runs and the context is canceled.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Callbacks are invoked on the handler goroutine. Both are optional.
type Callbacks struct {
	// OnPause runs on the first SIGINT. When nil, the first SIGINT
	// interrupts.
	OnPause func()
	// OnInterrupt runs before the context is canceled.
	OnInterrupt func()
}

// SetupSignalHandler registers SIGINT and SIGTERM handlers and starts a
// goroutine that runs until ctx is done or the session is interrupted.
//
// Example usage:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	signal.SetupSignalHandler(ctx, cancel, signal.Callbacks{
//	    OnPause:     orch.RequestPause,
//	    OnInterrupt: func() { logging.Warn("Interrupted, saving state...") },
//	})
func SetupSignalHandler(ctx context.Context, cancel context.CancelFunc, cb Callbacks) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		watch(ctx, sigCh, cancel, cb)
	}()
}

func watch(ctx context.Context, sigCh <-chan os.Signal, cancel context.CancelFunc, cb Callbacks) {
	paused := false
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig == syscall.SIGINT && !paused && cb.OnPause != nil {
				paused = true
				cb.OnPause()
				continue
			}
			if cb.OnInterrupt != nil {
				cb.OnInterrupt()
			}
			cancel()
			return
		}
	}
}
