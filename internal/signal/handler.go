// Package signal provides graceful shutdown handling for CORTEX CLI commands.
//
// The first SIGINT or SIGTERM cancels the processing context so the scheduler
// can stop and ask for consent to shut down. A second signal forces the exit
// and cancels any context built with ShutdownContext.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler manages graceful shutdown by listening for interrupt signals.
type Handler struct {
	ctx         context.Context //nolint:containedctx // intentional: handler manages context lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	forced      chan struct{}
	done        chan struct{} // signals listen() to exit cleanly
	mu          sync.Mutex
	count       int
	stopOnce    sync.Once
	sigChan     chan os.Signal
}

// NewHandler creates a signal handler that listens for SIGINT and SIGTERM.
//
// Usage:
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//
//	runErr := proc.Run(h.Context())
//
//	sctx, cancel := h.ShutdownContext(timeout)
//	defer cancel()
//	shutdown.Request(sctx, "interrupted", rounds)
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		forced:      make(chan struct{}),
		done:        make(chan struct{}),
		// Buffer of 1 ensures signal.Notify doesn't drop signals if handler is busy.
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context returns the processing context. It is canceled by the first signal.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel that closes on the first signal.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// Forced returns a channel that closes on the second signal.
func (h *Handler) Forced() <-chan struct{} {
	return h.forced
}

// ShutdownContext returns a context for the work done after an interrupt. It
// outlives Context but ends on timeout, on a forced exit or on Stop.
func (h *Handler) ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	go func() {
		select {
		case <-h.forced:
			cancel()
		case <-h.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Stop cleans up the signal handler and stops listening for signals.
// Always call this when done to prevent resource leaks.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}

// handleSignal processes a received signal. The first one interrupts, the
// second one forces; later ones are ignored.
func (h *Handler) handleSignal() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	switch h.count {
	case 1:
		h.cancel()
		close(h.interrupted)
	case 2:
		close(h.forced)
	}
}

// listen waits for signals until Stop is called. It keeps draining after the
// first signal so a second Ctrl+C is seen.
func (h *Handler) listen() {
	for {
		select {
		case <-h.done:
			return
		case <-h.sigChan:
			h.handleSignal()
		}
	}
}
