package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalContext is cancelled by the first shutdown signal and remembers which one it was.
type SignalContext struct {
	context.Context

	cancel context.CancelFunc
	mu     sync.Mutex
	sig    os.Signal
}

// NewSignalContext listens for sigs, or SIGINT and SIGTERM when none are given.
// Listening stops once the context is done.
func NewSignalContext(parent context.Context, sigs ...os.Signal) *SignalContext {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			sc.mu.Lock()
			sc.sig = sig
			sc.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Cancel stops listening and cancels the context.
func (sc *SignalContext) Cancel() {
	sc.cancel()
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sig
}

func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
