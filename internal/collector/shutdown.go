package collector

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"rift-tracker/internal/logging"
)

// SetupSignalHandler returns a context cancelled on the first SIGINT or
// SIGTERM, after onShutdown (may be nil) runs. A second signal exits the
// process. stop releases the handler.
func SetupSignalHandler(parent context.Context, onShutdown func()) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	log := logging.Tagged(nil, "signal")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, shutting down gracefully", "signal", sig.String())
		case <-done:
			return
		}

		if onShutdown != nil {
			onShutdown()
		}
		cancel()

		select {
		case sig := <-sigCh:
			log.Log(context.Background(), slog.LevelError, "received second signal, forcing exit", "signal", sig.String())
			os.Exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}
	return ctx, stop
}
