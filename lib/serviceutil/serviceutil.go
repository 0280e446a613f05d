// Package serviceutil holds the small set of process-lifecycle helpers
// cmd/crawler needs: a signal-derived context and a fatal-exit helper. A
// standalone CLI crawler has no RPC interceptors or HTTP server to bootstrap,
// so this stays intentionally narrow.
package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context cancelled when SIGINT or SIGTERM is
// received, used by cmd/crawler's run loop to trigger a synchronous flush of
// every state recorder (§4.D "Cancellation").
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	return ctx
}

// Fatal logs message with err and exits the process.
func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}
