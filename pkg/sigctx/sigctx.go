// Package sigctx ties the application lifetime to process signals.
package sigctx

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var shutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

var exit = os.Exit

// NotifyContext returns a context canceled by the first shutdown signal.
// A second signal during graceful shutdown exits the process with code 1.
func NotifyContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)

	go watch(ctx, sigCh, cancel)

	return ctx, cancel
}

func watch(
	ctx context.Context, sigCh chan os.Signal, cancel context.CancelFunc,
) {
	const op = "sigctx.watch"
	log := slog.With("op", op)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
		cancel()
	case <-ctx.Done():
	}

	sig := <-sigCh
	signal.Stop(sigCh)
	log.Warn("second signal received, exiting", "signal", sig.String())
	exit(1)
}
