package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proxykit/reverseproxy/internal/responder"
)

func main() {
	port := flag.Int("port", 8082, "port to listen on")
	id := flag.String("id", "", "response body (defaults to BACKEND_<port>)")
	flag.Parse()

	r := responder.New(*port, *id)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// One startup line; individual requests are not logged.
	slog.Info("Backend listening",
		slog.String("addr", r.Addr()),
		slog.String("body", r.Body()))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- r.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := r.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			slog.Error("Backend server error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}
