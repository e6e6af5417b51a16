package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rescp17/relayFileSharer/pkg/discovery"
	"github.com/rescp17/relayFileSharer/pkg/relay"
)

const shutdownTimeout = 5 * time.Second

type relayFlags struct {
	port     int
	announce bool
	name     string
}

func runRelay(ctx context.Context, levelName string, flags relayFlags) error {
	level, err := parseLevel(levelName)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", flags.port),
		Handler:           relay.NewServer().Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Relay listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if flags.announce {
		g.Go(func() error {
			name := flags.name
			if name == "" {
				host, err := os.Hostname()
				if err != nil {
					host = "relayshare"
				}
				name = host
			}
			adapter := &discovery.MDNSAdapter{}
			err := adapter.Announce(gctx, discovery.ServiceInfo{
				Name:   name,
				Type:   discovery.DefaultServiceType,
				Domain: discovery.DefaultDomain,
				Port:   flags.port,
			})
			if err != nil {
				// The relay still works by address without mDNS.
				slog.Warn("mDNS announcement failed", "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
