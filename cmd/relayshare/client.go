package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/relayFileSharer/internal/util"
	"github.com/rescp17/relayFileSharer/pkg/channel"
	"github.com/rescp17/relayFileSharer/pkg/coordinator"
	"github.com/rescp17/relayFileSharer/pkg/discovery"
	"github.com/rescp17/relayFileSharer/pkg/receiver"
	"github.com/rescp17/relayFileSharer/pkg/transfer"
	"github.com/rescp17/relayFileSharer/pkg/ui"
)

const (
	logFile          = "debug.log"
	discoveryTimeout = 5 * time.Second
	envServerName    = transfer.EnvServer
	envChunkSizeName = transfer.EnvChunkSize
)

// setupFileLogger sends slog output to debug.log so it never draws over the TUI.
func setupFileLogger(levelName string) (func(), error) {
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}, nil
}

func runClient(cmd *cobra.Command, flags clientFlags, mode ui.Mode, opts ui.Options) error {
	closeLog, err := setupFileLogger(flags.logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, server, err := resolveConfig(flags, cmd.Flags().Changed, os.LookupEnv)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if flags.discover {
		server, err = discoverRelay(ctx)
		if err != nil {
			return err
		}
	}

	coordOpts := []coordinator.Option{coordinator.WithShareBase(server)}
	if mode == ui.Receiver {
		exists, isDir, err := util.CheckDirectory(flags.out)
		if err != nil {
			return err
		}
		if exists && !isDir {
			return fmt.Errorf("%s is not a directory", flags.out)
		}
		coordOpts = append(coordOpts, coordinator.WithSaver(receiver.NewFileSaver(flags.out)))
	}

	slog.Info("Starting client", "mode", mode, "server", server, "chunk_size", cfg.ChunkSize)
	adapter := channel.NewAdapter(server, channel.WithBackoff(cfg.ReconnectBackoff))
	coord := coordinator.New(*cfg, adapter, coordOpts...)

	opts.Server = server
	p := tea.NewProgram(ui.InitialModel(mode, coord, opts), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gctx)
	})
	g.Go(func() error {
		return adapter.Run(gctx, coord)
	})
	g.Go(func() error {
		// Quitting the TUI stops everything else.
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func discoverRelay(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	fmt.Fprintln(os.Stderr, "Looking for a relay on the local network...")
	svc, err := discovery.FindRelay(ctx, &discovery.MDNSAdapter{})
	if err != nil {
		return "", err
	}
	slog.Info("Discovered relay", "name", svc.Name, "addr", svc.Addr, "port", svc.Port)
	return svc.RelayURL(), nil
}
