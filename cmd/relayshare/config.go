package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rescp17/relayFileSharer/pkg/transfer"
)

const defaultServer = "ws://localhost:8080/"

type clientFlags struct {
	server            string
	chunkSize         int
	inactivityTimeout time.Duration
	out               string
	discover          bool
	logLevel          string
}

// resolveConfig layers defaults, environment and explicitly set flags, in
// that order. changed reports whether a flag was given on the command line.
func resolveConfig(f clientFlags, changed func(string) bool, lookup func(string) (string, bool)) (*transfer.TransferConfig, string, error) {
	cfg := transfer.DefaultTransferConfig()
	server, err := cfg.ApplyEnv(lookup)
	if err != nil {
		return nil, "", fmt.Errorf("invalid %s: %w", transfer.EnvChunkSize, err)
	}
	if server == "" {
		server = defaultServer
	}
	if changed("server") {
		server = f.server
	}
	if changed("chunk-size") {
		cfg.ChunkSize = f.chunkSize
	}
	if changed("inactivity-timeout") {
		cfg.InactivityTimeout = f.inactivityTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	server, err = normalizeServer(server)
	if err != nil {
		return nil, "", err
	}
	return cfg, server, nil
}

// normalizeServer accepts host:port, http(s) and ws(s) URLs.
func normalizeServer(server string) (string, error) {
	s := strings.TrimSpace(server)
	switch {
	case s == "":
		return "", fmt.Errorf("server address is empty")
	case strings.HasPrefix(s, "http://"):
		s = "ws://" + strings.TrimPrefix(s, "http://")
	case strings.HasPrefix(s, "https://"):
		s = "wss://" + strings.TrimPrefix(s, "https://")
	case strings.HasPrefix(s, "ws://"), strings.HasPrefix(s, "wss://"):
	default:
		s = "ws://" + s
	}
	return s, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
