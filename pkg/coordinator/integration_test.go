package coordinator_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rescp17/relayFileSharer/internal/app_events/receiver"
	"github.com/rescp17/relayFileSharer/internal/app_events/sender"
	"github.com/rescp17/relayFileSharer/pkg/channel"
	"github.com/rescp17/relayFileSharer/pkg/coordinator"
	filesaver "github.com/rescp17/relayFileSharer/pkg/receiver"
	"github.com/rescp17/relayFileSharer/pkg/relay"
	"github.com/rescp17/relayFileSharer/pkg/session"
	"github.com/rescp17/relayFileSharer/pkg/transfer"
	"github.com/stretchr/testify/require"
)

type peer struct {
	c   *coordinator.Coordinator
	dir string
}

func startPeer(ctx context.Context, t *testing.T, url string, cfg transfer.TransferConfig) *peer {
	t.Helper()
	dir := t.TempDir()
	adapter := channel.NewAdapter(url, channel.WithBackoff(50*time.Millisecond))
	c := coordinator.New(cfg, adapter, coordinator.WithSaver(filesaver.NewFileSaver(dir)))

	done := make(chan struct{}, 3)
	go func() { _ = c.Run(ctx); done <- struct{}{} }()
	go func() { _ = adapter.Run(ctx, c); done <- struct{}{} }()
	go func() {
		defer func() { done <- struct{}{} }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.UIMessages():
			}
		}
	}()
	t.Cleanup(func() {
		for i := 0; i < 3; i++ {
			<-done
		}
	})

	p := &peer{c: c, dir: dir}
	p.wait(t, func(s coordinator.Snapshot) bool { return s.Connected && s.ConnectionID != "" })
	return p
}

func (p *peer) wait(t *testing.T, cond func(coordinator.Snapshot) bool) coordinator.Snapshot {
	t.Helper()
	var last coordinator.Snapshot
	require.Eventually(t, func() bool {
		snap, err := p.c.Snapshot(context.Background())
		if err != nil {
			return false
		}
		last = snap
		return cond(snap)
	}, 5*time.Second, 10*time.Millisecond)
	return last
}

func TestRelayedTransfer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping relay integration test in short mode")
	}
	srv := httptest.NewServer(relay.NewServer().Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := *transfer.DefaultTransferConfig()
	cfg.ChunkSize = 1000
	cfg.SendInterval = 0

	data := make([]byte, 10_500)
	_, err := rand.Read(data)
	require.NoError(t, err)
	src := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(src, data, 0644))

	alice := startPeer(ctx, t, url, cfg)
	bob := startPeer(ctx, t, url, cfg)

	alice.c.AppEvents() <- sender.ChooseSendEvent{Path: src}
	alice.c.AppEvents() <- sender.CreateRoomEvent{}
	room := alice.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.RoomReady }).RoomID
	require.Len(t, room, relay.CodeLength)

	bob.c.AppEvents() <- receiver.JoinRoomEvent{Code: strings.ToLower(room)}
	bob.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.OfferReceived })
	bob.c.AppEvents() <- receiver.AcceptFileRequestEvent{}

	bob.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.Completed })
	alice.wait(t, func(s coordinator.Snapshot) bool {
		return s.State == session.Completed && s.ChunksSent == 11
	})

	saved, err := os.ReadFile(filepath.Join(bob.dir, "payload.bin"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, saved), "received file differs from the original")

	// Both sides return to Idle on their own.
	alice.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.Idle })
	bob.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.Idle })
}

func TestRelayedTransfer_SenderLeaves(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping relay integration test in short mode")
	}
	srv := httptest.NewServer(relay.NewServer().Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := *transfer.DefaultTransferConfig()

	src := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))

	aliceCtx, aliceCancel := context.WithCancel(ctx)
	alice := startPeer(aliceCtx, t, url, cfg)
	bob := startPeer(ctx, t, url, cfg)

	alice.c.AppEvents() <- sender.ChooseSendEvent{Path: src}
	alice.c.AppEvents() <- sender.CreateRoomEvent{}
	room := alice.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.RoomReady }).RoomID

	bob.c.AppEvents() <- receiver.JoinRoomEvent{Code: room}
	bob.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.OfferReceived })

	aliceCancel()
	bob.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.Failed && !s.PeerPresent })
}

func TestRelayedTransfer_SecondRoomOnSameConnections(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping relay integration test in short mode")
	}
	srv := httptest.NewServer(relay.NewServer().Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := *transfer.DefaultTransferConfig()
	cfg.SendInterval = 0
	cfg.CompleteResetDelay = 100 * time.Millisecond
	cfg.RejectResetDelay = 100 * time.Millisecond
	cfg.FailureResetDelay = 100 * time.Millisecond

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("second time lucky"), 0644))

	alice := startPeer(ctx, t, url, cfg)
	bob := startPeer(ctx, t, url, cfg)

	offer := func() string {
		alice.c.AppEvents() <- sender.ChooseSendEvent{Path: src}
		alice.c.AppEvents() <- sender.CreateRoomEvent{}
		room := alice.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.RoomReady }).RoomID
		bob.c.AppEvents() <- receiver.JoinRoomEvent{Code: room}
		bob.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.OfferReceived })
		return room
	}

	first := offer()
	bob.c.AppEvents() <- receiver.RejectFileRequestEvent{}
	alice.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.Idle })
	bob.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.Idle })

	second := offer()
	require.NotEqual(t, first, second)
	bob.c.AppEvents() <- receiver.AcceptFileRequestEvent{}

	bob.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.Completed })
	alice.wait(t, func(s coordinator.Snapshot) bool { return s.State == session.Completed })

	saved, err := os.ReadFile(filepath.Join(bob.dir, "notes.txt"))
	require.NoError(t, err)
	require.Equal(t, "second time lucky", string(saved))
}
