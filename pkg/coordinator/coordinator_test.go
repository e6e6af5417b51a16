package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/relayFileSharer/internal/app_events"
	receiverEvent "github.com/rescp17/relayFileSharer/internal/app_events/receiver"
	senderEvent "github.com/rescp17/relayFileSharer/internal/app_events/sender"
	"github.com/rescp17/relayFileSharer/pkg/fileInfo"
	"github.com/rescp17/relayFileSharer/pkg/protocol"
	"github.com/rescp17/relayFileSharer/pkg/receiver"
	"github.com/rescp17/relayFileSharer/pkg/session"
	"github.com/rescp17/relayFileSharer/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var serializer = protocol.NewJSONSerializer()

// fakeOutbound records every message handed to the channel.
type fakeOutbound struct {
	mu   sync.Mutex
	msgs []protocol.Message
	err  error
}

func (f *fakeOutbound) Send(data []byte) error {
	msg, err := serializer.Unmarshal(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeOutbound) ofType(t protocol.MessageType) []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Message
	for _, m := range f.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// uiRecorder drains UIMessages the way the TUI would.
type uiRecorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *uiRecorder) run(ctx context.Context, ch <-chan tea.Msg) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			r.mu.Lock()
			r.msgs = append(r.msgs, msg)
			r.mu.Unlock()
		}
	}
}

func (r *uiRecorder) find(match func(tea.Msg) bool) (tea.Msg, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if match(m) {
			return m, true
		}
	}
	return nil, false
}

type harness struct {
	t     *testing.T
	c     *Coordinator
	out   *fakeOutbound
	ui    *uiRecorder
	clock *clock.Mock
	dir   string
}

func testConfig() transfer.TransferConfig {
	cfg := transfer.DefaultTransferConfig()
	cfg.SendInterval = 0
	return *cfg
}

func start(t *testing.T, cfg transfer.TransferConfig) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		out:   &fakeOutbound{},
		ui:    &uiRecorder{},
		clock: clock.NewMock(),
		dir:   t.TempDir(),
	}
	h.c = New(cfg, h.out,
		WithClock(h.clock),
		WithSaver(receiver.NewFileSaver(h.dir)),
		WithShareBase("ws://relay.test:8080/ws"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.c.Run(ctx)
	}()
	go h.ui.run(ctx, h.c.UIMessages())
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) inbound(msg protocol.Message) {
	h.t.Helper()
	data, err := serializer.Marshal(&msg)
	require.NoError(h.t, err)
	h.c.HandleMessage(data)
}

func (h *harness) action(ev appevents.AppEvent) {
	h.c.AppEvents() <- ev
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	snap, err := h.c.Snapshot(context.Background())
	require.NoError(h.t, err)
	return snap
}

func (h *harness) waitState(state session.State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.snapshot().State == state
	}, waitFor, tick, "waiting for state %s", state)
}

func (h *harness) waitSent(typ protocol.MessageType, n int) []protocol.Message {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return len(h.out.ofType(typ)) >= n
	}, waitFor, tick, "waiting for %d %s message(s)", n, typ)
	return h.out.ofType(typ)
}

func (h *harness) waitUI(match func(tea.Msg) bool) tea.Msg {
	h.t.Helper()
	var found tea.Msg
	require.Eventually(h.t, func() bool {
		var ok bool
		found, ok = h.ui.find(match)
		return ok
	}, waitFor, tick)
	return found
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// senderReady drives a sender to OfferSent in room ABC123.
func senderReady(t *testing.T, h *harness, path string) {
	t.Helper()
	h.action(senderEvent.ChooseSendEvent{Path: path})
	h.waitState(session.RoomPending)
	h.action(senderEvent.CreateRoomEvent{})
	h.waitSent(protocol.CreateRoom, 1)
	h.inbound(protocol.Message{Type: protocol.RoomCreated, RoomID: "ABC123"})
	h.waitState(session.RoomReady)
	h.inbound(protocol.Message{Type: protocol.PeerJoined})
	h.waitState(session.OfferSent)
}

// receiverOffered drives a receiver to OfferReceived in room ABC123.
func receiverOffered(t *testing.T, h *harness, offer protocol.Message) {
	t.Helper()
	h.action(receiverEvent.JoinRoomEvent{Code: "abc123"})
	joins := h.waitSent(protocol.JoinRoom, 1)
	require.Equal(t, "ABC123", joins[0].RoomID)
	h.inbound(protocol.Message{Type: protocol.RoomJoined, RoomID: "ABC123"})
	h.waitState(session.RoomReady)
	offer.Type = protocol.FileOffer
	h.inbound(offer)
	h.waitState(session.OfferReceived)
}

func TestNegotiationScenario(t *testing.T) {
	h := start(t, testConfig())
	senderReady(t, h, writeFile(t, "a.txt", []byte("hello")))

	msg := h.waitUI(func(m tea.Msg) bool { _, ok := m.(senderEvent.RoomCreatedMsg); return ok })
	room := msg.(senderEvent.RoomCreatedMsg)
	assert.Equal(t, "ABC123", room.RoomID)
	assert.Equal(t, "http://relay.test:8080/?room=ABC123", room.ShareLink)

	offers := h.out.ofType(protocol.FileOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "a.txt", offers[0].FileName)
	assert.Equal(t, int64(5), offers[0].FileSize)
	assert.Contains(t, offers[0].FileType, "text/plain")
	assert.Equal(t, fileInfo.ChecksumBytes([]byte("hello")), offers[0].Checksum)
	assert.Equal(t, "ABC123", offers[0].RoomID, "relayed messages carry the room id")

	h.inbound(protocol.Message{Type: protocol.FileAnswer, Accepted: true})
	chunks := h.waitSent(protocol.FileChunk, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Equal(t, transfer.Encode([]byte("hello")), chunks[0].Chunk)

	completes := h.waitSent(protocol.FileComplete, 1)
	assert.True(t, completes[0].Success)
	h.waitState(session.Completed)

	h.inbound(protocol.Message{Type: protocol.FileComplete, Success: true})
	h.waitUI(func(m tea.Msg) bool { _, ok := m.(senderEvent.TransferCompleteMsg); return ok })

	h.clock.Add(transfer.DefaultTransferConfig().CompleteResetDelay)
	h.waitState(session.Idle)
}

func TestReceiverScenario(t *testing.T) {
	h := start(t, testConfig())
	data := []byte("0123456789abcdef")
	receiverOffered(t, h, protocol.Message{
		FileName: "notes.txt",
		FileSize: int64(len(data)),
		FileType: "text/plain",
		Checksum: fileInfo.ChecksumBytes(data),
	})
	h.waitUI(func(m tea.Msg) bool {
		offer, ok := m.(receiverEvent.FileOfferMsg)
		return ok && offer.Name == "notes.txt"
	})

	h.action(receiverEvent.AcceptFileRequestEvent{})
	answers := h.waitSent(protocol.FileAnswer, 1)
	assert.True(t, answers[0].Accepted)
	h.waitState(session.Transferring)

	chunks, err := transfer.Split(data, 5)
	require.NoError(t, err)
	for i := len(chunks) - 1; i >= 0; i-- {
		c := chunks[i]
		h.inbound(protocol.Message{Type: protocol.FileChunk, Chunk: transfer.Encode(c.Data), ChunkIndex: c.Index, TotalChunks: c.TotalChunks})
	}

	completes := h.waitSent(protocol.FileComplete, 1)
	assert.True(t, completes[0].Success)
	h.waitState(session.Completed)

	msg := h.waitUI(func(m tea.Msg) bool { _, ok := m.(receiverEvent.TransferCompleteMsg); return ok })
	path := msg.(receiverEvent.TransferCompleteMsg).Path
	assert.Equal(t, filepath.Join(h.dir, "notes.txt"), path)
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, saved)

	h.waitUI(func(m tea.Msg) bool {
		p, ok := m.(appevents.ProgressMsg)
		return ok && p.Done == 4 && p.Total == 4
	})

	// Sender's end marker after completion is harmless.
	h.inbound(protocol.Message{Type: protocol.FileComplete, Success: true})
	assert.Equal(t, session.Completed, h.snapshot().State)
}

func TestRejectionScenario(t *testing.T) {
	cfg := testConfig()

	t.Run("receiver", func(t *testing.T) {
		h := start(t, cfg)
		receiverOffered(t, h, protocol.Message{FileName: "a.txt", FileSize: 5})
		h.action(receiverEvent.RejectFileRequestEvent{})
		answers := h.waitSent(protocol.FileAnswer, 1)
		assert.False(t, answers[0].Accepted)
		h.waitState(session.Rejected)

		h.clock.Add(cfg.RejectResetDelay)
		h.waitState(session.Idle)
	})

	t.Run("sender", func(t *testing.T) {
		h := start(t, cfg)
		senderReady(t, h, writeFile(t, "a.txt", []byte("hello")))
		h.inbound(protocol.Message{Type: protocol.FileAnswer, Accepted: false})
		h.waitState(session.Rejected)
		assert.Empty(t, h.out.ofType(protocol.FileChunk))

		h.clock.Add(cfg.RejectResetDelay - time.Millisecond)
		assert.Equal(t, session.Rejected, h.snapshot().State)
		h.clock.Add(time.Millisecond)
		h.waitState(session.Idle)
		assert.Empty(t, h.out.ofType(protocol.FileChunk))
	})
}

func TestDisconnectionScenario(t *testing.T) {
	cfg := testConfig()
	h := start(t, cfg)
	receiverOffered(t, h, protocol.Message{FileName: "a.bin", FileSize: 8})
	h.action(receiverEvent.AcceptFileRequestEvent{})
	h.waitState(session.Transferring)

	h.inbound(protocol.Message{Type: protocol.FileChunk, Chunk: transfer.Encode([]byte("ab")), ChunkIndex: 0, TotalChunks: 4})
	require.Eventually(t, func() bool { return h.snapshot().Received == 1 }, waitFor, tick)

	h.inbound(protocol.Message{Type: protocol.PeerDisconnected})
	h.waitState(session.Failed)
	snap := h.snapshot()
	assert.Equal(t, 0, snap.Received, "partial buffer is discarded")
	assert.False(t, snap.PeerPresent)
	assert.Empty(t, h.out.ofType(protocol.FileError))

	h.clock.Add(cfg.FailureResetDelay)
	h.waitState(session.Idle)

	// A late chunk from the old transfer must not revive anything.
	h.inbound(protocol.Message{Type: protocol.FileChunk, Chunk: transfer.Encode([]byte("cd")), ChunkIndex: 1, TotalChunks: 4})
	snap = h.snapshot()
	assert.Equal(t, session.Idle, snap.State)
	assert.Equal(t, 0, snap.Received)
}

func TestIdempotentReset(t *testing.T) {
	h := start(t, testConfig())
	receiverOffered(t, h, protocol.Message{FileName: "a.bin", FileSize: 4})
	h.action(receiverEvent.AcceptFileRequestEvent{})
	h.inbound(protocol.Message{Type: protocol.FileChunk, Chunk: transfer.Encode([]byte("ab")), ChunkIndex: 0, TotalChunks: 2})
	require.Eventually(t, func() bool { return h.snapshot().Received == 1 }, waitFor, tick)

	for i := 0; i < 2; i++ {
		h.action(appevents.BackEvent{})
		h.waitState(session.Idle)
		snap := h.snapshot()
		assert.Equal(t, 0, snap.Received)
		assert.Equal(t, "", snap.RoomID)
		assert.Equal(t, session.RoleNone, snap.Role)
		assert.False(t, snap.RequestBusy)
	}
}

func TestIdleIgnoresRelayedMessages(t *testing.T) {
	h := start(t, testConfig())
	before := h.snapshot()

	h.inbound(protocol.Message{Type: protocol.FileChunk, Chunk: "aGk=", ChunkIndex: 0, TotalChunks: 1})
	h.inbound(protocol.Message{Type: protocol.FileAnswer, Accepted: true})
	h.inbound(protocol.Message{Type: protocol.PeerDisconnected})

	after := h.snapshot()
	assert.Equal(t, before, after)
	h.out.mu.Lock()
	assert.Empty(t, h.out.msgs)
	h.out.mu.Unlock()
}

func TestStalePeerDisconnectBeforeRoom(t *testing.T) {
	h := start(t, testConfig())
	h.action(receiverEvent.JoinRoomEvent{Code: "ABC123"})
	h.waitSent(protocol.JoinRoom, 1)
	h.waitState(session.RoomPending)

	// The relay closes the previous room as this connection joins a new one.
	h.inbound(protocol.Message{Type: protocol.PeerDisconnected})
	assert.Equal(t, session.RoomPending, h.snapshot().State)

	h.inbound(protocol.Message{Type: protocol.RoomJoined, RoomID: "ABC123"})
	h.waitState(session.RoomReady)

	h.inbound(protocol.Message{Type: protocol.PeerDisconnected})
	h.waitState(session.Failed)
}

func TestUnknownMessageType(t *testing.T) {
	h := start(t, testConfig())
	h.c.HandleMessage([]byte(`{"type":"telemetry","x":1}`))
	msg := h.waitUI(func(m tea.Msg) bool { _, ok := m.(appevents.Error); return ok })
	assert.Contains(t, msg.(appevents.Error).Err.Error(), "telemetry")
	assert.Equal(t, session.Idle, h.snapshot().State)

	h.c.HandleMessage([]byte(`not json`))
	assert.Equal(t, session.Idle, h.snapshot().State)
}

func TestForeignRoomIgnored(t *testing.T) {
	h := start(t, testConfig())
	h.action(receiverEvent.JoinRoomEvent{Code: "ABC123"})
	h.waitSent(protocol.JoinRoom, 1)
	h.inbound(protocol.Message{Type: protocol.RoomJoined, RoomID: "ABC123"})
	h.waitState(session.RoomReady)

	h.inbound(protocol.Message{Type: protocol.FileOffer, RoomID: "ZZZ999", FileName: "x", FileSize: 1})
	assert.Equal(t, session.RoomReady, h.snapshot().State)

	h.inbound(protocol.Message{Type: protocol.FileOffer, RoomID: "ABC123", FileName: "x", FileSize: 1})
	h.waitState(session.OfferReceived)
}

func TestConnectionMessage(t *testing.T) {
	h := start(t, testConfig())
	h.c.HandleOpen()
	h.inbound(protocol.Message{Type: protocol.Connection, ConnectionID: "conn-1"})
	require.Eventually(t, func() bool {
		snap := h.snapshot()
		return snap.Connected && snap.ConnectionID == "conn-1"
	}, waitFor, tick)
	h.waitUI(func(m tea.Msg) bool {
		s, ok := m.(appevents.ConnectionStatusMsg)
		return ok && s.Connected
	})
}

func TestRequestGate(t *testing.T) {
	cfg := testConfig()
	h := start(t, cfg)
	h.action(senderEvent.ChooseSendEvent{Path: writeFile(t, "a.txt", []byte("hello"))})
	h.waitState(session.RoomPending)

	h.action(senderEvent.CreateRoomEvent{})
	h.action(senderEvent.CreateRoomEvent{})
	h.waitUI(func(m tea.Msg) bool {
		n, ok := m.(appevents.NoticeMsg)
		return ok && n.Text == "A request is already in progress"
	})
	assert.Len(t, h.out.ofType(protocol.CreateRoom), 1)
	assert.True(t, h.snapshot().RequestBusy)

	h.clock.Add(cfg.RequestTimeout)
	require.Eventually(t, func() bool { return !h.snapshot().RequestBusy }, waitFor, tick)
	assert.Equal(t, session.RoomPending, h.snapshot().State)

	h.action(senderEvent.CreateRoomEvent{})
	h.waitSent(protocol.CreateRoom, 2)
}

func TestServerErrorEndsRequest(t *testing.T) {
	h := start(t, testConfig())
	h.action(receiverEvent.JoinRoomEvent{Code: "nope00"})
	h.waitSent(protocol.JoinRoom, 1)

	h.inbound(protocol.Message{Type: protocol.ServerError, Text: "Room not found"})
	h.waitUI(func(m tea.Msg) bool {
		n, ok := m.(appevents.NoticeMsg)
		return ok && n.Level == appevents.LevelError && n.Text == "Room not found"
	})
	snap := h.snapshot()
	assert.Equal(t, session.RoomPending, snap.State)
	assert.False(t, snap.RequestBusy)

	h.action(receiverEvent.JoinRoomEvent{Code: "ABC123"})
	joins := h.waitSent(protocol.JoinRoom, 2)
	assert.Equal(t, "ABC123", joins[1].RoomID)
}

func TestEmptyRoomCode(t *testing.T) {
	h := start(t, testConfig())
	h.action(receiverEvent.JoinRoomEvent{Code: "   "})
	h.waitUI(func(m tea.Msg) bool {
		n, ok := m.(appevents.NoticeMsg)
		return ok && n.Text == "Please enter a room code"
	})
	assert.Empty(t, h.out.ofType(protocol.JoinRoom))
	assert.Equal(t, session.Idle, h.snapshot().State)
}

func TestCreateRoomWithoutFile(t *testing.T) {
	h := start(t, testConfig())
	h.action(senderEvent.CreateRoomEvent{})
	h.action(senderEvent.ChooseSendEvent{})
	h.waitUI(func(m tea.Msg) bool {
		n, ok := m.(appevents.NoticeMsg)
		return ok && n.Text == "Please select a file first"
	})
	assert.Empty(t, h.out.ofType(protocol.CreateRoom))
}

func TestInactivityTimeout(t *testing.T) {
	cfg := testConfig()
	h := start(t, cfg)
	receiverOffered(t, h, protocol.Message{FileName: "a.bin", FileSize: 4})
	h.action(receiverEvent.AcceptFileRequestEvent{})
	h.waitState(session.Transferring)

	h.clock.Add(cfg.InactivityTimeout)
	h.waitState(session.Failed)
	errs := h.waitSent(protocol.FileError, 1)
	assert.Equal(t, "Transfer stalled", errs[0].Error)
}

func TestChannelCloseFailsSession(t *testing.T) {
	h := start(t, testConfig())
	h.c.HandleOpen()
	h.action(receiverEvent.JoinRoomEvent{Code: "ABC123"})
	h.waitSent(protocol.JoinRoom, 1)

	h.c.HandleClose(errors.New("broken pipe"))
	h.waitState(session.Failed)
	snap := h.snapshot()
	assert.False(t, snap.Connected)
	assert.False(t, snap.RequestBusy)
	h.waitUI(func(m tea.Msg) bool {
		s, ok := m.(appevents.ConnectionStatusMsg)
		return ok && !s.Connected && s.Err != nil
	})
}

func TestSendPacing(t *testing.T) {
	cfg := testConfig()
	cfg.SendInterval = 10 * time.Millisecond
	cfg.ChunkSize = 2
	h := start(t, cfg)
	senderReady(t, h, writeFile(t, "a.txt", []byte("hello")))

	h.inbound(protocol.Message{Type: protocol.FileAnswer, Accepted: true})
	h.waitSent(protocol.FileChunk, 1)
	require.Eventually(t, func() bool { return h.snapshot().ChunksSent == 1 }, waitFor, tick)
	assert.Len(t, h.out.ofType(protocol.FileChunk), 1, "next chunk waits for the pacing interval")

	h.clock.Add(cfg.SendInterval)
	h.waitSent(protocol.FileChunk, 2)
	require.Eventually(t, func() bool { return h.snapshot().ChunksSent == 2 }, waitFor, tick)

	h.clock.Add(cfg.SendInterval)
	chunks := h.waitSent(protocol.FileChunk, 3)
	h.waitState(session.Completed)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, 3, c.TotalChunks)
	}
	h.waitUI(func(m tea.Msg) bool {
		p, ok := m.(appevents.ProgressMsg)
		return ok && p.Done == 3 && p.Percent == 100
	})
}

func TestEmptyFileTransfer(t *testing.T) {
	h := start(t, testConfig())
	senderReady(t, h, writeFile(t, "empty.txt", nil))
	h.inbound(protocol.Message{Type: protocol.FileAnswer, Accepted: true})
	h.waitSent(protocol.FileComplete, 1)
	h.waitState(session.Completed)
	assert.Empty(t, h.out.ofType(protocol.FileChunk))
}

func TestSaveFailure(t *testing.T) {
	h := start(t, testConfig())
	h.c.saver = failingSaver{}
	receiverOffered(t, h, protocol.Message{FileName: "a.txt", FileSize: 2})
	h.action(receiverEvent.AcceptFileRequestEvent{})
	h.inbound(protocol.Message{Type: protocol.FileChunk, Chunk: transfer.Encode([]byte("hi")), ChunkIndex: 0, TotalChunks: 1})

	h.waitState(session.Failed)
	errs := h.waitSent(protocol.FileError, 1)
	assert.Equal(t, "Failed to assemble file", errs[0].Error)
	assert.Empty(t, h.out.ofType(protocol.FileComplete))
}

type failingSaver struct{}

func (failingSaver) Save(string, []byte) (string, error) { return "", errors.New("disk full") }
