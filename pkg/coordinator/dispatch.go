package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	appevents "github.com/rescp17/relayFileSharer/internal/app_events"
	receiverEvent "github.com/rescp17/relayFileSharer/internal/app_events/receiver"
	senderEvent "github.com/rescp17/relayFileSharer/internal/app_events/sender"
	"github.com/rescp17/relayFileSharer/internal/util"
	"github.com/rescp17/relayFileSharer/pkg/concurrency"
	"github.com/rescp17/relayFileSharer/pkg/fileInfo"
	"github.com/rescp17/relayFileSharer/pkg/protocol"
	"github.com/rescp17/relayFileSharer/pkg/session"
	"github.com/rescp17/relayFileSharer/pkg/transfer"
)

func (c *Coordinator) handleAppEvent(event appevents.AppEvent) {
	switch e := event.(type) {
	case senderEvent.ChooseSendEvent:
		c.chooseSend(e.Path)
	case senderEvent.CreateRoomEvent:
		c.createRoom()
	case receiverEvent.ChooseReceiveEvent:
		c.applyEvent(session.ChooseRole{Role: session.Receiver})
	case receiverEvent.JoinRoomEvent:
		c.joinRoom(e.Code)
	case receiverEvent.AcceptFileRequestEvent:
		c.applyEvent(session.Accept{})
	case receiverEvent.RejectFileRequestEvent:
		c.applyEvent(session.Reject{})
	case appevents.BackEvent:
		c.reset()
	default:
		slog.Warn("Unhandled app event", "event", fmt.Sprintf("%T", event))
	}
}

func (c *Coordinator) handleLoopEvent(ev loopEvent) {
	switch e := ev.(type) {
	case inboundMsg:
		c.handleMessage(e.data)
	case channelOpened:
		c.connected = true
		slog.Info("Connected to relay")
		c.publish(appevents.ConnectionStatusMsg{Connected: true})
		c.status("Connected to server")
	case channelClosed:
		c.connected = false
		c.connectionID = ""
		slog.Warn("Relay connection closed", "error", e.err)
		c.endRequest()
		c.publish(appevents.ConnectionStatusMsg{Connected: false, Err: e.err})
		c.status("Disconnected from server. Reconnecting...")
		if c.session.State.IsActive() {
			err := transfer.ErrChannelClosed
			if e.err != nil {
				err = fmt.Errorf("%w: %w", transfer.ErrChannelClosed, e.err)
			}
			c.applyEvent(session.Failure{Err: err})
		}
	case channelFailed:
		slog.Error("Relay connection error", "error", e.err)
		c.publish(appevents.ConnectionStatusMsg{Connected: c.connected, Err: e.err})
	case timerFired:
		if c.claim(e) {
			c.handleTimer(e.kind)
		}
	case sendNext:
		if e.sessionID == c.session.ID {
			c.sendNextChunk()
		}
	case resetNow:
		if e.sessionID == c.session.ID {
			c.reset()
		}
	case snapshotReq:
		e.reply <- c.snapshot()
	}
}

func (c *Coordinator) handleTimer(kind timerKind) {
	switch kind {
	case timerPace:
		c.sendNextChunk()
	case timerReset:
		c.reset()
	case timerRequest:
		if name := c.gate.End(); name != "" {
			slog.Warn("Request timed out", "request", name)
			c.warn("No response from server, please try again")
		}
	case timerInactivity:
		if c.session.Role == session.Receiver && c.session.State == session.Transferring {
			slog.Warn("Transfer stalled", "session", c.session.ID, "timeout", c.cfg.InactivityTimeout)
			c.applyEvent(session.Failure{Err: transfer.ErrStalled})
		}
	}
}

// handleMessage maps one inbound relay message to a state-machine event.
func (c *Coordinator) handleMessage(data []byte) {
	msg, err := c.serializer.Unmarshal(data)
	if err != nil {
		transfer.LogError(err, "session", c.session.ID)
		return
	}
	if msg.Type.IsRelayed() && msg.RoomID != "" && msg.RoomID != c.session.RoomID {
		slog.Warn("Message for foreign room ignored", "type", msg.Type, "room", msg.RoomID, "current", c.session.RoomID)
		return
	}
	slog.Debug("Message received", "type", msg.Type, "state", c.session.State.String())

	switch msg.Type {
	case protocol.Connection:
		c.connectionID = msg.ConnectionID
		slog.Info("Connection established", "connection_id", msg.ConnectionID)
	case protocol.RoomCreated:
		c.endRequest()
		c.applyEvent(session.RoomCreated{RoomID: msg.RoomID})
	case protocol.RoomJoined:
		c.endRequest()
		c.applyEvent(session.RoomJoined{RoomID: msg.RoomID})
	case protocol.PeerJoined:
		c.applyEvent(session.PeerJoined{})
	case protocol.PeerDisconnected:
		// A session that has not reached a room yet hears only about the
		// room its connection held before the last reset.
		if c.session.RoomID == "" {
			slog.Debug("Stale peer disconnect ignored", "session", c.session.ID, "state", c.session.State.String())
			return
		}
		c.applyEvent(session.PeerDisconnected{})
	case protocol.ServerError:
		c.endRequest()
		text := msg.Text
		if text == "" {
			text = "Server error"
		}
		slog.Warn("Server error", "message", text)
		c.publish(appevents.NoticeMsg{Level: appevents.LevelError, Text: text})
	case protocol.FileOffer:
		c.applyEvent(session.OfferArrived{File: fileInfo.FileDescriptor{
			Name:     msg.FileName,
			Size:     msg.FileSize,
			MimeType: msg.FileType,
			Checksum: msg.Checksum,
		}})
	case protocol.FileAnswer:
		c.applyEvent(session.AnswerReceived{Accepted: msg.Accepted})
	case protocol.FileChunk:
		c.applyEvent(session.ChunkReceived{Index: msg.ChunkIndex, TotalChunks: msg.TotalChunks, Payload: msg.Chunk})
		if c.session.Role == session.Receiver && c.session.State == session.Transferring {
			c.armInactivity()
		}
	case protocol.FileComplete:
		acked := c.session.Acknowledged
		c.applyEvent(session.CompleteReceived{Success: msg.Success})
		if !acked && c.session.Acknowledged {
			c.publish(senderEvent.TransferCompleteMsg{})
		}
	case protocol.FileError:
		c.applyEvent(session.PeerError{Message: msg.Error})
	default:
		slog.Warn("Unknown message type", "type", msg.Type)
		c.publish(appevents.Error{Err: fmt.Errorf("unknown message type: %q", msg.Type)})
	}
}

// applyEvent runs one transition and performs its effects in order.
func (c *Coordinator) applyEvent(ev session.Event) {
	effects, err := c.session.Apply(ev)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoFile):
			c.warn("Please select a file first")
		case errors.Is(err, session.ErrRoleMismatch):
			c.sendAndLogError("Cannot start session", err)
		default:
			transfer.LogError(err, "session", c.session.ID)
		}
		return
	}
	for _, eff := range effects {
		c.perform(eff)
	}
	c.syncState()
}

func (c *Coordinator) perform(eff session.Effect) {
	switch e := eff.(type) {
	case session.Send:
		c.send(e.Message)
	case session.BeginSending:
		slog.Info("Starting transfer", "session", c.session.ID, "chunks", e.TotalChunks)
		c.enqueue(sendNext{sessionID: c.session.ID})
	case session.Progress:
		c.publish(appevents.ProgressMsg{Done: e.Done, Total: e.Total, Percent: e.Percent})
	case session.ShowRoom:
		if c.session.Role == session.Sender {
			c.publish(senderEvent.RoomCreatedMsg{RoomID: e.RoomID, ShareLink: util.ShareLink(c.shareBase, e.RoomID)})
		} else {
			c.publish(receiverEvent.RoomJoinedMsg{RoomID: e.RoomID})
		}
	case session.ShowOffer:
		c.publish(receiverEvent.FileOfferMsg{Name: e.File.Name, Size: e.File.Size, MimeType: e.File.TypeOrDefault()})
	case session.Deliver:
		c.deliver(e)
	case session.Notice:
		c.publish(appevents.NoticeMsg{Level: appevents.Level(e.Level), Text: e.Text})
	}
}

func (c *Coordinator) deliver(e session.Deliver) {
	if c.saver == nil {
		c.applyEvent(session.Failure{Err: errors.New("no download directory configured")})
		return
	}
	path, err := c.saver.Save(e.File.Name, e.Data)
	if err != nil {
		slog.Error("Failed to save file", "name", e.File.Name, "error", err)
		c.applyEvent(session.Failure{Err: fmt.Errorf("failed to save file: %w", err)})
		return
	}
	c.applyEvent(session.Delivered{Location: path})
	c.publish(receiverEvent.TransferCompleteMsg{Path: path})
}

// syncState publishes a state change once and arms the timers that belong
// to the new state.
func (c *Coordinator) syncState() {
	s := c.session
	if s.State == c.publishedState {
		return
	}
	slog.Info("Session state changed", "session", s.ID, "role", s.Role.String(), "from", c.publishedState.String(), "to", s.State.String())
	c.publishedState = s.State

	switch {
	case s.State.IsTerminal():
		c.disarm(timerPace)
		c.disarm(timerInactivity)
		c.endRequest()
		c.closeChunker()
		if s.Err != nil {
			transfer.LogError(s.Err, "session", s.ID)
		}
		c.scheduleReset(c.resetDelay(s.State))
	case s.State == session.Transferring && s.Role == session.Receiver:
		c.armInactivity()
	}
	c.publish(appevents.StateChangedMsg{Role: s.Role.String(), State: s.State.String()})
}

func (c *Coordinator) resetDelay(state session.State) time.Duration {
	switch state {
	case session.Completed:
		return c.cfg.CompleteResetDelay
	case session.Rejected:
		return c.cfg.RejectResetDelay
	default:
		return c.cfg.FailureResetDelay
	}
}

func (c *Coordinator) scheduleReset(d time.Duration) {
	if d <= 0 {
		c.enqueue(resetNow{sessionID: c.session.ID})
		return
	}
	c.arm(timerReset, d)
}

func (c *Coordinator) chooseSend(path string) {
	if path == "" {
		c.warn("Please select a file first")
		return
	}
	if c.session.State != session.Idle {
		transfer.LogError(&session.IllegalEventError{State: c.session.State, Role: c.session.Role, Event: "ChooseSend"})
		return
	}
	desc, err := fileInfo.Describe(path)
	if err != nil {
		c.sendAndLogError("Failed to read file", err)
		return
	}
	chunker, err := transfer.OpenChunker(path, c.cfg.ChunkSize)
	if err != nil {
		c.sendAndLogError("Failed to open file", err)
		return
	}
	c.applyEvent(session.ChooseRole{Role: session.Sender, File: &desc, ChunkSize: c.cfg.ChunkSize})
	if c.session.Role != session.Sender {
		chunker.Close()
		return
	}
	c.chunker = chunker
	c.publish(senderEvent.FileSelectedMsg{Name: desc.Name, Size: desc.Size, MimeType: desc.TypeOrDefault()})
}

func (c *Coordinator) createRoom() {
	s := c.session
	if s.Role != session.Sender || s.File == nil {
		c.warn("Please select a file first")
		return
	}
	if s.State != session.RoomPending {
		slog.Warn("Create room ignored", "state", s.State.String())
		return
	}
	if !c.beginRequest("create-room") {
		return
	}
	c.send(protocol.Message{Type: protocol.CreateRoom})
	c.status("Creating room...")
}

func (c *Coordinator) joinRoom(input string) {
	code := util.ParseRoomCode(input)
	if code == "" {
		c.warn("Please enter a room code")
		return
	}
	if c.session.State == session.Idle {
		c.applyEvent(session.ChooseRole{Role: session.Receiver})
	}
	s := c.session
	if s.Role != session.Receiver || s.State != session.RoomPending {
		slog.Warn("Join room ignored", "role", s.Role.String(), "state", s.State.String())
		return
	}
	if !c.beginRequest("join-room") {
		return
	}
	c.send(protocol.Message{Type: protocol.JoinRoom, RoomID: code})
	c.status("Joining room " + code + "...")
}

func (c *Coordinator) beginRequest(name string) bool {
	if err := c.gate.TryBegin(name); err != nil {
		if errors.Is(err, concurrency.ErrBusy) {
			c.warn("A request is already in progress")
		}
		return false
	}
	if c.cfg.RequestTimeout > 0 {
		c.arm(timerRequest, c.cfg.RequestTimeout)
	}
	return true
}

func (c *Coordinator) endRequest() {
	c.gate.End()
	c.disarm(timerRequest)
}

func (c *Coordinator) armInactivity() {
	if c.cfg.InactivityTimeout > 0 {
		c.arm(timerInactivity, c.cfg.InactivityTimeout)
	}
}

// sendNextChunk reads, encodes and emits the next chunk, then paces the
// following one.
func (c *Coordinator) sendNextChunk() {
	s := c.session
	if s.Role != session.Sender || s.State != session.Transferring {
		return
	}
	if c.chunker == nil {
		c.applyEvent(session.Failure{Err: errors.New("file is no longer open")})
		return
	}
	index := s.ChunksSent
	chunk, err := c.chunker.ChunkAt(index)
	if err != nil {
		slog.Error("Failed to read chunk", "index", index, "error", err)
		c.applyEvent(session.Failure{Err: fmt.Errorf("read chunk %d: %w", index, err)})
		return
	}
	c.send(protocol.Message{
		Type:        protocol.FileChunk,
		Chunk:       transfer.Encode(chunk.Data),
		ChunkIndex:  index,
		TotalChunks: s.TotalChunks,
	})
	c.applyEvent(session.ChunkSent{Index: index})
	if c.session == s && s.State == session.Transferring {
		c.schedulePace()
	}
}

func (c *Coordinator) schedulePace() {
	if c.cfg.SendInterval <= 0 {
		c.enqueue(sendNext{sessionID: c.session.ID})
		return
	}
	c.arm(timerPace, c.cfg.SendInterval)
}

// send stamps relayed messages with the room id and hands them to the
// channel. A closed channel drops the message.
func (c *Coordinator) send(msg protocol.Message) {
	if msg.Type.IsRelayed() {
		msg.RoomID = c.session.RoomID
	}
	data, err := c.serializer.Marshal(&msg)
	if err != nil {
		slog.Error("Failed to encode message", "type", msg.Type, "error", err)
		return
	}
	if err := c.out.Send(data); err != nil {
		slog.Warn("Message dropped", "type", msg.Type, "error", err)
	}
}

// reset abandons the current session and returns to Idle. Calling it twice
// is harmless.
func (c *Coordinator) reset() {
	old := c.session
	c.stopTimers()
	c.endRequest()
	c.closeChunker()
	if old.Buffer != nil {
		old.Buffer.Reset()
	}
	c.queue = c.queue[:0]
	c.session = session.New()
	slog.Info("Session reset", "previous", old.ID, "state", old.State.String(), "session", c.session.ID)
	if c.publishedState != session.Idle {
		c.publishedState = session.Idle
		c.publish(appevents.StateChangedMsg{Role: session.RoleNone.String(), State: session.Idle.String()})
	}
	c.status("Ready")
}

func (c *Coordinator) closeChunker() {
	if c.chunker == nil {
		return
	}
	if err := c.chunker.Close(); err != nil {
		slog.Error("fail to close file", "error", err)
	}
	c.chunker = nil
}
