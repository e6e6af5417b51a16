package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rescp17/relayFileSharer/pkg/fileInfo"
	"github.com/rescp17/relayFileSharer/pkg/protocol"
	"github.com/rescp17/relayFileSharer/pkg/transfer"
)

type FileDescriptor = fileInfo.FileDescriptor

var (
	ErrIllegalEvent = errors.New("event not allowed in current state")
	ErrNoFile       = errors.New("please select a file first")
	ErrRoleMismatch = errors.New("role must be sender or receiver")
)

// IllegalEventError is returned by Apply for an event the current state
// does not accept. The session is left untouched.
type IllegalEventError struct {
	State State
	Role  Role
	Event string
}

func (e *IllegalEventError) Error() string {
	return fmt.Sprintf("%s not allowed for %s in state %s", e.Event, e.Role, e.State)
}

func (e *IllegalEventError) Is(target error) bool { return target == ErrIllegalEvent }

// ProtocolError marks illegal events as ignorable.
func (e *IllegalEventError) ProtocolError() bool { return true }

// Session is the state of one file exchange. It has no I/O of its own: Apply
// mutates it and returns the side effects the caller must perform, in order.
type Session struct {
	ID          string
	Role        Role
	RoomID      string
	PeerPresent bool
	State       State
	File        *FileDescriptor
	ChunkSize   int

	// Sender side.
	TotalChunks  int
	ChunksSent   int
	Acknowledged bool

	// Receiver side.
	Buffer    *transfer.ReassemblyBuffer
	assembled bool

	Err error
}

func New() *Session {
	return &Session{ID: uuid.NewString(), State: Idle}
}

// Apply feeds one event to the session.
func (s *Session) Apply(ev Event) ([]Effect, error) {
	switch e := ev.(type) {
	case ChooseRole:
		return s.chooseRole(e)
	case RoomCreated:
		if s.State != RoomPending || s.Role != Sender {
			return nil, s.illegal(ev)
		}
		s.RoomID = e.RoomID
		s.State = RoomReady
		return []Effect{
			ShowRoom{RoomID: e.RoomID},
			Notice{Level: LevelSuccess, Text: "Room created successfully"},
		}, nil
	case RoomJoined:
		if s.State != RoomPending || s.Role != Receiver {
			return nil, s.illegal(ev)
		}
		s.RoomID = e.RoomID
		s.PeerPresent = true
		s.State = RoomReady
		return []Effect{
			ShowRoom{RoomID: e.RoomID},
			Notice{Level: LevelSuccess, Text: "Joined room successfully"},
		}, nil
	case PeerJoined:
		if s.State != RoomReady || s.Role != Sender {
			return nil, s.illegal(ev)
		}
		s.PeerPresent = true
		s.State = OfferSent
		return []Effect{
			Notice{Level: LevelInfo, Text: "Receiver joined the room"},
			Send{Message: s.offerMessage()},
		}, nil
	case OfferArrived:
		if s.State != RoomReady || s.Role != Receiver {
			return nil, s.illegal(ev)
		}
		file := e.File
		s.File = &file
		s.State = OfferReceived
		return []Effect{ShowOffer{File: file}}, nil
	case Accept:
		if s.State != OfferReceived {
			return nil, s.illegal(ev)
		}
		s.State = Accepted
		s.Buffer = transfer.NewReassemblyBuffer()
		s.State = Transferring
		return []Effect{
			Send{Message: protocol.Message{Type: protocol.FileAnswer, Accepted: true}},
			Notice{Level: LevelInfo, Text: "Accepting file..."},
		}, nil
	case Reject:
		if s.State != OfferReceived {
			return nil, s.illegal(ev)
		}
		s.State = Rejected
		s.Err = transfer.ErrRejected
		return []Effect{
			Send{Message: protocol.Message{Type: protocol.FileAnswer, Accepted: false}},
			Notice{Level: LevelWarning, Text: "File rejected"},
		}, nil
	case AnswerReceived:
		return s.answerReceived(e)
	case ChunkSent:
		return s.chunkSent(e)
	case ChunkReceived:
		return s.chunkReceived(e)
	case Delivered:
		if s.State != Transferring || s.Role != Receiver || !s.assembled {
			return nil, s.illegal(ev)
		}
		s.State = Completed
		return []Effect{
			Send{Message: protocol.Message{Type: protocol.FileComplete, Success: true}},
			Notice{Level: LevelSuccess, Text: "File received successfully!"},
		}, nil
	case CompleteReceived:
		return s.completeReceived(e)
	case PeerError:
		return s.peerError(e)
	case PeerDisconnected:
		if !s.State.IsActive() {
			return nil, s.illegal(ev)
		}
		s.PeerPresent = false
		return s.fail(transfer.ErrPeerDisconnected, "The other user disconnected", false), nil
	case Failure:
		if !s.State.IsActive() {
			return nil, s.illegal(ev)
		}
		notify := transfer.ActionFor(e.Err) == transfer.ErrorActionNotifyAndFail && s.State == Transferring
		return s.fail(e.Err, userText(e.Err), notify), nil
	default:
		return nil, s.illegal(ev)
	}
}

func (s *Session) chooseRole(e ChooseRole) ([]Effect, error) {
	if s.State != Idle {
		return nil, s.illegal(e)
	}
	switch e.Role {
	case Sender:
		if e.File == nil {
			return nil, ErrNoFile
		}
		file := *e.File
		s.File = &file
		s.ChunkSize = e.ChunkSize
		if s.ChunkSize <= 0 {
			s.ChunkSize = transfer.DefaultChunkSize
		}
	case Receiver:
	default:
		return nil, fmt.Errorf("%w: got %s", ErrRoleMismatch, e.Role)
	}
	s.Role = e.Role
	s.State = RoomPending
	return nil, nil
}

func (s *Session) answerReceived(e AnswerReceived) ([]Effect, error) {
	if s.State != OfferSent || s.Role != Sender {
		return nil, s.illegal(e)
	}
	if !e.Accepted {
		s.State = Rejected
		s.Err = transfer.ErrRejected
		return []Effect{Notice{Level: LevelWarning, Text: "File was rejected"}}, nil
	}
	total, err := transfer.TotalChunks(s.File.Size, s.ChunkSize)
	if err != nil {
		return s.fail(err, userText(err), true), nil
	}
	s.TotalChunks = total
	s.ChunksSent = 0
	s.State = Transferring
	effects := []Effect{Notice{Level: LevelSuccess, Text: "File accepted by receiver"}}
	if total == 0 {
		s.State = Completed
		return append(effects,
			Progress{Done: 0, Total: 0, Percent: 100},
			Send{Message: protocol.Message{Type: protocol.FileComplete, Success: true}},
		), nil
	}
	return append(effects, BeginSending{TotalChunks: total}), nil
}

func (s *Session) chunkSent(e ChunkSent) ([]Effect, error) {
	if s.State != Transferring || s.Role != Sender || e.Index != s.ChunksSent {
		return nil, s.illegal(e)
	}
	s.ChunksSent++
	effects := []Effect{Progress{
		Done:    s.ChunksSent,
		Total:   s.TotalChunks,
		Percent: float64(s.ChunksSent) / float64(s.TotalChunks) * 100,
	}}
	if s.ChunksSent == s.TotalChunks {
		s.State = Completed
		effects = append(effects,
			Send{Message: protocol.Message{Type: protocol.FileComplete, Success: true}},
			Notice{Level: LevelInfo, Text: "All chunks sent, waiting for receiver"},
		)
	}
	return effects, nil
}

func (s *Session) chunkReceived(e ChunkReceived) ([]Effect, error) {
	if s.State != Transferring || s.Role != Receiver || s.assembled {
		return nil, s.illegal(e)
	}
	if err := s.Buffer.Put(e.Index, e.TotalChunks, e.Payload); err != nil {
		return s.fail(err, userText(err), true), nil
	}
	effects := []Effect{Progress{
		Done:    s.Buffer.Len(),
		Total:   s.Buffer.TotalChunks(),
		Percent: s.Buffer.Progress(),
	}}
	if !s.Buffer.Complete() {
		return effects, nil
	}
	data, err := s.Buffer.Assemble()
	if err != nil {
		return s.fail(err, userText(err), true), nil
	}
	return append(effects, s.deliver(data)...), nil
}

func (s *Session) deliver(data []byte) []Effect {
	if int64(len(data)) != s.File.Size {
		err := fmt.Errorf("%w: got %d bytes, offered %d", transfer.ErrSizeMismatch, len(data), s.File.Size)
		return s.fail(err, userText(err), true)
	}
	if !fileInfo.VerifyChecksum(data, s.File.Checksum) {
		return s.fail(transfer.ErrChecksumMismatch, userText(transfer.ErrChecksumMismatch), true)
	}
	s.assembled = true
	return []Effect{Deliver{File: *s.File, Data: data}}
}

func (s *Session) completeReceived(e CompleteReceived) ([]Effect, error) {
	switch {
	case s.Role == Sender && s.State == Completed && !s.Acknowledged:
		if !e.Success {
			return s.fail(errors.New("receiver reported failure"), "Receiver could not save the file", false), nil
		}
		s.Acknowledged = true
		return []Effect{Notice{Level: LevelSuccess, Text: "File transfer completed!"}}, nil
	case s.Role == Receiver && s.State == Transferring && !s.assembled:
		if !e.Success {
			return s.fail(errors.New("sender reported failure"), "Sender aborted the transfer", false), nil
		}
		if s.File.Size == 0 && s.Buffer.Len() == 0 {
			return s.deliver(nil), nil
		}
		data, err := s.Buffer.Assemble()
		if err != nil {
			return s.fail(err, userText(err), true), nil
		}
		return s.deliver(data), nil
	case s.Role == Receiver && s.State == Completed:
		// Sender's end-of-stream marker after we already assembled.
		return nil, nil
	}
	return nil, s.illegal(e)
}

func (s *Session) peerError(e PeerError) ([]Effect, error) {
	unacked := s.Role == Sender && s.State == Completed && !s.Acknowledged
	if !s.State.IsActive() && !unacked {
		return nil, s.illegal(e)
	}
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return s.fail(fmt.Errorf("peer error: %s", msg), "Transfer error: "+msg, false), nil
}

// fail moves the session to Failed and discards partial data. notifyPeer
// emits a file-error so the other side can fail too.
func (s *Session) fail(err error, text string, notifyPeer bool) []Effect {
	s.State = Failed
	s.Err = err
	if s.Buffer != nil {
		s.Buffer.Reset()
	}
	s.assembled = false
	effects := []Effect{Notice{Level: LevelError, Text: text}}
	if notifyPeer {
		effects = append(effects, Send{Message: protocol.Message{Type: protocol.FileError, Error: s.peerText(err)}})
	}
	return effects
}

func (s *Session) peerText(err error) string {
	if s.Role == Sender {
		return "Failed to process file chunk"
	}
	if errors.Is(err, transfer.ErrStalled) {
		return "Transfer stalled"
	}
	return "Failed to assemble file"
}

func userText(err error) string {
	switch {
	case errors.Is(err, transfer.ErrChannelClosed):
		return "Lost connection to relay server"
	case errors.Is(err, transfer.ErrStalled):
		return "Transfer stalled, no data received"
	case errors.Is(err, transfer.ErrChecksumMismatch):
		return "File is corrupted, checksum does not match"
	default:
		return "Transfer failed: " + err.Error()
	}
}

func (s *Session) offerMessage() protocol.Message {
	return protocol.Message{
		Type:     protocol.FileOffer,
		FileName: s.File.Name,
		FileSize: s.File.Size,
		FileType: s.File.TypeOrDefault(),
		Checksum: s.File.Checksum,
	}
}

func (s *Session) illegal(ev any) error {
	return &IllegalEventError{State: s.State, Role: s.Role, Event: eventName(ev)}
}

func eventName(ev any) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", ev), "session.")
}
