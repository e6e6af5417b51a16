package protocol

import (
	"errors"
	"fmt"
)

type MessageType string

const (
	// relay -> client
	Connection       MessageType = "connection"
	RoomCreated      MessageType = "room-created"
	RoomJoined       MessageType = "room-joined"
	PeerJoined       MessageType = "peer-joined"
	PeerDisconnected MessageType = "peer-disconnected"
	ServerError      MessageType = "error"

	// client -> relay
	CreateRoom MessageType = "create-room"
	JoinRoom   MessageType = "join-room"

	// client -> client, forwarded verbatim by the relay
	FileOffer    MessageType = "file-offer"
	FileAnswer   MessageType = "file-answer"
	FileChunk    MessageType = "file-chunk"
	FileComplete MessageType = "file-complete"
	FileError    MessageType = "file-error"
)

// IsRelayed reports whether the relay forwards t to the other party untouched.
func (t MessageType) IsRelayed() bool {
	switch t {
	case FileOffer, FileAnswer, FileChunk, FileComplete, FileError:
		return true
	}
	return false
}

// IsKnown reports whether t is part of the protocol.
func (t MessageType) IsKnown() bool {
	switch t {
	case Connection, RoomCreated, RoomJoined, PeerJoined, PeerDisconnected, ServerError,
		CreateRoom, JoinRoom:
		return true
	}
	return t.IsRelayed()
}

// Message is the envelope for every message on the channel. Only the fields
// that belong to Type are put on the wire.
type Message struct {
	Type MessageType

	ConnectionID string
	RoomID       string

	// file-offer
	FileName string
	FileSize int64
	FileType string
	Checksum string

	// file-answer
	Accepted bool

	// file-chunk
	Chunk       string
	ChunkIndex  int
	TotalChunks int

	// file-complete
	Success bool

	// file-error carries Error, server error carries Text
	Error string
	Text  string
}

var ErrMissingType = errors.New("message has no type")

// ProtocolError describes a message that cannot be acted upon. It is never
// fatal to a session.
type ProtocolError struct {
	Type   MessageType
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("protocol error: %s", e.Reason)
	}
	return fmt.Sprintf("protocol error in %q: %s", e.Type, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ProtocolError marks the error as a protocol-level, ignorable failure.
func (e *ProtocolError) ProtocolError() bool { return true }

type MessageSerializer interface {
	Marshal(message *Message) ([]byte, error)
	Unmarshal(data []byte) (*Message, error)
	Name() string
	IsBinary() bool
}
