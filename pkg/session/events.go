package session

import (
	"github.com/rescp17/relayFileSharer/pkg/protocol"
)

// Event is a marker interface for inputs to the state machine.
type Event interface {
	isEvent()
}

type event struct{}

func (event) isEvent() {}

// ChooseRole starts a session. A sender must bring the file it will offer.
type ChooseRole struct {
	event
	Role      Role
	File      *FileDescriptor
	ChunkSize int
}

type RoomCreated struct {
	event
	RoomID string
}

type RoomJoined struct {
	event
	RoomID string
}

type PeerJoined struct{ event }

type OfferArrived struct {
	event
	File FileDescriptor
}

type Accept struct{ event }

type Reject struct{ event }

type AnswerReceived struct {
	event
	Accepted bool
}

// ChunkSent records that chunk Index has been handed to the channel.
type ChunkSent struct {
	event
	Index int
}

type ChunkReceived struct {
	event
	Index       int
	TotalChunks int
	Payload     string
}

// Delivered confirms that the download sink stored the assembled file.
type Delivered struct {
	event
	Location string
}

type CompleteReceived struct {
	event
	Success bool
}

// PeerError is a file-error notice from the other party.
type PeerError struct {
	event
	Message string
}

type PeerDisconnected struct{ event }

// Failure is a local error: transport loss, chunk read failure, stall,
// or a download sink error.
type Failure struct {
	event
	Err error
}

// Effect is a marker interface for side effects the coordinator performs.
type Effect interface {
	isEffect()
}

type effect struct{}

func (effect) isEffect() {}

// Send hands a message to the channel.
type Send struct {
	effect
	Message protocol.Message
}

// BeginSending starts the paced chunk loop.
type BeginSending struct {
	effect
	TotalChunks int
}

type Progress struct {
	effect
	Done    int
	Total   int
	Percent float64
}

type ShowRoom struct {
	effect
	RoomID string
}

type ShowOffer struct {
	effect
	File FileDescriptor
}

// Deliver asks the download sink to store the assembled file.
type Deliver struct {
	effect
	File FileDescriptor
	Data []byte
}

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a user-visible status line.
type Notice struct {
	effect
	Level Level
	Text  string
}
