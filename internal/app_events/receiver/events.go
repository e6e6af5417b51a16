package receiver

import (
	appevents "github.com/rescp17/relayFileSharer/internal/app_events"
)

// --- UI to App Events ---

type ChooseReceiveEvent struct {
	appevents.Event
}

// JoinRoomEvent joins the room identified by Code.
type JoinRoomEvent struct {
	appevents.Event
	Code string
}

// AcceptFileRequestEvent is sent when the user agrees to receive the file.
type AcceptFileRequestEvent struct {
	appevents.Event
}

// RejectFileRequestEvent is sent when the user rejects the file transfer.
type RejectFileRequestEvent struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = ChooseReceiveEvent{}
	_ appevents.AppEvent = JoinRoomEvent{}
	_ appevents.AppEvent = AcceptFileRequestEvent{}
	_ appevents.AppEvent = RejectFileRequestEvent{}
)

// --- App to UI Messages ---

type RoomJoinedMsg struct {
	appevents.UIMessage
	RoomID string
}

// FileOfferMsg asks the user to accept or reject a file.
type FileOfferMsg struct {
	appevents.UIMessage
	Name     string
	Size     int64
	MimeType string
}

// TransferCompleteMsg reports where the file was saved.
type TransferCompleteMsg struct {
	appevents.UIMessage
	Path string
}
