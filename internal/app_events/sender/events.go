package sender

import (
	appevents "github.com/rescp17/relayFileSharer/internal/app_events"
)

// --- App Events (from TUI to App) ---

// ChooseSendEvent enters send mode with the file at Path.
type ChooseSendEvent struct {
	appevents.Event
	Path string
}

// CreateRoomEvent asks the relay for a new room.
type CreateRoomEvent struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = ChooseSendEvent{}
	_ appevents.AppEvent = CreateRoomEvent{}
)

// --- UI Messages (from App to TUI) ---

// FileSelectedMsg shows the file about to be offered.
type FileSelectedMsg struct {
	appevents.UIMessage
	Name     string
	Size     int64
	MimeType string
}

// RoomCreatedMsg carries the code to share with the receiver.
type RoomCreatedMsg struct {
	appevents.UIMessage
	RoomID    string
	ShareLink string
}

type TransferCompleteMsg struct {
	appevents.UIMessage
}
