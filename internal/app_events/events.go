package appevents

// AppEvent is a marker interface for events sent from the TUI to the App's logic controller.
// It uses an unexported method to ensure that only types from this package (by embedding Event)
// can satisfy the interface, providing compile-time safety.
type AppEvent interface {
	isAppEvent()
}

// Event is a struct that can be embedded in other event types to satisfy the AppEvent interface.
type Event struct{}

// isAppEvent is the marker method that makes a struct an AppEvent.
func (Event) isAppEvent() {}

// AppUIMessage is a marker interface for messages sent from the App's logic controller to the TUI.
type AppUIMessage interface {
	isUIMessage()
}

// UIMessage is a base struct that can be embedded in other types to implement the AppUIMessage interface.
type UIMessage struct{}

func (UIMessage) isUIMessage() {}

// --- App Events (from TUI to App) ---

// BackEvent abandons the current session and returns to idle.
type BackEvent struct {
	Event
}

// --- UI Messages (from App to TUI) ---

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// StatusMsg replaces the status line.
type StatusMsg struct {
	UIMessage
	Text string
}

// NoticeMsg is a short-lived notification.
type NoticeMsg struct {
	UIMessage
	Level Level
	Text  string
}

// StateChangedMsg carries the session state after a transition.
type StateChangedMsg struct {
	UIMessage
	Role  string
	State string
}

type ProgressMsg struct {
	UIMessage
	Done    int
	Total   int
	Percent float64
}

// ConnectionStatusMsg reports the relay connection.
type ConnectionStatusMsg struct {
	UIMessage
	Connected bool
	Err       error
}

type Error struct {
	UIMessage
	Err error
}

var (
	_ AppEvent     = BackEvent{}
	_ AppUIMessage = StatusMsg{}
	_ AppUIMessage = NoticeMsg{}
	_ AppUIMessage = StateChangedMsg{}
	_ AppUIMessage = ProgressMsg{}
	_ AppUIMessage = ConnectionStatusMsg{}
	_ AppUIMessage = Error{}
)
