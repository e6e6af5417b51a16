package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/relayFileSharer/internal/app_events"
)

// AppController defines the contract between the UI and the backend application logic.
// The coordinator implements it; its event loop is started by the caller.
type AppController interface {
	// UIMessages returns a read-only channel for receiving messages from the backend to the UI.
	UIMessages() <-chan tea.Msg

	// AppEvents returns a write-only channel for the UI to send events to the backend.
	AppEvents() chan<- appevents.AppEvent
}
