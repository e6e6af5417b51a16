package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/relayFileSharer/internal/app_events"
	receiverEvent "github.com/rescp17/relayFileSharer/internal/app_events/receiver"
	"github.com/rescp17/relayFileSharer/internal/style"
	"github.com/rescp17/relayFileSharer/internal/util"
	"github.com/rescp17/relayFileSharer/pkg/session"
)

type receiverModel struct {
	input textinput.Model
	// pending is a code from the command line, joined once connected.
	pending   string
	roomID    string
	offer     *receiverEvent.FileOfferMsg
	savedPath string
}

func initReceiverModel(code string) receiverModel {
	ti := textinput.New()
	ti.Placeholder = "Room code or share link"
	ti.CharLimit = 256
	ti.Width = 40
	ti.Prompt = "> "
	if code == "" {
		ti.Focus()
	}
	return receiverModel{input: ti, pending: code}
}

func (m *model) initReceiver() tea.Cmd {
	return tea.Batch(textinput.Blink, m.sendEvent(receiverEvent.ChooseReceiveEvent{}))
}

func (m *model) join(code string) tea.Cmd {
	m.receiver.input.Blur()
	return m.sendEvent(receiverEvent.JoinRoomEvent{Code: code})
}

// maybeJoin joins the room given on the command line once the relay is up.
func (m *model) maybeJoin() tea.Cmd {
	if m.receiver.pending == "" || !m.connected {
		return nil
	}
	if m.state != session.Idle.String() && m.state != session.RoomPending.String() {
		return nil
	}
	code := m.receiver.pending
	m.receiver.pending = ""
	return m.join(code)
}

func (m *model) updateReceiver(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case receiverEvent.RoomJoinedMsg:
		m.receiver.roomID = msg.RoomID
	case receiverEvent.FileOfferMsg:
		m.receiver.offer = &msg
	case receiverEvent.TransferCompleteMsg:
		m.receiver.savedPath = msg.Path
	case appevents.StateChangedMsg:
		m.onReceiverState()
	case tea.KeyMsg:
		cmd = m.handleReceiverKey(msg)
	default:
		if m.receiver.input.Focused() {
			m.receiver.input, cmd = m.receiver.input.Update(msg)
		}
	}
	return tea.Batch(cmd, m.maybeJoin())
}

// onReceiverState refocuses the code input whenever the session goes back
// to waiting for a room.
func (m *model) onReceiverState() {
	switch m.state {
	case session.Idle.String():
		m.receiver.roomID = ""
		m.receiver.offer = nil
		m.receiver.input.Reset()
		m.receiver.input.Focus()
	case session.RoomPending.String():
		if m.receiver.roomID == "" && m.receiver.pending == "" {
			m.receiver.input.Focus()
		}
	}
}

func (m *model) handleReceiverKey(msg tea.KeyMsg) tea.Cmd {
	if m.state == session.OfferReceived.String() {
		switch {
		case key.Matches(msg, DefaultKeyMap.Accept):
			return m.sendEvent(receiverEvent.AcceptFileRequestEvent{})
		case key.Matches(msg, DefaultKeyMap.Reject):
			return m.sendEvent(receiverEvent.RejectFileRequestEvent{})
		}
		return nil
	}
	if !m.receiver.input.Focused() {
		return nil
	}
	if key.Matches(msg, DefaultKeyMap.Submit) {
		if code := util.ParseRoomCode(m.receiver.input.Value()); code != "" {
			return m.join(code)
		}
		// Let the coordinator warn about the empty code.
		return m.sendEvent(receiverEvent.JoinRoomEvent{Code: ""})
	}
	var cmd tea.Cmd
	m.receiver.input, cmd = m.receiver.input.Update(msg)
	return cmd
}

func (m *model) receiverView() string {
	switch m.state {
	case session.Idle.String(), session.RoomPending.String():
		if m.receiver.input.Focused() {
			return "\nEnter the room code shared by the sender:\n\n" + m.receiver.input.View() + "\n"
		}
		if !m.connected {
			return fmt.Sprintf("\n%s Waiting for the relay server...", m.spinner.View())
		}
		return fmt.Sprintf("\n%s Joining room...", m.spinner.View())
	case session.RoomReady.String():
		return fmt.Sprintf("\nJoined room %s\n\n%s Waiting for the sender's file...",
			style.RoomCodeStyle.Render(m.receiver.roomID), m.spinner.View())
	case session.OfferReceived.String():
		return m.offerView()
	case session.Accepted.String(), session.Transferring.String():
		return m.offerSummary() + m.transferView("Receiving")
	case session.Completed.String():
		s := m.offerSummary() + "\n" + style.SuccessStyle.Render("File received! 🎉") + "\n"
		if m.receiver.savedPath != "" {
			s += fmt.Sprintf("Saved to %s\n", style.HighlightFontStyle.Render(m.receiver.savedPath))
		}
		return s
	case session.Rejected.String():
		return "\n" + style.WarningStyle.Render("File rejected.")
	case session.Failed.String():
		return m.offerSummary() + "\n" + style.ErrorStyle.Render("Transfer failed.")
	default:
		return ""
	}
}

func (m *model) offerView() string {
	help := fmt.Sprintf("  %s/%s  %s/%s \n",
		DefaultKeyMap.Accept.Help().Key, DefaultKeyMap.Accept.Help().Desc,
		DefaultKeyMap.Reject.Help().Key, DefaultKeyMap.Reject.Help().Desc,
	)
	return fmt.Sprintf("%s\nAccept this file?\n%s", m.offerSummary(), style.HelpStyle.Render(help))
}

func (m *model) offerSummary() string {
	o := m.receiver.offer
	if o == nil {
		return ""
	}
	return fmt.Sprintf("\nIncoming file: %s %s %s\n",
		style.FileStyle.Render(util.PadRight(o.Name, fileNameWidth)),
		util.FormatSize(o.Size),
		style.HelpStyle.Render(o.MimeType))
}
