package ui

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	senderEvent "github.com/rescp17/relayFileSharer/internal/app_events/sender"
	"github.com/rescp17/relayFileSharer/internal/style"
	"github.com/rescp17/relayFileSharer/internal/util"
	"github.com/rescp17/relayFileSharer/pkg/session"
)

const fileNameWidth = 32

type senderModel struct {
	path      string
	file      *senderEvent.FileSelectedMsg
	roomID    string
	shareLink string
	// requested is set once create-room has been asked for in this session.
	requested bool
	complete  bool
}

func initSenderModel(path string) senderModel {
	return senderModel{path: path}
}

func (m *model) initSender() tea.Cmd {
	return m.sendEvent(senderEvent.ChooseSendEvent{Path: m.sender.path})
}

// chooseFile starts a new sender session for the configured path.
func (m *model) chooseFile() tea.Cmd {
	m.sender = initSenderModel(m.sender.path)
	return m.sendEvent(senderEvent.ChooseSendEvent{Path: m.sender.path})
}

// maybeCreateRoom asks for a room as soon as a file is selected and the
// relay is reachable.
func (m *model) maybeCreateRoom() tea.Cmd {
	if m.sender.requested || !m.connected || m.state != session.RoomPending.String() {
		return nil
	}
	m.sender.requested = true
	return m.sendEvent(senderEvent.CreateRoomEvent{})
}

func (m *model) updateSender(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case senderEvent.FileSelectedMsg:
		m.sender.file = &msg
	case senderEvent.RoomCreatedMsg:
		m.sender.roomID = msg.RoomID
		m.sender.shareLink = msg.ShareLink
	case senderEvent.TransferCompleteMsg:
		m.sender.complete = true
	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Submit) {
			switch m.state {
			case session.Idle.String():
				cmd = m.chooseFile()
			case session.RoomPending.String():
				// Retry after a failed or timed out request.
				m.sender.requested = false
			}
		}
	}
	return tea.Batch(cmd, m.maybeCreateRoom())
}

func (m *model) senderView() string {
	var s string
	if f := m.sender.file; f != nil {
		s += fmt.Sprintf("\nFile: %s %s %s\n",
			style.FileStyle.Render(util.PadRight(f.Name, fileNameWidth)),
			util.FormatSize(f.Size),
			style.HelpStyle.Render(f.MimeType))
	} else if m.sender.path != "" {
		s += fmt.Sprintf("\nFile: %s\n", style.FileStyle.Render(filepath.Base(m.sender.path)))
	}

	switch m.state {
	case session.Idle.String():
		if m.sender.file == nil {
			return s + fmt.Sprintf("\n%s Preparing file...", m.spinner.View())
		}
		return s + "\nPress Enter to share the file again."
	case session.RoomPending.String():
		if !m.connected {
			return s + fmt.Sprintf("\n%s Waiting for the relay server...", m.spinner.View())
		}
		return s + fmt.Sprintf("\n%s Creating room...", m.spinner.View())
	case session.RoomReady.String():
		s += fmt.Sprintf("\nRoom code: %s\n", style.RoomCodeStyle.Render(m.sender.roomID))
		if m.sender.shareLink != "" {
			s += fmt.Sprintf("Share link: %s\n", style.HighlightFontStyle.Render(m.sender.shareLink))
		}
		return s + fmt.Sprintf("\n%s Waiting for the receiver to join...", m.spinner.View())
	case session.OfferSent.String():
		return s + fmt.Sprintf("\n%s Waiting for the receiver to accept...", m.spinner.View())
	case session.Transferring.String():
		return s + m.transferView("Sending")
	case session.Completed.String():
		if m.sender.complete {
			return s + "\n" + style.SuccessStyle.Render("Transfer complete! 🎉")
		}
		return s + m.transferView("Waiting for the receiver to confirm")
	case session.Rejected.String():
		return s + "\n" + style.WarningStyle.Render("The receiver declined the file.")
	case session.Failed.String():
		return s + "\n" + style.ErrorStyle.Render("Transfer failed.")
	default:
		return s
	}
}
