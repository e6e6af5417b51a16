package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	appevents "github.com/rescp17/relayFileSharer/internal/app_events"
	"github.com/rescp17/relayFileSharer/internal/style"
	"github.com/rescp17/relayFileSharer/pkg/session"
)

type Mode int

const (
	None Mode = iota
	Sender
	Receiver
)

func (m Mode) String() string {
	switch m {
	case Sender:
		return "send"
	case Receiver:
		return "receive"
	default:
		return "none"
	}
}

type KeyMap struct {
	Accept key.Binding
	Reject key.Binding
	Submit key.Binding
	Back   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Accept: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "Accept")),
	Reject: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "Reject")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "Confirm")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "Start over")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "Quit")),
}

// Options seeds the initial screen from the command line.
type Options struct {
	Path   string // file to send
	Code   string // room code or share link to join
	Server string // relay URL, shown in the header
}

type model struct {
	mode          Mode
	appController AppController
	server        string

	sender   senderModel
	receiver receiverModel

	spinner  spinner.Model
	progress progress.Model

	connected   bool
	state       string
	status      string
	notice      string
	noticeLevel appevents.Level
	percent     float64
	done        int
	total       int
}

func InitialModel(m Mode, app AppController, opts Options) model {
	mdl := model{
		mode:          m,
		appController: app,
		server:        opts.Server,
		spinner:       style.NewSpinner(),
		progress:      style.NewProgress(),
		state:         session.Idle.String(),
		status:        "Connecting to server...",
	}
	switch m {
	case Sender:
		mdl.sender = initSenderModel(opts.Path)
	case Receiver:
		mdl.receiver = initReceiverModel(opts.Code)
	}
	return mdl
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m *model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.appController.UIMessages()
	}
}

// sendEvent hands ev to the app from a command, off the update loop.
func (m *model) sendEvent(ev appevents.AppEvent) tea.Cmd {
	events := m.appController.AppEvents()
	return func() tea.Msg {
		events <- ev
		return nil
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.listenForAppMessages()}
	switch m.mode {
	case Sender:
		cmds = append(cmds, m.initSender())
	case Receiver:
		cmds = append(cmds, m.initReceiver())
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, DefaultKeyMap.Back):
			return m, m.sendEvent(appevents.BackEvent{})
		}
	case tea.WindowSizeMsg:
		m.progress.Width = max(min(msg.Width-4, 60), 10)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case appevents.AppUIMessage:
		m.handleCommonMessage(msg)
		// Keep listening for the next app message.
		cmds = append(cmds, m.listenForAppMessages())
	}

	switch m.mode {
	case Sender:
		cmds = append(cmds, m.updateSender(msg))
	case Receiver:
		cmds = append(cmds, m.updateReceiver(msg))
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleCommonMessage(msg tea.Msg) {
	switch msg := msg.(type) {
	case appevents.StatusMsg:
		m.status = msg.Text
	case appevents.NoticeMsg:
		m.notice = msg.Text
		m.noticeLevel = msg.Level
	case appevents.ConnectionStatusMsg:
		m.connected = msg.Connected
	case appevents.ProgressMsg:
		m.percent = msg.Percent
		m.done = msg.Done
		m.total = msg.Total
	case appevents.StateChangedMsg:
		m.state = msg.State
		if msg.State == session.Idle.String() {
			m.percent, m.done, m.total = 0, 0, 0
		}
	case appevents.Error:
		m.notice = msg.Err.Error()
		m.noticeLevel = appevents.LevelError
	}
}

func (m model) View() string {
	var b strings.Builder

	dot := style.DisconnectedStyle.String()
	if m.connected {
		dot = style.ConnectedStyle.String()
	}
	title := "Relay File Sharer"
	switch m.mode {
	case Sender:
		title += " - Send"
	case Receiver:
		title += " - Receive"
	}
	fmt.Fprintf(&b, "%s %s %s\n", style.TitleStyle.Render(title), dot, style.HelpStyle.Render(m.server))

	switch m.mode {
	case Sender:
		b.WriteString(m.senderView())
	case Receiver:
		b.WriteString(m.receiverView())
	}

	if m.notice != "" {
		b.WriteString("\n" + noticeStyle(m.noticeLevel).Render(m.notice) + "\n")
	}
	if m.status != "" {
		b.WriteString("\n" + style.HelpStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n" + style.HelpStyle.Render(m.helpLine()))
	return b.String()
}

func (m model) transferView(verb string) string {
	s := fmt.Sprintf("\n%s %s... %d/%d chunks\n", m.spinner.View(), verb, m.done, m.total)
	return s + m.progress.ViewAs(m.percent/100) + "\n"
}

func (m model) helpLine() string {
	bindings := []key.Binding{DefaultKeyMap.Back, DefaultKeyMap.Quit}
	switch {
	case m.mode == Receiver && m.state == session.OfferReceived.String():
		bindings = append([]key.Binding{DefaultKeyMap.Accept, DefaultKeyMap.Reject}, bindings...)
	case m.canSubmit():
		bindings = append([]key.Binding{DefaultKeyMap.Submit}, bindings...)
	}
	parts := make([]string, 0, len(bindings))
	for _, k := range bindings {
		parts = append(parts, fmt.Sprintf("%s %s", k.Help().Key, k.Help().Desc))
	}
	return strings.Join(parts, " • ")
}

func (m model) canSubmit() bool {
	switch m.mode {
	case Sender:
		return m.state == session.Idle.String() || m.state == session.RoomPending.String()
	case Receiver:
		return m.receiver.input.Focused()
	}
	return false
}

func noticeStyle(level appevents.Level) lipgloss.Style {
	switch level {
	case appevents.LevelSuccess:
		return style.SuccessStyle
	case appevents.LevelWarning:
		return style.WarningStyle
	case appevents.LevelError:
		return style.ErrorStyle
	default:
		return style.HighlightFontStyle
	}
}
