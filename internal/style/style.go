package style

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorCyan      = lipgloss.Color("212")
	colorPurple    = lipgloss.Color("99")
	colorRed       = lipgloss.Color("196")
	colorGreen     = lipgloss.Color("42")
	colorYellow    = lipgloss.Color("214")
)

// --- General Purpose Styles ---
var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorGreen)
	WarningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	HelpStyle    = lipgloss.NewStyle().Faint(true)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
)

// --- Transfer Styles ---
var (
	BaseStyle          = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray).Padding(0, 1)
	HighlightFontStyle = lipgloss.NewStyle().Foreground(colorCyan)
	FileStyle          = lipgloss.NewStyle().Foreground(colorLightGray)
	RoomCodeStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorPurple).Padding(0, 1).
				BorderStyle(lipgloss.RoundedBorder()).BorderForeground(colorPurple)
	ConnectedStyle    = lipgloss.NewStyle().Foreground(colorGreen).SetString("●")
	DisconnectedStyle = lipgloss.NewStyle().Foreground(colorRed).SetString("●")
)

// --- Common Components ---

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// NewProgress creates the transfer progress bar.
func NewProgress() progress.Model {
	return progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
}
