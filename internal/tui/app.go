package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/viera/internal/remote"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenPicker Screen = "picker"
	ScreenRemote Screen = "remote"
)

// Options configures the interactive remote
type Options struct {
	// Scan runs discovery from the picker; nil disables scanning
	Scan ScanFunc

	// Resolve connects to a typed address; nil disables manual entry
	Resolve ResolveFunc

	// Known devices are listed before discovered ones
	Known []NamedDevice

	// Device skips the picker when set
	Device *remote.Device
	Name   string
}

// AppModel is the top-level model that switches between the picker and
// the keypad.
type AppModel struct {
	CurrentScreen Screen

	Picker PickerModel
	Remote RemoteModel

	Width  int
	Height int
}

// NewAppModel creates the application model
func NewAppModel(opts Options) AppModel {
	m := AppModel{
		CurrentScreen: ScreenPicker,
		Picker:        NewPickerModel(opts.Scan, opts.Resolve, opts.Known),
	}
	if opts.Device != nil {
		m.CurrentScreen = ScreenRemote
		m.Remote = NewRemoteModel(opts.Device, displayName(opts.Name, opts.Device))
	}
	return m
}

func displayName(name string, device *remote.Device) string {
	if name != "" {
		return name
	}
	return device.String()
}

// Init implements tea.Model
func (m AppModel) Init() tea.Cmd {
	if m.CurrentScreen == ScreenRemote {
		return m.Remote.Init()
	}
	return m.Picker.Init()
}

// Update implements tea.Model
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		m.Picker, cmd = m.Picker.Update(msg)
		m.Remote, _ = m.Remote.Update(msg)
		return m, cmd

	case deviceSelectedMsg:
		m.Remote = NewRemoteModel(msg.device, displayName(msg.name, msg.device))
		m.Remote.Width, m.Remote.Height = m.Width, m.Height
		m.CurrentScreen = ScreenRemote
		return m, nil

	case backMsg:
		m.CurrentScreen = ScreenPicker
		return m, nil

	case sendResultMsg:
		var cmd tea.Cmd
		m.Remote, cmd = m.Remote.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.CurrentScreen {
	case ScreenRemote:
		m.Remote, cmd = m.Remote.Update(msg)
	default:
		m.Picker, cmd = m.Picker.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model
func (m AppModel) View() string {
	if m.CurrentScreen == ScreenRemote {
		return m.Remote.View()
	}
	return m.Picker.View()
}

// Run starts the interactive remote in the alternate screen
func Run(opts Options) error {
	p := tea.NewProgram(NewAppModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
