package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/viera/internal/remote"
)

// ScanFunc runs one discovery pass
type ScanFunc func(ctx context.Context) ([]*remote.Device, error)

// ResolveFunc turns a host typed by the user into a device handle
type ResolveFunc func(ctx context.Context, host string) (*remote.Device, error)

// NamedDevice is a device remembered under a user-chosen name
type NamedDevice struct {
	Name   string
	Device *remote.Device
}

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*remote.Device
	err     error
}
type resolveCompleteMsg struct {
	device *remote.Device
	err    error
}

// deviceSelectedMsg hands the chosen device to the remote screen
type deviceSelectedMsg struct {
	name   string
	device *remote.Device
}

// pickerKeyMap defines key bindings for the device list
type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualKeyMap defines key bindings for manual host entry
type manualKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k manualKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k manualKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// deviceItem wraps a device for use with bubbles/list
type deviceItem struct {
	name   string
	device *remote.Device
}

func (d deviceItem) FilterValue() string {
	return d.name + " " + d.device.FriendlyName + " " + d.device.Hostname
}

func (d deviceItem) Title() string {
	if d.name != "" {
		return d.name
	}
	if d.device.FriendlyName != "" {
		return d.device.FriendlyName
	}
	return "Viera TV"
}

func (d deviceItem) Description() string {
	parts := []string{d.device.Hostname}
	if d.device.ModelName != "" {
		parts = append(parts, d.device.ModelName)
	}
	if d.name != "" {
		parts = append(parts, "saved")
	}
	return strings.Join(parts, " • ")
}

// deviceDelegate renders one list row per device
type deviceDelegate struct{}

func (d deviceDelegate) Height() int { return 2 }

func (d deviceDelegate) Spacing() int { return 1 }

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(deviceItem)
	if !ok {
		return
	}

	title := "  " + it.Title()
	if index == m.Index() {
		title = SelectedItemStyle.Render("→ " + it.Title())
	}
	fmt.Fprintf(w, "%s\n    %s", title, SubtitleStyle.Render(it.Description()))
}

// PickerModel is the device selection screen
type PickerModel struct {
	Scan    ScanFunc
	Resolve ResolveFunc
	Timeout time.Duration

	Scanning   bool
	Resolving  bool
	DeviceList list.Model
	Err        error

	ManualMode bool
	HostInput  textinput.Model

	Width         int
	Height        int
	Spinner       spinner.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          pickerKeyMap
	ManualKeys    manualKeyMap

	known []deviceItem
}

// NewPickerModel creates the device selection screen. Known devices are
// listed before anything discovery finds.
func NewPickerModel(scan ScanFunc, resolve ResolveFunc, known []NamedDevice) PickerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	hostInput := textinput.New()
	hostInput.Placeholder = "192.168.1.20"
	hostInput.CharLimit = 64
	hostInput.Width = 30

	items := make([]deviceItem, 0, len(known))
	listItems := make([]list.Item, 0, len(known))
	for _, k := range known {
		it := deviceItem{name: k.Name, device: k.Device}
		items = append(items, it)
		listItems = append(listItems, it)
	}

	deviceList := list.New(listItems, deviceDelegate{}, MinTerminalWidth-4, 10)
	deviceList.Title = "Televisions"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)
	deviceList.Styles.Title = TitleStyle

	return PickerModel{
		Scan:       scan,
		Resolve:    resolve,
		Timeout:    30 * time.Second,
		DeviceList: deviceList,
		HostInput:  hostInput,
		Spinner:    s,
		Help:       help.New(),
		known:      items,
		Keys: pickerKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "control")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter address")),
			Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		ManualKeys: manualKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
	}
}

// Init starts the first scan
func (m PickerModel) Init() tea.Cmd {
	if m.Scan == nil {
		return nil
	}
	return m.startScan()
}

func (m PickerModel) startScan() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanCmd(),
		m.Spinner.Tick,
	)
}

func (m PickerModel) scanCmd() tea.Cmd {
	scan := m.Scan
	timeout := m.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		devices, err := scan(ctx)
		return scanCompleteMsg{devices: devices, err: err}
	}
}

func (m PickerModel) resolveCmd(host string) tea.Cmd {
	resolve := m.Resolve
	timeout := m.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		device, err := resolve(ctx, host)
		return resolveCompleteMsg{device: device, err: err}
	}
}

// Update handles messages and updates the model
func (m PickerModel) Update(msg tea.Msg) (PickerModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(max(msg.Height-10, 4))

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		m.setDiscovered(msg.devices)

	case resolveCompleteMsg:
		m.Resolving = false
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.Err = nil
		items := append([]list.Item{deviceItem{device: msg.device}}, m.DeviceList.Items()...)
		m.DeviceList.SetItems(items)
		m.DeviceList.Select(0)

	case spinner.TickMsg:
		if !m.Scanning && !m.Resolving {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// setDiscovered lists known devices followed by new discoveries
func (m *PickerModel) setDiscovered(devices []*remote.Device) {
	items := make([]list.Item, 0, len(m.known)+len(devices))
	seen := make(map[string]bool)
	for _, k := range m.known {
		items = append(items, k)
		seen[k.device.ControlURL] = true
	}
	for _, d := range devices {
		if seen[d.ControlURL] {
			continue
		}
		seen[d.ControlURL] = true
		items = append(items, deviceItem{device: d})
	}
	m.DeviceList.SetItems(items)
}

func (m PickerModel) updateNormalMode(msg tea.KeyMsg) (PickerModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Enter):
		if m.Scanning || m.Resolving {
			return m, nil
		}
		if it, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
			return m, func() tea.Msg { return deviceSelectedMsg{name: it.name, device: it.device} }
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning || m.Scan == nil {
			return m, nil
		}
		m.Err = nil
		return m, m.startScan()

	case key.Matches(msg, m.Keys.Manual):
		if m.Resolve == nil {
			return m, nil
		}
		m.ManualMode = true
		m.HostInput.SetValue("")
		return m, m.HostInput.Focus()
	}

	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

func (m PickerModel) updateManualMode(msg tea.KeyMsg) (PickerModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.ManualKeys.Cancel):
		m.ManualMode = false
		m.HostInput.Blur()
		return m, nil

	case key.Matches(msg, m.ManualKeys.Confirm):
		host := strings.TrimSpace(m.HostInput.Value())
		if host == "" {
			return m, nil
		}
		m.ManualMode = false
		m.HostInput.Blur()
		m.Resolving = true
		return m, tea.Batch(m.resolveCmd(host), m.Spinner.Tick)
	}

	var cmd tea.Cmd
	m.HostInput, cmd = m.HostInput.Update(msg)
	return m, cmd
}

// View renders the picker screen
func (m PickerModel) View() string {
	var content, helpText string

	switch {
	case m.ManualMode:
		content = "\n" + SubtitleStyle.Render("  Enter the TV's address") + "\n\n  Host: " + m.HostInput.View() + "\n"
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning || m.Resolving:
		content = m.renderBusy()
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderDevices()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m PickerModel) renderBusy() string {
	label := "SEARCHING FOR TELEVISIONS"
	detail := "Sending SSDP search on the local network..."
	if m.Resolving {
		label = "CONNECTING"
		detail = "Fetching the service description..."
	}

	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" "+label),
		SubtitleStyle.Render(detail),
		"",
	)
	return lipgloss.Place(width-4, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m PickerModel) renderDevices() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString("  " + RenderError(m.Err.Error()))
		b.WriteString("\n\n")
	}

	if len(m.DeviceList.Items()) == 0 {
		b.WriteString("  " + lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("⚠ No televisions found"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Ensure the TV is switched on and on the same network\n")
		b.WriteString("    • Enable TV Remote App in the TV's network settings\n")
		b.WriteString("    • Press 'm' to enter the TV's address\n")
		return b.String()
	}

	b.WriteString(m.DeviceList.View())
	return b.String()
}

// Items returns the listed devices in display order
func (m PickerModel) Items() []*remote.Device {
	var devices []*remote.Device
	for _, item := range m.DeviceList.Items() {
		if it, ok := item.(deviceItem); ok {
			devices = append(devices, it.device)
		}
	}
	return devices
}
