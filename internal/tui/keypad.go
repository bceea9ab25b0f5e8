package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/viera/internal/remote"
)

// Sender dispatches named commands to a television
type Sender interface {
	Send(ctx context.Context, name string, args ...int) ([]byte, error)
}

// press is one queued keypad press
type press struct {
	command string
	args    []int
}

func (p press) String() string {
	if len(p.args) == 0 {
		return p.command
	}
	return fmt.Sprintf("%s %d", p.command, p.args[0])
}

type sendResultMsg struct {
	press press
	err   error
}

// backMsg returns to the picker
type backMsg struct{}

// commandBinding maps a keyboard key to a remote command
type commandBinding struct {
	key.Binding
	Command string
}

func bind(command string, keys []string, help string) commandBinding {
	return commandBinding{
		Binding: key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help)),
		Command: command,
	}
}

// remoteKeyMap defines key bindings for the keypad
type remoteKeyMap struct {
	Commands []commandBinding
	Digits   key.Binding
	Back     key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k remoteKeyMap) ShortHelp() []key.Binding {
	short := []key.Binding{}
	for _, c := range k.Commands {
		switch c.Command {
		case "power", "vol_up", "vol_down", "mute", "enter", "return":
			short = append(short, c.Binding)
		}
	}
	return append(short, k.Digits, k.Back, k.Quit)
}

// FullHelp returns keybindings for the expanded help view
func (k remoteKeyMap) FullHelp() [][]key.Binding {
	var columns [][]key.Binding
	var column []key.Binding
	for _, c := range k.Commands {
		column = append(column, c.Binding)
		if len(column) == 6 {
			columns = append(columns, column)
			column = nil
		}
	}
	column = append(column, k.Digits, k.Back, k.Quit)
	return append(columns, column)
}

func defaultRemoteKeys() remoteKeyMap {
	return remoteKeyMap{
		Commands: []commandBinding{
			bind("power", []string{"p"}, "power"),
			bind("up", []string{"up"}, "up"),
			bind("down", []string{"down"}, "down"),
			bind("left", []string{"left"}, "left"),
			bind("right", []string{"right"}, "right"),
			bind("enter", []string{"enter"}, "ok"),
			bind("return", []string{"backspace"}, "return"),
			bind("vol_up", []string{"+", "="}, "volume up"),
			bind("vol_down", []string{"-"}, "volume down"),
			bind("mute", []string{"m"}, "mute"),
			bind("ch_up", []string{"pgup", "]"}, "channel up"),
			bind("ch_down", []string{"pgdown", "["}, "channel down"),
			bind("menu", []string{"tab"}, "menu"),
			bind("guide", []string{"g"}, "guide"),
			bind("info", []string{"i"}, "info"),
			bind("option", []string{"o"}, "option"),
			bind("cancel", []string{"x"}, "exit"),
			bind("tv", []string{"t"}, "tv"),
			bind("input", []string{"s"}, "input"),
			bind("text", []string{"e"}, "text"),
			bind("subtitles", []string{"u"}, "subtitles"),
			bind("last_view", []string{"l"}, "last view"),
			bind("red", []string{"f1"}, "red"),
			bind("green", []string{"f2"}, "green"),
			bind("yellow", []string{"f3"}, "yellow"),
			bind("blue", []string{"f4"}, "blue"),
		},
		Digits: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("0-9", "digits"),
		),
		Back: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "devices")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// RemoteModel is the keypad screen. Presses are queued and sent one at a
// time so they reach the TV in the order they were typed.
type RemoteModel struct {
	Device  Sender
	Name    string
	Timeout time.Duration

	queue   []press
	busy    bool
	last    press
	lastErr error
	sent    int

	Width  int
	Height int
	Help   help.Model
	Keys   remoteKeyMap
}

// NewRemoteModel creates the keypad screen for one device
func NewRemoteModel(device Sender, name string) RemoteModel {
	return RemoteModel{
		Device:  device,
		Name:    name,
		Timeout: remote.DefaultTimeout,
		Help:    help.New(),
		Keys:    defaultRemoteKeys(),
	}
}

// Init implements tea.Model
func (m RemoteModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m RemoteModel) Update(msg tea.Msg) (RemoteModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case sendResultMsg:
		m.busy = false
		m.lastErr = msg.err
		if msg.err == nil {
			m.sent++
		}
		return m.next()
	}

	return m, nil
}

func (m RemoteModel) updateKeys(msg tea.KeyMsg) (RemoteModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Back):
		return m, func() tea.Msg { return backMsg{} }
	case msg.String() == "?":
		m.Help.ShowAll = !m.Help.ShowAll
		return m, nil
	case key.Matches(msg, m.Keys.Digits):
		digit := int(msg.Runes[0] - '0')
		return m.enqueue(press{command: "num", args: []int{digit}})
	}

	for _, b := range m.Keys.Commands {
		if key.Matches(msg, b.Binding) {
			return m.enqueue(press{command: b.Command})
		}
	}
	return m, nil
}

func (m RemoteModel) enqueue(p press) (RemoteModel, tea.Cmd) {
	m.queue = append(m.queue, p)
	if m.busy {
		return m, nil
	}
	return m.next()
}

// next starts the oldest queued press, if any
func (m RemoteModel) next() (RemoteModel, tea.Cmd) {
	if len(m.queue) == 0 {
		return m, nil
	}

	p := m.queue[0]
	m.queue = append([]press(nil), m.queue[1:]...)
	m.busy = true
	m.last = p

	device := m.Device
	timeout := m.Timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, err := device.Send(ctx, p.command, p.args...)
		return sendResultMsg{press: p, err: err}
	}
}

// Pending returns the number of presses waiting to be sent
func (m RemoteModel) Pending() int {
	return len(m.queue)
}

// View renders the keypad screen
func (m RemoteModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("  " + m.Name))
	b.WriteString("\n")
	b.WriteString(m.renderKeypad())
	b.WriteString("\n\n  ")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	return RenderApplicationContainer(b.String(), m.Help.View(m.Keys), m.Width, m.Height)
}

func (m RemoteModel) renderStatus() string {
	switch {
	case m.lastErr != nil:
		return RenderError(fmt.Sprintf("%s failed: %v", m.last, m.lastErr))
	case m.busy:
		status := "Sending " + m.last.String()
		if n := len(m.queue); n > 0 {
			status += fmt.Sprintf(" (%d queued)", n)
		}
		return SubtitleStyle.Render(status + "...")
	case m.sent > 0:
		return RenderSuccess(fmt.Sprintf("Sent %s", m.last))
	default:
		return SubtitleStyle.Render("Ready. Press ? for all keys.")
	}
}

func (m RemoteModel) keyCap(label, command string, width int) string {
	style := KeyCapStyle.Width(width)
	if m.last.command == command && (m.busy || m.sent > 0 || m.lastErr != nil) {
		style = ActiveKeyCapStyle.Width(width)
	}
	return style.Render(label)
}

func (m RemoteModel) colorCap(command string, color lipgloss.Color) string {
	return m.keyCap(lipgloss.NewStyle().Foreground(color).Render("■"), command, 5)
}

func (m RemoteModel) renderKeypad() string {
	row := func(caps ...string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, caps...)
	}
	blank := lipgloss.NewStyle().Width(11).Render("")

	rows := []string{
		row(m.keyCap("POWER", "power", 9), m.keyCap("TV", "tv", 9), m.keyCap("INPUT", "input", 9)),
		row(m.keyCap("MENU", "menu", 9), m.keyCap("GUIDE", "guide", 9), m.keyCap("INFO", "info", 9)),
		row(blank, m.keyCap("▲", "up", 9)),
		row(m.keyCap("◀", "left", 9), m.keyCap("OK", "enter", 9), m.keyCap("▶", "right", 9)),
		row(blank, m.keyCap("▼", "down", 9)),
		row(m.keyCap("RETURN", "return", 9), m.keyCap("OPTION", "option", 9), m.keyCap("EXIT", "cancel", 9)),
		row(m.keyCap("VOL +", "vol_up", 9), m.keyCap("MUTE", "mute", 9), m.keyCap("CH +", "ch_up", 9)),
		row(m.keyCap("VOL -", "vol_down", 9), blank, m.keyCap("CH -", "ch_down", 9)),
		row(m.colorCap("red", RedKeyColor), m.colorCap("green", GreenKeyColor),
			m.colorCap("yellow", YellowKeyColor), m.colorCap("blue", BlueKeyColor)),
	}

	keypad := lipgloss.JoinVertical(lipgloss.Center, rows...)
	return lipgloss.NewStyle().MarginLeft(2).Render(keypad)
}
