package feed

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ItemMsg delivers a decoded item to the view.
type ItemMsg Item

// StateMsg delivers a connection change to the view.
type StateMsg ConnState

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	identityStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Width(16)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type keyMap struct {
	Quit  key.Binding
	Clear key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear"),
	),
}

// Model is the terminal view of a Stream.
type Model struct {
	source    string
	stream    *Stream
	connected bool
	lastErr   error
	height    int
}

func NewModel(source string) Model {
	return Model{source: source, stream: NewStream()}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Clear):
			m.stream = NewStream()
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case ItemMsg:
		m.stream.Push(Item(msg))
	case StateMsg:
		m.connected = msg.Connected
		m.lastErr = msg.Err
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("navlink feed"))
	b.WriteString("  ")
	switch {
	case m.connected:
		b.WriteString(okStyle.Render("● " + m.source))
	case m.lastErr != nil:
		b.WriteString(errStyle.Render(fmt.Sprintf("○ %s: %v", m.source, m.lastErr)))
	default:
		b.WriteString(timeStyle.Render("○ connecting to " + m.source))
	}
	b.WriteString("\n\n")

	items := m.stream.Items()
	// Title, blank line and help take four rows.
	if rows := m.height - 4; m.height > 0 && rows < len(items) {
		items = items[:max(rows, 0)]
	}
	if len(items) == 0 {
		b.WriteString(timeStyle.Render("waiting for visits..."))
		b.WriteString("\n")
	}
	for _, it := range items {
		b.WriteString(renderItem(it))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%s • %s",
		keys.Quit.Help().Key+" "+keys.Quit.Help().Desc,
		keys.Clear.Help().Key+" "+keys.Clear.Help().Desc)))
	return b.String()
}

func renderItem(it Item) string {
	ts := "--:--:--"
	if !it.Timestamp.IsZero() {
		ts = it.Timestamp.Local().Format("15:04:05")
	}
	uri := ""
	if it.URI != nil {
		uri = it.URI.String()
	}
	return fmt.Sprintf("%s  %s %s", timeStyle.Render(ts), identityStyle.Render(it.Identity), uri)
}
