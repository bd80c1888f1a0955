package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedLineStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#3C3C5A"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type keyMap struct {
	Quit key.Binding
	Next key.Binding
	Prev key.Binding
	Down key.Binding
	Up   key.Binding
	Home key.Binding
	End  key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Next: key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next scenario")),
	Prev: key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "previous scenario")),
	Down: key.NewBinding(key.WithKeys("down", "j", "n"), key.WithHelp("↓/n", "step")),
	Up:   key.NewBinding(key.WithKeys("up", "k", "p"), key.WithHelp("↑/p", "back")),
	Home: key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first")),
	End:  key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last")),
}

func (k keyMap) help() string {
	var parts []string
	for _, b := range []key.Binding{k.Down, k.Up, k.Home, k.End, k.Next, k.Prev, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// traceModel steps through the recorded trace of each scenario. The
// selected line marks how far the run has progressed.
type traceModel struct {
	results  []result
	vp       viewport.Model
	current  int
	selected int
	ready    bool
}

func newTraceModel(results []result) *traceModel {
	return &traceModel{results: results}
}

func (m *traceModel) Init() tea.Cmd {
	return nil
}

func (m *traceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 6
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		m.refresh()

	case tea.KeyMsg:
		lines := len(m.results[m.current].lines)
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.current = (m.current + 1) % len(m.results)
			m.selected = 0
		case key.Matches(msg, keys.Prev):
			m.current = (m.current + len(m.results) - 1) % len(m.results)
			m.selected = 0
		case key.Matches(msg, keys.Down):
			if m.selected < lines-1 {
				m.selected++
			}
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Home):
			m.selected = 0
		case key.Matches(msg, keys.End):
			if lines > 0 {
				m.selected = lines - 1
			}
		}
		m.refresh()
	}
	return m, nil
}

func (m *traceModel) refresh() {
	if !m.ready {
		return
	}
	r := m.results[m.current]
	rows := make([]string, len(r.lines))
	for i, l := range r.lines {
		row := l.format(true)
		if i == m.selected {
			row = selectedLineStyle.Render(row)
		}
		rows[i] = row
	}
	m.vp.SetContent(strings.Join(rows, "\n"))

	// Keep the selected line on screen.
	if m.selected < m.vp.YOffset {
		m.vp.SetYOffset(m.selected)
	} else if m.selected >= m.vp.YOffset+m.vp.Height {
		m.vp.SetYOffset(m.selected - m.vp.Height + 1)
	}
}

func (m *traceModel) tabs() string {
	var b strings.Builder
	for i, r := range m.results {
		style := tabStyle
		if i == m.current {
			style = activeTabStyle
		}
		b.WriteString(style.Render(r.name))
	}
	return b.String()
}

func (m *traceModel) View() string {
	if !m.ready {
		return "Loading trace..."
	}
	r := m.results[m.current]
	progress := fmt.Sprintf(" step %d/%d", min(m.selected+1, len(r.lines)), len(r.lines))
	var b strings.Builder
	b.WriteString(m.tabs())
	b.WriteString(helpStyle.Render(progress))
	b.WriteString("\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	b.WriteString(r.summary(true))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(keys.help()))
	return b.String()
}

func runInteractive(results []result) error {
	p := tea.NewProgram(newTraceModel(results), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
