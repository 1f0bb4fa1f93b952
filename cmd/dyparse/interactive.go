package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/dyparser/section"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Collapse    key.Binding
	Expand      key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "collapse/parent"),
		),
		Expand: key.NewBinding(
			key.WithKeys("right", "l", "enter"),
			key.WithHelp("→/l", "expand"),
		),
		ExpandAll: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "expand all"),
		),
		CollapseAll: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "collapse all"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Expand, k.Collapse, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Expand, k.Collapse},
		{k.ExpandAll, k.CollapseAll},
		{k.Help, k.Quit},
	}
}

// node is one row of the browser: a field value or a subsection.
type node struct {
	parent   *node
	label    string
	path     []string
	children []*node
	depth    int
	expanded bool
}

func (n *node) isSection() bool { return n.children != nil }

func buildNodes(s *section.Section, parent *node, path []string, depth int) []*node {
	var out []*node
	for _, k := range s.Keys() {
		for _, v := range s.Values(k) {
			out = append(out, &node{
				parent: parent,
				label:  k + " = " + strconv.Quote(v),
				path:   append(path[:len(path):len(path)], k),
				depth:  depth,
			})
		}
	}
	for _, k := range s.SectionKeys() {
		for i, child := range s.Sections(k) {
			name := k
			if len(s.Sections(k)) > 1 {
				name = fmt.Sprintf("%s#%d", k, i)
			}
			n := &node{
				parent: parent,
				label:  "[" + name + "]",
				path:   append(path[:len(path):len(path)], name),
				depth:  depth,
			}
			n.children = buildNodes(child, n, n.path, depth+1)
			if n.children == nil {
				n.children = []*node{}
			}
			out = append(out, n)
		}
	}
	return out
}

type browserModel struct {
	keys     keyMap
	help     help.Model
	viewport viewport.Model
	roots    []*node
	rows     []*node
	title    string
	cursor   int
	ready    bool
}

func newBrowserModel(root *section.Section, title string) *browserModel {
	m := &browserModel{
		keys:  defaultKeyMap(),
		help:  help.New(),
		roots: buildNodes(root, nil, nil, 0),
		title: title,
	}
	m.refresh()
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - lipgloss.Height(m.header()) - lipgloss.Height(m.footer())
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.help.Width = msg.Width
		m.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.move(-1)
		case key.Matches(msg, m.keys.Down):
			m.move(1)
		case key.Matches(msg, m.keys.Expand):
			if n := m.current(); n != nil && n.isSection() {
				n.expanded = true
			}
		case key.Matches(msg, m.keys.Collapse):
			m.collapse()
		case key.Matches(msg, m.keys.ExpandAll):
			setExpanded(m.roots, true)
		case key.Matches(msg, m.keys.CollapseAll):
			setExpanded(m.roots, false)
			m.cursor = 0
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		m.refresh()
	}
	return m, nil
}

func (m *browserModel) current() *node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor]
}

func (m *browserModel) move(delta int) {
	m.cursor = max(0, min(len(m.rows)-1, m.cursor+delta))
}

func (m *browserModel) collapse() {
	n := m.current()
	if n == nil {
		return
	}
	if n.isSection() && n.expanded {
		n.expanded = false
		return
	}
	if n.parent == nil {
		return
	}
	n.parent.expanded = false
	for i, r := range m.rows {
		if r == n.parent {
			m.cursor = i
			return
		}
	}
}

func setExpanded(nodes []*node, v bool) {
	for _, n := range nodes {
		if n.isSection() {
			n.expanded = v
			setExpanded(n.children, v)
		}
	}
}

// refresh recomputes visible rows and scrolls the cursor into view.
func (m *browserModel) refresh() {
	m.rows = m.rows[:0]
	var visit func([]*node)
	visit = func(nodes []*node) {
		for _, n := range nodes {
			m.rows = append(m.rows, n)
			if n.expanded {
				visit(n.children)
			}
		}
	}
	visit(m.roots)
	m.move(0)

	if !m.ready {
		return
	}
	var b strings.Builder
	for i, n := range m.rows {
		line := strings.Repeat("  ", n.depth) + m.marker(n) + n.label
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())

	switch {
	case m.cursor < m.viewport.YOffset:
		m.viewport.SetYOffset(m.cursor)
	case m.cursor >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(m.cursor - m.viewport.Height + 1)
	}
}

func (m *browserModel) marker(n *node) string {
	switch {
	case !n.isSection():
		return "  "
	case n.expanded:
		return "▾ "
	default:
		return "▸ "
	}
}

func (m *browserModel) header() string {
	return titleStyle.Render("dyparse") + " " + m.title
}

func (m *browserModel) footer() string {
	path := "."
	if n := m.current(); n != nil {
		path = strings.Join(n.path, ".")
	}
	return pathStyle.Render(path) + "\n" + m.help.View(m.keys)
}

func (m *browserModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	if len(m.rows) == 0 {
		return m.header() + "\n\n(empty)\n\n" + m.footer()
	}
	return m.header() + "\n" + m.viewport.View() + "\n" + m.footer()
}

func runInteractive(root *section.Section, target, plugin string) error {
	p := tea.NewProgram(newBrowserModel(root, target+" ("+plugin+")"), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
