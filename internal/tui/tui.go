// Package tui implements the Bubble Tea release browser.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/render"
)

// Model is the top-level Bubble Tea model for the release browser.
type Model struct {
	release *model.AggregatedRelease
	opts    render.Options

	// UI state
	width  int
	height int

	// Component list
	index int // currently selected component

	// Detail viewport
	scrollOffset int
	viewHeight   int

	// Rendered lines for the current component
	lines []renderedLine

	showHelp bool
}

// New creates a browser over rel.
func New(rel *model.AggregatedRelease, opts render.Options) Model {
	m := Model{release: rel, opts: opts}
	m.updateLines()
	return m
}

func (m *Model) updateLines() {
	if m.release == nil || len(m.release.Components) == 0 {
		m.lines = nil
		return
	}
	m.lines = renderComponent(m.release.Components[m.index], m.opts)
}

func (m Model) components() []model.ComponentRelease {
	if m.release == nil {
		return nil
	}
	return m.release.Components
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = m.height - 5 // status bar + borders + header
		if m.viewHeight < 1 {
			m.viewHeight = 1
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Down):
			m.scroll(1)

		case key.Matches(msg, keys.Up):
			m.scroll(-1)

		case key.Matches(msg, keys.PageDown):
			m.scroll(m.viewHeight)

		case key.Matches(msg, keys.PageUp):
			m.scroll(-m.viewHeight)

		case key.Matches(msg, keys.Next):
			if m.index < len(m.components())-1 {
				m.index++
				m.scrollOffset = 0
				m.updateLines()
			}

		case key.Matches(msg, keys.Prev):
			if m.index > 0 {
				m.index--
				m.scrollOffset = 0
				m.updateLines()
			}

		case key.Matches(msg, keys.NextSect):
			m.jumpToNextSection()

		case key.Matches(msg, keys.PrevSect):
			m.jumpToPrevSection()

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}
	}

	return m, nil
}

func (m *Model) scroll(delta int) {
	m.scrollOffset += delta
	if m.scrollOffset > len(m.lines)-1 {
		m.scrollOffset = len(m.lines) - 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m *Model) jumpToNextSection() {
	for i := m.scrollOffset + 1; i < len(m.lines); i++ {
		if m.lines[i].Heading {
			m.scrollOffset = i
			return
		}
	}
}

func (m *Model) jumpToPrevSection() {
	for i := m.scrollOffset - 1; i >= 0; i-- {
		if m.lines[i].Heading {
			m.scrollOffset = i
			return
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	listWidth := m.listWidth()
	detailWidth := m.width - listWidth - 1

	list := m.renderList(listWidth, m.height-2)
	detail := m.renderDetail(detailWidth, m.height-2)

	main := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", detail)
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) listWidth() int {
	maxLen := 20
	for _, c := range m.components() {
		if len(c.Repository) > maxLen {
			maxLen = len(c.Repository)
		}
	}
	w := maxLen + 12 // marker + commit count + padding
	if w > m.width/3 {
		w = m.width / 3
	}
	if w < 20 {
		w = 20
	}
	return w
}

// listEntry is the plain text of one component row.
func listEntry(c model.ComponentRelease, nameWidth int) (line string, breaking bool) {
	name := c.Repository
	if r := []rune(name); nameWidth > 0 && len(r) > nameWidth {
		name = "…" + string(r[len(r)-nameWidth+1:])
	}
	switch s := c.Status.(type) {
	case model.Released:
		return fmt.Sprintf("● %-*s %3d", nameWidth, name, s.Stats.CommitCount), s.Stats.Breaking > 0
	case model.NoRelease:
		return fmt.Sprintf("○ %-*s   -", nameWidth, name), false
	}
	return name, false
}

func (m Model) renderList(width, height int) string {
	var b strings.Builder
	nameWidth := width - 12

	for i, c := range m.components() {
		line, breaking := listEntry(c, nameWidth)

		var style lipgloss.Style
		switch {
		case i == m.index:
			style = itemSelectedStyle
		case c.IsReleased():
			style = itemReleasedStyle
		default:
			style = itemNoReleaseStyle
		}

		row := style.Render(line)
		if breaking {
			row += breakingMarkerStyle.Render(" !")
		}
		b.WriteString(row)
		if i < len(m.components())-1 {
			b.WriteByte('\n')
		}
	}

	return listStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderDetail(width, height int) string {
	innerHeight := height - 2
	if len(m.components()) == 0 {
		return detailStyle.Width(width).Height(innerHeight).Render("No components")
	}

	innerWidth := width - 4 // borders + padding
	header := headerStyle.Render(fmt.Sprintf("%s @ %s", m.release.Components[m.index].Repository, m.release.Version))

	visible := innerHeight - 2
	if visible < 1 {
		visible = 1
	}
	end := m.scrollOffset + visible
	if end > len(m.lines) {
		end = len(m.lines)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(styleLine(m.lines[i], innerWidth))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}

	return detailStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) renderStatusBar() string {
	var left string
	if m.release != nil {
		s := m.release.Summary
		left = fmt.Sprintf(" %s  %d/%d updated  %d commits  %d contributors",
			m.release.Version, s.UpdatedRepos, s.TotalRepos, s.TotalCommits, s.Contributors)
		if s.Breaking > 0 {
			left += fmt.Sprintf("  %d breaking", s.Breaking)
		}
	}

	right := fmt.Sprintf("%d/%d  ? help ", m.index+1, len(m.components()))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("relnotes - Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, k := range []key.Binding{keys.Up, keys.Down, keys.PageDown, keys.PageUp, keys.Next, keys.Prev, keys.NextSect, keys.PrevSect, keys.Help, keys.Quit} {
		h := k.Help()
		b.WriteString(fmt.Sprintf("  %s  %s\n", helpKeyStyle.Width(12).Render(h.Key), h.Desc))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))
	return b.String()
}

// Run starts the browser.
func Run(rel *model.AggregatedRelease, opts render.Options) error {
	p := tea.NewProgram(New(rel, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
