package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/clp-ffi/client"
	"github.com/wippyai/clp-ffi/ffi/search"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	logtypeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	varStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateEditQuery modelState = iota
	stateBrowse
	stateDetail
)

type interactiveModel struct {
	err        error
	rt         *client.Runtime
	sample     *sampleSet
	samplePath string
	input      textinput.Model
	subqueries []search.Subquery[int64]
	counts     []uint64
	selected   int
	state      modelState
}

func newInteractiveModel(rt *client.Runtime, samplePath string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "*took 4* ms*"
	ti.Prompt = "query: "
	ti.Width = 60
	ti.Focus()
	return &interactiveModel{
		rt:         rt,
		samplePath: samplePath,
		input:      ti,
		state:      stateEditQuery,
	}
}

type sampleMsg struct {
	err    error
	sample *sampleSet
}

type compiledMsg struct {
	err        error
	subqueries []search.Subquery[int64]
	counts     []uint64
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadSample)
}

func (m *interactiveModel) loadSample() tea.Msg {
	s, err := loadSample(m.rt, m.samplePath)
	return sampleMsg{sample: s, err: err}
}

func (m *interactiveModel) compile() tea.Msg {
	subqueries, err := m.rt.WildcardQueryEncoder().EncodeWildcardQuery(m.input.Value())
	if err != nil {
		return compiledMsg{err: err}
	}
	msg := compiledMsg{subqueries: subqueries}
	if m.sample == nil {
		return msg
	}
	msg.counts = make([]uint64, len(subqueries))
	for i := range subqueries {
		rows, err := m.sample.candidates(m.rt, &subqueries[i])
		if err != nil {
			return compiledMsg{err: err}
		}
		msg.counts[i] = rows.GetCardinality()
	}
	return msg
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateEditQuery {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.subqueries)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateEditQuery:
				return m, m.compile
			case stateBrowse:
				if len(m.subqueries) > 0 {
					m.state = stateDetail
				}
			case stateDetail:
				m.state = stateBrowse
			}
			return m, nil

		case "esc":
			switch m.state {
			case stateBrowse:
				m.state = stateEditQuery
				m.input.Focus()
			case stateDetail:
				m.state = stateBrowse
			}
			return m, nil
		}

	case sampleMsg:
		m.sample, m.err = msg.sample, msg.err
		return m, nil

	case compiledMsg:
		m.err = msg.err
		if msg.err == nil {
			m.subqueries, m.counts = msg.subqueries, msg.counts
			m.selected = 0
			m.state = stateBrowse
			m.input.Blur()
		}
		return m, nil
	}

	if m.state == stateEditQuery {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("CLP Query Explorer"))
	if m.sample != nil {
		b.WriteString(fmt.Sprintf(" %s (%d lines)", m.samplePath, len(m.sample.messages)))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateEditQuery:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
		}
		b.WriteString(helpStyle.Render("enter compile • ctrl+c quit"))

	case stateBrowse:
		b.WriteString(fmt.Sprintf("%d subqueries for %q:\n\n", len(m.subqueries), m.input.Value()))
		for i := range m.subqueries {
			line := m.formatSubquery(i)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter details • esc edit query • q quit"))

	case stateDetail:
		sq := &m.subqueries[m.selected]
		b.WriteString(fmt.Sprintf("Subquery #%d\n\n", m.selected))
		b.WriteString(resultStyle.Render(describeSubquery(sq)))
		if m.counts != nil {
			b.WriteString(varStyle.Render(fmt.Sprintf("\n   candidates: %d", m.counts[m.selected])))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatSubquery(i int) string {
	sq := &m.subqueries[i]
	var kinds []string
	for _, q := range sq.EncodedVarWildcardQueries() {
		kinds = append(kinds, q.Placeholder.String())
	}
	for range sq.DictVarWildcardQueries() {
		kinds = append(kinds, "dict")
	}
	s := logtypeStyle.Render(readableLogtype(sq.LogtypeQuery))
	if len(kinds) > 0 {
		s += " " + varStyle.Render("["+strings.Join(kinds, ", ")+"]")
	}
	if m.counts != nil {
		s += fmt.Sprintf(" %d", m.counts[i])
	}
	return s
}

func runInteractive(rt *client.Runtime, samplePath string) error {
	p := tea.NewProgram(newInteractiveModel(rt, samplePath), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
