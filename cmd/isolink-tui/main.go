package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Config
const (
	defaultDaemonURL = "http://127.0.0.1:8095"
	pollRate         = 2 * time.Second
	maxJournal       = 50
	viewportHeight   = 18
)

var apiBase = defaultDaemonURL

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	// Journal line styles
	eventTimeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	eventTypeStyle   = lipgloss.NewStyle().Width(18).Bold(true)
	eventSourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	linkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
	mergeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // Blue
	phaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
)

// API types (mirrored from pkg/api so the TUI builds without the daemon's
// SQLite dependency)

type componentView struct {
	ComponentID    string   `json:"component_id"`
	Phase          string   `json:"phase"`
	Class          string   `json:"class"`
	Representative string   `json:"representative,omitempty"`
	Anchors        []string `json:"anchors,omitempty"`
}

type linkEvent struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Score     float64   `json:"score"`
}

type journalWindow struct {
	LastSeq uint64      `json:"last_seq"`
	Dropped uint64      `json:"dropped"`
	Events  []linkEvent `json:"events"`
}

type tickMsg time.Time

type dataMsg struct {
	components []componentView
	journal    journalWindow
	err        error
}

type model struct {
	spinner    spinner.Model
	viewport   viewport.Model
	components []componentView
	journal    journalWindow
	err        error
	ready      bool
}

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{
		spinner:  s,
		viewport: vp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.components = msg.components
			m.journal = msg.journal
			m.updateViewportContent()
		}
		if !m.ready {
			m.ready = true
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder

	for _, e := range m.journal.Events {
		ts := e.Timestamp.Format("15:04:05")

		var typeStr string
		switch e.Type {
		case "INDIRECT_LINK":
			typeStr = linkStyle.Render(e.Type)
		case "CANONICAL_MERGE":
			typeStr = mergeStyle.Render(e.Type)
		default:
			typeStr = phaseStyle.Render(e.Type)
		}

		line := fmt.Sprintf("%s %s %s  score=%.3f\n",
			eventTimeStyle.Render(ts),
			eventTypeStyle.Render(typeStr),
			eventSourceStyle.Render(fmt.Sprintf("%s -> %s", e.SourceID, e.TargetID)),
			e.Score,
		)
		sb.WriteString(line)
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	// Top pane: component registry
	var registry strings.Builder
	registry.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Component Registry") + "\n\n")

	if len(m.components) == 0 {
		registry.WriteString(subtleStyle.Render("No components registered."))
	} else {
		views := make([]componentView, len(m.components))
		copy(views, m.components)
		sort.Slice(views, func(i, j int) bool { return views[i].ComponentID < views[j].ComponentID })

		registry.WriteString(subtleStyle.Render(fmt.Sprintf("%-30s %-10s %-14s %s\n", "COMPONENT", "PHASE", "CLASS", "ANCHORS")))
		shown := views
		if len(shown) > 12 {
			shown = shown[:12]
		}
		for _, v := range shown {
			class := v.Class
			if v.Class == "member" && v.Representative != "" {
				class = "-> " + v.Representative
			}
			registry.WriteString(fmt.Sprintf("%-30s %-10s %-14s %s\n",
				v.ComponentID, v.Phase, class, strings.Join(v.Anchors, ",")))
		}
		if len(views) > len(shown) {
			registry.WriteString(subtleStyle.Render(fmt.Sprintf("… and %d more", len(views)-len(shown))))
		}
	}

	topPane := paneStyle.Render(registry.String())

	header := headerStyle.Render(fmt.Sprintf("%s Link Journal", m.spinner.View()))
	bottomPane := m.viewport.View()

	representatives := 0
	for _, v := range m.components {
		if v.Class == "representative" {
			representatives++
		}
	}

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Components • %d Classes • Seq %d",
			len(m.components), representatives, m.journal.LastSeq))
		if m.journal.Dropped > 0 {
			status += subtleStyle.Render(fmt.Sprintf(" (%d dropped)", m.journal.Dropped))
		}
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// Commands

func fetchData() tea.Cmd {
	return func() tea.Msg {
		components, err := getComponents()
		if err != nil {
			return dataMsg{err: err}
		}

		journal, err := getJournal()
		if err != nil {
			return dataMsg{err: err}
		}

		return dataMsg{
			components: components,
			journal:    journal,
		}
	}
}

func getComponents() ([]componentView, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(apiBase + "/v1/components")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("components status %d", resp.StatusCode)
	}

	var out struct {
		Count      int             `json:"count"`
		Components []componentView `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Components, nil
}

func getJournal() (journalWindow, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(fmt.Sprintf("%s/v1/journal?limit=%d", apiBase, maxJournal))
	if err != nil {
		return journalWindow{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return journalWindow{}, fmt.Errorf("journal status %d", resp.StatusCode)
	}

	var out journalWindow
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return journalWindow{}, err
	}
	return out, nil
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	if v := os.Getenv("ISOLINK_API"); v != "" {
		apiBase = v
	}

	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
