// Package tui renders the live coordination dashboard: registered agents,
// queue counts, and the recent event feed, refreshed on a fixed tick. It
// reads through the same report computations as the one-shot CLI queries
// and never writes to the state root.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/swarmd/internal/report"
	"github.com/user/swarmd/internal/types"
)

const refreshInterval = 2 * time.Second

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type tickMsg time.Time

// Model is the dashboard's bubbletea model.
type Model struct {
	reporter *report.Reporter
	events   types.EventLog

	status  *report.Status
	agents  table.Model
	pending []*types.Job
	active  []*types.Job
	feed    []*types.Event
	err     error
	width   int
}

// New creates a dashboard over the given reporter and event log.
func New(reporter *report.Reporter, events types.EventLog) Model {
	agents := table.New(
		table.WithColumns([]table.Column{
			{Title: "AGENT", Width: 24},
			{Title: "STATUS", Width: 8},
			{Title: "ROLE", Width: 10},
			{Title: "MODEL", Width: 12},
			{Title: "JOB", Width: 28},
			{Title: "SEEN", Width: 8},
		}),
		table.WithHeight(6),
	)
	return Model{reporter: reporter, events: events, agents: agents}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(func() tea.Msg { return tickMsg(time.Now()) }, tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

// refresh re-reads the state root. A read error is shown in the footer and
// retried on the next tick; the dashboard itself never exits on one.
func (m *Model) refresh() {
	now := time.Now().UTC()

	status, err := m.reporter.Status()
	if err != nil {
		m.err = err
		return
	}
	agents, err := m.reporter.Agents(now)
	if err != nil {
		m.err = err
		return
	}
	pendingQ, err := m.reporter.Queue(types.Pending)
	if err != nil {
		m.err = err
		return
	}
	activeQ, err := m.reporter.Queue(types.Active)
	if err != nil {
		m.err = err
		return
	}
	feed, err := m.events.Tail(10)
	if err != nil {
		m.err = err
		return
	}

	rows := make([]table.Row, 0, len(agents))
	for _, agent := range agents {
		rows = append(rows, table.Row{
			string(agent.ID),
			agent.Status,
			agent.Role,
			agent.Model,
			string(agent.CurrentJobID),
			fmtAge(agent.HeartbeatAge),
		})
	}
	m.agents.SetRows(rows)

	m.status = status
	m.pending = pendingQ.Jobs
	m.active = activeQ.Jobs
	m.feed = feed
	m.err = nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("swarmd coordination dashboard"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Agents"))
	b.WriteString("\n")
	if len(m.agents.Rows()) == 0 {
		b.WriteString(dimStyle.Render("  no agents registered"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.agents.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Jobs"))
	b.WriteString("\n")
	if m.status != nil {
		fmt.Fprintf(&b, "  pending: %d   active: %d   done: %d", m.status.Pending, m.status.Active, m.status.Done)
		if m.status.Corrupt > 0 {
			b.WriteString(errStyle.Render(fmt.Sprintf("   corrupt: %d", m.status.Corrupt)))
		}
		b.WriteString("\n")
	}
	for _, job := range truncateJobs(m.pending) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  [pending] %s  %s", job.ID, firstLine(job.Title))))
		b.WriteString("\n")
	}
	for _, job := range truncateJobs(m.active) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  [active]  %s  by %s  %s", job.ID, job.ClaimedBy, firstLine(job.Title))))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Events"))
	b.WriteString("\n")
	if len(m.feed) == 0 {
		b.WriteString(dimStyle.Render("  no events yet"))
		b.WriteString("\n")
	}
	for i := len(m.feed) - 1; i >= 0; i-- {
		event := m.feed[i]
		line := fmt.Sprintf("  %s  %-20s %s", event.At.Format("15:04:05"), event.AgentID, event.Type)
		b.WriteString(dimStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render("read error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("q to quit · refresh %s", refreshInterval)))
	b.WriteString("\n")
	return b.String()
}

func truncateJobs(jobs []*types.Job) []*types.Job {
	if len(jobs) > 5 {
		return jobs[:5]
	}
	return jobs
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func fmtAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
