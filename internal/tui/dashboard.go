package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asheridan/loom/pkg/models"
)

// RunUpdateMsg is sent when the run's snapshot changes.
type RunUpdateMsg struct {
	Snapshot *models.RunSnapshot
}

// RunLogMsg is sent to add a line to the activity log.
type RunLogMsg struct {
	Timestamp time.Time
	Message   string
}

// RunDoneMsg signals that the run reached a terminal verdict.
type RunDoneMsg struct {
	Verdict models.RunVerdict
}

// logEntry is one line of the activity log.
type logEntry struct {
	timestamp time.Time
	message   string
}

// maxLogLines bounds the activity log shown in the dashboard.
const maxLogLines = 12

// Dashboard is the bubbletea model displaying one supervised run.
type Dashboard struct {
	runID    string
	snapshot *models.RunSnapshot
	logs     []logEntry
	spin     spinner.Model
	width    int
	height   int
	done     bool
	verdict  models.RunVerdict
	quitting bool

	// Styles
	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	acceptStyle  lipgloss.Style
	failStyle    lipgloss.Style
	blockStyle   lipgloss.Style
	activeStyle  lipgloss.Style
	pendingStyle lipgloss.Style
	dimStyle     lipgloss.Style
	footerStyle  lipgloss.Style
	barFull      lipgloss.Style
	barEmpty     lipgloss.Style
}

// NewDashboard creates a dashboard for the given run.
func NewDashboard(runID string) *Dashboard {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Dashboard{
		runID: runID,
		spin:  sp,
		width: 80,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		acceptStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		blockStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		activeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			MarginTop(1),

		barFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		barEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return d.spin.Tick
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			d.quitting = true
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height

	case RunUpdateMsg:
		d.snapshot = msg.Snapshot

	case RunLogMsg:
		d.logs = append(d.logs, logEntry{timestamp: msg.Timestamp, message: msg.Message})
		if len(d.logs) > maxLogLines*4 {
			d.logs = d.logs[len(d.logs)-maxLogLines*2:]
		}

	case RunDoneMsg:
		d.done = true
		d.verdict = msg.Verdict

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spin, cmd = d.spin.Update(msg)
		return d, cmd
	}

	return d, nil
}

// Quitting reports whether the user asked to exit.
func (d *Dashboard) Quitting() bool {
	return d.quitting
}

// Done reports whether the run has reached a terminal verdict.
func (d *Dashboard) Done() bool {
	return d.done
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	if d.quitting {
		return ""
	}

	var b strings.Builder

	title := fmt.Sprintf("Run %s", d.runID)
	if !d.done {
		title = d.spin.View() + " " + title
	}
	b.WriteString(d.headerStyle.Render(title))
	b.WriteString("\n")

	b.WriteString(d.viewProgress())
	b.WriteString("\n")
	b.WriteString(d.viewChunks())
	b.WriteString("\n")
	b.WriteString(d.viewLogs())
	b.WriteString(d.viewFooter())

	return b.String()
}

// viewProgress renders the terminal-chunk progress bar and counts.
func (d *Dashboard) viewProgress() string {
	if d.snapshot == nil {
		return d.dimStyle.Render("waiting for first snapshot...") + "\n"
	}

	total := len(d.snapshot.Chunks)
	accepted, failed := 0, 0
	for _, c := range d.snapshot.Chunks {
		switch c.State {
		case models.ChunkAccepted:
			accepted++
		case models.ChunkRejected, models.ChunkBlocked:
			failed++
		}
	}

	var b strings.Builder
	b.WriteString(d.labelStyle.Render("Progress:"))
	b.WriteString(d.renderBar(d.snapshot.Progress(), 30))
	b.WriteString(fmt.Sprintf("  %d/%d done", accepted+failed, total))
	if failed > 0 {
		b.WriteString(d.failStyle.Render(fmt.Sprintf("  (%d failed)", failed)))
	}
	b.WriteString("\n")
	return b.String()
}

// renderBar draws a fixed-width progress bar.
func (d *Dashboard) renderBar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return d.barFull.Render(strings.Repeat("█", filled)) +
		d.barEmpty.Render(strings.Repeat("░", width-filled))
}

// viewChunks renders one row per chunk.
func (d *Dashboard) viewChunks() string {
	if d.snapshot == nil || len(d.snapshot.Chunks) == 0 {
		return ""
	}

	agents := make(map[string]string, len(d.snapshot.Assignments))
	for _, a := range d.snapshot.Assignments {
		agents[a.ChunkID] = a.AgentID
	}

	var b strings.Builder
	for _, c := range d.snapshot.Chunks {
		state := d.stateStyle(c.State).Render(fmt.Sprintf("%-10s", c.State))
		row := fmt.Sprintf("  %s %s %s", c.ID, state, truncate(c.Description, 44))
		if agent := agents[c.ID]; agent != "" {
			row += d.dimStyle.Render("  @" + agent)
		}
		if c.Attempts > 1 {
			row += d.dimStyle.Render(fmt.Sprintf("  attempt %d", c.Attempts))
		}
		if c.BlockedReason != "" {
			row += "  " + d.blockStyle.Render(truncate(c.BlockedReason, 40))
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

// viewLogs renders the most recent activity lines.
func (d *Dashboard) viewLogs() string {
	if len(d.logs) == 0 {
		return ""
	}

	start := 0
	if len(d.logs) > maxLogLines {
		start = len(d.logs) - maxLogLines
	}

	var b strings.Builder
	for _, entry := range d.logs[start:] {
		b.WriteString(d.dimStyle.Render(fmt.Sprintf("  %s %s",
			entry.timestamp.Format("15:04:05"), truncate(entry.message, 70))))
		b.WriteString("\n")
	}
	return b.String()
}

// viewFooter renders the verdict or help line.
func (d *Dashboard) viewFooter() string {
	if d.done {
		mark := "✓"
		style := d.acceptStyle
		switch d.verdict {
		case models.VerdictFailed, models.VerdictCancelled:
			mark = "✗"
			style = d.failStyle
		case models.VerdictPartiallyFailed:
			mark = "!"
			style = d.blockStyle
		}
		return d.footerStyle.Render(
			style.Render(fmt.Sprintf("%s %s", mark, d.verdict)) + " | Press q to exit")
	}
	return d.footerStyle.Render("Press q or Ctrl+C to cancel the run")
}

// stateStyle picks the style for a chunk state.
func (d *Dashboard) stateStyle(s models.ChunkState) lipgloss.Style {
	switch s {
	case models.ChunkAccepted:
		return d.acceptStyle
	case models.ChunkFailed, models.ChunkRejected:
		return d.failStyle
	case models.ChunkBlocked, models.ChunkCancelled:
		return d.blockStyle
	case models.ChunkDispatched, models.ChunkRunning, models.ChunkGated:
		return d.activeStyle
	default:
		return d.pendingStyle
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// NewDashboardProgram creates a Bubbletea program running the dashboard.
// The returned program receives messages via Send().
func NewDashboardProgram(runID string) (*tea.Program, *Dashboard) {
	d := NewDashboard(runID)
	p := tea.NewProgram(d, tea.WithAltScreen())
	return p, d
}
