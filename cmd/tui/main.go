// Command tui runs the traffic simulator live in the terminal.
//
// The dashboard steps the simulation on a timer and shows fleet counts, the
// most congested roads, light phases, and active incidents.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cxd309/traffic-engine/internal/config"
	"github.com/cxd309/traffic-engine/internal/engine"
	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/logging"
	"github.com/cxd309/traffic-engine/internal/signal"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFAA00")).
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 2).
			MarginRight(2)

	incidentBoxStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#FF5555")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().MarginLeft(2)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")).
			Bold(true)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type keyMap struct {
	Pause    key.Binding
	Step     key.Binding
	Reset    key.Binding
	Optimize key.Binding
	Suggest  key.Binding
	Balance  key.Binding
	Incident key.Binding
	Help     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Pause: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "pause/resume"),
	),
	Step: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "single tick"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Optimize: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "retime lights"),
	),
	Suggest: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "apply route suggestions"),
	),
	Balance: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "balance routes"),
	),
	Incident: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "incident at centre"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more keys"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Optimize, k.Suggest, k.Reset, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Step, k.Reset},
		{k.Optimize, k.Suggest, k.Balance, k.Incident},
		{k.Help, k.Quit},
	}
}

type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	sim      *engine.Simulator
	centre   graph.NodeID
	interval time.Duration

	keys    keyMap
	help    help.Model
	roads   table.Model
	paused  bool
	last    engine.TickReport
	message string
	width   int
}

func initialModel(sim *engine.Simulator, centre graph.NodeID, interval time.Duration) model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Road", Width: 16},
			{Title: "Density", Width: 8},
			{Title: "Load", Width: 22},
		}),
		table.WithHeight(6),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)

	m := model{
		sim:      sim,
		centre:   centre,
		interval: interval,
		keys:     keys,
		help:     help.New(),
		roads:    t,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tickCmd(m.interval)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		if !m.paused {
			m.step()
		}
		return m, tickCmd(m.interval)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Step):
			m.step()
		case key.Matches(msg, m.keys.Reset):
			m.sim.Reset()
			m.last = engine.TickReport{}
			m.message = "simulation reset"
		case key.Matches(msg, m.keys.Optimize):
			m.message = fmt.Sprintf("retimed %d lights", m.sim.RetimeLights())
		case key.Matches(msg, m.keys.Suggest):
			n, err := m.sim.Reroute(context.Background())
			if err != nil {
				m.message = err.Error()
				break
			}
			m.message = fmt.Sprintf("%d vehicles took suggested routes", n)
		case key.Matches(msg, m.keys.Balance):
			report, n, err := m.sim.Rebalance(context.Background())
			if err != nil {
				m.message = err.Error()
				break
			}
			m.message = fmt.Sprintf("balanced in %d passes, %d rerouted, %d applied", report.Passes, report.Rerouted, n)
		case key.Matches(msg, m.keys.Incident):
			if m.sim.AddIncident(m.centre, "", 0) {
				m.message = "incident added at " + m.centre
			} else {
				m.message = "no road leaves " + m.centre
			}
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		m.refresh()
	}
	return m, nil
}

func (m *model) step() {
	m.last = m.sim.Step()
	if m.last.Injected != nil {
		m.message = fmt.Sprintf("%s on %s", m.last.Injected.Kind, m.last.Injected.RoadID)
	}
	m.refresh()
}

// refresh rebuilds the road table from the live state.
func (m *model) refresh() {
	stats := m.sim.Stats()
	rows := make([]table.Row, 0, len(stats.Congested))
	for _, r := range stats.Congested {
		rows = append(rows, table.Row{r.RoadID, fmt.Sprintf("%.1f", r.Density), bar(r.Density, 20)})
	}
	m.roads.SetRows(rows)
}

// bar draws density on a 0-100 scale as a fixed-width gauge.
func bar(density float64, width int) string {
	filled := int(density / 100 * float64(width))
	filled = max(0, min(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (m model) View() string {
	var s strings.Builder

	title := "Traffic Simulation"
	if m.paused {
		title += "  " + pausedStyle.Render("[paused]")
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")

	stats := m.sim.Stats()
	ns, ew := m.phases()
	statsContent := fmt.Sprintf(`Tick:         %d
Vehicles:     %d
  moving:     %d
  arrived:    %d
Mean density: %.1f
Lights NS/EW: %d / %d
Flipped:      %d`,
		stats.Tick, stats.Vehicles, stats.Moving, stats.Arrived, stats.MeanDensity, ns, ew, m.last.LightsFlipped)

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		statsBoxStyle.Render(statsContent),
		incidentBoxStyle.Render(m.renderIncidents()),
	)
	s.WriteString(contentStyle.Render(top))
	s.WriteString("\n\n")
	s.WriteString(contentStyle.Render("Most congested roads\n" + m.roads.View()))

	if m.message != "" {
		s.WriteString("\n\n")
		s.WriteString(contentStyle.Render(messageStyle.Render(m.message)))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return s.String()
}

// phases counts lights by the phase currently holding green.
func (m model) phases() (ns, ew int) {
	for _, l := range m.sim.Lights() {
		if l.GreenPhase() == signal.NorthSouth {
			ns++
		} else {
			ew++
		}
	}
	return ns, ew
}

func (m model) renderIncidents() string {
	incidents := m.sim.Incidents()
	if len(incidents) == 0 {
		return "Incidents\n\nnone"
	}
	lines := []string{fmt.Sprintf("Incidents (%d)", len(incidents)), ""}
	for i, inc := range incidents {
		if i == 6 {
			lines = append(lines, fmt.Sprintf("… %d more", len(incidents)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("%-12s %-14s sev %.2f  %2d left", inc.Kind, inc.RoadID, inc.Severity, inc.Duration))
	}
	return strings.Join(lines, "\n")
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	interval := flag.Duration("interval", 250*time.Millisecond, "wall-clock time per tick")
	logPath := flag.String("log", "", "write JSON logs to this file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var logger logging.Logger = logging.NewNopLogger()
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logger = logging.NewJSONLogger(f, logging.ParseLevel(cfg.Logging.Level))
	}

	spec := cfg.GridSpec()
	g, err := graph.NewGraph(graph.Grid(spec, nil))
	if err != nil {
		log.Fatalf("Failed to build grid: %v", err)
	}
	sim, err := engine.New(g, cfg, engine.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}

	centre := graph.GridNodeID(spec.Cols/2, spec.Rows/2)
	p := tea.NewProgram(initialModel(sim, centre, *interval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
