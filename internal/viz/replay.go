package viz

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/export"
	"github.com/san-kum/spherique/internal/metrics"
	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/sim"
	"github.com/san-kum/spherique/internal/trace"
)

const (
	width           = 80
	height          = 40
	historyCapacity = 600
	maxSpeed        = 16
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model plays a trace back through a sim.Replayer, one or more outer steps
// per frame.
type Model struct {
	title         string
	cfg           config.Config
	replayer      *sim.Replayer
	canvas        *Canvas
	theme         Theme
	running       bool
	speed         int
	energyHistory []float64
	liveHistory   []float64
	showHelp      bool
	message       string
	snapshotDir   string
}

func NewModel(title string, cfg config.Config, records []trace.Record) Model {
	return Model{
		title:         title,
		cfg:           cfg,
		replayer:      sim.NewReplayer(cfg, records),
		canvas:        NewCanvas(width, height),
		theme:         Themes[0],
		running:       true,
		speed:         1,
		energyHistory: make([]float64, 0, historyCapacity),
		liveHistory:   make([]float64, 0, historyCapacity),
		snapshotDir:   ".",
	}
}

// WithTheme sets the starting theme; T still cycles from there.
func (m Model) WithTheme(t Theme) Model {
	m.theme = t
	return m
}

// WithSnapshotDir sets where the S key writes PNG snapshots.
func (m Model) WithSnapshotDir(dir string) Model {
	m.snapshotDir = dir
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if !m.replayer.Done() {
				m.running = !m.running
			}
		case "r":
			m.reset()
		case "+", "=":
			m.speed = min(m.speed*2, maxSpeed)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "s":
			m.message = m.snapshot()
		case "t":
			m.theme = m.theme.Next()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			for i := 0; i < m.speed && !m.replayer.Done(); i++ {
				m.step()
			}
			if m.replayer.Done() {
				m.running = false
			}
		}
		m.draw()
		return m, tick()
	}
	return m, nil
}

// step advances the replay by one outer step and records the panel series.
func (m *Model) step() {
	m.replayer.Step()
	w := m.replayer.World()
	subDt := m.cfg.FixedDt / float64(m.cfg.Substeps)

	m.energyHistory = appendCapped(m.energyHistory, metrics.Kinetic(w.Particles(), subDt))
	m.liveHistory = appendCapped(m.liveHistory, float64(w.Len()))
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[1:]
	}
	return s
}

func (m *Model) reset() {
	m.replayer.Reset()
	m.energyHistory = m.energyHistory[:0]
	m.liveHistory = m.liveHistory[:0]
	m.running = true
	m.message = ""
}

// overlay is the status line also burnt into snapshots.
func (m *Model) overlay() string {
	return fmt.Sprintf("Step %d/%d | %d balls", m.replayer.CurrentStep(), m.replayer.TotalSteps(), m.replayer.World().Len())
}

func (m *Model) snapshot() string {
	path := filepath.Join(m.snapshotDir, fmt.Sprintf("spherique_step_%d.png", m.replayer.CurrentStep()))
	f, err := os.Create(path)
	if err != nil {
		return "snapshot failed: " + err.Error()
	}
	defer f.Close()

	bounds := physics.Bounds{Width: m.cfg.Width, Height: m.cfg.Height}
	if err := export.WritePNG(f, m.replayer.World().Particles(), bounds, m.overlay()); err != nil {
		return "snapshot failed: " + err.Error()
	}
	return "saved " + path
}

// draw maps world units onto the canvas dots.
func (m *Model) draw() {
	m.canvas.Clear()
	sx := float64(m.canvas.SubWidth()) / m.cfg.Width
	sy := float64(m.canvas.SubHeight()) / m.cfg.Height

	ps := m.replayer.World().Particles()
	for i := range ps {
		p := &ps[i]
		if !p.IsValid() {
			continue
		}
		m.canvas.FillEllipse(p.Pos.X*sx, p.Pos.Y*sy, p.Radius()*sx, p.Radius()*sy, p.Color)
	}
}

func (m Model) View() string {
	st := newStyles(m.theme)
	canvasView := lipgloss.NewStyle().Padding(1, 2).Render(m.canvas.Render())

	var s strings.Builder
	s.WriteString(st.header.Render(GradientText(strings.ToUpper(m.title), m.theme.Primary, m.theme.Accent)) + "\n")

	status := st.running.Render("REPLAYING")
	switch {
	case m.replayer.Done():
		status = st.finished.Render("FINISHED")
	case !m.running:
		status = st.paused.Render("PAUSED")
	}
	s.WriteString(status + "  " + st.muted.Render(fmt.Sprintf("x%d", m.speed)) + "\n\n")
	s.WriteString(st.value.Render(m.overlay()) + "\n")

	progress := 0.0
	if total := m.replayer.TotalSteps(); total > 0 {
		progress = float64(m.replayer.CurrentStep()) / float64(total)
	}
	s.WriteString(st.ProgressBar(progress, 30) + "\n")

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(st.graph.Render(chart) + "\n\n")
	}

	energy := 0.0
	if n := len(m.energyHistory); n > 0 {
		energy = m.energyHistory[n-1]
	}
	s.WriteString(st.label.Render("Energy") + st.value.Render(fmt.Sprintf("%.2f", energy)) + "\n")
	s.WriteString(st.label.Render("Pending") + st.value.Render(fmt.Sprintf("%d", m.replayer.Pending())) + "\n")
	s.WriteString(st.label.Render("Balls") + st.graph.UnsetPadding().Render(Sparkline(m.liveHistory, 30)) + "\n")
	s.WriteString(st.label.Render("Theme") + st.value.Render(m.theme.Name) + "\n")

	if m.message != "" {
		s.WriteString("\n" + st.muted.Render(m.message) + "\n")
	}
	s.WriteString(st.muted.Render("\n─────────────────────\nSP:Pause R:Restart Q:Quit\n+/-:Speed S:Snapshot T:Theme ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.panel.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume replay      ║
║  R        - Restart from step 0      ║
║  + / -    - Double/halve speed       ║
║  S        - Save PNG snapshot        ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// Run blocks until the user quits the replay.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
