package viz

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/trace"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	red := physics.Color{R: 255}

	c.Set(0, 0, red)
	c.Set(3, 3, red)
	c.Set(-1, 0, red)
	c.Set(4, 0, red)

	if c.Grid[0][0] != blank|0x1 {
		t.Errorf("unexpected cell %U", c.Grid[0][0])
	}
	if c.Grid[0][1] != blank|0x80 {
		t.Errorf("unexpected cell %U", c.Grid[0][1])
	}
	if c.Colors[0][1] != red {
		t.Errorf("expected colour to be recorded")
	}

	c.Clear()
	if c.String() != "⠀⠀\n" {
		t.Errorf("expected blank canvas, got %q", c.String())
	}
}

func TestFillEllipse(t *testing.T) {
	c := NewCanvas(10, 5)
	c.FillEllipse(10, 10, 4, 4, physics.Color{G: 200})

	lit := 0
	for _, row := range c.Grid {
		for _, r := range row {
			if r != blank {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatal("expected lit cells")
	}

	tiny := NewCanvas(2, 2)
	tiny.FillEllipse(1.2, 1.2, 0.1, 0.1, physics.Color{B: 1})
	if tiny.Grid[0][0] == blank {
		t.Error("sub-dot particle must still light one dot")
	}
}

func TestCanvasRenderKeepsText(t *testing.T) {
	c := NewCanvas(3, 1)
	c.Set(0, 0, physics.Color{R: 255})
	c.Set(2, 0, physics.Color{R: 255})

	if !strings.Contains(c.Render(), "⠁⠁") {
		t.Error("equal colours should render as one run")
	}
}

func TestThemeNext(t *testing.T) {
	th := Themes[0]
	for range Themes {
		th = th.Next()
	}
	if th.Name != Themes[0].Name {
		t.Errorf("expected wrap around, got %s", th.Name)
	}
	if GetTheme("nope").Name != Themes[0].Name {
		t.Error("unknown theme should fall back")
	}
	if len(ThemeNames()) != len(Themes) {
		t.Error("theme names mismatch")
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 4); got != "────" {
		t.Errorf("unexpected empty sparkline %q", got)
	}
	if got := Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 4); got != "▁▃▅█" {
		t.Errorf("unexpected sparkline %q", got)
	}
}

func replayModel(steps int) Model {
	cfg, _ := config.GetPreset("small")
	cfg.TotalSteps = steps
	records := []trace.Record{
		{Step: 0, X: 200, Y: 200, Radius: 10, PrevX: 200, PrevY: 200, Color: physics.Color{R: 200}},
		{Step: 1, X: 100, Y: 200, Radius: 10, PrevX: 100, PrevY: 200, Color: physics.Color{G: 200}},
	}
	return NewModel("small", cfg, records)
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelPlaysAndFinishes(t *testing.T) {
	m := replayModel(3)

	m = update(m, TickMsg(time.Now()))
	if m.replayer.CurrentStep() != 1 || m.replayer.World().Len() != 1 {
		t.Fatalf("unexpected state after one tick: step %d, %d balls", m.replayer.CurrentStep(), m.replayer.World().Len())
	}

	m = update(m, key("+"))
	m = update(m, TickMsg(time.Now()))
	if !m.replayer.Done() || m.running {
		t.Fatal("expected replay to finish and pause")
	}
	if !strings.Contains(m.View(), "Step 3/3 | 2 balls") {
		t.Error("overlay missing from view")
	}

	m = update(m, key("r"))
	if m.replayer.CurrentStep() != 0 || !m.running || len(m.energyHistory) != 0 {
		t.Error("restart did not reset the replay")
	}
}

func TestModelPause(t *testing.T) {
	m := replayModel(10)
	m = update(m, key(" "))
	m = update(m, TickMsg(time.Now()))
	if m.replayer.CurrentStep() != 0 {
		t.Error("paused model must not step")
	}

	m = update(m, key("-"))
	if m.speed != 1 {
		t.Errorf("speed must not drop below 1, got %d", m.speed)
	}
}

func TestModelSnapshot(t *testing.T) {
	dir := t.TempDir()
	m := replayModel(5).WithSnapshotDir(dir)
	m = update(m, TickMsg(time.Now()))
	m = update(m, key("s"))

	path := filepath.Join(dir, "spherique_step_1.png")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected snapshot: %v (%s)", err, m.message)
	}
}

func TestModelWithTheme(t *testing.T) {
	m := replayModel(5).WithTheme(GetTheme(ThemeSunset.Name))
	if m.theme.Name != ThemeSunset.Name {
		t.Fatalf("expected %s, got %s", ThemeSunset.Name, m.theme.Name)
	}

	m = update(m, key("t"))
	if m.theme.Name != ThemeSunset.Next().Name {
		t.Errorf("expected T to cycle from %s, got %s", ThemeSunset.Name, m.theme.Name)
	}
}
