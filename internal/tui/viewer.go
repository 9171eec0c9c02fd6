// Package tui is an interactive terminal viewer for reactor trajectories.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/reactsim/internal/viz"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = viz.Subtle
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

var colors = []asciigraph.AnsiColor{
	asciigraph.Blue,
	asciigraph.Red,
	asciigraph.Green,
	asciigraph.Yellow,
	asciigraph.Magenta,
	asciigraph.Cyan,
}

// Model browses a set of figures sharing one x axis. A cursor scrubs
// through the samples and individual series can be hidden.
type Model struct {
	title  string
	figs   []viz.Figure
	hidden []map[int]bool

	fig     int
	series  int
	cursor  int
	playing bool

	width  int
	height int
}

func NewViewer(title string, figs []viz.Figure) Model {
	hidden := make([]map[int]bool, len(figs))
	for i := range hidden {
		hidden[i] = make(map[int]bool)
	}
	return Model{
		title:  title,
		figs:   figs,
		hidden: hidden,
		width:  100,
		height: 30,
	}
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(30*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if !m.playing {
			return m, nil
		}
		m.move(m.stride())
		if m.cursor >= m.samples()-1 {
			m.playing = false
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "n":
		if len(m.figs) > 0 {
			m.fig = (m.fig + 1) % len(m.figs)
			m.series = 0
		}
	case "shift+tab", "N":
		if len(m.figs) > 0 {
			m.fig = (m.fig + len(m.figs) - 1) % len(m.figs)
			m.series = 0
		}
	case "up", "k":
		if m.series > 0 {
			m.series--
		}
	case "down", "j":
		if m.series < m.seriesCount()-1 {
			m.series++
		}
	case " ", "enter":
		if m.seriesCount() > 0 {
			h := m.hidden[m.fig]
			h[m.series] = !h[m.series]
		}
	case "left", "h":
		m.move(-m.stride())
	case "right", "l":
		m.move(m.stride())
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(m.samples()-1, 0)
	case "p":
		m.playing = !m.playing
		if m.playing {
			if m.cursor >= m.samples()-1 {
				m.cursor = 0
			}
			return m, tick()
		}
	}
	return m, nil
}

// stride moves the cursor by one percent of the trajectory.
func (m Model) stride() int {
	return max(m.samples()/100, 1)
}

func (m *Model) move(d int) {
	m.cursor = min(max(m.cursor+d, 0), max(m.samples()-1, 0))
}

func (m Model) samples() int {
	if len(m.figs) == 0 {
		return 0
	}
	return len(m.figs[m.fig].X)
}

func (m Model) seriesCount() int {
	if len(m.figs) == 0 {
		return 0
	}
	return len(m.figs[m.fig].Series)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n  " + viz.Title.Render(m.title) + "\n\n  ")
	for i, f := range m.figs {
		if i == m.fig {
			b.WriteString(cyan.Render("["+f.Title+"]") + " ")
		} else {
			b.WriteString(dim.Render(" "+f.Title+" ") + " ")
		}
	}
	b.WriteString("\n\n")

	if len(m.figs) == 0 {
		b.WriteString("  " + dim.Render("nothing to show") + "\n")
		return b.String()
	}

	fig := m.figs[m.fig]
	b.WriteString(m.graph(fig))
	b.WriteString("\n\n")

	x := 0.0
	if m.cursor < len(fig.X) {
		x = fig.X[m.cursor]
	}
	b.WriteString(fmt.Sprintf("  %s %s\n\n", dim.Render(fig.XLabel+" ="), white.Render(fmt.Sprintf("%.4g", x))))

	sparkWidth := max(m.width-40, 10)
	for i, s := range fig.Series {
		pointer := "  "
		if i == m.series {
			pointer = cyan.Render("▸ ")
		}
		mark := cyan.Render("●")
		label := viz.Value.Render(fmt.Sprintf("%-12s", s.Label))
		if m.hidden[m.fig][i] {
			mark = dimmer.Render("○")
			label = dimmer.Render(fmt.Sprintf("%-12s", s.Label))
		}
		v := "-"
		if m.cursor < len(s.Values) {
			v = fmt.Sprintf("%.6g", s.Values[m.cursor])
		}
		fmt.Fprintf(&b, "  %s%s %s %s %s\n", pointer, mark, label,
			viz.Highlight.Render(fmt.Sprintf("%12s", v)),
			viz.Sparkline(s.Values, sparkWidth, true))
	}

	play := "p play"
	if m.playing {
		play = "p pause"
	}
	b.WriteString("\n" + dim.Render("  tab figure  ↑↓ series  space toggle  ←→ scrub  "+play+"  q quit") + "\n")
	return b.String()
}

func (m Model) graph(fig viz.Figure) string {
	var data [][]float64
	var palette []asciigraph.AnsiColor
	for i, s := range fig.Series {
		if m.hidden[m.fig][i] || len(s.Values) == 0 {
			continue
		}
		data = append(data, s.Values)
		palette = append(palette, colors[i%len(colors)])
	}
	if len(data) == 0 {
		return "  " + dim.Render("all series hidden")
	}

	height := max(m.height-12-len(fig.Series), 5)
	width := max(m.width-14, 20)
	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Offset(3),
		asciigraph.SeriesColors(palette...),
	)
}

// Run shows figs full screen until the user quits.
func Run(title string, figs []viz.Figure) error {
	p := tea.NewProgram(NewViewer(title, figs), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
