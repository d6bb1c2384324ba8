package viz

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/control"
	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/servo"
	"github.com/san-kum/servoloop/internal/sim"
)

const (
	dialWidth       = 24
	dialHeight      = 12
	historyCapacity = 300
	// frameEvery sends one row to the screen per this many control ticks.
	frameEvery      = 8
	stepDegrees     = 90
)

// RowMsg carries the servo's latest row from the control loop.
type RowMsg datalog.Row

// ErrMsg reports that the control loop ended.
type ErrMsg struct{ Err error }

// Monitor is the Bubble Tea model of the live view.
type Monitor struct {
	servo  *servo.Servo
	port   *sim.Port
	name   string
	speed  int32
	canvas *Canvas

	last     datalog.Row
	angles   []float64
	loads    []float64
	target   int64
	blocked  bool
	status   string
	err      error
	showHelp bool
}

// NewMonitor watches sv, which must be driven by port. speed is the
// speed of keyboard moves in deg/s.
func NewMonitor(name string, sv *servo.Servo, port *sim.Port, speed int32) Monitor {
	angle, _ := sv.AngleSpeed()
	return Monitor{
		servo:  sv,
		port:   port,
		name:   name,
		speed:  speed,
		canvas: NewCanvas(dialWidth, dialHeight),
		angles: make([]float64, 0, historyCapacity),
		loads:  make([]float64, 0, historyCapacity),
		target: angle,
		status: "ready",
	}
}

func (m Monitor) Init() tea.Cmd { return nil }

// Update handles keys and rows from the loop.
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case RowMsg:
		m.observe(datalog.Row(msg))
	case ErrMsg:
		m.err = msg.Err
		m.status = "loop stopped"
	}
	return m, nil
}

func (m Monitor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "left", "h":
		m.target -= stepDegrees
		err = m.servo.RunTarget(m.speed, m.target, control.PolicyHold)
		m.status = fmt.Sprintf("run_target %d°", m.target)
	case "right", "l":
		m.target += stepDegrees
		err = m.servo.RunTarget(m.speed, m.target, control.PolicyHold)
		m.status = fmt.Sprintf("run_target %d°", m.target)
	case "f":
		err = m.servo.RunForever(m.speed)
		m.status = fmt.Sprintf("run_forever %d°/s", m.speed)
	case " ":
		err = m.servo.Stop(control.PolicyHold)
		m.status = "stop: hold"
	case "s":
		err = m.servo.Stop(control.PolicyCoast)
		m.status = "stop: coast"
	case "b":
		err = m.servo.Stop(control.PolicyBrake)
		m.status = "stop: brake"
	case "x":
		m.blocked = !m.blocked
		m.port.Block(m.blocked)
		m.status = map[bool]string{true: "shaft blocked", false: "shaft released"}[m.blocked]
	case "r":
		err = m.servo.ResetAngle(0, false)
		m.target = 0
		m.status = "reset angle"
	case "t":
		NextTheme()
	case "?":
		m.showHelp = !m.showHelp
	}
	if err != nil {
		m.status = err.Error()
	}
	return m, nil
}

func (m *Monitor) observe(row datalog.Row) {
	m.last = row
	m.angles = appendCapped(m.angles, float64(row.Measured)/1000)
	m.loads = appendCapped(m.loads, float64(m.servo.Load()))
}

func appendCapped(values []float64, v float64) []float64 {
	values = append(values, v)
	if len(values) > historyCapacity {
		values = values[1:]
	}
	return values
}

// View renders the dial and the stats panel.
func (m Monitor) View() string {
	angle, speed := m.servo.AngleSpeed()
	state := m.servo.State()

	m.canvas.Clear()
	m.canvas.DrawDial(float64(angle), float64(m.target))
	dial := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.name)) + "\n")
	s.WriteString(StateBadge(state))
	if stalled, since := m.servo.IsStalled(); stalled {
		s.WriteString(fmt.Sprintf("  stalled %.1fs", since.Seconds()))
	}
	s.WriteString("\n\n")

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", float64(m.last.Time)/motor.TicksPerSecond))
	row("Angle", fmt.Sprintf("%d°", angle))
	row("Target", fmt.Sprintf("%d°", m.target))
	row("Speed", fmt.Sprintf("%d°/s", speed))
	row("Load", fmt.Sprintf("%d mNm  %s", m.servo.Load(), Sparkline(m.loads, 16)))
	act, value := m.servo.Actuation()
	row("Drive", fmt.Sprintf("%s %d", act, value))
	if maxV, err := motor.MaxVoltage(m.servo.Type()); err == nil && maxV > 0 {
		row("Duty", ProgressBar(math.Abs(float64(m.last.Voltage))/float64(maxV), 16))
	}

	if len(m.angles) > 1 {
		chart := asciigraph.Plot(m.angles, asciigraph.Height(6), asciigraph.Width(36), asciigraph.Caption("angle (°)"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	status := m.status
	if m.err != nil {
		status = m.err.Error()
	}
	s.WriteString(labelStyle.Render("Status") + valueStyle.Render(status) + "\n")
	s.WriteString(helpStyle.Render("←/→:Target F:Forever SP:Hold S:Coast B:Brake\nX:Block R:Reset T:Theme ?:Help Q:Quit"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, dial, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpOverlay + "\n" + main
	}
	return main
}

const helpOverlay = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  ←/→      - Target -90°/+90°         ║
║  F        - Run forever              ║
║  Space    - Stop and hold            ║
║  S / B    - Stop and coast / brake   ║
║  X        - Block or release shaft   ║
║  R        - Reset angle to zero      ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// Run shows the monitor until the user quits or ctx ends. The loop is
// started here and stopped on return.
func Run(ctx context.Context, loop *sim.Loop, m Monitor) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	ticks := 0
	loop.OnTick(func(now int32) {
		ticks++
		if ticks%frameEvery == 0 {
			p.Send(RowMsg(m.servo.Snapshot()))
		}
	})

	done := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		if ctx.Err() == nil {
			p.Send(ErrMsg{Err: err})
		}
		done <- err
	}()

	_, err := p.Run()
	cancel()
	<-done
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
