package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/servoloop/internal/datalog"
)

type Point struct{ X, Y float64 }

// PhasePortrait holds the estimated angle (deg) against estimated speed
// (deg/s) of a run.
type PhasePortrait struct {
	Points []Point
}

// PhasePortraitFromRows collects the observer estimates of every row.
func PhasePortraitFromRows(rows []datalog.Row) *PhasePortrait {
	portrait := &PhasePortrait{Points: make([]Point, 0, len(rows))}
	for _, r := range rows {
		portrait.Points = append(portrait.Points, Point{
			X: deg(r.EstAngle),
			Y: float64(r.EstSpeed) / 1000,
		})
	}
	return portrait
}

// Bounds returns the extent of the points.
func (p *PhasePortrait) Bounds() (min, max Point) {
	min = Point{math.Inf(1), math.Inf(1)}
	max = Point{math.Inf(-1), math.Inf(-1)}
	for _, pt := range p.Points {
		min.X, max.X = math.Min(min.X, pt.X), math.Max(max.X, pt.X)
		min.Y, max.Y = math.Min(min.Y, pt.Y), math.Max(max.Y, pt.Y)
	}
	return min, max
}

// density marks cells visited once, a few times, or often.
var density = []rune{'·', '•', '●'}

// PhasePortraitToASCII draws the portrait on a width by height grid with
// the zero axes where they are in view.
func PhasePortraitToASCII(portrait *PhasePortrait, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	lo, hi := portrait.Bounds()
	pad := func(lo, hi float64) (float64, float64) {
		span := hi - lo
		if span == 0 {
			span = 1
		}
		return lo - span*0.1, hi + span*0.1
	}
	lo.X, hi.X = pad(lo.X, hi.X)
	lo.Y, hi.Y = pad(lo.Y, hi.Y)
	col := func(x float64) int { return int((x - lo.X) / (hi.X - lo.X) * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-lo.Y)/(hi.Y-lo.Y)*float64(height-1)) }

	hits := make([][]int, height)
	canvas := make([][]rune, height)
	for i := range canvas {
		hits[i] = make([]int, width)
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	if lo.X <= 0 && hi.X >= 0 {
		c := col(0)
		for r := range canvas {
			canvas[r][c] = '│'
		}
	}
	if lo.Y <= 0 && hi.Y >= 0 {
		r := row(0)
		for c := range canvas[r] {
			if canvas[r][c] == '│' {
				canvas[r][c] = '┼'
			} else {
				canvas[r][c] = '─'
			}
		}
	}

	for _, p := range portrait.Points {
		r, c := row(p.Y), col(p.X)
		if r < 0 || r >= height || c < 0 || c >= width {
			continue
		}
		hits[r][c]++
		switch n := hits[r][c]; {
		case n >= 8:
			canvas[r][c] = density[2]
		case n >= 3:
			canvas[r][c] = density[1]
		default:
			canvas[r][c] = density[0]
		}
	}

	var sb strings.Builder
	for _, line := range canvas {
		sb.WriteString(string(line))
		sb.WriteRune('\n')
	}
	return sb.String()
}
