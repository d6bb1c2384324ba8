// Package export renders logged runs as SVG.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/viz"
)

var ErrNoData = errors.New("export: need at least two rows")

type ChartOptions struct {
	Width, Height int
	Title         string
	// Colors of the reference and measured traces.
	Reference, Measured string
}

func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		Width:     800,
		Height:    400,
		Reference: "#ff00ff",
		Measured:  "#00ffff",
	}
}

const margin = 50

type series struct {
	name, color string
	points      []point
}

type point struct{ t, v float64 }

// WriteChart draws reference and measured angle, in degrees, against time.
func WriteChart(w io.Writer, rows []datalog.Row, opts ChartOptions) error {
	if len(rows) < 2 {
		return ErrNoData
	}
	if opts.Width <= 2*margin || opts.Height <= 2*margin {
		return errors.Errorf("export: chart %dx%d too small", opts.Width, opts.Height)
	}

	ref := series{name: "reference", color: opts.Reference}
	meas := series{name: "measured", color: opts.Measured}
	t0 := rows[0].Time
	for _, r := range rows {
		t := float64(r.Time-t0) / motor.TicksPerSecond
		ref.points = append(ref.points, point{t, float64(r.RefAngle) / 1000})
		meas.points = append(meas.points, point{t, float64(r.Measured) / 1000})
	}

	tMax := ref.points[len(ref.points)-1].t
	if tMax == 0 {
		tMax = 1
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range []series{ref, meas} {
		for _, p := range s.points {
			lo, hi = math.Min(lo, p.v), math.Max(hi, p.v)
		}
	}
	if hi-lo < 1 {
		lo, hi = lo-0.5, hi+0.5
	}
	pad := (hi - lo) * 0.05
	lo, hi = lo-pad, hi+pad

	plotW := float64(opts.Width - 2*margin)
	plotH := float64(opts.Height - 2*margin)
	x := func(t float64) float64 { return margin + t/tMax*plotW }
	y := func(v float64) float64 { return margin + (hi-v)/(hi-lo)*plotH }

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, opts.Width, opts.Height, opts.Width, opts.Height)
	if opts.Title != "" {
		fmt.Fprintf(&sb, `<text x="%d" y="%d" fill="#ffffff" font-family="monospace" font-size="14" text-anchor="middle">%s</text>
`, opts.Width/2, margin/2, escape(opts.Title))
	}

	fmt.Fprintf(&sb, `<g stroke="#444466" stroke-width="1">
<line x1="%d" y1="%d" x2="%d" y2="%d"/>
<line x1="%d" y1="%d" x2="%d" y2="%d"/>
</g>
`, margin, margin, margin, opts.Height-margin, margin, opts.Height-margin, opts.Width-margin, opts.Height-margin)

	label := func(px, py float64, anchor, text string) {
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" fill="#888899" font-family="monospace" font-size="11" text-anchor="%s">%s</text>
`, px, py, anchor, text)
	}
	for i := 0; i <= 4; i++ {
		v := lo + (hi-lo)*float64(i)/4
		label(margin-6, y(v)+4, "end", fmt.Sprintf("%.0f°", v))
		t := tMax * float64(i) / 4
		label(x(t), float64(opts.Height-margin+16), "middle", fmt.Sprintf("%.2fs", t))
	}

	for i, s := range []series{ref, meas} {
		sb.WriteString(`<path fill="none" stroke-width="1.5" stroke="` + s.color + `" d="M`)
		for j, p := range s.points {
			if j > 0 {
				sb.WriteString(" L")
			}
			fmt.Fprintf(&sb, "%.1f,%.1f", x(p.t), y(p.v))
		}
		sb.WriteString("\"/>\n")
		ly := float64(margin + 14*i)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" fill="%s" font-family="monospace" font-size="11" text-anchor="end">%s</text>
`, opts.Width-margin, ly, s.color, s.name)
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return errors.Wrap(err, "export: write chart")
}

// CanvasToSVG draws every set dot of a Braille canvas as a circle, scale
// pixels apart.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ffff">
`, width, height, width, height)

	dot := scale * 0.4
	for py := 0; py < canvas.Height*4; py++ {
		for px := 0; px < canvas.Width*2; px++ {
			if canvas.IsSet(px, py) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(px)*scale+scale/2, float64(py)*scale+scale/2, dot)
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return escaper.Replace(s) }
