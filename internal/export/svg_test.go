package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/viz"
)

func ramp(n int) []datalog.Row {
	rows := make([]datalog.Row, n)
	for i := range rows {
		rows[i] = datalog.Row{
			Time:     int32(1000 + i*50),
			RefAngle: int64(i) * 2000,
			Measured: int64(i) * 1900,
		}
	}
	return rows
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultChartOptions()
	opts.Title = "step <180°>"
	if err := WriteChart(&buf, ramp(50), opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svg := buf.String()

	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>\n") {
		t.Error("not a complete SVG document")
	}
	if n := strings.Count(svg, "<path"); n != 2 {
		t.Errorf("expected 2 paths, got %d", n)
	}
	if !strings.Contains(svg, "step &lt;180°&gt;") {
		t.Error("title not escaped")
	}
	for _, want := range []string{"reference", "measured", `stroke="#ff00ff"`, "0.00s"} {
		if !strings.Contains(svg, want) {
			t.Errorf("missing %q", want)
		}
	}
	// 50 points per path: one M plus 49 L segments.
	if n := strings.Count(svg, " L"); n != 98 {
		t.Errorf("expected 98 segments, got %d", n)
	}
}

func TestWriteChartErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChart(&buf, ramp(1), DefaultChartOptions()); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if err := WriteChart(&buf, ramp(5), ChartOptions{Width: 80, Height: 80}); err == nil {
		t.Error("expected error for tiny chart")
	}
}

func TestWriteChartFlatLine(t *testing.T) {
	rows := ramp(3)
	for i := range rows {
		rows[i].RefAngle, rows[i].Measured = 5000, 5000
	}
	var buf bytes.Buffer
	if err := WriteChart(&buf, rows, DefaultChartOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "NaN") {
		t.Error("flat series produced NaN coordinates")
	}
}

func TestCanvasToSVG(t *testing.T) {
	if CanvasToSVG(nil, 4) != "" {
		t.Error("expected empty output for nil canvas")
	}

	c := viz.NewCanvas(3, 2)
	c.Set(0, 0)
	c.Set(5, 7)
	svg := CanvasToSVG(c, 4)
	if n := strings.Count(svg, "<circle"); n != 2 {
		t.Errorf("expected 2 dots, got %d", n)
	}
	if !strings.Contains(svg, `width="24" height="32"`) {
		t.Error("unexpected dimensions")
	}
	if !strings.Contains(svg, `cx="22.0" cy="30.0"`) {
		t.Errorf("dot at (5, 7) misplaced:\n%s", svg)
	}
}
