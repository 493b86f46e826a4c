package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/ldpcsim/internal/sim"
	"github.com/san-kum/ldpcsim/internal/viz"
)

func TestCanvasToSVG(t *testing.T) {
	c := viz.NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)

	svg := CanvasToSVG(c, 4)
	if n := strings.Count(svg, "<circle"); n != 2 {
		t.Errorf("expected 2 dots, got %d", n)
	}
	if !strings.Contains(svg, `width="16" height="16"`) {
		t.Error("unexpected dimensions")
	}
	if CanvasToSVG(nil, 1) != "" {
		t.Error("nil canvas should give empty output")
	}
}

func TestSweepToSVG(t *testing.T) {
	points := []sim.SweepPoint{
		{Injected: 0, BER: 0},
		{Injected: 8, BER: 1e-3},
		{Injected: 32, BER: 1e-1},
	}
	ber := func(p sim.SweepPoint) float64 { return p.BER }

	for _, logY := range []bool{false, true} {
		svg := SweepToSVG(points, ber, 300, 200, logY)
		if !strings.Contains(svg, "<path") || strings.Count(svg, "<circle") != 3 {
			t.Errorf("logY=%v: missing path or markers", logY)
		}
		if strings.Contains(svg, "NaN") || strings.Contains(svg, "Inf") {
			t.Errorf("logY=%v: non-finite coordinates", logY)
		}
	}
	if SweepToSVG(nil, ber, 300, 200, false) != "" {
		t.Error("empty sweep should give empty output")
	}
}

func TestWriteFile(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFile("-", &buf, "<svg/>"); err != nil || buf.String() != "<svg/>" {
		t.Errorf("stdout write failed: %v %q", err, buf.String())
	}

	path := filepath.Join(t.TempDir(), "out.svg")
	if err := WriteFile(path, nil, "<svg/>"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "<svg/>" {
		t.Errorf("unexpected file content %q", data)
	}
}
