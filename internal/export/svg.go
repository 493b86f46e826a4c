package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/san-kum/ldpcsim/internal/sim"
	"github.com/san-kum/ldpcsim/internal/viz"
)

// CanvasToSVG converts a Braille canvas, such as viz.MatrixCanvas draws, to
// SVG with one dot per lit sub-pixel.
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
<g fill="%s">
`, width, height, width, height, viz.CurrentTheme.Secondary)

	pixelMap := [4][2]int{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}
	dotRadius := scale * 0.4

	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			pattern := int(canvas.Grid[row][col] - 0x2800)
			if pattern <= 0 {
				continue
			}
			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] != 0 {
						fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
							baseX+float64(dx)*scale+scale/2, baseY+float64(dy)*scale+scale/2, dotRadius)
					}
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// SweepToSVG draws metric against injected errors. With logY the y axis is
// log10 and zero values sit on the floor of the axis.
func SweepToSVG(points []sim.SweepPoint, metric func(sim.SweepPoint) float64, width, height int, logY bool) string {
	if len(points) == 0 {
		return ""
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.Injected)
		ys[i] = metric(p)
	}
	if logY {
		floor := math.Inf(1)
		for _, y := range ys {
			if y > 0 && y < floor {
				floor = y
			}
		}
		if math.IsInf(floor, 1) {
			floor = 1
		}
		floor = math.Log10(floor) - 1
		for i, y := range ys {
			if y > 0 {
				ys[i] = math.Log10(y)
			} else {
				ys[i] = floor
			}
		}
	}

	minX, maxX := bounds(xs)
	minY, maxY := bounds(ys)
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	const pad = 0.08
	minX -= rangeX * pad
	minY -= rangeY * pad
	rangeX *= 1 + 2*pad
	rangeY *= 1 + 2*pad

	project := func(i int) (float64, float64) {
		x := (xs[i] - minX) / rangeX * float64(width)
		y := float64(height) - (ys[i]-minY)/rangeY*float64(height)
		return x, y
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, viz.CurrentTheme.Primary)

	for i := range points {
		x, y := project(i)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")

	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", viz.CurrentTheme.Accent)
	for i := range points {
		x, y := project(i)
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"3\"><title>k=%d</title></circle>\n",
			x, y, points[i].Injected)
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

func bounds(v []float64) (lo, hi float64) {
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

// WriteFile writes svg to path, or to w when path is "-".
func WriteFile(path string, w io.Writer, svg string) error {
	if path == "-" {
		_, err := io.WriteString(w, svg)
		return err
	}
	return os.WriteFile(path, []byte(svg), 0644)
}
