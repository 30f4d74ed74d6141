// Package render draws an inspect.Sample to a PNG file.
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/zonca/cloudbank-showcase/internal/inspect"
)

const (
	scatterWidth  = 9 * vg.Inch
	scatterHeight = 6 * vg.Inch
	seriesWidth   = 8 * vg.Inch
	seriesHeight  = 4 * vg.Inch
	colorBarWidth = 1.1 * vg.Inch
)

// Save renders s and writes it as a PNG to output, creating parent directories.
func Save(s inspect.Sample, output string) error {
	var (
		img *vgimg.Canvas
		err error
	)
	switch s.Kind {
	case inspect.Scatter:
		img, err = drawScatter(s)
	default:
		img, err = drawSeries(s)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", s.Variable, err)
	}

	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	return f.Close()
}

func drawScatter(s inspect.Sample) (*vgimg.Canvas, error) {
	xys := make(plotter.XYs, 0, s.N())
	zs := make([]float64, 0, s.N())
	for i, v := range s.Values {
		if !finite(v) || !finite(s.Lon[i]) || !finite(s.Lat[i]) {
			continue
		}
		xys = append(xys, plotter.XY{X: s.Lon[i], Y: s.Lat[i]})
		zs = append(zs, v)
	}

	lo, hi := valueRange(zs)
	cmap := moreland.ExtendedBlackBody()
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (first %d points)", s.Variable, s.N())
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	if len(xys) > 0 {
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{
				Color:  colorAt(cmap, zs[i]),
				Radius: vg.Points(1),
				Shape:  draw.CircleGlyph{},
			}
		}
		p.Add(sc)
	}

	bar := plot.New()
	bar.HideX()
	bar.Y.Label.Text = s.Variable
	bar.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})

	img := vgimg.New(scatterWidth, scatterHeight)
	dc := draw.New(img)

	area := dc
	area.Max.X = dc.Max.X - colorBarWidth
	side := dc
	side.Min.X = area.Max.X

	p.Draw(area)
	bar.Draw(side)
	return img, nil
}

func drawSeries(s inspect.Sample) (*vgimg.Canvas, error) {
	xys := make(plotter.XYs, 0, s.N())
	for i, v := range s.Values {
		if finite(v) {
			xys = append(xys, plotter.XY{X: float64(i), Y: v})
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Sample of '%s'", s.Variable)
	p.X.Label.Text = "index"
	p.Y.Label.Text = s.Variable

	if len(xys) > 0 {
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, err
		}
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(1.5)
		p.Add(line, points, plotter.NewGrid())
	}

	img := vgimg.New(seriesWidth, seriesHeight)
	p.Draw(draw.New(img))
	return img, nil
}

func valueRange(vs []float64) (float64, float64) {
	if len(vs) == 0 {
		return 0, 1
	}
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

func colorAt(cmap palette.ColorMap, v float64) color.Color {
	c, err := cmap.At(v)
	if err != nil {
		return color.Gray{Y: 128}
	}
	return c
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
