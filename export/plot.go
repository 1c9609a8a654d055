package export

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var (
	PlotWidth  = 6 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

type Series struct {
	Name string
	X, Y []float64
}

func plotFilename(name string) string {
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	return name
}

// PlotProfile draws line series against a shared axis pair
func PlotProfile(filename, title, xLabel, yLabel string, series ...Series) (err error) {
	var (
		p = plot.New()
	)
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	for i, s := range series {
		if len(s.X) != len(s.Y) {
			return fmt.Errorf("series %s has %d x and %d y values", s.Name, len(s.X), len(s.Y))
		}
		pts := make(plotter.XYs, len(s.X))
		for j := range s.X {
			pts[j].X, pts[j].Y = s.X[j], s.Y[j]
		}
		var l *plotter.Line
		if l, err = plotter.NewLine(pts); err != nil {
			return
		}
		l.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(s.Name, l)
	}
	return p.Save(PlotWidth, PlotHeight, plotFilename(filename))
}

type gridXYZ struct {
	x, y, z []float64
}

func (g gridXYZ) Dims() (c, r int)   { return len(g.x), len(g.y) }
func (g gridXYZ) Z(c, r int) float64 { return g.z[c+r*len(g.x)] }
func (g gridXYZ) X(c int) float64    { return g.x[c] }
func (g gridXYZ) Y(r int) float64    { return g.y[r] }

// PlotHeatMap draws a 2D field stored x fastest over the axis coordinates x, y
func PlotHeatMap(filename, title string, x, y, z []float64) (err error) {
	var (
		p = plot.New()
	)
	if len(z) != len(x)*len(y) {
		return fmt.Errorf("field has %d values for a %d by %d grid", len(z), len(x), len(y))
	}
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	hm := plotter.NewHeatMap(gridXYZ{x, y, z}, palette.Heat(32, 1))
	p.Add(hm)
	return p.Save(PlotWidth, PlotHeight, plotFilename(filename))
}
