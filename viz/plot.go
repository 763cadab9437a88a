package viz

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Curve is a named series of per-epoch values.
type Curve struct {
	Name   string
	Values []float64
}

// PlotCurves saves line chart of curves against epoch number.
func PlotCurves(title, yLabel string, curves []Curve, filename string) error {
	if len(curves) == 0 {
		return fmt.Errorf("No curve to plot")
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = yLabel

	var lines []interface{}
	for _, c := range curves {
		pts := make(plotter.XYs, len(c.Values))
		for i, v := range c.Values {
			pts[i].X = float64(i + 1)
			pts[i].Y = v
		}
		lines = append(lines, c.Name, pts)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return err
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
