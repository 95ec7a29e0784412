package report

import (
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/losocv/metrics"
	"github.com/YuminosukeSato/losocv/pkg/errors"
)

// confusionGrid exposes a confusion matrix as a plotter.GridXYZ. Grid row 0
// is drawn at the bottom, so matrix rows are flipped to put the first true
// label at the top.
type confusionGrid struct {
	m *mat.Dense
}

func (g confusionGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g confusionGrid) Z(c, r int) float64 {
	n, _ := g.m.Dims()
	return g.m.At(n-1-r, c)
}

func (g confusionGrid) X(c int) float64 { return float64(c) }

func (g confusionGrid) Y(r int) float64 { return float64(r) }

// ConfusionPlot builds the heat map of cm with the count of every cell
// printed at its center.
func ConfusionPlot(cm *metrics.ConfusionMatrix) (*plot.Plot, error) {
	labels := cm.Labels()
	n := len(labels)
	if n == 0 {
		return nil, errors.NewValueError("ConfusionPlot", "confusion matrix has no labels")
	}
	grid := confusionGrid{m: cm.Matrix()}

	p := plot.New()
	p.Title.Text = "Aggregate confusion matrix (LOSO)"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True label"

	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	xTicks := make([]plot.Tick, n)
	yTicks := make([]plot.Tick, n)
	for i, l := range labels {
		xTicks[i] = plot.Tick{Value: float64(i), Label: strconv.Itoa(l)}
		yTicks[i] = plot.Tick{Value: float64(n - 1 - i), Label: strconv.Itoa(l)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)

	xys := make(plotter.XYs, 0, n*n)
	counts := make([]string, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			xys = append(xys, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			counts = append(counts, strconv.Itoa(int(grid.Z(c, r))))
		}
	}
	annotations, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: counts})
	if err != nil {
		return nil, errors.Wrap(err, "annotating confusion matrix")
	}
	for i := range annotations.TextStyle {
		annotations.TextStyle[i].XAlign = text.XCenter
		annotations.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(annotations)
	return p, nil
}

// RenderConfusionMatrix saves the heat map of cm as a PNG.
func RenderConfusionMatrix(path string, cm *metrics.ConfusionMatrix) error {
	p, err := ConfusionPlot(cm)
	if err != nil {
		return err
	}
	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	return nil
}
