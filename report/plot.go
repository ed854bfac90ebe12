package report

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/pkg/log"
)

// Series is one data split drawn on the predictions plot.
type Series struct {
	Name      string
	Actual    mat.Matrix
	Predicted mat.Matrix
}

var seriesColors = []color.RGBA{
	{R: 20, G: 80, B: 200, A: 220},
	{R: 200, G: 30, B: 30, A: 220},
	{R: 40, G: 140, B: 40, A: 220},
}

// PlotPredictions renders a predicted-vs-actual scatter per series with the
// y = x reference line and saves it as PNG. An empty path is a no-op.
func PlotPredictions(path string, series ...Series) error {
	if path == "" {
		return nil
	}
	if len(series) == 0 {
		return errors.NewValueError("report.PlotPredictions", "no series to plot")
	}

	p := plot.New()
	p.Title.Text = "Present_Price: predicted vs actual"
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"
	p.Add(plotter.NewGrid())

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, s := range series {
		xys, err := toXYs(s)
		if err != nil {
			return err
		}
		for _, pt := range xys {
			lo = math.Min(lo, math.Min(pt.X, pt.Y))
			hi = math.Max(hi, math.Max(pt.X, pt.Y))
		}

		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return errors.Wrapf(err, "failed to build %s scatter", s.Name)
		}
		sc.GlyphStyle.Color = seriesColors[i%len(seriesColors)]
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add(s.Name, sc)
	}

	if lo < hi {
		ref, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
		if err != nil {
			return errors.Wrap(err, "failed to build reference line")
		}
		ref.Color = color.RGBA{R: 120, G: 120, B: 120, A: 180}
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(ref)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}

	log.GetLoggerWithName("report").Info("Wrote prediction plot", log.PathKey, path)
	return nil
}

func toXYs(s Series) (plotter.XYs, error) {
	n, _ := s.Actual.Dims()
	m, _ := s.Predicted.Dims()
	if n != m {
		return nil, errors.NewDimensionError("report.PlotPredictions", n, m, 0)
	}
	xys := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		xys[i].X = s.Actual.At(i, 0)
		xys[i].Y = s.Predicted.At(i, 0)
	}
	return xys, nil
}
