package report

import (
	"fmt"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"senneval/eval"
	"senneval/util"
)

var (
	colorBlue   = drawing.Color{R: 0, G: 116, B: 217, A: 255}
	colorPurple = drawing.Color{R: 128, G: 0, B: 128, A: 255}
	colorPink   = drawing.Color{R: 255, G: 105, B: 180, A: 255}
)

// StabilityChart renders mean distance vs noise scale for both variants,
// each with dashed ±1 std boundary lines, to a PNG at path.
func StabilityChart(res eval.SweepResult, path string) error {
	raw := res.Summarize(false)
	combined := res.Summarize(true)

	graph := chart.Chart{
		Title:  "Stability",
		Width:  800,
		Height: 500,
		XAxis:  chart.XAxis{Name: "Added noise"},
		YAxis:  chart.YAxis{Name: "Norm of relevance coefficients"},
		Series: append(
			curveSeries(res.Scales, raw, "theta(x)", colorBlue),
			curveSeries(res.Scales, combined, "theta(x)^T h(x)", colorPurple)...,
		),
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return renderPNG(&graph, path)
}

func curveSeries(scales []float64, c eval.Curve, name string, col drawing.Color) []chart.Series {
	upper := make([]float64, len(c.Means))
	lower := make([]float64, len(c.Means))
	for i := range c.Means {
		upper[i] = c.Means[i] + c.Stds[i]
		lower[i] = c.Means[i] - c.Stds[i]
	}
	bandStyle := chart.Style{
		StrokeColor:     col.WithAlpha(90),
		StrokeWidth:     1,
		StrokeDashArray: []float64{4, 4},
	}
	return []chart.Series{
		chart.ContinuousSeries{
			Name:    name,
			XValues: scales,
			YValues: c.Means,
			Style:   chart.Style{StrokeColor: col, StrokeWidth: 2},
		},
		chart.ContinuousSeries{XValues: scales, YValues: upper, Style: bandStyle},
		chart.ContinuousSeries{XValues: scales, YValues: lower, Style: bandStyle},
	}
}

// HistogramChart renders the pooled-value distribution as a bar chart.
func HistogramChart(h eval.Histogram, path string) error {
	var title string
	var col drawing.Color
	switch h.Kind {
	case eval.HistH:
		title = "Concept values h(x)"
		col = colorBlue
	case eval.HistTheta:
		title = "Theta values"
		col = colorPink
	case eval.HistProduct:
		title = "Theta(x)^T h(x) values"
		col = colorPurple
	default:
		return fmt.Errorf("unrecognized histogram kind %q", h.Kind)
	}

	bars := make([]chart.Value, len(h.Counts))
	for i, count := range h.Counts {
		center := (h.Dividers[i] + h.Dividers[i+1]) / 2
		bars[i] = chart.Value{
			Value: count,
			Label: fmt.Sprintf("%.2f", center),
			Style: chart.Style{FillColor: col, StrokeColor: col},
		}
	}

	graph := chart.BarChart{
		Title:    title,
		Width:    900,
		Height:   500,
		BarWidth: 30,
		Bars:     bars,
	}
	return renderBarPNG(&graph, path)
}

func renderPNG(graph *chart.Chart, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()
	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("render chart %s: %w", path, err)
	}
	util.Logger.Infof("wrote chart %s", path)
	return nil
}

func renderBarPNG(graph *chart.BarChart, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()
	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("render chart %s: %w", path, err)
	}
	util.Logger.Infof("wrote chart %s", path)
	return nil
}
