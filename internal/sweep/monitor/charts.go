package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kestrel-data/sweepfeatures/internal/sweep"
)

// handleFeatureScatter renders a top-down scatter (HTML) of the latest
// sweep's feature points using go-echarts. Debugging-only endpoint (no
// auth) for eyeballing feature selection without the downstream stack.
func (ws *WebServer) handleFeatureScatter(w http.ResponseWriter, r *http.Request) {
	sw, feats, summary, ok := ws.latestSweep()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no sweep processed yet")
		return
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Sweep Features (Top-Down)", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Sweep Feature Selection",
			Subtitle: fmt.Sprintf("sweep=%s compensated=%t degraded=%d", sw.ID, summary.Compensated, summary.DegradedPoints),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	series := []struct {
		name   string
		points []sweep.ScanPoint
		size   int
	}{
		{"sharp", feats.Sharp, 8},
		{"less-sharp", feats.LessSharp, 5},
		{"flat", feats.Flat, 6},
		{"less-flat", feats.LessFlat, 3},
	}
	for _, s := range series {
		data := make([]opts.ScatterData, 0, len(s.points))
		for _, p := range s.points {
			data = append(data, opts.ScatterData{Value: []interface{}{p.Position.X, p.Position.Y}})
		}
		scatter.AddSeries(s.name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: s.size}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleCurvatureProfile renders a PNG line plot of per-point curvature
// along one ring of the latest sweep.
// Query params: ring (optional, default 0).
func (ws *WebServer) handleCurvatureProfile(w http.ResponseWriter, r *http.Request) {
	sw, _, _, ok := ws.latestSweep()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no sweep processed yet")
		return
	}

	ring := 0
	if q := r.URL.Query().Get("ring"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v >= 0 && v < sweep.NumRings {
			ring = v
		}
	}
	points := sw.Rings[ring]
	if len(points) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("ring %d is empty", ring))
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Curvature profile: sweep %s ring %d", sw.ID, ring)
	p.X.Label.Text = "point index"
	p.Y.Label.Text = "curvature"

	pts := make(plotter.XYs, 0, len(points))
	for i, sp := range points {
		if sp.Curvature < 0 {
			continue // boundary points have no curvature
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: sp.Curvature})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build line: %v", err))
		return
	}
	line.Width = vg.Points(1)
	p.Add(line)

	writer, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := writer.WriteTo(w); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to write plot: %v", err))
	}
}
