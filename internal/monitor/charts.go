package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/marpa/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// RenderTrackChart writes an HTML scatter chart with one series per track.
func RenderTrackChart(tracks []Track, subtitle string) ([]byte, error) {
	pad := 100.0
	for _, t := range tracks {
		for _, p := range t.Points {
			pad = math.Max(pad, math.Max(math.Abs(p.North), math.Abs(p.East))*1.1)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracks", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Reported tracks", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "East (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "North (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("own ship", []opts.ScatterData{{Value: []interface{}{0, 0}, Symbol: "diamond", SymbolSize: 12}})
	for _, t := range tracks {
		data := make([]opts.ScatterData, 0, len(t.Points))
		for _, p := range t.Points {
			data = append(data, opts.ScatterData{Value: []interface{}{p.East, p.North, p.SpeedKn}})
		}
		scatter.AddSeries(t.Name(), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// AttachAdminRoutes mounts the track chart and plot on the debug mux.
func (rec *TrackRecorder) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("tracks", "Reported tracks chart", func(w http.ResponseWriter, r *http.Request) {
		tracks := rec.Tracks()
		page, err := RenderTrackChart(tracks, fmt.Sprintf("tracks=%d active=%d", len(tracks), len(rec.Active())))
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})

	debug.HandleFunc("tracks.png", "Reported tracks plot", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := WriteTrackPlot(&buf, rec.Tracks(), "Reported tracks"); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	})
}
