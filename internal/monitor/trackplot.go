package monitor

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const plotSize = 8 * vg.Inch

// PlotTracks draws every track as a line with its reported positions marked.
// Own ship sits at the origin.
func PlotTracks(tracks []Track, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "East (m)"
	p.Y.Label.Text = "North (m)"
	p.Add(plotter.NewGrid())

	own, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err != nil {
		return nil, err
	}
	own.GlyphStyle.Shape = draw.CrossGlyph{}
	own.GlyphStyle.Radius = vg.Points(5)
	p.Add(own)
	p.Legend.Add("own ship", own)

	colors := generateColors(len(tracks))
	for i, t := range tracks {
		if len(t.Points) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(t.Points))
		for j, tp := range t.Points {
			pts[j] = plotter.XY{X: tp.East, Y: tp.North}
		}

		line, marks, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", t.ID, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		marks.Color = colors[i]
		marks.Shape = draw.CircleGlyph{}
		marks.Radius = vg.Points(1.5)
		p.Add(line, marks)
		p.Legend.Add(t.Name(), line, marks)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	return p, nil
}

// SaveTrackPlot writes the tracks as a PNG file.
func SaveTrackPlot(tracks []Track, title, path string) error {
	p, err := PlotTracks(tracks, title)
	if err != nil {
		return err
	}
	if err := p.Save(plotSize, plotSize, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

// WriteTrackPlot writes the tracks as PNG to w.
func WriteTrackPlot(w io.Writer, tracks []Track, title string) error {
	p, err := PlotTracks(tracks, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotSize, plotSize, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// generateColors spreads n hues around the colour wheel.
func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
