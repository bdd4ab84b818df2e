package monitor

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/snapshot/internal/snapshot"
)

// ErrNoOutput is returned by the renderers when a snapshot has nothing
// published yet.
var ErrNoOutput = errors.New("snapshot has no published output")

// projection names two VNB axes drawn against each other.
type projection struct {
	x, y   int
	xLabel string
	yLabel string
}

var projections = []projection{
	{x: 0, y: 1, xLabel: "V (km)", yLabel: "N (km)"},
	{x: 0, y: 2, xLabel: "V (km)", yLabel: "B (km)"},
	{x: 1, y: 2, xLabel: "N (km)", yLabel: "B (km)"},
}

// Plot sizes for the PNG output.
const (
	PlotTileWidth = 6 * vg.Inch
	PlotHeight    = 6 * vg.Inch
	circleSegs    = 96
)

// RenderPlotPNG draws the V-N, V-B and N-B projections of the published
// vertices side by side, each with the hard-body circle, and writes a PNG.
func RenderPlotPNG(w io.Writer, d *snapshot.SnapshotData) error {
	out := d.Output()
	if out == nil {
		return ErrNoOutput
	}

	row := make([]*plot.Plot, len(projections))
	for i, pr := range projections {
		p, err := projectionPlot(d, out, pr)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", pr.xLabel, pr.yLabel, err)
		}
		row[i] = p
	}

	img := vgimg.New(vg.Length(len(row))*PlotTileWidth, PlotHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(row),
		PadX: vg.Millimeter * 4,
		PadY: vg.Millimeter * 4,
	}
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for i, p := range row {
		p.Draw(canvases[0][i])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func projectionPlot(d *snapshot.SnapshotData, out *snapshot.Output, pr projection) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d vs %d @ %s", d.IDA, d.IDB, formatEpoch(d.Epoch))
	p.X.Label.Text = pr.xLabel
	p.Y.Label.Text = pr.yLabel

	var hits, misses plotter.XYs
	for _, v := range out.Vertices {
		pt := plotter.XY{X: float64(v.Position[pr.x]), Y: float64(v.Position[pr.y])}
		if isHit(v) {
			hits = append(hits, pt)
		} else {
			misses = append(misses, pt)
		}
	}

	for _, series := range []struct {
		name string
		pts  plotter.XYs
		rgb  [3]uint8
	}{
		{"miss", misses, missRGB},
		{"hit", hits, hitRGB},
	} {
		if len(series.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(series.pts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = color.RGBA{R: series.rgb[0], G: series.rgb[1], B: series.rgb[2], A: 255}
		s.GlyphStyle.Radius = vg.Points(1.5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(series.name, s)
	}

	if out.HBR > 0 {
		ring := make(plotter.XYs, circleSegs+1)
		for i := range ring {
			theta := 2 * math.Pi * float64(i) / circleSegs
			ring[i] = plotter.XY{X: out.HBR * math.Cos(theta), Y: out.HBR * math.Sin(theta)}
		}
		l, err := plotter.NewLine(ring)
		if err != nil {
			return nil, err
		}
		l.Color = color.Black
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("HBR %g km", out.HBR), l)
	}

	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
