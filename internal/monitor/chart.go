package monitor

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/snapshot"
)

// echartsAssetsHost serves the echarts JavaScript bundle.
var echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// MaxChartPoints bounds the vertices written per projection.
const MaxChartPoints = 20000

var (
	hitRGB  = conjunction.HitColor
	missRGB = conjunction.MissColor
)

func isHit(v snapshot.Vertex) bool { return v.Color == hitRGB }

func hexColor(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

func formatEpoch(e float64) string {
	return strconv.FormatFloat(e, 'f', -1, 64)
}

// RenderChartHTML writes an HTML page with one scatter per VNB projection.
// Point values carry the vertex weight as the third dimension.
func RenderChartHTML(w io.Writer, d *snapshot.SnapshotData) error {
	out := d.Output()
	if out == nil {
		return ErrNoOutput
	}

	stride := 1
	if len(out.Vertices) > MaxChartPoints {
		stride = int(math.Ceil(float64(len(out.Vertices)) / float64(MaxChartPoints)))
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)

	for _, pr := range projections {
		var hits, misses []opts.ScatterData
		maxAbs := out.HBR
		for i := 0; i < len(out.Vertices); i += stride {
			v := out.Vertices[i]
			x, y := float64(v.Position[pr.x]), float64(v.Position[pr.y])
			maxAbs = math.Max(maxAbs, math.Max(math.Abs(x), math.Abs(y)))
			pt := opts.ScatterData{Value: []interface{}{x, y, v.Weight}}
			if isHit(v) {
				hits = append(hits, pt)
			} else {
				misses = append(misses, pt)
			}
		}
		pad := maxAbs * 1.05
		if pad == 0 {
			pad = 1
		}

		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "600px", Height: "600px", AssetsHost: echartsAssetsHost}),
			charts.WithTitleOpts(opts.Title{
				Title:    fmt.Sprintf("%d vs %d @ %s: %s / %s", d.IDA, d.IDB, formatEpoch(d.Epoch), pr.xLabel, pr.yLabel),
				Subtitle: fmt.Sprintf("Pc=%.1e points=%d stride=%d", out.Stats.Pc, len(hits)+len(misses), stride),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: pr.xLabel, NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: pr.yLabel, NameLocation: "middle", NameGap: 30}),
		)
		scatter.AddSeries("miss", misses,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(missRGB)}),
		)
		scatter.AddSeries("hit", hits,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(hitRGB)}),
		)
		page.AddCharts(scatter)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
