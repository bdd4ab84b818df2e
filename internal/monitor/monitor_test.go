package monitor

import (
	"bytes"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/fsutil"
	"github.com/banshee-data/snapshot/internal/snapshot"
	"github.com/banshee-data/snapshot/internal/states"
)

var quiet = log.New(io.Discard, "", 0)

// unpublished builds a 4x4 snapshot whose B samples sit 0.5, 0.7, 0.9 and
// 1.1 km from A along the N axis.
func unpublished() *snapshot.SnapshotData {
	g := states.EpochGroup{Epoch: 2460000.5, IDA: 101, IDB: 202}
	vel := r3.Vec{Y: 7.5}
	for i := 0; i < 4; i++ {
		g.A = append(g.A, states.State{ObjectID: 101, SampleIndex: int32(i), Epoch: g.Epoch, Position: r3.Vec{X: 7000}, Velocity: vel})
		g.B = append(g.B, states.State{ObjectID: 202, SampleIndex: int32(i), Epoch: g.Epoch, Position: r3.Vec{X: 7000, Z: 0.5 + 0.2*float64(i)}, Velocity: vel})
	}
	return snapshot.New(g)
}

func published(t *testing.T, allToAll bool) *snapshot.SnapshotData {
	t.Helper()
	d := unpublished()
	u := conjunction.NewUnitOfWork(d, conjunction.Options{
		AllToAll: allToAll,
		HBR:      0.6,
		Binning:  conjunction.BinningParams{BinCount: 1000, InitialMultiplier: 1.5, MaxTries: 5},
		Logger:   quiet,
	})
	_, err := u.CalcDiffs()
	require.NoError(t, err)
	_, err = u.CalcOutputs()
	require.NoError(t, err)
	_, err = u.Commit("run-1")
	require.NoError(t, err)
	return d
}

func TestHUDLines(t *testing.T) {
	assert.Nil(t, HUDLines(nil))
	assert.Nil(t, HUDLines(unpublished()))

	want := []string{
		"Snapshot",
		"@ 2460000.5",
		"Pc = 2.5e-01",
		"101 (Origin) 202",
		"Samples: 4 x 4",
		"Mode: One-to-One",
		"Min miss: 0.500 km (HBR 0.6 km)",
	}
	assert.Equal(t, want, HUDLines(published(t, false)))

	lines := HUDLines(published(t, true))
	require.Len(t, lines, 7)
	assert.Equal(t, "Mode: All-to-All (1000 bins)", lines[5])
}

func TestHUD_Process(t *testing.T) {
	var buf bytes.Buffer
	h := NewHUD(log.New(&buf, "", 0))
	assert.Empty(t, h.Lines())

	h.Process(published(t, false))
	assert.Equal(t, "Pc = 2.5e-01", h.Lines()[2])
	assert.Contains(t, buf.String(), "[HUD] @ 2460000.5 | Pc = 2.5e-01 | 101 (Origin) 202")

	lines := h.Lines()
	lines[0] = "mutated"
	assert.Equal(t, "Snapshot", h.Lines()[0], "Lines must return a copy")
}

func TestRenderPlotPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPlotPNG(&buf, published(t, false)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")), "output is not a PNG")

	err := RenderPlotPNG(io.Discard, unpublished())
	assert.True(t, errors.Is(err, ErrNoOutput))
}

func TestRenderChartHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderChartHTML(&buf, published(t, true)))

	html := buf.String()
	assert.Contains(t, html, "<html")
	for _, want := range []string{"V (km) / N (km)", "V (km) / B (km)", "N (km) / B (km)", hexColor(hitRGB), hexColor(missRGB)} {
		assert.Contains(t, html, want)
	}

	assert.ErrorIs(t, RenderChartHTML(io.Discard, unpublished()), ErrNoOutput)
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#ff4040", hexColor([3]uint8{255, 64, 64}))
	assert.Equal(t, "#000000", hexColor([3]uint8{}))
}

func TestArtifactWriter(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	aw := NewArtifactWriter("/out", true, true, quiet)
	aw.FS = mfs

	aw.Process(unpublished())
	assert.Empty(t, aw.Written(), "nothing to write before publish")

	aw.Process(published(t, false))
	want := []string{
		filepath.Join("/out", "snapshot_101_202_t2460000.5.png"),
		filepath.Join("/out", "snapshot_101_202_t2460000.5.html"),
	}
	assert.Equal(t, want, aw.Written())

	png, err := mfs.ReadFile(want[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	page, err := mfs.ReadFile(want[1])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(page), "echarts"))
}

func TestArtifactWriter_Disabled(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	aw := &ArtifactWriter{FS: mfs, Dir: "/out", Logger: quiet}
	aw.Process(published(t, false))
	assert.Empty(t, aw.Written())
	assert.Empty(t, mfs.Files())
	assert.Equal(t, "artifacts(dir=/out png=false html=false)", aw.String())
}
