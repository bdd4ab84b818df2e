package monitor

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"

	"github.com/banshee-data/snapshot/internal/fsutil"
	"github.com/banshee-data/snapshot/internal/security"
	"github.com/banshee-data/snapshot/internal/snapshot"
)

// ArtifactWriter is a post-processing step that saves the plot and chart
// of each published snapshot under Dir.
type ArtifactWriter struct {
	FS  fsutil.FileSystem
	Dir string
	PNG bool
	// HTML writes the echarts page.
	HTML bool
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger

	mu      sync.Mutex
	written []string
}

// NewArtifactWriter creates a writer using the OS filesystem.
func NewArtifactWriter(dir string, png, html bool, logger *log.Logger) *ArtifactWriter {
	return &ArtifactWriter{FS: fsutil.OSFileSystem{}, Dir: dir, PNG: png, HTML: html, Logger: logger}
}

func (a *ArtifactWriter) logf(format string, v ...interface{}) {
	if a.Logger != nil {
		a.Logger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// Process implements filemanager.Step. Failures are logged; the published
// output is never affected.
func (a *ArtifactWriter) Process(d *snapshot.SnapshotData) {
	if d == nil || d.Output() == nil || (!a.PNG && !a.HTML) {
		return
	}
	if err := a.FS.MkdirAll(a.Dir, 0o755); err != nil {
		a.logf("[Artifacts] create %s: %v", a.Dir, err)
		return
	}
	if a.PNG {
		a.save(d, "png", RenderPlotPNG)
	}
	if a.HTML {
		a.save(d, "html", RenderChartHTML)
	}
}

func (a *ArtifactWriter) save(d *snapshot.SnapshotData, ext string, render func(io.Writer, *snapshot.SnapshotData) error) {
	var buf bytes.Buffer
	if err := render(&buf, d); err != nil {
		a.logf("[Artifacts] render %s: %v", ext, err)
		return
	}
	path := filepath.Join(a.Dir, security.SnapshotFilename(d.IDA, d.IDB, d.Epoch, ext))
	if err := a.FS.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		a.logf("[Artifacts] write %s: %v", path, err)
		return
	}

	a.mu.Lock()
	a.written = append(a.written, path)
	a.mu.Unlock()
	a.logf("[Artifacts] wrote %s (%d bytes)", path, buf.Len())
}

// Written returns the paths saved so far.
func (a *ArtifactWriter) Written() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.written...)
}

// String describes the writer's configuration.
func (a *ArtifactWriter) String() string {
	return fmt.Sprintf("artifacts(dir=%s png=%v html=%v)", a.Dir, a.PNG, a.HTML)
}
