// Package monitor provides the consumers of published snapshots: the HUD
// text, PNG plots, HTML charts, and the HTTP control surface.
package monitor

import (
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/banshee-data/snapshot/internal/snapshot"
)

// HUD keeps the heads-up text for the most recently published snapshot.
type HUD struct {
	mu     sync.RWMutex
	lines  []string
	logger *log.Logger
}

// NewHUD creates a HUD. If logger is nil the HUD does not log its lines.
func NewHUD(logger *log.Logger) *HUD {
	return &HUD{logger: logger}
}

// Process implements filemanager.Step.
func (h *HUD) Process(d *snapshot.SnapshotData) {
	lines := HUDLines(d)

	h.mu.Lock()
	h.lines = lines
	h.mu.Unlock()

	if h.logger != nil && len(lines) > 0 {
		h.logger.Printf("[HUD] %s | %s | %s", lines[1], lines[2], lines[3])
	}
}

// Lines returns a copy of the current HUD text.
func (h *HUD) Lines() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.lines...)
}

// HUDLines renders the HUD for d. It returns nil when d has no published
// output.
func HUDLines(d *snapshot.SnapshotData) []string {
	if d == nil {
		return nil
	}
	out := d.Output()
	if out == nil {
		return nil
	}

	mode := "One-to-One"
	if out.AllToAll {
		mode = fmt.Sprintf("All-to-All (%d bins)", out.Binning.BinCount)
	}
	return []string{
		"Snapshot",
		"@ " + strconv.FormatFloat(d.Epoch, 'f', -1, 64),
		fmt.Sprintf("Pc = %.1e", out.Stats.Pc),
		fmt.Sprintf("%d (Origin) %d", d.IDA, d.IDB),
		fmt.Sprintf("Samples: %d x %d", d.SamplesA(), d.SamplesB()),
		"Mode: " + mode,
		fmt.Sprintf("Min miss: %.3f km (HBR %g km)", out.Stats.MinMissDistance(), out.HBR),
	}
}
