package monitor

import (
	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/filemanager"
	"github.com/banshee-data/snapshot/internal/snapshot"
)

// EpochRequest selects an epoch by absolute index or by a relative step.
// Exactly one of Index and Delta must be set.
type EpochRequest struct {
	Index *uint32 `json:"index,omitempty"`
	Delta *int    `json:"delta,omitempty"`
}

// HBRRequest sets the hard-body radius in km.
type HBRRequest struct {
	HBR float64 `json:"hbr"`
}

// ModeRequest switches between one-to-one and all-to-all.
type ModeRequest struct {
	AllToAll bool `json:"all_to_all"`
}

// BinningRequest replaces the all-to-all binning parameters.
type BinningRequest struct {
	BinCount          uint32  `json:"bin_count"`
	InitialMultiplier float64 `json:"initial_multiplier"`
	MaxTries          uint32  `json:"max_tries"`
}

// Params converts the request to conjunction parameters.
func (b BinningRequest) Params() conjunction.BinningParams {
	return conjunction.BinningParams{
		BinCount:          b.BinCount,
		InitialMultiplier: b.InitialMultiplier,
		MaxTries:          b.MaxTries,
	}
}

// FilesRequest replaces the input file list.
type FilesRequest struct {
	Files []string `json:"files"`
}

// EpochsResponse lists the loaded epochs.
type EpochsResponse struct {
	Epochs []float64 `json:"epochs"`
	Index  uint32    `json:"index"`
}

// AckResponse acknowledges an accepted request. The recompute it triggers
// runs asynchronously.
type AckResponse struct {
	Status string `json:"status"`
	Index  uint32 `json:"index,omitempty"`
}

// Summary describes the published output of the current snapshot.
type Summary struct {
	RunID    string        `json:"run_id"`
	Epoch    float64       `json:"epoch"`
	IDA      uint16        `json:"id_a"`
	IDB      uint16        `json:"id_b"`
	AllToAll bool          `json:"all_to_all"`
	HBR      float64       `json:"hbr"`
	Pc       float64       `json:"pc"`
	Count    uint64        `json:"count"`
	Hits     uint64        `json:"hits"`
	MinMiss  float64       `json:"min_miss_km"`
	MaxMiss  float64       `json:"max_miss_km"`
	Bounds   [2][3]float32 `json:"bounds"`
	Vertices int           `json:"vertices"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status   string               `json:"status"`
	Running  bool                 `json:"running"`
	Settings filemanager.Settings `json:"settings"`
	Current  *Summary             `json:"current,omitempty"`
	HUD      []string             `json:"hud,omitempty"`
}

// Summarize returns nil when d has nothing published.
func Summarize(d *snapshot.SnapshotData) *Summary {
	if d == nil {
		return nil
	}
	out := d.Output()
	if out == nil {
		return nil
	}
	return &Summary{
		RunID:    out.RunID,
		Epoch:    d.Epoch,
		IDA:      d.IDA,
		IDB:      d.IDB,
		AllToAll: out.AllToAll,
		HBR:      out.HBR,
		Pc:       out.Stats.Pc,
		Count:    out.Stats.Count,
		Hits:     out.Stats.Hits,
		MinMiss:  out.Stats.MinMissDistance(),
		MaxMiss:  out.Stats.MaxMissDistance(),
		Bounds:   [2][3]float32{out.Stats.Bounds.Min, out.Stats.Bounds.Max},
		Vertices: len(out.Vertices),
	}
}
