package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/filemanager"
	"github.com/banshee-data/snapshot/internal/httputil"
	"github.com/banshee-data/snapshot/internal/progress"
	"github.com/banshee-data/snapshot/internal/security"
	"github.com/banshee-data/snapshot/internal/snapshot"
)

// Controller is the orchestrator surface the web server drives.
type Controller interface {
	GetEpochs() []float64
	Current() *snapshot.SnapshotData
	Settings() filemanager.Settings
	Running() bool
	Progress() *progress.Sink

	SetEpochIndex(i uint32)
	StepEpoch(delta int) uint32
	SetHardBodyRadius(hbr float64)
	SetAllToAll(on bool)
	SetBinning(p conjunction.BinningParams)
	SetFiles(paths []string)
	Cancel()
}

// WebServer exposes the live settings and the current snapshot over HTTP.
type WebServer struct {
	address     string
	ctrl        Controller
	hud         *HUD
	allowedDirs []string
	gatherer    prometheus.Gatherer
	logger      *log.Logger
	server      *http.Server
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address    string
	Controller Controller
	// HUD is optional; when set its lines are included in /api/status.
	HUD *HUD
	// AllowedDirs bounds the paths accepted by POST /api/files. Empty
	// rejects every file change.
	AllowedDirs []string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:     config.Address,
		ctrl:        config.Controller,
		hud:         config.HUD,
		allowedDirs: append([]string(nil), config.AllowedDirs...),
		gatherer:    config.Gatherer,
		logger:      config.Logger,
	}
	if ws.gatherer == nil {
		ws.gatherer = prometheus.DefaultGatherer
	}
	if ws.logger == nil {
		ws.logger = log.Default()
	}

	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Start serves until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		ws.logger.Printf("[WebServer] listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	ws.logger.Printf("[WebServer] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		ws.logger.Printf("[WebServer] shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			ws.logger.Printf("[WebServer] force close error: %v", err)
		}
	}
	return nil
}

// Close stops the server immediately.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// Handler returns the routed handler.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/epochs", ws.handleEpochs)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/epoch", ws.handleEpoch)
	mux.HandleFunc("/api/hbr", ws.handleHBR)
	mux.HandleFunc("/api/mode", ws.handleMode)
	mux.HandleFunc("/api/binning", ws.handleBinning)
	mux.HandleFunc("/api/cancel", ws.handleCancel)
	mux.HandleFunc("/api/files", ws.handleFiles)
	mux.HandleFunc("/chart", ws.handleChart)
	mux.HandleFunc("/plot.png", ws.handlePlot)
	mux.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{}))

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (ws *WebServer) handleEpochs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	epochs := ws.ctrl.GetEpochs()
	httputil.WriteJSONOK(w, EpochsResponse{Epochs: epochs, Index: ws.ctrl.Settings().EpochIndex})
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := StatusResponse{
		Status:   ws.ctrl.Progress().Status(),
		Running:  ws.ctrl.Running(),
		Settings: ws.ctrl.Settings(),
		Current:  Summarize(ws.ctrl.Current()),
	}
	if ws.hud != nil {
		resp.HUD = ws.hud.Lines()
	}
	httputil.WriteJSONOK(w, resp)
}

func (ws *WebServer) handleEpoch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req EpochRequest
	if err := httputil.DecodeJSONBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	switch {
	case req.Index != nil && req.Delta != nil:
		httputil.BadRequest(w, "set either index or delta, not both")
	case req.Index != nil:
		ws.ctrl.SetEpochIndex(*req.Index)
		httputil.WriteJSON(w, http.StatusAccepted, AckResponse{Status: "accepted", Index: *req.Index})
	case req.Delta != nil:
		idx := ws.ctrl.StepEpoch(*req.Delta)
		httputil.WriteJSON(w, http.StatusAccepted, AckResponse{Status: "accepted", Index: idx})
	default:
		httputil.BadRequest(w, "index or delta is required")
	}
}

func (ws *WebServer) handleHBR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req HBRRequest
	if err := httputil.DecodeJSONBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if !(req.HBR > 0) || math.IsInf(req.HBR, 0) {
		httputil.BadRequest(w, "hbr must be a positive finite number of km")
		return
	}
	ws.ctrl.SetHardBodyRadius(req.HBR)
	httputil.WriteJSON(w, http.StatusAccepted, AckResponse{Status: "accepted"})
}

func (ws *WebServer) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req ModeRequest
	if err := httputil.DecodeJSONBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ws.ctrl.SetAllToAll(req.AllToAll)
	httputil.WriteJSON(w, http.StatusAccepted, AckResponse{Status: "accepted"})
}

func (ws *WebServer) handleBinning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req BinningRequest
	if err := httputil.DecodeJSONBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	switch {
	case req.BinCount == 0 || req.BinCount > conjunction.MaxBinCount:
		httputil.BadRequest(w, fmt.Sprintf("bin_count must be in [1, %d]", conjunction.MaxBinCount))
		return
	case !(req.InitialMultiplier > 0) || math.IsInf(req.InitialMultiplier, 0):
		httputil.BadRequest(w, "initial_multiplier must be a positive finite number")
		return
	case req.MaxTries == 0:
		httputil.BadRequest(w, "max_tries must be at least 1")
		return
	}
	ws.ctrl.SetBinning(req.Params())
	httputil.WriteJSON(w, http.StatusAccepted, AckResponse{Status: "accepted"})
}

func (ws *WebServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	ws.ctrl.Cancel()
	httputil.WriteJSON(w, http.StatusAccepted, AckResponse{Status: "canceled"})
}

func (ws *WebServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req FilesRequest
	if err := httputil.DecodeJSONBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := security.ValidateInputFiles(req.Files, ws.allowedDirs); err != nil {
		ws.logger.Printf("[WebServer] rejected file list: %v", err)
		httputil.WriteJSONError(w, http.StatusForbidden, err.Error())
		return
	}
	ws.ctrl.SetFiles(req.Files)
	httputil.WriteJSON(w, http.StatusAccepted, AckResponse{Status: "accepted"})
}

func (ws *WebServer) handleChart(w http.ResponseWriter, r *http.Request) {
	ws.render(w, r, "text/html; charset=utf-8", RenderChartHTML)
}

func (ws *WebServer) handlePlot(w http.ResponseWriter, r *http.Request) {
	ws.render(w, r, "image/png", RenderPlotPNG)
}

func (ws *WebServer) render(w http.ResponseWriter, r *http.Request, contentType string, fn func(w io.Writer, d *snapshot.SnapshotData) error) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	d := ws.ctrl.Current()
	if d == nil || d.Output() == nil {
		httputil.NotFound(w, "no snapshot published yet")
		return
	}

	var buf bytes.Buffer
	if err := fn(&buf, d); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render: %v", err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(buf.Bytes())
}
