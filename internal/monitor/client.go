package monitor

import (
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/httputil"
)

// Client drives a running WebServer.
type Client struct {
	HTTPClient httputil.HTTPClient
	BaseURL    string
}

// NewClient creates a client for baseURL. A nil httpClient uses a standard
// client with a 30s timeout.
func NewClient(httpClient httputil.HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(&http.Client{Timeout: 30 * time.Second})
	}
	return &Client{HTTPClient: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) url(path string) string { return c.BaseURL + path }

// Epochs lists the loaded epochs.
func (c *Client) Epochs() (EpochsResponse, error) {
	var out EpochsResponse
	err := httputil.DoJSON(c.HTTPClient, http.MethodGet, c.url("/api/epochs"), nil, &out)
	return out, err
}

// Status fetches the orchestrator status.
func (c *Client) Status() (StatusResponse, error) {
	var out StatusResponse
	err := httputil.DoJSON(c.HTTPClient, http.MethodGet, c.url("/api/status"), nil, &out)
	return out, err
}

// SetEpoch selects an epoch by index.
func (c *Client) SetEpoch(index uint32) error {
	return httputil.DoJSON(c.HTTPClient, http.MethodPost, c.url("/api/epoch"), EpochRequest{Index: &index}, nil)
}

// StepEpoch moves the epoch index by delta and returns the new index.
func (c *Client) StepEpoch(delta int) (uint32, error) {
	var out AckResponse
	err := httputil.DoJSON(c.HTTPClient, http.MethodPost, c.url("/api/epoch"), EpochRequest{Delta: &delta}, &out)
	return out.Index, err
}

// SetHBR sets the hard-body radius in km.
func (c *Client) SetHBR(hbr float64) error {
	return httputil.DoJSON(c.HTTPClient, http.MethodPost, c.url("/api/hbr"), HBRRequest{HBR: hbr}, nil)
}

// SetAllToAll switches the diff mode.
func (c *Client) SetAllToAll(on bool) error {
	return httputil.DoJSON(c.HTTPClient, http.MethodPost, c.url("/api/mode"), ModeRequest{AllToAll: on}, nil)
}

// SetBinning replaces the binning parameters.
func (c *Client) SetBinning(p conjunction.BinningParams) error {
	req := BinningRequest{BinCount: p.BinCount, InitialMultiplier: p.InitialMultiplier, MaxTries: p.MaxTries}
	return httputil.DoJSON(c.HTTPClient, http.MethodPost, c.url("/api/binning"), req, nil)
}

// SetFiles replaces the input files.
func (c *Client) SetFiles(paths []string) error {
	return httputil.DoJSON(c.HTTPClient, http.MethodPost, c.url("/api/files"), FilesRequest{Files: paths}, nil)
}

// Cancel supersedes the in-flight recompute.
func (c *Client) Cancel() error {
	return httputil.DoJSON(c.HTTPClient, http.MethodPost, c.url("/api/cancel"), struct{}{}, nil)
}
