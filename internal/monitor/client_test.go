package monitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/httputil"
)

func TestClient_Requests(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"epochs":[1.5,2.5],"index":1}`)
	mock.AddResponse(http.StatusAccepted, `{"status":"accepted"}`)
	mock.AddResponse(http.StatusAccepted, `{"status":"accepted","index":0}`)

	c := NewClient(mock, "http://localhost:8090/")

	epochs, err := c.Epochs()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, epochs.Epochs)
	assert.Equal(t, uint32(1), epochs.Index)

	require.NoError(t, c.SetEpoch(3))
	idx, err := c.StepEpoch(-1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)

	require.Equal(t, 3, mock.RequestCount())
	assert.Equal(t, "http://localhost:8090/api/epochs", mock.Requests[0].URL.String())
	assert.Equal(t, http.MethodGet, mock.Requests[0].Method)
	assert.Equal(t, http.MethodPost, mock.Requests[1].Method)
	assert.JSONEq(t, `{"index":3}`, string(mock.Bodies[1]))
	assert.JSONEq(t, `{"delta":-1}`, string(mock.Bodies[2]))
}

func TestClient_ServerError(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusBadRequest, `{"error":"hbr must be a positive finite number of km"}`)
	mock.AddErrorResponse(errors.New("connection refused"))

	c := NewClient(mock, "http://localhost:8090")

	err := c.SetHBR(-1)
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Message, "positive")

	assert.Error(t, c.Cancel())
}

func TestClient_AgainstServer(t *testing.T) {
	ctrl := newFakeController()
	ws := NewWebServer(WebServerConfig{Controller: ctrl, AllowedDirs: []string{t.TempDir()}, Gatherer: prometheus.NewRegistry(), Logger: quiet})
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	c := NewClient(nil, srv.URL)

	require.NoError(t, c.SetAllToAll(true))
	require.NoError(t, c.SetHBR(0.25))
	bp := conjunction.BinningParams{BinCount: 2048, InitialMultiplier: 1.25, MaxTries: 4}
	require.NoError(t, c.SetBinning(bp))
	require.NoError(t, c.Cancel())

	err := c.SetFiles([]string{"/etc/passwd"})
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)

	status, err := c.Status()
	require.NoError(t, err)
	assert.True(t, status.Settings.AllToAll)
	assert.Equal(t, 0.25, status.Settings.HBR)
	assert.Equal(t, bp, status.Settings.Binning)
	assert.Equal(t, []string{"mode", "hbr", "binning", "cancel"}, ctrl.Calls())

	raw, err := json.Marshal(status.Settings)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"bin_count":2048`)
}
