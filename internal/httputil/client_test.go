package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStandardClient_DefaultsToHTTPDefaultClient(t *testing.T) {
	c := NewStandardClient(nil)
	if c.Client != http.DefaultClient {
		t.Error("expected http.DefaultClient when nil is passed")
	}
}

func TestDoJSON_RoundTripAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			MethodNotAllowed(w)
			return
		}
		var req struct {
			HBR float64 `json:"hbr"`
		}
		if err := DecodeJSONBody(w, r, &req); err != nil {
			BadRequest(w, err.Error())
			return
		}
		WriteJSONOK(w, map[string]float64{"hbr": req.HBR * 2})
	}))
	defer srv.Close()

	client := NewStandardClient(srv.Client())

	var out struct {
		HBR float64 `json:"hbr"`
	}
	if err := DoJSON(client, http.MethodPost, srv.URL, map[string]float64{"hbr": 0.25}, &out); err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if out.HBR != 0.5 {
		t.Errorf("hbr = %v, want 0.5", out.HBR)
	}

	err := DoJSON(client, http.MethodGet, srv.URL, nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusMethodNotAllowed || se.Message != "method not allowed" {
		t.Errorf("unexpected status error %+v", se)
	}
}

func TestDoJSON_WithMock(t *testing.T) {
	mock := NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"epochs":[1.5,2.5]}`).
		AddResponse(http.StatusTeapot, `not json`)

	var out struct {
		Epochs []float64 `json:"epochs"`
	}
	if err := DoJSON(mock, http.MethodPost, "http://x/api/epoch", map[string]int{"index": 2}, &out); err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if len(out.Epochs) != 2 || out.Epochs[1] != 2.5 {
		t.Errorf("unexpected epochs %v", out.Epochs)
	}

	var sent map[string]int
	if err := json.Unmarshal(mock.Bodies[0], &sent); err != nil {
		t.Fatalf("recorded body not JSON: %v", err)
	}
	if sent["index"] != 2 {
		t.Errorf("sent index = %d, want 2", sent["index"])
	}
	if ct := mock.Requests[0].Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	err := DoJSON(mock, http.MethodGet, "http://x/api/status", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTeapot {
		t.Fatalf("expected teapot status error, got %v", err)
	}
	if se.Message != http.StatusText(http.StatusTeapot) {
		t.Errorf("message = %q", se.Message)
	}
}

func TestDoJSON_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	mock := NewMockHTTPClient().AddErrorResponse(boom)

	err := DoJSON(mock, http.MethodPost, "http://x/api/cancel", nil, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("request count = %d, want 1", mock.RequestCount())
	}
}

func TestMockHTTPClient_DefaultResponse(t *testing.T) {
	mock := NewMockHTTPClient()
	if err := DoJSON(mock, http.MethodPost, "http://x/api/cancel", nil, nil); err != nil {
		t.Errorf("expected default 200 to succeed, got %v", err)
	}
}
