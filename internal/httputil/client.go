// Package httputil holds the JSON response helpers shared by the web API
// and the small client used to drive a running server.
package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// HTTPClient abstracts HTTP operations for testability.
// Use StandardClient for production; MockHTTPClient for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient creates a new StandardClient wrapping the given http.Client.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// Do sends an HTTP request.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

// DoJSON sends body (when non-nil) as a JSON request and decodes a JSON
// response into out (when non-nil). Non-2xx responses are returned as
// errors carrying the server's "error" message.
func DoJSON(c HTTPClient, method, url string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
		}
		return &StatusError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is returned by DoJSON for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// MockHTTPClient records requests and replays queued responses.
type MockHTTPClient struct {
	mu          sync.Mutex
	Requests    []*http.Request
	Bodies      [][]byte
	Responses   []*MockResponse
	responseIdx int
}

// MockResponse defines a canned HTTP response for testing.
type MockResponse struct {
	StatusCode int
	Body       string
	Error      error
}

// NewMockHTTPClient creates a new mock HTTP client.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a response to be returned by subsequent requests.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{StatusCode: statusCode, Body: body})
	return m
}

// AddErrorResponse queues a transport error.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{Error: err})
	return m
}

// Do records the request and its body and returns the next queued response,
// or an empty 200 once the queue is drained.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	m.Bodies = append(m.Bodies, body)

	if m.responseIdx < len(m.Responses) {
		resp := m.Responses[m.responseIdx]
		m.responseIdx++

		if resp.Error != nil {
			return nil, resp.Error
		}
		return &http.Response{
			StatusCode: resp.StatusCode,
			Body:       io.NopCloser(bytes.NewBufferString(resp.Body)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString("")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// RequestCount returns the number of recorded requests.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
