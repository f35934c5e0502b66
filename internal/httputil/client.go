// Package httputil holds the JSON response helpers shared by the monitor
// handlers and the HTTP client abstraction used to talk to a running monitor.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// HTTPClient is the subset of *http.Client the monitor client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewStandardClient returns c, or http.DefaultClient when c is nil.
func NewStandardClient(c *http.Client) HTTPClient {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

// MockHTTPClient records requests and replays queued responses.
type MockHTTPClient struct {
	mu        sync.Mutex
	requests  []*http.Request
	bodies    [][]byte
	responses []MockResponse
	next      int
}

// MockResponse is a canned reply. A non-nil Error is returned instead of a
// response.
type MockResponse struct {
	StatusCode  int
	Body        string
	ContentType string
	Error       error
}

// NewMockHTTPClient creates an empty mock. Unqueued requests get 200 with an
// empty body.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a JSON reply.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) *MockHTTPClient {
	return m.Add(MockResponse{StatusCode: statusCode, Body: body, ContentType: "application/json"})
}

// AddErrorResponse queues a transport error.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	return m.Add(MockResponse{Error: err})
}

// Add queues r.
func (m *MockHTTPClient) Add(r MockResponse) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// Do records req (and a copy of its body) and returns the next queued reply.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
		req.Body.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)

	resp := MockResponse{StatusCode: http.StatusOK}
	if m.next < len(m.responses) {
		resp = m.responses[m.next]
		m.next++
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	header := make(http.Header)
	if resp.ContentType != "" {
		header.Set("Content-Type", resp.ContentType)
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(resp.Body)),
		Header:     header,
		Request:    req,
	}, nil
}

// Request returns the nth recorded request and its body, or nil.
func (m *MockHTTPClient) Request(n int) (*http.Request, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= len(m.requests) {
		return nil, nil
	}
	return m.requests[n], m.bodies[n]
}

// RequestCount returns the number of recorded requests.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
