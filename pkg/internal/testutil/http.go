package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockHTTPDoer implements github.HTTPDoer for testing.
// Responses are queued per method and URL and served in order; the last one
// repeats once the queue is drained. Unconfigured requests get a 404.
type MockHTTPDoer struct {
	queues map[string][]mockResponse
	errors map[string]error
	calls  []HTTPCall
	mu     sync.Mutex
}

type mockResponse struct {
	header http.Header
	body   []byte
	status int
}

// HTTPCall records a single HTTP call.
type HTTPCall struct {
	Header http.Header
	Method string
	URL    string
}

// NewMockHTTPDoer creates a new MockHTTPDoer.
func NewMockHTTPDoer() *MockHTTPDoer {
	return &MockHTTPDoer{
		queues: make(map[string][]mockResponse),
		errors: make(map[string]error),
	}
}

// Do records the request and returns the next configured response.
func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, HTTPCall{Method: req.Method, URL: req.URL.String(), Header: req.Header.Clone()})
	key := req.Method + " " + req.URL.String()

	if err, ok := m.errors[key]; ok {
		return nil, err
	}

	queue := m.queues[key]
	if len(queue) == 0 {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Body:       io.NopCloser(strings.NewReader(`{"message":"not found"}`)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}
	r := queue[0]
	if len(queue) > 1 {
		m.queues[key] = queue[1:]
	}

	return &http.Response{
		StatusCode: r.status,
		Status:     fmt.Sprintf("%d %s", r.status, http.StatusText(r.status)),
		Body:       io.NopCloser(bytes.NewReader(r.body)),
		Header:     r.header.Clone(),
		Request:    req,
	}, nil
}

// QueueJSON appends a JSON response for method and url.
func (m *MockHTTPDoer) QueueJSON(method, url string, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal response body: %v", err))
	}
	m.Queue(method, url, status, data, nil)
}

// Queue appends a raw response with optional headers for method and url.
func (m *MockHTTPDoer) Queue(method, url string, status int, body []byte, header http.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if header == nil {
		header = make(http.Header)
	}
	key := method + " " + url
	m.queues[key] = append(m.queues[key], mockResponse{status: status, body: body, header: header})
}

// SetError configures a transport error for method and url.
func (m *MockHTTPDoer) SetError(method, url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method+" "+url] = err
}

// Calls returns all recorded HTTP calls.
func (m *MockHTTPDoer) Calls() []HTTPCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]HTTPCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}
