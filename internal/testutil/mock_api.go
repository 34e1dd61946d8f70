// Package testutil provides an httptest-based fake of a rate-limited provider API.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines one canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable fake provider. Paths can be given a fixed
// response, a sequence of responses (the last one repeats) or a handler.
type MockAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]http.HandlerFunc
	sequences map[string][]MockResponse
	requests  map[string]int
	bodies    []string
	lastHdr   http.Header
	lastQuery map[string][]string
	inFlight  int
	peak      int
}

// NewMockAPI starts a new mock server.
func NewMockAPI() *MockAPI {
	m := &MockAPI{
		handlers:  make(map[string]http.HandlerFunc),
		sequences: make(map[string][]MockResponse),
		requests:  make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	m.mu.Lock()
	m.requests[r.URL.Path]++
	n := m.requests[r.URL.Path]
	m.bodies = append(m.bodies, string(body))
	m.lastHdr = r.Header.Clone()
	m.lastQuery = r.URL.Query()
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	handler := m.handlers[r.URL.Path]
	seq := m.sequences[r.URL.Path]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	switch {
	case handler != nil:
		handler(w, r)
	case len(seq) > 0:
		idx := n - 1
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		write(w, seq[idx])
	default:
		write(w, NewOKResponse(`{"status":"ok"}`))
	}
}

func write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetHandler installs a custom handler for path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse always answers path with resp.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetSequence(path, resp)
}

// SetSequence answers the n-th request to path with seq[n-1]; the last
// response repeats.
func (m *MockAPI) SetSequence(path string, seq ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[path] = seq
	delete(m.handlers, path)
}

// RequestCount returns the number of requests made to path.
func (m *MockAPI) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests across all paths.
func (m *MockAPI) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// PeakInFlight returns the highest number of concurrent requests observed.
func (m *MockAPI) PeakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Bodies returns the request bodies in arrival order.
func (m *MockAPI) Bodies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.bodies...)
}

// LastHeader returns the headers of the most recent request.
func (m *MockAPI) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHdr
}

// LastQuery returns the query of the most recent request.
func (m *MockAPI) LastQuery() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// Reset clears request tracking.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.bodies = nil
	m.lastHdr = nil
	m.lastQuery = nil
	m.peak = 0
}

// NewOKResponse creates a 200 JSON response with a healthy remaining count.
func NewOKResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type":          "application/json; charset=utf-8",
			"X-RateLimit-Remaining": "1000",
		},
	}
}

// NewLowRemainingResponse creates a 200 response reporting few requests left.
func NewLowRemainingResponse(data string, remaining int) MockResponse {
	resp := NewOKResponse(data)
	resp.Headers["X-RateLimit-Remaining"] = strconv.Itoa(remaining)
	return resp
}

// NewTooManyRequestsResponse creates a 429 response. retryAfter < 0 omits
// the Retry-After header.
func NewTooManyRequestsResponse(retryAfter int) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type":          "application/json; charset=utf-8",
			"X-RateLimit-Remaining": "0",
		},
	}
	if retryAfter >= 0 {
		resp.Headers["Retry-After"] = strconv.Itoa(retryAfter)
	}
	return resp
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error":"not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
