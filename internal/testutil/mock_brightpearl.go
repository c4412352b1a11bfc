// Package testutil provides testing utilities for the Brightpearl
// client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockBrightpearl is a configurable mock Brightpearl server for tests.
type MockBrightpearl struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount      int
	RequestedPaths    []string
	LastRequestHeader http.Header
	LastRequestBody   []byte
}

// NewMockBrightpearl creates a mock server. Paths without a configured
// handler answer 200 with an empty JSON object.
func NewMockBrightpearl() *MockBrightpearl {
	mock := &MockBrightpearl{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestedPaths = append(mock.RequestedPaths, r.URL.RequestURI())
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRequestBody = body
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBrightpearl) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBrightpearl) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockBrightpearl) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestedPaths = nil
	m.LastRequestHeader = nil
	m.LastRequestBody = nil
}

// SetHandler installs a custom handler for a path.
func (m *MockBrightpearl) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockBrightpearl) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetResponseSequence answers a path with each response in turn,
// repeating the final one once the sequence is exhausted. Useful for
// failure-then-success retry scenarios.
func (m *MockBrightpearl) SetResponseSequence(path string, responses []MockResponse) {
	var mu sync.Mutex
	index := 0

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[index]
		if index < len(responses)-1 {
			index++
		}
		mu.Unlock()

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests the server received.
func (m *MockBrightpearl) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestedPaths returns the request URIs in arrival order.
func (m *MockBrightpearl) GetRequestedPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, len(m.RequestedPaths))
	copy(paths, m.RequestedPaths)
	return paths
}

// SearchBody builds a search envelope body from column names, rows and
// paging state.
func SearchBody(columns []string, rows [][]any, available, first int, more bool) string {
	cols := make([]map[string]any, len(columns))
	for i, name := range columns {
		cols[i] = map[string]any{"name": name}
	}

	last := first + len(rows) - 1
	if len(rows) == 0 {
		last = first
	}

	body := map[string]any{
		"response": map[string]any{
			"results": rows,
			"metaData": map[string]any{
				"morePagesAvailable": more,
				"resultsAvailable":   available,
				"resultsReturned":    len(rows),
				"firstResult":        first,
				"lastResult":         last,
				"columns":            cols,
			},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("marshal search body: %v", err))
	}
	return string(data)
}

// AvailabilityBody builds a product-availability envelope keyed by
// product id, with one warehouse entry per product.
func AvailabilityBody(onHand map[int]map[int]int) string {
	response := make(map[string]any, len(onHand))
	for productID, warehouses := range onHand {
		wh := make(map[string]any, len(warehouses))
		total := 0
		for warehouseID, qty := range warehouses {
			wh[fmt.Sprintf("%d", warehouseID)] = map[string]any{
				"inStock":   qty,
				"onHand":    qty,
				"allocated": 0,
				"inTransit": 0,
			}
			total += qty
		}
		response[fmt.Sprintf("%d", productID)] = map[string]any{
			"warehouses": wh,
			"total": map[string]any{
				"inStock":   total,
				"onHand":    total,
				"allocated": 0,
				"inTransit": 0,
			},
		}
	}

	data, err := json.Marshal(map[string]any{"response": response})
	if err != nil {
		panic(fmt.Sprintf("marshal availability body: %v", err))
	}
	return string(data)
}
