package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmsteil/brightpearl-client/internal/testutil"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig(baseURL, "testapp", "test-token")
	cfg.Timeout = 2 * time.Second
	cfg.RateLimit = 1 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// scriptedTransport returns each scripted result in turn, repeating the
// last one. It counts invocations so tests can assert the exact number
// of transport calls.
type scriptedTransport struct {
	calls  int
	script []func() (*http.Response, error)
}

func (s *scriptedTransport) RoundTrip(*http.Request) (*http.Response, error) {
	index := s.calls
	if index >= len(s.script) {
		index = len(s.script) - 1
	}
	s.calls++
	return s.script[index]()
}

// timeoutError mimics a net.Error transport timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "request timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func jsonResponse(status int, body string) func() (*http.Response, error) {
	return func() (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func transportFailure(err error) func() (*http.Response, error) {
	return func() (*http.Response, error) { return nil, err }
}

func TestExecute_AttachesCredentialHeaders(t *testing.T) {
	mock := testutil.NewMockBrightpearl()
	defer mock.Close()

	c := newTestClient(t, testConfig(mock.URL()))

	if _, err := c.GetObject(context.Background(), "/product-service/product/1007"); err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}

	headers := mock.LastRequestHeader
	if got := headers.Get("brightpearl-app-ref"); got != "testapp" {
		t.Errorf("brightpearl-app-ref = %q, want %q", got, "testapp")
	}
	if got := headers.Get("brightpearl-account-token"); got != "test-token" {
		t.Errorf("brightpearl-account-token = %q, want %q", got, "test-token")
	}
}

func TestExecute_TimeoutsThenSuccess(t *testing.T) {
	// Two timeouts, then success: the call must succeed having made
	// exactly three transport invocations.
	transport := &scriptedTransport{script: []func() (*http.Response, error){
		transportFailure(timeoutError{}),
		transportFailure(timeoutError{}),
		jsonResponse(200, `{"response": {"ok": true}}`),
	}}

	cfg := testConfig("http://bp.test")
	cfg.HTTPClient = &http.Client{Transport: transport}
	c := newTestClient(t, cfg)

	result, err := c.GetObject(context.Background(), "/order-service/order/1")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if result["ok"] != true {
		t.Errorf("result = %v, want ok=true", result)
	}
	if transport.calls != 3 {
		t.Errorf("transport calls = %d, want 3", transport.calls)
	}
}

func TestExecute_TimeoutExhaustion(t *testing.T) {
	transport := &scriptedTransport{script: []func() (*http.Response, error){
		transportFailure(timeoutError{}),
	}}

	cfg := testConfig("http://bp.test")
	cfg.HTTPClient = &http.Client{Transport: transport}
	c := newTestClient(t, cfg)

	_, err := c.GetObject(context.Background(), "/order-service/order/1")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Class != ErrorClassTimeout {
		t.Errorf("Class = %q, want %q", apiErr.Class, ErrorClassTimeout)
	}
	if apiErr.Attempts != cfg.MaxRetries {
		t.Errorf("Attempts = %d, want %d", apiErr.Attempts, cfg.MaxRetries)
	}
	if transport.calls != cfg.MaxRetries {
		t.Errorf("transport calls = %d, want %d", transport.calls, cfg.MaxRetries)
	}
}

func TestExecute_NetworkFailureExhaustion(t *testing.T) {
	// Generic transport failures retry silently until the last attempt,
	// then fail with the underlying message.
	transport := &scriptedTransport{script: []func() (*http.Response, error){
		transportFailure(errors.New("connection refused")),
	}}

	cfg := testConfig("http://bp.test")
	cfg.HTTPClient = &http.Client{Transport: transport}
	c := newTestClient(t, cfg)

	_, err := c.GetObject(context.Background(), "/order-service/order/1")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error %q does not carry the underlying message", err)
	}
	if transport.calls != cfg.MaxRetries {
		t.Errorf("transport calls = %d, want %d", transport.calls, cfg.MaxRetries)
	}
}

func TestExecute_RateLimitBackoff(t *testing.T) {
	transport := &scriptedTransport{script: []func() (*http.Response, error){
		jsonResponse(429, `{"errors": [{"message": "throttled"}]}`),
		jsonResponse(200, `{"response": {"ok": true}}`),
	}}

	cfg := testConfig("http://bp.test")
	cfg.HTTPClient = &http.Client{Transport: transport}
	c := newTestClient(t, cfg)

	var pauses []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	if _, err := c.GetObject(context.Background(), "/order-service/order/1"); err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}

	// The 429 hit attempt 0, so the backoff is (0+1)^2 = 1 second.
	if len(pauses) != 1 || pauses[0] != 1*time.Second {
		t.Errorf("backoff pauses = %v, want exactly [1s]", pauses)
	}
	if transport.calls != 2 {
		t.Errorf("transport calls = %d, want 2", transport.calls)
	}
}

func TestExecute_RateLimitExhaustion(t *testing.T) {
	transport := &scriptedTransport{script: []func() (*http.Response, error){
		jsonResponse(429, `{}`),
	}}

	cfg := testConfig("http://bp.test")
	cfg.MaxRetries = 2
	cfg.HTTPClient = &http.Client{Transport: transport}
	c := newTestClient(t, cfg)

	var pauses []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	_, err := c.GetObject(context.Background(), "/order-service/order/1")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Class != ErrorClassRateLimit {
		t.Errorf("Class = %q, want %q", apiErr.Class, ErrorClassRateLimit)
	}
	// Only the first 429 had budget left to back off for.
	if len(pauses) != 1 || pauses[0] != 1*time.Second {
		t.Errorf("backoff pauses = %v, want [1s]", pauses)
	}
}

func TestExecute_ClientErrorNotRetried(t *testing.T) {
	mock := testutil.NewMockBrightpearl()
	defer mock.Close()
	mock.SetResponse("/order-service/order/999", testutil.MockResponse{
		StatusCode: 404,
		Body:       `{"errors": [{"message": "order not found"}]}`,
	})

	c := newTestClient(t, testConfig(mock.URL()))

	_, err := c.GetObject(context.Background(), "/order-service/order/999")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Class != ErrorClassClient {
		t.Errorf("Class = %q, want %q", apiErr.Class, ErrorClassClient)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "order not found") {
		t.Errorf("Body = %q, want the response body kept for diagnosis", apiErr.Body)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("request count = %d, want 1 (4xx is never retried)", mock.GetRequestCount())
	}
}

func TestExecute_ServerErrorTerminal(t *testing.T) {
	mock := testutil.NewMockBrightpearl()
	defer mock.Close()
	mock.SetResponse("/order-service/order-search", testutil.MockResponse{
		StatusCode: 500,
		Body:       `{"errors": [{"message": "internal"}]}`,
	})

	c := newTestClient(t, testConfig(mock.URL()))

	_, err := c.GetObject(context.Background(), "/order-service/order-search")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Class != ErrorClassServer {
		t.Errorf("Class = %q, want %q", apiErr.Class, ErrorClassServer)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("request count = %d, want 1 (5xx is terminal in this policy)", mock.GetRequestCount())
	}
}

func TestExecute_MultiStatusAccepted(t *testing.T) {
	mock := testutil.NewMockBrightpearl()
	defer mock.Close()
	mock.SetResponse("/warehouse-service/warehouse/18/stock-correction", testutil.MockResponse{
		StatusCode: 207,
		Body:       `{"response": [101, 102]}`,
	})

	c := newTestClient(t, testConfig(mock.URL()))

	ids, err := c.PostList(context.Background(), "/warehouse-service/warehouse/18/stock-correction",
		map[string]any{"corrections": []any{}})
	if err != nil {
		t.Fatalf("PostList() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v, want 2 entries", ids)
	}
}

func TestExecute_UnsupportedMethod(t *testing.T) {
	c := newTestClient(t, testConfig("http://bp.test"))

	if _, err := c.Execute(context.Background(), http.MethodDelete, "/x", nil, ShapeObject); err == nil {
		t.Error("Execute() with DELETE succeeded, want error")
	}
}

func TestSearch_SetsPagingParams(t *testing.T) {
	mock := testutil.NewMockBrightpearl()
	defer mock.Close()
	mock.SetResponse("/order-service/order-search", testutil.MockResponse{
		StatusCode: 200,
		Body: testutil.SearchBody(
			[]string{"orderId"},
			[][]any{{1.0}},
			1, 1, false,
		),
	})

	c := newTestClient(t, testConfig(mock.URL()))

	page, err := c.Search(context.Background(), "/order-service/order-search?orderStatusId=37", 500, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if page.MetaData.ResultsReturned != 1 {
		t.Errorf("ResultsReturned = %d, want 1", page.MetaData.ResultsReturned)
	}

	uri := mock.GetRequestedPaths()[0]
	for _, param := range []string{"orderStatusId=37", "pageSize=500", "firstResult=1"} {
		if !strings.Contains(uri, param) {
			t.Errorf("request URI %q missing %q", uri, param)
		}
	}
}

func TestExecute_DecodeErrorDistinctFromTransport(t *testing.T) {
	mock := testutil.NewMockBrightpearl()
	defer mock.Close()
	mock.SetResponse("/warehouse-service/x", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"unexpected": true}`,
	})

	c := newTestClient(t, testConfig(mock.URL()))

	_, err := c.GetList(context.Background(), "/warehouse-service/x")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %T (%v), want *DecodeError", err, err)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("decode failure must not be an *APIError")
	}
}
