package api

import (
	"io"
	"net/url"
	"sync"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/bogdanfinn/tls-client/bandwidth"
)

// MockResponseBody is a ReadCloser that simulates reading response data
type MockResponseBody struct {
	data   []byte
	pos    int
	err    error // returned once data is exhausted, instead of io.EOF
	closed bool
}

// NewMockResponseBody creates a new MockResponseBody with the given data
func NewMockResponseBody(data []byte) *MockResponseBody {
	return &MockResponseBody{data: data}
}

// Read implements the io.Reader interface
func (m *MockResponseBody) Read(p []byte) (n int, err error) {
	if m.pos >= len(m.data) {
		if m.err != nil {
			return 0, m.err
		}
		return 0, io.EOF
	}
	n = copy(p, m.data[m.pos:])
	m.pos += n
	return n, nil
}

// Close implements the io.Closer interface
func (m *MockResponseBody) Close() error {
	m.closed = true
	return nil
}

type mockResponse struct {
	statusCode int
	body       []byte
	readErr    error
	err        error
}

type recordedRequest struct {
	method string
	url    string
	header fhttp.Header
	body   []byte
}

// MockHttpClient is a mock implementation of tls_client.HttpClient that
// serves queued responses and records every request
type MockHttpClient struct {
	mu        sync.Mutex
	responses []mockResponse
	requests  []recordedRequest
	bodies    []*MockResponseBody
	closed    bool
}

// NewMockHttpClient creates a client that answers every call with body
func NewMockHttpClient(body []byte, statusCode int) *MockHttpClient {
	return &MockHttpClient{responses: []mockResponse{{statusCode: statusCode, body: body}}}
}

// NewMockHttpClientWithError creates a client whose calls fail in transport
func NewMockHttpClientWithError(err error) *MockHttpClient {
	return &MockHttpClient{responses: []mockResponse{{err: err}}}
}

// NewSequentialMockHttpClient answers calls in order, repeating the last
func NewSequentialMockHttpClient(responses ...mockResponse) *MockHttpClient {
	return &MockHttpClient{responses: responses}
}

// GetCookies implements the tls_client.HttpClient interface
func (m *MockHttpClient) GetCookies(u *url.URL) []*fhttp.Cookie {
	return nil
}

// SetCookies implements the tls_client.HttpClient interface
func (m *MockHttpClient) SetCookies(u *url.URL, cookies []*fhttp.Cookie) {}

// SetCookieJar implements the tls_client.HttpClient interface
func (m *MockHttpClient) SetCookieJar(jar fhttp.CookieJar) {}

// GetCookieJar implements the tls_client.HttpClient interface
func (m *MockHttpClient) GetCookieJar() fhttp.CookieJar {
	return nil
}

// SetProxy implements the tls_client.HttpClient interface
func (m *MockHttpClient) SetProxy(proxyUrl string) error {
	return nil
}

// GetProxy implements the tls_client.HttpClient interface
func (m *MockHttpClient) GetProxy() string {
	return ""
}

// SetFollowRedirect implements the tls_client.HttpClient interface
func (m *MockHttpClient) SetFollowRedirect(followRedirect bool) {}

// GetFollowRedirect implements the tls_client.HttpClient interface
func (m *MockHttpClient) GetFollowRedirect() bool {
	return false
}

// CloseIdleConnections implements the tls_client.HttpClient interface
func (m *MockHttpClient) CloseIdleConnections() {
	m.closed = true
}

// Do implements the tls_client.HttpClient interface
func (m *MockHttpClient) Do(req *fhttp.Request) (*fhttp.Response, error) {
	rec := recordedRequest{method: req.Method, url: req.URL.String(), header: req.Header}
	if req.Body != nil {
		rec.body, _ = io.ReadAll(req.Body)
	}
	return m.next(rec)
}

// Get implements the tls_client.HttpClient interface
func (m *MockHttpClient) Get(u string) (*fhttp.Response, error) {
	return m.next(recordedRequest{method: fhttp.MethodGet, url: u})
}

// Head implements the tls_client.HttpClient interface
func (m *MockHttpClient) Head(u string) (*fhttp.Response, error) {
	return m.next(recordedRequest{method: fhttp.MethodHead, url: u})
}

// Post implements the tls_client.HttpClient interface
func (m *MockHttpClient) Post(u, contentType string, body io.Reader) (*fhttp.Response, error) {
	data, _ := io.ReadAll(body)
	return m.next(recordedRequest{method: fhttp.MethodPost, url: u, body: data})
}

// GetBandwidthTracker implements the tls_client.HttpClient interface
func (m *MockHttpClient) GetBandwidthTracker() bandwidth.BandwidthTracker {
	return nil
}

func (m *MockHttpClient) next(rec recordedRequest) (*fhttp.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.requests)
	m.requests = append(m.requests, rec)
	if idx >= len(m.responses) {
		// Return last response if we've exhausted the list
		idx = len(m.responses) - 1
	}

	resp := m.responses[idx]
	if resp.err != nil {
		return nil, resp.err
	}

	body := NewMockResponseBody(resp.body)
	body.err = resp.readErr
	m.bodies = append(m.bodies, body)
	return &fhttp.Response{
		StatusCode: resp.statusCode,
		Body:       body,
		Header:     make(fhttp.Header),
	}, nil
}

func (m *MockHttpClient) lastRequest() recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return recordedRequest{}
	}
	return m.requests[len(m.requests)-1]
}
