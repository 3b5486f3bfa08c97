package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jarcoal/httpmock"
)

const mockBaseURL = "https://api.example.test"

// newTestClient returns a client with the given config, closed on cleanup.
// A nil config uses the defaults.
func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

// newMockClient returns a client whose transport is an httpmock transport
// answering path on mockBaseURL with status and body.
func newMockClient(t *testing.T, cfg Config, method, path string, status int, body string) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(method, mockBaseURL+path, httpmock.NewStringResponder(status, body))
	cfg.Transport = transport
	return newTestClient(t, &cfg), transport
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func closeResponseBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		t.Logf("close response body: %v", err)
	}
}
