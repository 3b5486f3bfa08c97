package birdweather

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/httpclient"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

const testURL = "https://bw.example.test/graphql"

func testConfig() Config {
	return Config{
		URL:       testURL,
		Token:     "secret-token",
		StationID: "1234",
		PageSize:  2,
		CacheTTL:  time.Minute,
	}
}

// newTestClient returns a client whose requests go to a fresh mock transport.
func newTestClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	hc := httpclient.New(&httpclient.Config{Transport: transport, DefaultTimeout: 5 * time.Second})
	t.Cleanup(hc.Close)

	client := NewClient(cfg, hc, logger.NewNopLogger())
	client.retryDelay = time.Millisecond
	return client, transport
}

// decodeRequest reads the GraphQL payload of a mocked request.
func decodeRequest(t *testing.T, req *http.Request) graphQLRequest {
	t.Helper()
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var gql graphQLRequest
	require.NoError(t, json.Unmarshal(body, &gql))
	return gql
}

func jsonResponse(status int, body string) *http.Response {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

func operationOf(query string) string {
	for _, op := range []string{"detections", "topSpecies", "species", "dailyDetectionCounts", "station"} {
		if strings.Contains(query, "query "+op+"(") {
			return op
		}
	}
	return ""
}

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithCancel(t.Context())
}
