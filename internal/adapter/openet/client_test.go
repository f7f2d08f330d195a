package openet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/mmaneta/eki-lpr-update/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey  = "test-key"
	testAssetID = "projects/ee-test/assets/Year1_enrolled_repurposed"
	exportCSV   = "time,EKIfld,acre-feet,acres\n2022-10-01,1001,2.5,30\n2022-11-01,1001,1.5,30\n"
)

var (
	oct = time.Date(2022, time.October, 1, 0, 0, 0, 0, time.UTC)
	nov = time.Date(2022, time.November, 1, 0, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:      testAPIKey,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		baseURL:     baseURL,
		logger:      discardLogger(),
		metrics:     observability.NewMetricsForTesting(),
		template:    DefaultQueryParams("", testAssetID, time.Time{}, time.Time{}),
		maxAttempts: 3,
		backoff:     time.Millisecond,
		maxBackoff:  2 * time.Millisecond,
	}
}

func TestClient_BuildQuery(t *testing.T) {
	c := testClient(DefaultBaseURL)
	p := DefaultQueryParams(domain.VariableET, testAssetID,
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 9, 30, 0, 0, 0, 0, time.UTC))

	auth, q, err := c.BuildQuery(p)
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, auth)

	body, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"variable": "ET",
		"date_range": ["2018-01-01", "2023-09-30"],
		"interval": "monthly",
		"model": "ensemble",
		"reducer": "mean",
		"reference_et": "cimis",
		"units": "in",
		"attributes": ["EKIfld"],
		"asset_id": "projects/ee-test/assets/Year1_enrolled_repurposed",
		"file_format": "CSV"
	}`, string(body))
	assert.Equal(t, "Year1_enrolled_repurposed", p.AssetName())
}

func TestClient_BuildQuery_UnsupportedType(t *testing.T) {
	p := DefaultQueryParams(domain.VariableET, testAssetID, oct, nov)
	p.QueryType = "point"
	_, _, err := testClient(DefaultBaseURL).BuildQuery(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestClient_FetchFieldRows(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/raster/timeseries/multipolygon":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, testAPIKey, r.Header.Get("Authorization"))
			var q Query
			require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
			assert.Equal(t, "pr", q.Variable)
			assert.Equal(t, [2]string{"2022-10-01", "2022-11-01"}, q.DateRange)
			fmt.Fprintf(w, `{"url": %q}`, srvURL+"/exports/abc.csv")
		case "/exports/abc.csv":
			_, _ = io.WriteString(w, exportCSV)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	rows, err := testClient(srv.URL).FetchFieldRows(context.Background(), domain.DatasetQuery{
		Variable: domain.VariablePrecip,
		Start:    oct,
		End:      nov,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.FieldRow{Time: oct, FieldID: "1001", VolumeAF: 2.5, AreaAcres: 30}, rows[0])
}

func TestClient_RequestExport_ClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).RequestExport(context.Background(), DefaultQueryParams(domain.VariableET, testAssetID, oct, nov))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}

func TestClient_RequestExport_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"url": "https://storage.example/export.csv"}`)
	}))
	defer srv.Close()

	u, err := testClient(srv.URL).RequestExport(context.Background(), DefaultQueryParams(domain.VariableET, testAssetID, oct, nov))
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/export.csv", u)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RequestExport_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).RequestExport(context.Background(), DefaultQueryParams(domain.VariableET, testAssetID, oct, nov))
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RequestExport_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.backoff = time.Hour
	c.maxBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.RequestExport(ctx, DefaultQueryParams(domain.VariableET, testAssetID, oct, nov))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Download_MalformedCSV(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, "time,EKIfld\n2022-10-01,1\n")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Download(context.Background(), srv.URL+"/x.csv")
	var inputErr *domain.InputValidationError
	require.True(t, errors.As(err, &inputErr), "got %v", err)
	assert.Equal(t, int32(1), calls.Load(), "malformed exports are not retried")
}
