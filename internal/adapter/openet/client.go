package openet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/mmaneta/eki-lpr-update/internal/adapter/csvstore"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/mmaneta/eki-lpr-update/internal/observability"
)

// DefaultBaseURL is the OpenET API root.
const DefaultBaseURL = "https://openet-api.org"

// QueryMultipolygon is the only supported query type.
const QueryMultipolygon = "multipolygon"

// QueryParams describes one timeseries export over a field asset.
type QueryParams struct {
	Variable    domain.Variable
	Start       time.Time
	End         time.Time
	Interval    string
	Model       string
	Reducer     string
	ReferenceET string
	Units       string
	Attributes  []string
	AssetID     string // e.g. projects/<project>/assets/Year1_enrolled_repurposed
	QueryType   string
	FileFormat  string
}

// DefaultQueryParams returns a monthly ensemble mean query in inches keyed
// by field id.
func DefaultQueryParams(v domain.Variable, assetID string, start, end time.Time) QueryParams {
	return QueryParams{
		Variable:    v,
		Start:       start,
		End:         end,
		Interval:    "monthly",
		Model:       "ensemble",
		Reducer:     "mean",
		ReferenceET: "cimis",
		Units:       "in",
		Attributes:  []string{csvstore.ColFieldID},
		AssetID:     assetID,
		QueryType:   QueryMultipolygon,
		FileFormat:  "CSV",
	}
}

// AssetName is the last path element of the asset id, which doubles as the
// local dataset name prefix.
func (p QueryParams) AssetName() string {
	return p.AssetID[strings.LastIndex(p.AssetID, "/")+1:]
}

// Query is the JSON body of a timeseries export request.
type Query struct {
	Variable    string    `json:"variable"`
	DateRange   [2]string `json:"date_range"`
	Interval    string    `json:"interval"`
	Model       string    `json:"model"`
	Reducer     string    `json:"reducer"`
	ReferenceET string    `json:"reference_et"`
	Units       string    `json:"units"`
	Attributes  []string  `json:"attributes"`
	AssetID     string    `json:"asset_id"`
	FileFormat  string    `json:"file_format"`
}

// APIError is a non-200 response from OpenET.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openet API error: status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client implements domain.DatasetSource using the OpenET raster API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics

	// Query template; FetchFieldRows overrides variable and dates.
	template QueryParams

	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
}

// NewClient creates an OpenET client. template supplies the asset and model
// settings used by FetchFieldRows.
func NewClient(apiKey, baseURL string, timeout time.Duration, template QueryParams, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
		metrics:     metrics,
		template:    template,
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
		maxBackoff:  5 * time.Second,
	}
}

// BuildQuery returns the Authorization header value and request body.
func (c *Client) BuildQuery(p QueryParams) (string, Query, error) {
	if p.QueryType != "" && p.QueryType != QueryMultipolygon {
		return "", Query{}, fmt.Errorf("query type %q not supported", p.QueryType)
	}
	if p.AssetID == "" {
		return "", Query{}, errors.New("asset id is required")
	}
	return c.apiKey, Query{
		Variable:    string(p.Variable),
		DateRange:   [2]string{p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly)},
		Interval:    p.Interval,
		Model:       p.Model,
		Reducer:     p.Reducer,
		ReferenceET: p.ReferenceET,
		Units:       p.Units,
		Attributes:  append([]string(nil), p.Attributes...),
		AssetID:     p.AssetID,
		FileFormat:  p.FileFormat,
	}, nil
}

// RequestExport submits the query and returns the export URL.
func (c *Client) RequestExport(ctx context.Context, p QueryParams) (string, error) {
	auth, q, err := c.BuildQuery(p)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}

	var exportURL string
	err = c.withRetry(ctx, "export", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/raster/timeseries/"+QueryMultipolygon, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", auth)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var out struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode export response: %w", err)
		}
		if out.URL == "" {
			return errors.New("export response has no url")
		}
		exportURL = out.URL
		return nil
	})
	return exportURL, err
}

// Download fetches and parses an exported CSV.
func (c *Client) Download(ctx context.Context, exportURL string) ([]domain.FieldRow, error) {
	var rows []domain.FieldRow
	err := c.withRetry(ctx, "download", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := c.do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		rows, err = csvstore.ReadFieldRows(resp.Body, "openet export")
		return err
	})
	return rows, err
}

// FetchFieldRows requests an export of q and downloads it.
func (c *Client) FetchFieldRows(ctx context.Context, q domain.DatasetQuery) ([]domain.FieldRow, error) {
	p := c.template
	p.Variable = q.Variable
	p.Start = q.Start
	p.End = q.End

	exportURL, err := c.RequestExport(ctx, p)
	if err != nil {
		return nil, err
	}
	c.logger.Info("openet export ready", "variable", q.Variable, "url", exportURL)
	return c.Download(ctx, exportURL)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// withRetry retries transport errors and retryable API errors with
// exponential backoff. Input validation errors are returned immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := c.backoff
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		start := time.Now()
		err = fn()
		c.metrics.OpenETAPIDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err == nil || ctx.Err() != nil || !retryable(err) || attempt == c.maxAttempts {
			return err
		}

		c.logger.Warn("openet request failed, retrying",
			"operation", op,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
	return err
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	var inputErr *domain.InputValidationError
	return !errors.As(err, &inputErr)
}
