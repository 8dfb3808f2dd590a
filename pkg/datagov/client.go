// Package datagov is a client for the data.gov.sg collection metadata and
// datastore search APIs.
package datagov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/shoppulse/registry-cli/internal/resilience"
)

const (
	defaultMetadataBase  = "https://api-production.data.gov.sg/v2/public/api/collections"
	defaultDatastoreBase = "https://data.gov.sg/api/action/datastore_search"
)

// ErrPageTooLarge reports an oversized-response rejection from the datastore
// API. The caller recovers by shrinking the page size, not by retrying.
var ErrPageTooLarge = errors.New("datagov: page too large")

// Page is one datastore_search result page.
type Page struct {
	Total   int
	Records []map[string]any
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURLs overrides the metadata and datastore endpoints.
func WithBaseURLs(metadataBase, datastoreBase string) Option {
	return func(c *Client) {
		if metadataBase != "" {
			c.metadataBase = strings.TrimRight(metadataBase, "/")
		}
		if datastoreBase != "" {
			c.datastoreBase = datastoreBase
		}
	}
}

// WithRateLimit sets the requests-per-second limit for datastore calls.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries bounds the transient-error retry loop per request.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.retry.MaxAttempts = n
	}
}

// Client talks to the data.gov.sg APIs with bounded retry and rate limiting.
type Client struct {
	httpClient    *http.Client
	metadataBase  string
	datastoreBase string
	limiter       *rate.Limiter
	retry         resilience.RetryConfig
}

// NewClient creates a datastore client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		metadataBase:  defaultMetadataBase,
		datastoreBase: defaultDatastoreBase,
		limiter:       rate.NewLimiter(10, 10),
		retry:         resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type metadataResponse struct {
	Code     int    `json:"code"`
	ErrorMsg string `json:"errorMsg"`
	Data     struct {
		CollectionMetadata struct {
			ChildDatasets []string `json:"childDatasets"`
		} `json:"collectionMetadata"`
	} `json:"data"`
}

// ChildDatasets returns the resource identifiers belonging to a collection.
func (c *Client) ChildDatasets(ctx context.Context, collectionID string) ([]string, error) {
	reqURL := fmt.Sprintf("%s/%s/metadata", c.metadataBase, url.PathEscape(collectionID))

	body, _, err := c.getJSON(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrapf(err, "datagov: collection %s metadata", collectionID)
	}

	var meta metadataResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, eris.Wrap(err, "datagov: parse metadata response")
	}
	if meta.Code != 0 {
		msg := meta.ErrorMsg
		if msg == "" {
			msg = "metadata API error"
		}
		return nil, eris.Errorf("datagov: metadata: %s", msg)
	}

	return meta.Data.CollectionMetadata.ChildDatasets, nil
}

type searchResponse struct {
	Success bool            `json:"success"`
	Error   json.RawMessage `json:"error"`
	Result  struct {
		Total   int              `json:"total"`
		Records []map[string]any `json:"records"`
	} `json:"result"`
}

// SearchPage fetches one page of a datastore resource. The second return
// value is the number of transient-error retries the request needed.
func (c *Client) SearchPage(ctx context.Context, resourceID string, offset, limit int, fields []string) (*Page, int, error) {
	params := url.Values{
		"resource_id": {resourceID},
		"offset":      {strconv.Itoa(offset)},
		"limit":       {strconv.Itoa(limit)},
	}
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}

	body, retries, err := c.getJSON(ctx, c.datastoreBase+"?"+params.Encode())
	if err != nil {
		return nil, retries, eris.Wrapf(err, "datagov: search %s offset=%d limit=%d", resourceID, offset, limit)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, retries, eris.Wrap(err, "datagov: parse search response")
	}
	if !sr.Success {
		msg := strings.TrimSpace(string(sr.Error))
		if msg == "" {
			msg = "unknown error"
		}
		return nil, retries, eris.Errorf("datagov: search %s: %s", resourceID, msg)
	}

	return &Page{Total: sr.Result.Total, Records: sr.Result.Records}, retries, nil
}

// getJSON performs a rate-limited GET with bounded retry on transient
// statuses. The retry count is returned for the fetch report.
func (c *Client) getJSON(ctx context.Context, reqURL string) ([]byte, int, error) {
	var retries int
	cfg := c.retry
	cfg.OnRetry = func(_ int, _ error) { retries++ }

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "build request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "request")
		}
		defer resp.Body.Close() //nolint:errcheck

		switch {
		case resp.StatusCode == http.StatusRequestEntityTooLarge:
			return nil, ErrPageTooLarge
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(
				eris.Errorf("status %d", resp.StatusCode), resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return nil, eris.Errorf("status %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read body")
		}
		return data, nil
	})

	return body, retries, err
}
