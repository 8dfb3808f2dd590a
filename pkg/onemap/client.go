// Package onemap is a client for the OneMap Singapore search API, used to
// resolve postal codes to coordinates.
package onemap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/shoppulse/registry-cli/internal/resilience"
)

const defaultBaseURL = "https://www.onemap.gov.sg/api/common/elastic/search"

// Result holds the coordinates of the first search hit.
type Result struct {
	Latitude  float64
	Longitude float64
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the search endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries bounds the transient-error retry loop per lookup.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.retry.MaxAttempts = n
	}
}

// Client queries the OneMap elastic search endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a geocoding client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(5, 5),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse mirrors the OneMap payload. Coordinates arrive as strings.
type searchResponse struct {
	Results []struct {
		Latitude  string `json:"LATITUDE"`
		Longitude string `json:"LONGITUDE"`
	} `json:"results"`
}

// Geocode resolves a postal code to coordinates. No search hit, or a hit with
// unparsable coordinates, returns (nil, nil): unmatched is not an error.
func (c *Client) Geocode(ctx context.Context, postalCode string) (*Result, error) {
	params := url.Values{
		"searchVal":      {postalCode},
		"returnGeom":     {"Y"},
		"getAddrDetails": {"N"},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
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

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("status %d", resp.StatusCode), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "onemap: search %s", postalCode)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "onemap: parse search response")
	}
	if len(sr.Results) == 0 {
		return nil, nil
	}

	first := sr.Results[0]
	lat, latErr := strconv.ParseFloat(first.Latitude, 64)
	lon, lonErr := strconv.ParseFloat(first.Longitude, 64)
	if latErr != nil || lonErr != nil {
		return nil, nil
	}

	return &Result{Latitude: lat, Longitude: lon}, nil
}
