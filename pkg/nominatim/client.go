// Package nominatim provides a client for the OpenStreetMap Nominatim
// search API. Nominatim requires a descriptive User-Agent and allows at
// most one request per second; callers are expected to pace requests.
package nominatim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "prospector/1.0 (lead discovery; contact ops@sells.group)"
)

// Client performs Nominatim search operations.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Result is a single place from a Nominatim search.
type Result struct {
	PlaceID     int64     `json:"place_id"`
	DisplayName string    `json:"display_name"`
	Lat         string    `json:"lat"`
	Lon         string    `json:"lon"`
	Type        string    `json:"type"`
	Extratags   Extratags `json:"extratags"`
	Namedetails Names     `json:"namedetails"`
}

// Extratags carries OSM tags such as website and phone when present.
type Extratags struct {
	Website string `json:"website"`
	Phone   string `json:"phone"`
}

// Names holds the OSM name details for a place.
type Names struct {
	Name string `json:"name"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a Nominatim client. No API key is required.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("extratags", "1")
	params.Set("namedetails", "1")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: create request")
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("nominatim: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var results []Result
	if err := json.Unmarshal(respBody, &results); err != nil {
		return nil, eris.Wrap(err, "nominatim: unmarshal response")
	}

	return results, nil
}
