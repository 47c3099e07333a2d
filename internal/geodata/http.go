package geodata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Client talks to the remote data service over HTTP.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates an HTTP backend rooted at base.
func NewClient(base string) *Client {
	return &Client{
		base: base,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Features fetches the location corpus for a year.
func (c *Client) Features(ctx context.Context, year int) (*geojson.FeatureCollection, error) {
	q := url.Values{"year": {strconv.Itoa(year)}}
	return c.fetchCollection(ctx, "/features", q)
}

// Route fetches the segment list between two location identifiers.
func (c *Client) Route(ctx context.Context, sourceID, targetID string, year int) (*geojson.FeatureCollection, error) {
	q := url.Values{
		"source": {sourceID},
		"target": {targetID},
		"year":   {strconv.Itoa(year)},
	}
	return c.fetchCollection(ctx, "/route", q)
}

// NodeDetail fetches alternate names and serving lines for a node.
func (c *Client) NodeDetail(ctx context.Context, id string, year int) (*NodeDetail, error) {
	q := url.Values{"year": {strconv.Itoa(year)}}
	body, err := c.fetch(ctx, "/node/"+url.PathEscape(id), q)
	if err != nil {
		return nil, err
	}

	var detail NodeDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to parse node detail: %w", err)
	}
	return &detail, nil
}

func (c *Client) fetchCollection(ctx context.Context, path string, q url.Values) (*geojson.FeatureCollection, error) {
	body, err := c.fetch(ctx, path, q)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}
	return fc, nil
}

func (c *Client) fetch(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
