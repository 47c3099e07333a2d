// Package geodata provides access to the remote data service: the
// location corpus, precomputed routes between location identifiers,
// and per-node detail (alternate names and serving lines). Three
// interchangeable backends exist: the HTTP service, a local SQLite
// snapshot, and Postgres.
package geodata

import (
	"context"
	"errors"

	"github.com/paulmach/orb/geojson"
)

// ErrNotFound is returned when the backend has no data for the
// requested identifiers.
var ErrNotFound = errors.New("geodata: not found")

// NodeName is one alternate name of a node, optionally language-tagged.
type NodeName struct {
	Name string `json:"name"`
	Lang string `json:"lang,omitempty"`
}

// NodeDetail is the per-node payload: alternate names plus the lines
// serving the node in the requested year.
type NodeDetail struct {
	Names []NodeName `json:"names"`
	Lines []string   `json:"lines"`
}

// Service is the read-only data backend. All payloads are GeoJSON
// feature collections: the corpus is point features with id/name/rank/
// cluster properties, a route is an ordered list of line features with
// source/target/line/mode/cost properties.
type Service interface {
	// Features returns the location corpus for a year.
	Features(ctx context.Context, year int) (*geojson.FeatureCollection, error)

	// Route returns the ordered segment list between two location
	// identifiers for a year.
	Route(ctx context.Context, sourceID, targetID string, year int) (*geojson.FeatureCollection, error)

	// NodeDetail returns alternate names and serving lines for a node.
	// Results are cacheable per (id, year).
	NodeDetail(ctx context.Context, id string, year int) (*NodeDetail, error)
}
