package geodata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"
)

// PostgresStore serves geodata straight from the routing database.
// Features and node detail live in plain tables; route segments come
// from the plan_route() function, which wraps the pgRouting call.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the routing database.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Features returns the location corpus for a year.
func (s *PostgresStore) Features(ctx context.Context, year int) (*geojson.FeatureCollection, error) {
	const query = `
		SELECT properties::text, ST_AsGeoJSON(geom)
		FROM features
		WHERE year = $1
		ORDER BY fid
	`

	rows, err := s.pool.Query(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var propsJSON, geomJSON string
		if err := rows.Scan(&propsJSON, &geomJSON); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		f, err := buildFeature(propsJSON, geomJSON)
		if err != nil {
			return nil, err
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feature rows: %w", err)
	}

	return fc, nil
}

// Route plans a route between two identifiers via plan_route().
func (s *PostgresStore) Route(ctx context.Context, sourceID, targetID string, year int) (*geojson.FeatureCollection, error) {
	const query = `
		SELECT properties::text, ST_AsGeoJSON(geom)
		FROM plan_route($1, $2, $3)
		ORDER BY seq
	`

	rows, err := s.pool.Query(ctx, query, sourceID, targetID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query route: %w", err)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var propsJSON, geomJSON string
		if err := rows.Scan(&propsJSON, &geomJSON); err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		f, err := buildFeature(propsJSON, geomJSON)
		if err != nil {
			return nil, err
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segment rows: %w", err)
	}

	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("route %s -> %s (%d): %w", sourceID, targetID, year, ErrNotFound)
	}
	return fc, nil
}

// NodeDetail returns alternate names and serving lines for a node.
func (s *PostgresStore) NodeDetail(ctx context.Context, id string, year int) (*NodeDetail, error) {
	detail := &NodeDetail{}

	rows, err := s.pool.Query(ctx,
		`SELECT name, COALESCE(lang, '') FROM node_names WHERE year = $1 AND node_id = $2`, year, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query node names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n NodeName
		if err := rows.Scan(&n.Name, &n.Lang); err != nil {
			return nil, fmt.Errorf("failed to scan node name: %w", err)
		}
		detail.Names = append(detail.Names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node names: %w", err)
	}

	lineRows, err := s.pool.Query(ctx,
		`SELECT line FROM node_lines WHERE year = $1 AND node_id = $2`, year, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query node lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var line string
		if err := lineRows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan node line: %w", err)
		}
		detail.Lines = append(detail.Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node lines: %w", err)
	}

	return detail, nil
}

// buildFeature assembles a GeoJSON feature from properties and geometry
// columns returned by Postgres.
func buildFeature(propsJSON, geomJSON string) (*geojson.Feature, error) {
	geom, err := geojson.UnmarshalGeometry([]byte(geomJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse geometry: %w", err)
	}

	f := geojson.NewFeature(geom.Geometry())
	if propsJSON != "" {
		if err := json.Unmarshal([]byte(propsJSON), &f.Properties); err != nil {
			return nil, fmt.Errorf("failed to parse properties: %w", err)
		}
	}
	return f, nil
}
