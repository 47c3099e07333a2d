package geodata

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore serves geodata from a local snapshot database, so the
// control can run without the remote service. The same store is the
// write target of cmd/import-corpus.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a snapshot database with WAL mode.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal=WAL&_fk=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the snapshot tables if they do not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Features returns the location corpus for a year.
func (s *SQLiteStore) Features(ctx context.Context, year int) (*geojson.FeatureCollection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feature FROM features WHERE year = ? ORDER BY fid`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		f, err := geojson.UnmarshalFeature([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored feature: %w", err)
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feature rows: %w", err)
	}

	return fc, nil
}

// Route returns the stored segment list between two identifiers.
func (s *SQLiteStore) Route(ctx context.Context, sourceID, targetID string, year int) (*geojson.FeatureCollection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feature FROM route_segments
		 WHERE year = ? AND source = ? AND target = ?
		 ORDER BY seq`, year, sourceID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query route: %w", err)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		f, err := geojson.UnmarshalFeature([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored segment: %w", err)
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

// NodeDetail returns stored alternate names and lines for a node.
func (s *SQLiteStore) NodeDetail(ctx context.Context, id string, year int) (*NodeDetail, error) {
	detail := &NodeDetail{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, lang FROM node_names WHERE year = ? AND node_id = ?`, year, id)
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

	lineRows, err := s.db.QueryContext(ctx,
		`SELECT line FROM node_lines WHERE year = ? AND node_id = ?`, year, id)
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

// ImportFeatures replaces the stored corpus for a year.
func (s *SQLiteStore) ImportFeatures(ctx context.Context, year int, fc *geojson.FeatureCollection) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM features WHERE year = ?`, year); err != nil {
		return 0, fmt.Errorf("failed to clear features: %w", err)
	}

	count := 0
	for _, f := range fc.Features {
		raw, err := json.Marshal(f)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal feature: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO features (year, feature) VALUES (?, ?)`, year, string(raw)); err != nil {
			return 0, fmt.Errorf("failed to insert feature: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit features: %w", err)
	}
	return count, nil
}

// ImportRoute replaces the stored segments for one (source, target, year).
func (s *SQLiteStore) ImportRoute(ctx context.Context, year int, sourceID, targetID string, fc *geojson.FeatureCollection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM route_segments WHERE year = ? AND source = ? AND target = ?`,
		year, sourceID, targetID); err != nil {
		return fmt.Errorf("failed to clear route: %w", err)
	}

	for i, f := range fc.Features {
		raw, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to marshal segment: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO route_segments (year, source, target, seq, feature) VALUES (?, ?, ?, ?, ?)`,
			year, sourceID, targetID, i, string(raw)); err != nil {
			return fmt.Errorf("failed to insert segment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit route: %w", err)
	}
	return nil
}

// ImportNodeDetail replaces stored detail for one (node, year).
func (s *SQLiteStore) ImportNodeDetail(ctx context.Context, year int, id string, detail *NodeDetail) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_names WHERE year = ? AND node_id = ?`, year, id); err != nil {
		return fmt.Errorf("failed to clear node names: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM node_lines WHERE year = ? AND node_id = ?`, year, id); err != nil {
		return fmt.Errorf("failed to clear node lines: %w", err)
	}

	for _, n := range detail.Names {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO node_names (year, node_id, name, lang) VALUES (?, ?, ?, ?)`,
			year, id, n.Name, n.Lang); err != nil {
			return fmt.Errorf("failed to insert node name: %w", err)
		}
	}
	for _, line := range detail.Lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO node_lines (year, node_id, line) VALUES (?, ?, ?)`,
			year, id, line); err != nil {
			return fmt.Errorf("failed to insert node line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit node detail: %w", err)
	}
	return nil
}
