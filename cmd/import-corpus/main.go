// import-corpus loads a GeoJSON corpus, optional precomputed routes,
// and optional node details into a local SQLite snapshot, so routingd
// can run with GEODATA_BACKEND=sqlite and no remote service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/bosth/ottoman-routing/internal/geodata"
)

func main() {
	// Command line flags
	dbPath := flag.String("db", "data/routing.db", "Path to SQLite database")
	featuresPath := flag.String("features", "", "GeoJSON corpus file (required)")
	routesDir := flag.String("routes-dir", "", "Directory of route files named SOURCE__TARGET.geojson")
	detailsPath := flag.String("details", "", "JSON file mapping node id to {names, lines}")
	year := flag.Int("year", 1910, "Year the imported data describes")
	flag.Parse()

	if *featuresPath == "" {
		log.Fatal("-features is required")
	}

	store, err := geodata.OpenSQLite(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	log.Printf("Connected to database: %s", *dbPath)

	n, err := importFeatures(ctx, store, *featuresPath, *year)
	if err != nil {
		log.Fatalf("Failed to import corpus: %v", err)
	}
	log.Printf("Imported %d corpus features for year %d", n, *year)

	if *routesDir != "" {
		if err := importRoutes(ctx, store, *routesDir, *year); err != nil {
			log.Fatalf("Failed to import routes: %v", err)
		}
	}
	if *detailsPath != "" {
		if err := importDetails(ctx, store, *detailsPath, *year); err != nil {
			log.Fatalf("Failed to import node details: %v", err)
		}
	}
}

func importFeatures(ctx context.Context, store *geodata.SQLiteStore, path string, year int) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return 0, err
	}
	return store.ImportFeatures(ctx, year, fc)
}

// importRoutes walks a directory of SOURCE__TARGET.geojson files, one
// precomputed route each.
func importRoutes(ctx context.Context, store *geodata.SQLiteStore, dir string, year int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	imported := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".geojson") {
			continue
		}
		base := strings.TrimSuffix(name, ".geojson")
		parts := strings.SplitN(base, "__", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Printf("Skipping %s: name must be SOURCE__TARGET.geojson", name)
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			log.Printf("ERROR parsing %s: %v", name, err)
			continue
		}
		if err := store.ImportRoute(ctx, year, parts[0], parts[1], fc); err != nil {
			return err
		}
		imported++
	}
	log.Printf("Imported %d routes for year %d", imported, year)
	return nil
}

func importDetails(ctx context.Context, store *geodata.SQLiteStore, path string, year int) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var details map[string]*geodata.NodeDetail
	if err := json.Unmarshal(raw, &details); err != nil {
		return err
	}

	for id, detail := range details {
		if err := store.ImportNodeDetail(ctx, year, id, detail); err != nil {
			return err
		}
	}
	log.Printf("Imported details for %d nodes, year %d", len(details), year)
	return nil
}
