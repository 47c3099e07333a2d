package geodata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/geojson"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return store
}

func TestSQLiteFeaturesRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fc, err := geojson.UnmarshalFeatureCollection([]byte(fixtureCorpus))
	if err != nil {
		t.Fatalf("fixture parse failed: %v", err)
	}

	n, err := store.ImportFeatures(ctx, 1910, fc)
	if err != nil {
		t.Fatalf("ImportFeatures failed: %v", err)
	}
	if n != 1 {
		t.Errorf("imported %d features, want 1", n)
	}

	got, err := store.Features(ctx, 1910)
	if err != nil {
		t.Fatalf("Features failed: %v", err)
	}
	if len(got.Features) != 1 {
		t.Fatalf("got %d features, want 1", len(got.Features))
	}
	if got.Features[0].Properties["id"] != "sirkeci" {
		t.Errorf("feature id = %v", got.Features[0].Properties["id"])
	}

	// Other years stay empty.
	empty, err := store.Features(ctx, 1880)
	if err != nil {
		t.Fatalf("Features(1880) failed: %v", err)
	}
	if len(empty.Features) != 0 {
		t.Errorf("year 1880 should have no features, got %d", len(empty.Features))
	}
}

func TestSQLiteRouteRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fc, err := geojson.UnmarshalFeatureCollection([]byte(fixtureRoute))
	if err != nil {
		t.Fatalf("fixture parse failed: %v", err)
	}

	if err := store.ImportRoute(ctx, 1910, "sirkeci", "haydarpasa", fc); err != nil {
		t.Fatalf("ImportRoute failed: %v", err)
	}

	got, err := store.Route(ctx, "sirkeci", "haydarpasa", 1910)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if len(got.Features) != 1 {
		t.Fatalf("got %d segments, want 1", len(got.Features))
	}

	_, err = store.Route(ctx, "sirkeci", "nowhere", 1910)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing route should return ErrNotFound, got %v", err)
	}
}

func TestSQLiteNodeDetailRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	detail := &NodeDetail{
		Names: []NodeName{{Name: "Stamboul", Lang: "en"}, {Name: "Istanbul"}},
		Lines: []string{"Chemins de fer Orientaux"},
	}
	if err := store.ImportNodeDetail(ctx, 1910, "sirkeci", detail); err != nil {
		t.Fatalf("ImportNodeDetail failed: %v", err)
	}

	got, err := store.NodeDetail(ctx, "sirkeci", 1910)
	if err != nil {
		t.Fatalf("NodeDetail failed: %v", err)
	}
	if len(got.Names) != 2 || len(got.Lines) != 1 {
		t.Errorf("detail = %+v", got)
	}

	// Unknown node returns an empty detail, not an error; the route
	// pipeline decides how to present it.
	empty, err := store.NodeDetail(ctx, "nowhere", 1910)
	if err != nil {
		t.Fatalf("NodeDetail(nowhere) failed: %v", err)
	}
	if len(empty.Names) != 0 || len(empty.Lines) != 0 {
		t.Errorf("unknown node should be empty, got %+v", empty)
	}
}
