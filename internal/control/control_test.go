package control

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/bosth/ottoman-routing/internal/corpus"
	"github.com/bosth/ottoman-routing/internal/geodata"
	"github.com/bosth/ottoman-routing/internal/metrics"
	"github.com/bosth/ottoman-routing/internal/route"
	"github.com/bosth/ottoman-routing/internal/selection"
	"github.com/bosth/ottoman-routing/internal/viewport"
)

// stubService is a programmable in-memory geodata backend.
type stubService struct {
	features    *geojson.FeatureCollection
	featuresErr error
	routeFn     func(ctx context.Context, sourceID, targetID string, year int) (*geojson.FeatureCollection, error)
	routeCalls  atomic.Int32
	detail      *geodata.NodeDetail
}

func (s *stubService) Features(ctx context.Context, year int) (*geojson.FeatureCollection, error) {
	return s.features, s.featuresErr
}

func (s *stubService) Route(ctx context.Context, sourceID, targetID string, year int) (*geojson.FeatureCollection, error) {
	s.routeCalls.Add(1)
	if s.routeFn != nil {
		return s.routeFn(ctx, sourceID, targetID, year)
	}
	return routePayload(sourceID, targetID), nil
}

func (s *stubService) NodeDetail(ctx context.Context, id string, year int) (*geodata.NodeDetail, error) {
	if s.detail == nil {
		return nil, errors.New("no detail")
	}
	return s.detail, nil
}

func corpusPayload() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	add := func(id, name string, rank int, lng, lat float64) {
		f := geojson.NewFeature(orb.Point{lng, lat})
		f.Properties = map[string]interface{}{
			"id": id, "name": name, "rank": float64(rank),
		}
		fc.Append(f)
	}
	add("X", "Sirkeci", 1, 28.977, 41.013)
	add("Y", "Galata", 2, 28.974, 41.022)
	add("Z", "Kadikoy", 4, 29.025, 40.993)
	return fc
}

func routePayload(sourceID, targetID string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.LineString{{28.9, 41.0}, {29.0, 41.0}})
	f.Properties = map[string]interface{}{
		"source": sourceID, "target": targetID,
		"line": "Orient Line", "mode": float64(8), "cost": float64(7),
	}
	fc.Append(f)
	return fc
}

// fakeSurface records marker, route, and camera calls.
type fakeSurface struct {
	mu         sync.Mutex
	markers    map[selection.Role]string
	setRoutes  int
	clears     int
	eases      int
	lastCam    viewport.Camera
	cursorHint bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{markers: make(map[selection.Role]string)}
}

func (f *fakeSurface) PlaceMarker(role selection.Role, loc corpus.Location) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers[role] = loc.ID
}

func (f *fakeSurface) RemoveMarker(role selection.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.markers, role)
}

func (f *fakeSurface) SetRoute(segs []route.Segment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setRoutes++
}

func (f *fakeSurface) ClearRoute() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

func (f *fakeSurface) EaseTo(cam viewport.Camera) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eases++
	f.lastCam = cam
}

func (f *fakeSurface) SetCursorHint(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorHint = active
}

// fakeView records itinerary calls.
type fakeView struct {
	mu     sync.Mutex
	steps  []route.Step
	clears int
}

func (f *fakeView) ShowItinerary(steps []route.Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = steps
}

func (f *fakeView) ClearItinerary() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = nil
	f.clears++
}

func newTestControl(t *testing.T, svc *stubService) (*Control, *fakeSurface, *fakeView) {
	t.Helper()
	surface := newFakeSurface()
	view := &fakeView{}
	c, err := New(context.Background(), svc, surface, view, Options{
		Year:     1910,
		Debounce: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c, surface, view
}

func TestNewFailsWithoutCorpus(t *testing.T) {
	svc := &stubService{featuresErr: errors.New("service down")}
	if _, err := New(context.Background(), svc, nil, nil, Options{}); err == nil {
		t.Fatal("corpus load failure must be fatal to construction")
	}
}

func TestCompletePairTriggersRoute(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, surface, view := newTestControl(t, svc)

	if err := c.SetSource("X"); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	if _, _, ok := c.Route(); ok {
		t.Error("one endpoint must not produce a route")
	}

	if err := c.SetTarget("Z"); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	c.Wait()

	res, cam, ok := c.Route()
	if !ok {
		t.Fatal("complete pair should yield a route")
	}
	if res.SourceID != "X" || res.TargetID != "Z" {
		t.Errorf("route endpoints = %s -> %s", res.SourceID, res.TargetID)
	}
	if cam == nil || cam.Duration != viewport.EaseDuration {
		t.Errorf("camera = %+v, want eased fit", cam)
	}

	surface.mu.Lock()
	defer surface.mu.Unlock()
	if surface.setRoutes != 1 || surface.eases != 1 {
		t.Errorf("surface calls: setRoutes=%d eases=%d, want 1/1", surface.setRoutes, surface.eases)
	}
	view.mu.Lock()
	defer view.mu.Unlock()
	if len(view.steps) == 0 {
		t.Error("itinerary view never shown")
	}
}

func TestRouteFailureClearsRouteKeepsSelection(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	svc.routeFn = func(ctx context.Context, _, _ string, _ int) (*geojson.FeatureCollection, error) {
		return nil, errors.New("pathfinding failed")
	}
	c, surface, _ := newTestControl(t, svc)

	c.SetSource("X")
	c.SetTarget("Z")
	c.Wait()

	if _, _, ok := c.Route(); ok {
		t.Error("failed fetch must leave no route displayed")
	}
	sel := c.Selected()
	if sel.Source == nil || sel.Target == nil {
		t.Error("failed fetch must not disturb the selection")
	}
	surface.mu.Lock()
	defer surface.mu.Unlock()
	if surface.clears == 0 {
		t.Error("failed fetch should clear the route layer")
	}
}

func TestClearingSlotClearsRoute(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, _, view := newTestControl(t, svc)

	c.SetSource("X")
	c.SetTarget("Z")
	c.Wait()
	if _, _, ok := c.Route(); !ok {
		t.Fatal("expected a route")
	}

	if err := c.SetTarget(nil); err != nil {
		t.Fatalf("clear target: %v", err)
	}
	if _, _, ok := c.Route(); ok {
		t.Error("clearing an endpoint must clear the route")
	}
	view.mu.Lock()
	defer view.mu.Unlock()
	if view.clears == 0 {
		t.Error("itinerary should be cleared with the route")
	}
}

func TestStaleRouteResultDropped(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	release := make(chan struct{})
	svc.routeFn = func(ctx context.Context, sourceID, targetID string, _ int) (*geojson.FeatureCollection, error) {
		if targetID == "Z" {
			// First fetch: park until the second fetch has superseded it.
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return routePayload(sourceID, targetID), nil
	}
	c, _, _ := newTestControl(t, svc)

	c.SetSource("X")
	c.SetTarget("Z") // fetch 1, parked
	c.SetTarget("Y") // fetch 2, supersedes
	close(release)
	c.Wait()

	res, _, ok := c.Route()
	if !ok {
		t.Fatal("expected a route")
	}
	if res.TargetID != "Y" {
		t.Errorf("displayed route targets %s; the superseded fetch must not win", res.TargetID)
	}
}

func TestInputDebounceKeepsLatestQuery(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, _, _ := newTestControl(t, svc)

	c.Input(selection.RoleSource, "gala")
	c.Input(selection.RoleSource, "kadi")
	time.Sleep(50 * time.Millisecond)

	rows := c.Suggestions(selection.RoleSource)
	if len(rows) == 0 {
		t.Fatal("expected suggestions for the latest query")
	}
	for _, r := range rows {
		if r.Location.ID == "Y" {
			t.Error("superseded query's rows leaked into the list")
		}
	}
}

func TestConfirmPicksFirstRowByDefault(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, surface, _ := newTestControl(t, svc)

	rows := c.Search(selection.RoleSource, "galata")
	if len(rows) == 0 {
		t.Fatal("expected a match for galata")
	}
	if err := c.Confirm(selection.RoleSource); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	sel := c.Selected()
	if sel.Source == nil || sel.Source.ID != "Y" {
		t.Errorf("Selected().Source = %+v, want Y", sel.Source)
	}
	if len(c.Suggestions(selection.RoleSource)) != 0 {
		t.Error("picking a row should close the suggestion list")
	}
	surface.mu.Lock()
	defer surface.mu.Unlock()
	if surface.markers[selection.RoleSource] != "Y" {
		t.Errorf("marker = %q, want Y", surface.markers[selection.RoleSource])
	}
}

func TestSelectRowIgnoresBadIndex(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, _, _ := newTestControl(t, svc)

	c.Search(selection.RoleSource, "galata")
	if err := c.SelectRow(selection.RoleSource, 99); err != nil {
		t.Errorf("out-of-range index must be a silent no-op, got %v", err)
	}
	if sel := c.Selected(); sel.Source != nil {
		t.Error("no-op select must not fill the slot")
	}

	if err := c.SelectRow(selection.RoleSource, 0); err != nil {
		t.Fatalf("SelectRow: %v", err)
	}
	if sel := c.Selected(); sel.Source == nil || sel.Source.ID != "Y" {
		t.Error("valid index should fill the slot")
	}
}

func TestEscapeClosesSuggestions(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, _, _ := newTestControl(t, svc)

	c.Search(selection.RoleSource, "gala")
	c.Search(selection.RoleTarget, "kadi")
	c.Escape()
	if len(c.Suggestions(selection.RoleSource)) != 0 || len(c.Suggestions(selection.RoleTarget)) != 0 {
		t.Error("escape should drop both suggestion lists")
	}
	if err := c.Confirm(selection.RoleTarget); err != nil {
		t.Errorf("confirm after escape must be a no-op, got %v", err)
	}
	if sel := c.Selected(); sel.Target != nil {
		t.Error("escape must not change the slot")
	}
}

func TestMapClickFillsFocusedSlot(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, _, _ := newTestControl(t, svc)

	if _, ok := c.MapClick(orb.Point{28.977, 41.013}); ok {
		t.Error("click with no focused endpoint must change nothing")
	}

	c.Activate(selection.RoleSource)
	loc, ok := c.MapClick(orb.Point{28.9772, 41.0131})
	if !ok || loc.ID != "X" {
		t.Fatalf("MapClick = (%s, %v), want X", loc.ID, ok)
	}
	if sel := c.Selected(); sel.Source == nil || sel.Source.ID != "X" {
		t.Error("click should fill the focused slot")
	}
}

func TestCursorHintTracksFocus(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, surface, _ := newTestControl(t, svc)

	hint := func() bool {
		surface.mu.Lock()
		defer surface.mu.Unlock()
		return surface.cursorHint
	}

	c.Activate(selection.RoleSource)
	if !hint() {
		t.Error("activating an endpoint should arm the map cursor hint")
	}
	c.Blur()
	if hint() {
		t.Error("blur should disarm the cursor hint")
	}

	// Filling the second slot clears focus, and the hint with it.
	c.SetSource("X")
	c.SetTarget("Z")
	c.Wait()
	if hint() {
		t.Error("a complete pair leaves no endpoint armed")
	}
}

func TestDuplicateEndpointRejected(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, _, _ := newTestControl(t, svc)

	c.SetSource("X")
	if err := c.SetTarget("X"); !errors.Is(err, selection.ErrDuplicateEndpoint) {
		t.Errorf("err = %v, want ErrDuplicateEndpoint", err)
	}
}

func TestFetchDurationsObservedByKind(t *testing.T) {
	svc := &stubService{
		features: corpusPayload(),
		detail:   &geodata.NodeDetail{Names: []geodata.NodeName{{Name: "Stamboul"}}},
	}
	met := metrics.NewCollector()
	c, err := New(context.Background(), svc, newFakeSurface(), &fakeView{}, Options{
		Year:     1910,
		Debounce: 5 * time.Millisecond,
		Metrics:  met,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)

	c.SetSource("X")
	c.SetTarget("Z")
	c.Wait()
	if _, err := c.NodeNames(context.Background(), "Y"); err != nil {
		t.Fatalf("NodeNames failed: %v", err)
	}

	rec := httptest.NewRecorder()
	met.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, kind := range []string{"corpus", "route", "detail"} {
		want := fmt.Sprintf(`routing_fetch_duration_seconds_count{kind=%q} 1`, kind)
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestSetYearRefetchesRoute(t *testing.T) {
	svc := &stubService{features: corpusPayload()}
	c, _, _ := newTestControl(t, svc)

	c.SetSource("X")
	c.SetTarget("Z")
	c.Wait()
	before := svc.routeCalls.Load()

	c.SetYear(1880)
	c.Wait()
	if got := svc.routeCalls.Load(); got != before+1 {
		t.Errorf("route calls = %d after year change, want %d", got, before+1)
	}
	if c.Year() != 1880 {
		t.Errorf("Year() = %d, want 1880", c.Year())
	}

	// Setting the same year again is a no-op.
	c.SetYear(1880)
	c.Wait()
	if got := svc.routeCalls.Load(); got != before+1 {
		t.Errorf("same-year SetYear refetched (calls = %d)", got)
	}
}
