// Package control owns one planning session: the corpus, the two-slot
// selection, suggestion state per endpoint, the current route, and the
// camera. All mutable state sits behind one mutex; fetches run in
// generation-counted goroutines so a superseded fetch can never
// overwrite newer state.
package control

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/bosth/ottoman-routing/internal/corpus"
	"github.com/bosth/ottoman-routing/internal/geodata"
	"github.com/bosth/ottoman-routing/internal/metrics"
	"github.com/bosth/ottoman-routing/internal/route"
	"github.com/bosth/ottoman-routing/internal/selection"
	"github.com/bosth/ottoman-routing/internal/suggest"
	"github.com/bosth/ottoman-routing/internal/viewport"
)

// DefaultDebounce is the typed-input settle window per endpoint.
const DefaultDebounce = 160 * time.Millisecond

// MapSurface is the map layer the control drives: selection markers,
// the drawn route, and camera easing.
type MapSurface interface {
	selection.Surface
	SetRoute(segs []route.Segment)
	ClearRoute()
	EaseTo(cam viewport.Camera)
	// SetCursorHint reflects whether an endpoint is armed for a map
	// click.
	SetCursorHint(active bool)
}

// ItineraryView is the sidebar the control drives.
type ItineraryView interface {
	ShowItinerary(steps []route.Step)
	ClearItinerary()
}

// Options configures a control instance. Zero values fall back to
// defaults.
type Options struct {
	Year           int
	MaxSuggestions int
	Debounce       time.Duration
	Matcher        suggest.Matcher
	Metrics        *metrics.Collector

	// Features supplies the corpus in-memory; when set, New skips the
	// backend fetch.
	Features *geojson.FeatureCollection
}

// Selected is a copy of the endpoint slots.
type Selected struct {
	Source *corpus.Location
	Target *corpus.Location
}

// Control is one session's state machine. Safe for concurrent use.
type Control struct {
	mu sync.Mutex

	svc     geodata.Service
	c       *corpus.Corpus
	fc      *geojson.FeatureCollection
	engine  *suggest.Engine
	sel     *selection.Machine
	pipe    *route.Pipeline
	surface MapSurface
	view    ItineraryView
	met     *metrics.Collector

	debounce time.Duration

	// Per-role suggestion state. Timers and generations implement the
	// debounce: a firing timer whose generation is stale does nothing.
	inputGen [2]uint64
	timers   [2]*time.Timer
	rows     [2][]suggest.Row
	cursor   [2]*suggest.Cursor

	// Route fetch state. Each fetch carries the generation it was
	// started under; completions tagged with an older generation are
	// discarded.
	routeGen    uint64
	routeCancel context.CancelFunc
	current     *route.Result
	camera      *viewport.Camera

	viewSize viewport.View
	panel    viewport.Rect
	zoom     float64

	wg sync.WaitGroup
}

// New loads the corpus from the geodata backend and builds a control
// over it. A corpus-load failure is fatal; there is nothing to interact
// with without one.
func New(ctx context.Context, svc geodata.Service, surface MapSurface, view ItineraryView, opts Options) (*Control, error) {
	if opts.Year == 0 {
		opts.Year = 1910
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}

	fc := opts.Features
	if fc == nil {
		start := time.Now()
		var err error
		fc, err = svc.Features(ctx, opts.Year)
		if err != nil {
			return nil, fmt.Errorf("corpus load failed: %w", err)
		}
		if opts.Metrics != nil {
			opts.Metrics.FetchDuration.WithLabelValues("corpus").Observe(time.Since(start).Seconds())
		}
	}

	c := &Control{
		svc:      svc,
		fc:       fc,
		surface:  surface,
		view:     view,
		met:      opts.Metrics,
		debounce: opts.Debounce,
		viewSize: viewport.View{Width: 1280, Height: 800},
		zoom:     12,
	}

	c.c = corpus.New(corpus.Normalize(fc))
	c.engine = suggest.NewEngine(c.c, opts.Matcher, opts.MaxSuggestions)
	c.sel = selection.NewMachine(c.c, surface)
	c.sel.SetOnChange(c.selectionChangedLocked)
	c.pipe = route.NewPipeline(svc, c.c, opts.Year)
	c.pipe.SetSlotResolver(c.sel.Lookup)

	return c, nil
}

// Close cancels any in-flight fetch and pending debounce timers.
func (c *Control) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.timers {
		if t != nil {
			t.Stop()
			c.timers[i] = nil
		}
	}
	c.inputGen[0]++
	c.inputGen[1]++
	c.routeGen++
	if c.routeCancel != nil {
		c.routeCancel()
		c.routeCancel = nil
	}
}

// Wait blocks until in-flight route fetches settle. Intended for tests
// and for callers that read the route right after changing a slot.
func (c *Control) Wait() {
	c.wg.Wait()
}

// Features returns the raw corpus collection, for the frontend's base
// layer.
func (c *Control) Features() *geojson.FeatureCollection {
	return c.fc
}

// Corpus returns the immutable normalized corpus.
func (c *Control) Corpus() *corpus.Corpus {
	return c.c
}

// SetSource assigns the source slot from a Location, *Location, or
// identifier string. nil clears the slot.
func (c *Control) SetSource(v any) error {
	return c.setSlot(selection.RoleSource, v)
}

// SetTarget assigns the target slot; same forms as SetSource.
func (c *Control) SetTarget(v any) error {
	return c.setSlot(selection.RoleTarget, v)
}

func (c *Control) setSlot(role selection.Role, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer c.syncCursorHintLocked()
	switch t := v.(type) {
	case nil:
		c.sel.Clear(role)
		return nil
	case corpus.Location:
		return c.sel.Set(role, t)
	case *corpus.Location:
		if t == nil {
			c.sel.Clear(role)
			return nil
		}
		return c.sel.Set(role, *t)
	case string:
		return c.sel.ResolveAndSet(role, t)
	default:
		return fmt.Errorf("unsupported slot value %T", v)
	}
}

// Selected returns a copy of both slots.
func (c *Control) Selected() Selected {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out Selected
	if loc, ok := c.sel.Slot(selection.RoleSource); ok {
		out.Source = &loc
	}
	if loc, ok := c.sel.Slot(selection.RoleTarget); ok {
		out.Target = &loc
	}
	return out
}

// Activate gives an endpoint's input focus.
func (c *Control) Activate(role selection.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel.Activate(role)
	c.syncCursorHintLocked()
}

// Blur drops input focus.
func (c *Control) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel.Blur()
	c.syncCursorHintLocked()
}

func (c *Control) syncCursorHintLocked() {
	if c.surface == nil {
		return
	}
	_, active := c.sel.Active()
	c.surface.SetCursorHint(active)
}

// Input feeds typed text for one endpoint. The search runs after the
// debounce window; further keystrokes within the window supersede it.
func (c *Control) Input(role selection.Role, query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sel.Activate(role)
	c.syncCursorHintLocked()
	c.inputGen[role]++
	gen := c.inputGen[role]

	if t := c.timers[role]; t != nil {
		t.Stop()
	}
	c.timers[role] = time.AfterFunc(c.debounce, func() {
		c.runSearch(role, gen, query)
	})
}

func (c *Control) runSearch(role selection.Role, gen uint64, query string) {
	rows := c.engine.Search(query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.inputGen[role] {
		return
	}
	c.rows[role] = rows
	c.cursor[role] = suggest.NewCursor(rows)
	if c.met != nil {
		c.met.Searches.Inc()
	}
}

// Search runs a suggestion query synchronously, bypassing the debounce,
// and installs the result as the endpoint's current list. The HTTP
// surface uses it; the debounce there lives client-side.
func (c *Control) Search(role selection.Role, query string) []suggest.Row {
	rows := c.engine.Search(query)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputGen[role]++
	c.sel.Activate(role)
	c.syncCursorHintLocked()
	c.rows[role] = rows
	c.cursor[role] = suggest.NewCursor(rows)
	if c.met != nil {
		c.met.Searches.Inc()
	}
	return rows
}

// Suggestions returns the endpoint's current suggestion list.
func (c *Control) Suggestions(role selection.Role) []suggest.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]suggest.Row, len(c.rows[role]))
	copy(out, c.rows[role])
	return out
}

// MoveCursor moves the endpoint's keyboard cursor; positive steps go
// down, negative up, wrapping circularly over selectable rows.
func (c *Control) MoveCursor(role selection.Role, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.cursor[role]
	if cur == nil {
		return
	}
	for ; delta > 0; delta-- {
		cur.Down()
	}
	for ; delta < 0; delta++ {
		cur.Up()
	}
}

// SelectRow picks a suggestion row by its index in the rendered list.
// Headings and out-of-range indexes are no-ops.
func (c *Control) SelectRow(role selection.Role, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := c.rows[role]
	if index < 0 || index >= len(rows) || !rows[index].Selectable() {
		return nil
	}
	return c.pickLocked(role, rows[index])
}

// Confirm applies the endpoint's confirm keypress: the cursor row when
// positioned, otherwise the first selectable row. With no suggestions
// it is a no-op.
func (c *Control) Confirm(role selection.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.cursor[role]
	if cur == nil {
		return nil
	}
	row, _, ok := cur.Confirm()
	if !ok {
		return nil
	}
	return c.pickLocked(role, row)
}

// Escape closes both endpoints' suggestion lists and drops focus
// without changing either slot.
func (c *Control) Escape() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeSuggestionsLocked(selection.RoleSource)
	c.closeSuggestionsLocked(selection.RoleTarget)
	c.sel.Blur()
	c.syncCursorHintLocked()
}

func (c *Control) pickLocked(role selection.Role, row suggest.Row) error {
	if err := c.sel.Set(role, row.Location); err != nil {
		return err
	}
	c.closeSuggestionsLocked(role)
	c.syncCursorHintLocked()
	return nil
}

func (c *Control) closeSuggestionsLocked(role selection.Role) {
	c.inputGen[role]++
	if t := c.timers[role]; t != nil {
		t.Stop()
		c.timers[role] = nil
	}
	c.rows[role] = nil
	c.cursor[role] = nil
}

// MapClick routes a map click to the focused endpoint. Misses,
// duplicate picks, and clicks with no focused endpoint change nothing.
func (c *Control) MapClick(pt orb.Point) (corpus.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, loc, ok := c.sel.Click(pt)
	if ok {
		c.syncCursorHintLocked()
	}
	return loc, ok
}

// SetYear changes the time-context and refetches the route if both
// endpoints are set.
func (c *Control) SetYear(year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if year == c.pipe.Year() {
		return
	}
	c.pipe.SetYear(year)
	c.selectionChangedLocked()
}

// Year returns the current time-context.
func (c *Control) Year() int {
	return c.pipe.Year()
}

// SetViewport updates the viewport geometry used for camera fitting.
func (c *Control) SetViewport(view viewport.View, panel viewport.Rect, zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewSize = view
	c.panel = panel
	c.zoom = zoom
}

// Route returns the current annotated route and fitted camera, when a
// route is displayed.
func (c *Control) Route() (*route.Result, *viewport.Camera, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, nil, false
	}
	return c.current, c.camera, true
}

// NodeNames returns alternate names and serving lines for one node.
// Failures are scoped to the node and leave all other state alone.
func (c *Control) NodeNames(ctx context.Context, id string) (*geodata.NodeDetail, error) {
	if c.met != nil {
		c.met.DetailFetches.Inc()
	}
	start := time.Now()
	detail, err := c.pipe.NodeNames(ctx, id)
	if c.met != nil {
		if err != nil {
			c.met.DetailErrors.Inc()
		} else {
			c.met.FetchDuration.WithLabelValues("detail").Observe(time.Since(start).Seconds())
		}
	}
	return detail, err
}

// selectionChangedLocked reacts to slot changes: a complete pair starts
// a route fetch, an incomplete one clears the displayed route. Called
// with the mutex held, via the selection machine's change callback.
func (c *Control) selectionChangedLocked() {
	src, tgt, ok := c.sel.Pair()
	if !ok {
		c.clearRouteLocked()
		return
	}

	c.routeGen++
	gen := c.routeGen
	if c.routeCancel != nil {
		c.routeCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.routeCancel = cancel

	if c.met != nil {
		c.met.RouteFetches.Inc()
	}
	c.wg.Add(1)
	go c.fetchRoute(ctx, gen, src.ID, tgt.ID)
}

func (c *Control) fetchRoute(ctx context.Context, gen uint64, sourceID, targetID string) {
	defer c.wg.Done()

	start := time.Now()
	res, err := c.pipe.Plan(ctx, sourceID, targetID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.routeGen {
		if c.met != nil {
			c.met.StaleDrops.Inc()
		}
		return
	}
	if c.met != nil {
		c.met.FetchDuration.WithLabelValues("route").Observe(time.Since(start).Seconds())
	}

	if err != nil {
		log.Printf("route: fetch %s -> %s failed: %v", sourceID, targetID, err)
		if c.met != nil {
			c.met.RouteErrors.Inc()
		}
		c.clearRouteLocked()
		return
	}

	c.current = res
	cam := viewport.Fit(res.Geometry, c.viewSize, c.panel, c.zoom)
	c.camera = &cam

	if c.surface != nil {
		c.surface.SetRoute(res.Segments)
		c.surface.EaseTo(cam)
	}
	if c.view != nil {
		c.view.ShowItinerary(res.Steps)
	}
}

func (c *Control) clearRouteLocked() {
	if c.current == nil && c.camera == nil {
		return
	}
	c.current = nil
	c.camera = nil
	if c.surface != nil {
		c.surface.ClearRoute()
	}
	if c.view != nil {
		c.view.ClearItinerary()
	}
}
