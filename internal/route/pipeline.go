package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/bosth/ottoman-routing/internal/corpus"
	"github.com/bosth/ottoman-routing/internal/geodata"
)

// ErrEmptyRoute is returned when the route payload lacks the expected
// segment list.
var ErrEmptyRoute = errors.New("route payload has no segments")

// ErrDetailUnavailable marks a node-detail fetch failure. It is scoped
// to the one expanded node; the rest of the itinerary is unaffected.
var ErrDetailUnavailable = errors.New("node detail unavailable")

// detailCacheSize bounds the per-session alternate-name cache.
const detailCacheSize = 256

// Result is a fully annotated route: styled segments for the map,
// collapsed itinerary steps for the sidebar, and the combined geometry
// for viewport fitting.
type Result struct {
	SourceID string
	TargetID string
	Segments []Segment
	Steps    []Step
	Geometry orb.Collection
}

// Pipeline fetches routes and turns them into drawable, readable
// output. It is owned by one control instance and is not safe for
// concurrent mutation except through the cache, which is.
type Pipeline struct {
	svc  geodata.Service
	c    *corpus.Corpus
	year int
	rnd  *rand.Rand

	// slot resolves a node against the current selection slots, so an
	// itinerary endpoint shows exactly the record the user picked.
	slot func(id string) (corpus.Location, bool)

	mu      sync.Mutex
	details gcache.Cache
}

type detailKey struct {
	id   string
	year int
}

// NewPipeline builds a pipeline over a geodata backend and corpus.
func NewPipeline(svc geodata.Service, c *corpus.Corpus, year int) *Pipeline {
	return &Pipeline{
		svc:     svc,
		c:       c,
		year:    year,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		details: gcache.New(detailCacheSize).LRU().Build(),
	}
}

// SetSlotResolver installs the selection-slot lookup used for node
// display names.
func (p *Pipeline) SetSlotResolver(f func(id string) (corpus.Location, bool)) {
	p.slot = f
}

// Year returns the current time-context.
func (p *Pipeline) Year() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.year
}

// SetYear changes the time-context. The detail cache is dropped because
// line membership depends on the year.
func (p *Pipeline) SetYear(year int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if year == p.year {
		return
	}
	p.year = year
	p.details.Purge()
}

// Plan fetches and annotates the route between two identifiers. The
// rail palette is shuffled once per call, so repeated lines keep one
// color within the result but not across refetches.
func (p *Pipeline) Plan(ctx context.Context, sourceID, targetID string) (*Result, error) {
	fc, err := p.svc.Route(ctx, sourceID, targetID, p.Year())
	if err != nil {
		return nil, fmt.Errorf("route fetch failed: %w", err)
	}
	if fc == nil || len(fc.Features) == 0 {
		return nil, ErrEmptyRoute
	}

	p.mu.Lock()
	pal := newPalette(p.rnd)
	p.mu.Unlock()
	segs := make([]Segment, 0, len(fc.Features))
	var geom orb.Collection

	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		seg := Segment{
			SourceID: propString(f, "source"),
			TargetID: propString(f, "target"),
			Line:     propString(f, "line"),
			Mode:     ModeFromCode(propInt(f, "mode")),
			Cost:     propFloat(f, "cost"),
			Geometry: f.Geometry,
		}
		if seg.Line == "" {
			seg.Line = propString(f, "name")
		}
		seg.Color = p.segmentColor(f, seg, pal)

		segs = append(segs, seg)
		if !seg.IsSwitch() && seg.Geometry != nil {
			geom = append(geom, seg.Geometry)
		}
	}

	res := &Result{
		SourceID: sourceID,
		TargetID: targetID,
		Segments: segs,
		Steps:    BuildItinerary(segs, p.nodeInfo),
		Geometry: geom,
	}
	return res, nil
}

// segmentColor picks the display color: an explicit colour override
// wins, then endpoint-derived for waterborne modes, then the per-line
// palette for rail-like modes, else neutral.
func (p *Pipeline) segmentColor(f *geojson.Feature, seg Segment, pal *palette) string {
	if override := propString(f, "colour"); override != "" {
		return override
	}
	switch {
	case seg.Mode.Waterborne():
		return waterColor(seg.SourceID, seg.TargetID)
	case seg.Mode.RailLike():
		return pal.lineColor(seg.Line)
	default:
		return neutralColor
	}
}

// nodeInfo resolves a node's display context: the exact record held in
// a selection slot, then a corpus record with usable point geometry,
// then any corpus record, then the bare identifier.
func (p *Pipeline) nodeInfo(id string) NodeInfo {
	if p.slot != nil {
		if loc, ok := p.slot(id); ok {
			return nodeInfoFrom(id, loc)
		}
	}
	if loc, ok := p.c.Resolve(id); ok {
		return nodeInfoFrom(id, loc)
	}
	return NodeInfo{Label: id}
}

func nodeInfoFrom(id string, loc corpus.Location) NodeInfo {
	label := loc.Name
	if label == "" {
		label = id
	}
	return NodeInfo{Label: label, RankLabel: loc.RankLabel()}
}

// NodeNames returns alternate names and serving lines for a node,
// fetched lazily and cached per (id, year). Corpus records sharing the
// identifier contribute their names first, then the detail endpoint's;
// the primary display name and duplicates are filtered out.
func (p *Pipeline) NodeNames(ctx context.Context, id string) (*geodata.NodeDetail, error) {
	p.mu.Lock()
	cache := p.details
	year := p.year
	p.mu.Unlock()

	key := detailKey{id: id, year: year}
	if v, err := cache.Get(key); err == nil {
		return v.(*geodata.NodeDetail), nil
	}

	detail, err := p.svc.NodeDetail(ctx, id, year)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrDetailUnavailable, id, err)
	}

	filtered := &geodata.NodeDetail{Lines: detail.Lines}
	primary := p.nodeInfo(id).Label
	seen := map[string]bool{strings.ToLower(primary): true}
	for _, alt := range p.c.AlternateNames(id, primary) {
		seen[strings.ToLower(alt)] = true
		filtered.Names = append(filtered.Names, geodata.NodeName{Name: alt})
	}
	for _, n := range detail.Names {
		nameKey := strings.ToLower(n.Name)
		if n.Name == "" || seen[nameKey] {
			continue
		}
		seen[nameKey] = true
		filtered.Names = append(filtered.Names, n)
	}

	cache.Set(key, filtered)
	return filtered, nil
}

// Property coercion tolerates the string/number variance real payloads
// show.

func propString(f *geojson.Feature, key string) string {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func propInt(f *geojson.Feature, key string) int {
	switch t := f.Properties[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return -1
}

func propFloat(f *geojson.Feature, key string) float64 {
	switch t := f.Properties[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		if v, err := strconv.ParseFloat(t, 64); err == nil {
			return v
		}
	}
	return 0
}
