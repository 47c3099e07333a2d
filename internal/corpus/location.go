package corpus

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// UnrankedSentinel is assigned when a record carries no usable rank.
// It sorts after every real rank value.
const UnrankedSentinel = 9999

// rankLabels maps known rank classes to display labels. Ranks outside
// the table display as the raw number.
var rankLabels = map[int]string{
	1: "station",
	2: "stop",
	3: "halt",
	4: "dock",
	5: "pier",
	6: "landing",
	7: "junction",
}

// RankLabel returns the display label for a rank class.
func RankLabel(rank int) string {
	if label, ok := rankLabels[rank]; ok {
		return label
	}
	return strconv.Itoa(rank)
}

// Location is the canonical shape of one corpus record. Several records
// may share one ID; each such record is an alternate name for the same
// physical place.
type Location struct {
	ID      string
	Name    string
	Rank    int
	Cluster string
	// Geometry is passed through as-is; consumers must check the type
	// before use. A point at the origin counts as no usable geometry.
	Geometry orb.Geometry
	// Extra holds every property not mapped to a canonical field,
	// preserved verbatim so unknown future fields survive the pipeline.
	Extra map[string]interface{}
}

// Point returns the location's coordinate if its geometry is a point.
func (l Location) Point() (orb.Point, bool) {
	p, ok := l.Geometry.(orb.Point)
	return p, ok
}

// HasUsablePoint reports whether the location has point geometry away
// from the origin.
func (l Location) HasUsablePoint() bool {
	p, ok := l.Point()
	return ok && (p[0] != 0 || p[1] != 0)
}

// RankLabel returns the display label for this location's rank.
func (l Location) RankLabel() string {
	return RankLabel(l.Rank)
}

// Normalize converts a raw feature collection into canonical locations.
// No record is dropped and no input is mutated.
func Normalize(fc *geojson.FeatureCollection) []Location {
	if fc == nil {
		return nil
	}

	locs := make([]Location, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}

		loc := Location{
			Rank:     UnrankedSentinel,
			Geometry: f.Geometry,
			Extra:    make(map[string]interface{}),
		}

		// Identifier resolution: top-level id, then properties.id, then
		// properties.ID, else empty string. Always a string, never nil.
		if f.ID != nil {
			loc.ID = coerceString(f.ID)
		}
		if loc.ID == "" {
			if v, ok := f.Properties["id"]; ok {
				loc.ID = coerceString(v)
			}
		}
		if loc.ID == "" {
			if v, ok := f.Properties["ID"]; ok {
				loc.ID = coerceString(v)
			}
		}

		if v, ok := f.Properties["name"]; ok {
			loc.Name = coerceString(v)
		}
		if loc.Name == "" {
			if v, ok := f.Properties["title"]; ok {
				loc.Name = coerceString(v)
			}
		}

		if v, ok := f.Properties["rank"]; ok {
			if r, ok := coerceInt(v); ok {
				loc.Rank = r
			}
		}

		if v, ok := f.Properties["cluster"]; ok {
			loc.Cluster = coerceString(v)
		}

		for k, v := range f.Properties {
			switch k {
			case "id", "ID", "name", "title", "rank", "cluster":
			default:
				loc.Extra[k] = v
			}
		}

		locs = append(locs, loc)
	}

	return locs
}

// coerceString renders scalar property values as strings. JSON numbers
// arrive as float64; integral values must not pick up a ".0" suffix or
// identifier equality breaks.
func coerceString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func coerceInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}
