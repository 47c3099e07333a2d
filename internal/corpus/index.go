package corpus

import (
	"strings"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// Corpus is an immutable snapshot of normalized locations with the
// lookup indexes the interactive pipeline needs: identifier lookup,
// the header-to-members cluster relation, and point geometry for
// nearest-neighbor hit-testing. Build it once per corpus fetch.
type Corpus struct {
	locs []Location

	// byID keeps corpus-order indexes of every record sharing an
	// identifier; alternate-name records make this one-to-many.
	byID map[string][]int

	// members maps a header identifier to the corpus-order indexes of
	// records that name it as their cluster parent. The relation is one
	// level deep, never recursive.
	members map[string][]int

	// points pairs each corpus index that has point geometry with its
	// s2 position, for NearestWithin.
	points []indexedPoint
}

type indexedPoint struct {
	idx int
	ll  s2.LatLng
}

// New builds a corpus over normalized locations. The slice is retained;
// callers must not mutate it afterwards.
func New(locs []Location) *Corpus {
	c := &Corpus{
		locs:    locs,
		byID:    make(map[string][]int),
		members: make(map[string][]int),
	}

	for i, loc := range locs {
		c.byID[loc.ID] = append(c.byID[loc.ID], i)
		if loc.Cluster != "" {
			c.members[loc.Cluster] = append(c.members[loc.Cluster], i)
		}
		if p, ok := loc.Point(); ok {
			c.points = append(c.points, indexedPoint{
				idx: i,
				ll:  s2.LatLngFromDegrees(p[1], p[0]),
			})
		}
	}

	return c
}

// Len returns the number of records in the corpus.
func (c *Corpus) Len() int {
	return len(c.locs)
}

// At returns the record at a corpus index.
func (c *Corpus) At(i int) Location {
	return c.locs[i]
}

// Locations returns a copy of all records in corpus order.
func (c *Corpus) Locations() []Location {
	out := make([]Location, len(c.locs))
	copy(out, c.locs)
	return out
}

// ByID returns every record sharing an identifier, in corpus order.
func (c *Corpus) ByID(id string) []Location {
	idxs := c.byID[id]
	out := make([]Location, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, c.locs[i])
	}
	return out
}

// Resolve returns the best record for an identifier, preferring one
// with usable point geometry so a displayable representative wins over
// a bare alternate-name record.
func (c *Corpus) Resolve(id string) (Location, bool) {
	idxs := c.byID[id]
	if len(idxs) == 0 {
		return Location{}, false
	}
	for _, i := range idxs {
		if c.locs[i].HasUsablePoint() {
			return c.locs[i], true
		}
	}
	return c.locs[idxs[0]], true
}

// HasMembers reports whether any record in the corpus names id as its
// cluster parent.
func (c *Corpus) HasMembers(id string) bool {
	return len(c.members[id]) > 0
}

// Members returns the records clustered under a header identifier, in
// corpus order.
func (c *Corpus) Members(id string) []Location {
	idxs := c.members[id]
	out := make([]Location, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, c.locs[i])
	}
	return out
}

// MemberIndexes returns corpus indexes of the records clustered under a
// header identifier.
func (c *Corpus) MemberIndexes(id string) []int {
	return c.members[id]
}

// IndexesByID returns corpus indexes of every record sharing an
// identifier.
func (c *Corpus) IndexesByID(id string) []int {
	return c.byID[id]
}

// NamesFor returns every name carried by records sharing an identifier.
func (c *Corpus) NamesFor(id string) []string {
	var names []string
	for _, i := range c.byID[id] {
		if n := c.locs[i].Name; n != "" {
			names = append(names, n)
		}
	}
	return names
}

// AlternateNames returns the distinct names (case-insensitive) shared
// by records with the given identifier, excluding the primary display
// name.
func (c *Corpus) AlternateNames(id, primary string) []string {
	seen := map[string]bool{strings.ToLower(primary): true}
	var out []string
	for _, name := range c.NamesFor(id) {
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// NearestWithin finds the record with point geometry closest to pt,
// rejecting anything farther than toleranceDeg degrees of arc. Ties go
// to the smallest distance; among exact ties the earliest corpus record
// wins.
func (c *Corpus) NearestWithin(pt orb.Point, toleranceDeg float64) (Location, bool) {
	target := s2.LatLngFromDegrees(pt[1], pt[0])
	limit := s1.Angle(toleranceDeg) * s1.Degree

	best := -1
	bestDist := limit
	for _, ip := range c.points {
		d := ip.ll.Distance(target)
		if d > limit {
			continue
		}
		if best == -1 || d < bestDist {
			best = ip.idx
			bestDist = d
		}
	}

	if best == -1 {
		return Location{}, false
	}
	return c.locs[best], true
}
