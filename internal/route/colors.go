package route

import (
	"hash/fnv"
	"math/rand"
)

// neutralColor styles walk, road, chaussee, transfer and connection
// segments.
const neutralColor = "#7a7a7a"

// railPalette is the pool of line colors for rail-like modes. It is
// shuffled once per fetch and assigned per distinct line key, so a line
// keeps one color within a render. Colors are not stable across
// refetches; that is documented behavior.
var railPalette = []string{
	"#b3261e",
	"#1e66b3",
	"#1e8c3a",
	"#c28a00",
	"#7b1fa2",
	"#00838f",
	"#d84315",
	"#4e342e",
}

// waterPalette is the pool of ferry/ship colors; the pick is derived
// from the segment endpoints so one crossing keeps its color across
// fetches.
var waterPalette = []string{
	"#1565c0",
	"#0277bd",
	"#006064",
	"#283593",
}

// palette hands out line colors for one fetch.
type palette struct {
	order    []string
	assigned map[string]string
	next     int
}

// newPalette shuffles the rail palette with the given source.
func newPalette(rnd *rand.Rand) *palette {
	order := make([]string, len(railPalette))
	copy(order, railPalette)
	rnd.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return &palette{order: order, assigned: make(map[string]string)}
}

// lineColor returns the color assigned to a line key, assigning the
// next palette entry on first sight. The palette wraps when more
// distinct lines appear than it has colors.
func (p *palette) lineColor(line string) string {
	if c, ok := p.assigned[line]; ok {
		return c
	}
	c := p.order[p.next%len(p.order)]
	p.next++
	p.assigned[line] = c
	return c
}

// waterColor derives a stable color for a ferry/ship crossing from its
// endpoint identifiers, order-independent.
func waterColor(sourceID, targetID string) string {
	a, b := sourceID, targetID
	if b < a {
		a, b = b, a
	}
	h := fnv.New32a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	return waterPalette[h.Sum32()%uint32(len(waterPalette))]
}
