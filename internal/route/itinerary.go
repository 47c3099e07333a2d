package route

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// switchLine is the reserved line name marking a same-node line/mode
// change.
const switchLine = "switch"

// Segment is one annotated leg of a route.
type Segment struct {
	SourceID string
	TargetID string
	Line     string
	Mode     Mode
	Cost     float64 // minutes
	Color    string
	Geometry orb.Geometry
}

// IsSwitch reports whether the segment is a zero-distance same-node
// switch event. Both conditions must hold: the reserved line name and
// equal endpoints.
func (s Segment) IsSwitch() bool {
	return strings.EqualFold(s.Line, switchLine) && s.SourceID == s.TargetID
}

// StepKind distinguishes node and segment itinerary rows.
type StepKind int

const (
	StepNode StepKind = iota
	StepSegment
)

// Terminal marks the visual treatment of the endpoints.
type Terminal int

const (
	TerminalNone Terminal = iota
	TerminalSource
	TerminalDestination
)

// Step is one itinerary row, alternating node and segment kinds.
type Step struct {
	Kind StepKind

	// Node fields.
	NodeID    string
	Label     string
	RankLabel string
	Terminal  Terminal

	// Segment fields.
	Line      string
	Mode      Mode
	Color     string
	Cost      float64
	CostLabel string
}

// NodeInfo is the resolved display context for a node row.
type NodeInfo struct {
	Label     string
	RankLabel string
}

// BuildItinerary collapses a segment list into alternating node and
// segment rows. Switch segments contribute no row of their own; instead
// the rank label of their source node annotates the surrounding node
// row, so the user sees that a change happened there without a
// same-place-to-itself entry.
func BuildItinerary(segs []Segment, resolve func(id string) NodeInfo) []Step {
	if len(segs) == 0 {
		return nil
	}

	first := resolve(segs[0].SourceID)
	steps := []Step{{
		Kind:      StepNode,
		NodeID:    segs[0].SourceID,
		Label:     first.Label,
		RankLabel: first.RankLabel,
		Terminal:  TerminalSource,
	}}
	lastNode := 0

	for _, seg := range segs {
		if seg.IsSwitch() {
			steps[lastNode].RankLabel = resolve(seg.SourceID).RankLabel
			continue
		}

		steps = append(steps, Step{
			Kind:      StepSegment,
			Line:      seg.Line,
			Mode:      seg.Mode,
			Color:     seg.Color,
			Cost:      seg.Cost,
			CostLabel: humanizeCost(seg.Cost),
		})

		info := resolve(seg.TargetID)
		steps = append(steps, Step{
			Kind:      StepNode,
			NodeID:    seg.TargetID,
			Label:     info.Label,
			RankLabel: info.RankLabel,
		})
		lastNode = len(steps) - 1
	}

	steps[lastNode].Terminal = TerminalDestination
	return steps
}

// humanizeCost renders a duration in minutes for display.
func humanizeCost(minutes float64) string {
	m := int(math.Round(minutes))
	if m < 0 {
		m = 0
	}
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	h, rem := m/60, m%60
	if rem == 0 {
		return fmt.Sprintf("%d h", h)
	}
	return fmt.Sprintf("%d h %d min", h, rem)
}
