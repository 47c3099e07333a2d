// Package viewport computes a centered, zoomed camera for arbitrary
// geometry while compensating for a floating UI panel that visually
// occupies part of the map viewport.
package viewport

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

const (
	tileSize = 256.0

	// EaseDuration is the fixed pan/zoom transition length; the map
	// surface animates rather than jumping.
	EaseDuration = 1200 * time.Millisecond

	// maxPanelShare caps how much of the viewport width the panel
	// overlap may claim as padding.
	maxPanelShare = 0.6

	// panelMargin is the fixed margin added beyond the panel overlap.
	panelMargin = 16.0

	padTop    = 48.0
	padRight  = 48.0
	padBottom = 48.0
)

// View is the visible map viewport in pixels.
type View struct {
	Width  float64
	Height float64
}

// Rect is the panel's bounding rectangle in viewport coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Camera is the fitted view the map surface should ease to.
type Camera struct {
	Center   orb.Point
	Zoom     float64
	Duration time.Duration
}

// Fit computes the camera enclosing the geometry inside the inner
// viewport: the visible viewport minus asymmetric padding, where the
// left padding follows the panel overlap. One zoom level is subtracted
// from the exact fit so content never touches the edges. A degenerate
// (zero width or height) bounding box falls back to centering on the
// point one zoom level below the current zoom.
func Fit(g orb.Geometry, view View, panel Rect, currentZoom float64) Camera {
	if g == nil {
		return Camera{Zoom: zoomFloor(currentZoom - 1), Duration: EaseDuration}
	}

	b := g.Bound()
	if b.Left() == b.Right() || b.Bottom() == b.Top() {
		return Camera{
			Center:   b.Center(),
			Zoom:     zoomFloor(currentZoom - 1),
			Duration: EaseDuration,
		}
	}

	leftPad := leftPadding(view, panel)
	innerW := math.Max(view.Width-leftPad-padRight, 1)
	innerH := math.Max(view.Height-padTop-padBottom, 1)

	// Project the box corners into the Web-Mercator unit plane.
	x1, x2 := mercX(b.Left()), mercX(b.Right())
	yTop, yBottom := mercY(b.Top()), mercY(b.Bottom())
	dx := x2 - x1
	dy := yBottom - yTop

	zoomX := math.Log2(innerW / (tileSize * dx))
	zoomY := math.Log2(innerH / (tileSize * dy))
	zoom := zoomFloor(math.Min(zoomX, zoomY) - 1)

	// Shift the camera so the content centers inside the inner viewport
	// rather than behind the panel.
	worldPx := tileSize * math.Exp2(zoom)
	cx := (x1+x2)/2 - (leftPad-padRight)/2/worldPx
	cy := (yTop+yBottom)/2 - (padTop-padBottom)/2/worldPx

	return Camera{
		Center:   orb.Point{invMercX(cx), invMercY(cy)},
		Zoom:     zoom,
		Duration: EaseDuration,
	}
}

// leftPadding is the horizontal overlap between the panel rectangle and
// the viewport, capped at maxPanelShare of the viewport width, plus a
// small fixed margin.
func leftPadding(view View, panel Rect) float64 {
	overlap := math.Min(panel.X+panel.Width, view.Width) - math.Max(panel.X, 0)
	if overlap < 0 {
		overlap = 0
	}
	if limit := maxPanelShare * view.Width; overlap > limit {
		overlap = limit
	}
	return overlap + panelMargin
}

func zoomFloor(z float64) float64 {
	if z < 0 {
		return 0
	}
	return z
}

func mercX(lon float64) float64 {
	return (lon + 180) / 360
}

func mercY(lat float64) float64 {
	rad := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(math.Pi/4+rad/2))/math.Pi) / 2
}

func invMercX(x float64) float64 {
	return x*360 - 180
}

func invMercY(y float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*y))) * 180 / math.Pi
}
