package geometry

import "math"

// mergeSlack is the maximum gap (in document pixels) between two rects on the
// same line that Sanitize still merges into one.
const mergeSlack = 1.0

// Rect is an axis-aligned rectangle. Stored annotation rects are in document
// space, normalized to a fit ratio of 1.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Right returns the right edge coordinate.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the bottom edge coordinate.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// IsEmpty reports whether the rect has no area.
func (r Rect) IsEmpty() bool { return r.W <= 0 || r.H <= 0 }

// Contains reports whether the point (x, y) lies inside the rect.
// Edges count as inside on the top/left, outside on the bottom/right.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Scale maps the rect by a uniform factor. Rendering uses
// factor = fitRatio * zoomFactor to go from document to viewport space.
func (r Rect) Scale(factor float64) Rect {
	return Rect{X: r.X * factor, Y: r.Y * factor, W: r.W * factor, H: r.H * factor}
}

// RelativeTo converts a viewport-space rect into the document space of the
// given anchor rect, dividing out the current render scale.
func RelativeTo(anchor Rect, r Rect, scale float64) Rect {
	if scale == 0 {
		scale = 1
	}
	return Rect{
		X: (r.X - anchor.X) / scale,
		Y: (r.Y - anchor.Y) / scale,
		W: r.W / scale,
		H: r.H / scale,
	}
}

// Union returns the minimal rect covering all given rects.
// Empty input yields the zero Rect.
func Union(rects []Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, r := range rects {
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.Right())
		maxY = math.Max(maxY, r.Bottom())
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Sanitize deduplicates a rect list: empty rects and rects fully contained in
// another are dropped, and rects sharing a line (same vertical extent) that
// overlap or nearly touch horizontally are merged. Selection ranges routinely
// produce such duplicates, one per text node.
func Sanitize(rects []Rect) []Rect {
	kept := make([]Rect, 0, len(rects))
	for _, r := range rects {
		if r.IsEmpty() {
			continue
		}
		merged := false
		for i, k := range kept {
			switch {
			case contains(k, r):
				merged = true
			case contains(r, k):
				kept[i] = r
				merged = true
			case sameLine(k, r) && horizontalGap(k, r) <= mergeSlack:
				kept[i] = Union([]Rect{k, r})
				merged = true
			}
			if merged {
				break
			}
		}
		if !merged {
			kept = append(kept, r)
		}
	}
	return kept
}

func contains(outer, inner Rect) bool {
	return inner.X >= outer.X && inner.Y >= outer.Y &&
		inner.Right() <= outer.Right() && inner.Bottom() <= outer.Bottom()
}

func sameLine(a, b Rect) bool {
	return math.Abs(a.Y-b.Y) <= mergeSlack && math.Abs(a.H-b.H) <= mergeSlack
}

func horizontalGap(a, b Rect) float64 {
	if a.X > b.X {
		a, b = b, a
	}
	return b.X - a.Right()
}
