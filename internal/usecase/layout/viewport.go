package layout

import "github.com/lectern-labs/lectern/internal/domain/geometry"

// Zoom bounds enforced at the engine edge.
const (
	MinZoom = 1.0
	MaxZoom = 5.0
)

// Viewport describes the rendered document surface annotations are laid out
// on. Coordinates in document space scale by FitRatio*Zoom to reach it.
type Viewport struct {
	// WidthPx is the rendered document width in pixels.
	WidthPx float64
	// FitRatio scales document space to the fit-to-width rendering.
	FitRatio float64
	// Zoom is the user zoom factor, clamped to [MinZoom, MaxZoom].
	Zoom float64
}

// ClampZoom forces a zoom factor into the allowed range.
func ClampZoom(zoom float64) float64 {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}

// Scale returns the document-to-viewport scale factor.
func (v Viewport) Scale() float64 {
	return v.FitRatio * ClampZoom(v.Zoom)
}

// ToViewport converts a document-space rect to viewport space.
func (v Viewport) ToViewport(r geometry.Rect) geometry.Rect {
	return r.Scale(v.Scale())
}

// ToDocument converts a viewport-space rect back to document space.
func (v Viewport) ToDocument(anchor, r geometry.Rect) geometry.Rect {
	return geometry.RelativeTo(anchor, r, v.Scale())
}
