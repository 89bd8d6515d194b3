package lectern

import (
	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/domain/geometry"
	layoutuc "github.com/lectern-labs/lectern/internal/usecase/layout"
	textsearchuc "github.com/lectern-labs/lectern/internal/usecase/textsearch"
)

// Kind is the annotation variant.
type Kind string

const (
	KindHighlight Kind = "highlight"
	KindPindrop   Kind = "pindrop"
)

// Status is the annotation lifecycle stage.
type Status string

const (
	StatusPending Status = "pending"
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
)

// Rect is an axis-aligned rectangle in document space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Annotation is one reconciled annotation as seen by the viewer.
type Annotation struct {
	ID           string
	Page         int
	Kind         Kind
	Status       Status
	Creator      string
	Private      bool
	SelectedText string
	BoundingRect Rect
	ClientRects  []Rect
	// X and Y position a pindrop in page-relative coordinates.
	X, Y      float64
	Timestamp int64
	// Unread is the viewer's unread message count for the discussion;
	// UnreadAll marks the everything-unread sentinel.
	Unread    int
	UnreadAll bool
}

// SearchMatch is one full-text search hit.
type SearchMatch struct {
	Page int
	// Start and End delimit the matched span in the page's text.
	Start int
	End   int
	Text  string
	// Context is the span padded with surrounding text.
	Context string
}

// Viewport describes the caller's rendering of the document.
type Viewport struct {
	WidthPx  float64
	FitRatio float64
	Zoom     float64
}

// TabPlacement is one annotation tab positioned in viewport space. Rect
// coordinates are relative to Page.
type TabPlacement struct {
	AnnotationID string
	Page         int
	Side         string
	Offset       float64
	Rect         Rect
	Rects        []Rect
}

// Message is one entry on an annotation's discussion timeline.
type Message struct {
	ID        string
	Sender    string
	Body      string
	Timestamp int64
}

func rectFromGeometry(r geometry.Rect) Rect {
	return Rect{X: r.X, Y: r.Y, Width: r.W, Height: r.H}
}

func rectsFromGeometry(rs []geometry.Rect) []Rect {
	if len(rs) == 0 {
		return nil
	}
	out := make([]Rect, len(rs))
	for i, r := range rs {
		out[i] = rectFromGeometry(r)
	}
	return out
}

func rectToGeometry(r Rect) geometry.Rect {
	return geometry.Rect{X: r.X, Y: r.Y, W: r.Width, H: r.Height}
}

func rectsToGeometry(rs []Rect) []geometry.Rect {
	if len(rs) == 0 {
		return nil
	}
	out := make([]geometry.Rect, len(rs))
	for i, r := range rs {
		out[i] = rectToGeometry(r)
	}
	return out
}

func annotationFromRecord(rec *annotation.Record) Annotation {
	x, y := rec.Point()
	return Annotation{
		ID:           rec.ID(),
		Page:         rec.Page(),
		Kind:         Kind(rec.Kind()),
		Status:       Status(rec.Status()),
		Creator:      rec.Creator(),
		Private:      rec.Private(),
		SelectedText: rec.SelectedText(),
		BoundingRect: rectFromGeometry(rec.BoundingRect()),
		ClientRects:  rectsFromGeometry(rec.ClientRects()),
		X:            x,
		Y:            y,
		Timestamp:    rec.Timestamp(),
		Unread:       rec.Unread().Count(),
		UnreadAll:    rec.Unread().IsAll(),
	}
}

func matchFromInternal(m textsearchuc.Match) SearchMatch {
	return SearchMatch{
		Page:    m.Page,
		Start:   m.Start,
		End:     m.End,
		Text:    m.Text,
		Context: m.Context,
	}
}

func placementFromInternal(p layoutuc.Placement) TabPlacement {
	return TabPlacement{
		AnnotationID: p.ID,
		Page:         p.Page,
		Side:         p.Side.String(),
		Offset:       p.Offset,
		Rect:         rectFromGeometry(p.Tab),
		Rects:        rectsFromGeometry(p.Rects),
	}
}
