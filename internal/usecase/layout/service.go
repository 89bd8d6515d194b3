// Package layout places annotation anchor tabs in the document margins
// without stacking them on top of each other. Each annotation gets a thin tab
// beside its bounding rect; tabs that would land on an already-placed one are
// scootched outward until the spot is clear.
package layout

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/domain/geometry"
)

const (
	tabWidth = 5.0
	// tabRightInset positions a right-side tab's x at width − inset.
	tabRightInset = 10.0
	// tabLeftBase positions a left-side tab's x before any offset.
	tabLeftBase = 5.0
	// scootchStep is how far each collision pushes a tab outward.
	scootchStep = 10.0
	// sideLockFactor: once the viewport is this many times wider than the
	// bounding rect, the margin-derived side is trustworthy and locks.
	sideLockFactor = 2.0
)

// Side is the document margin a tab sits in.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// Placement is one annotation's resolved overlay geometry, in viewport space.
// Rect coordinates are relative to the placement's page.
type Placement struct {
	ID       string
	Page     int
	Side     Side
	Offset   float64
	Tab      geometry.Rect
	Bounding geometry.Rect
	Rects    []geometry.Rect
}

type sideState struct {
	side   Side
	locked bool
}

// Service lays out annotation overlays. Side choices survive across passes so
// tabs do not hop margins when the viewport resizes.
type Service struct {
	passesTotal    prometheus.Counter
	scootchesTotal prometheus.Counter
	logger         *zap.Logger

	mu    sync.Mutex
	sides map[string]sideState
}

// New creates a layout service.
// passesTotal and scootchesTotal count layout passes and collision scootches,
// passed explicitly.
func New(passesTotal, scootchesTotal prometheus.Counter, logger *zap.Logger) *Service {
	return &Service{
		passesTotal:    passesTotal,
		scootchesTotal: scootchesTotal,
		logger:         logger,
		sides:          map[string]sideState{},
	}
}

// Reset forgets all remembered side choices (document change).
func (s *Service) Reset() {
	s.mu.Lock()
	s.sides = map[string]sideState{}
	s.mu.Unlock()
}

// Layout places the given records (document order) on the viewport. Records
// are placed in order; later tabs scootch around earlier ones. Rect
// coordinates are page-relative, so collisions are only checked between tabs
// on the same page. Pindrops render as markers, not margin tabs, and get no
// placement.
func (s *Service) Layout(records []annotation.Record, vp Viewport) []Placement {
	if s.passesTotal != nil {
		s.passesTotal.Inc()
	}
	scale := vp.Scale()

	s.mu.Lock()
	defer s.mu.Unlock()

	placed := make([]Placement, 0, len(records))
	byPage := map[int][]Placement{}
	for i := range records {
		rec := &records[i]
		if rec.Kind() == annotation.KindPindrop {
			continue
		}
		bounding := rec.BoundingRect().Scale(scale)
		side := s.sideFor(rec.ID(), bounding, vp)

		offset := 0.0
		tab := tabRect(side, bounding, vp, offset)
		for collides(tab, byPage[rec.Page()]) {
			if s.scootchesTotal != nil {
				s.scootchesTotal.Inc()
			}
			offset += scootchStep
			tab = tabRect(side, bounding, vp, offset)
		}

		rects := make([]geometry.Rect, len(rec.ClientRects()))
		for j, r := range rec.ClientRects() {
			rects[j] = r.Scale(scale)
		}
		p := Placement{
			ID:       rec.ID(),
			Page:     rec.Page(),
			Side:     side,
			Offset:   offset,
			Tab:      tab,
			Bounding: bounding,
			Rects:    rects,
		}
		byPage[rec.Page()] = append(byPage[rec.Page()], p)
		placed = append(placed, p)
	}
	return placed
}

// sideFor picks a tab's margin. Before the viewport is wide enough to judge,
// the id's second byte parity is a cheap stable tie-break; once it is, the
// nearer margin wins and the choice locks for good.
func (s *Service) sideFor(id string, bounding geometry.Rect, vp Viewport) Side {
	state, known := s.sides[id]
	if known && state.locked {
		return state.side
	}
	if !known {
		state.side = SideLeft
		if len(id) > 1 && id[1]%2 == 1 {
			state.side = SideRight
		}
	}
	if vp.WidthPx > sideLockFactor*bounding.W && bounding.W > 0 {
		rightMargin := vp.WidthPx - bounding.Right()
		leftMargin := bounding.X
		// Exactly equal margins keep whatever side is already in place.
		if rightMargin < leftMargin {
			state.side = SideRight
		} else if rightMargin > leftMargin {
			state.side = SideLeft
		}
		state.locked = true
	}
	s.sides[id] = state
	return state.side
}

func tabRect(side Side, bounding geometry.Rect, vp Viewport, offset float64) geometry.Rect {
	x := tabLeftBase - offset
	if side == SideRight {
		x = vp.WidthPx - tabRightInset + offset
	}
	return geometry.Rect{X: x, Y: bounding.Y, W: tabWidth, H: bounding.H}
}

// collides reports whether the candidate tab lands on an already-placed one.
// The sample point is just inside the tab's top-left corner; an earlier tab
// at the same height, or any tab above, claims the spot.
func collides(tab geometry.Rect, placed []Placement) bool {
	for i := range placed {
		other := placed[i].Tab
		if !other.Contains(tab.X+1, tab.Y+1) {
			continue
		}
		// Tabs above always win; at equal height the earlier-placed one does.
		if other.Y <= tab.Y {
			return true
		}
	}
	return false
}
