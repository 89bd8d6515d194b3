package geometry

import (
	"math"
	"testing"
)

func rectEq(a, b Rect) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps &&
		math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name  string
		rects []Rect
		want  Rect
	}{
		{
			"overlapping pair",
			[]Rect{{X: 0, Y: 0, W: 10, H: 10}, {X: 5, Y: 5, W: 10, H: 10}},
			Rect{X: 0, Y: 0, W: 15, H: 15},
		},
		{
			"disjoint pair",
			[]Rect{{X: 0, Y: 0, W: 5, H: 5}, {X: 20, Y: 30, W: 5, H: 5}},
			Rect{X: 0, Y: 0, W: 25, H: 35},
		},
		{
			"single",
			[]Rect{{X: 3, Y: 4, W: 5, H: 6}},
			Rect{X: 3, Y: 4, W: 5, H: 6},
		},
		{
			"empty input",
			nil,
			Rect{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Union(tt.rects); !rectEq(got, tt.want) {
				t.Errorf("Union() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSanitize_DropsContained(t *testing.T) {
	rects := []Rect{
		{X: 0, Y: 0, W: 100, H: 12},
		{X: 10, Y: 2, W: 20, H: 8}, // inside the first
	}
	got := Sanitize(rects)
	if len(got) != 1 {
		t.Fatalf("expected 1 rect, got %d: %+v", len(got), got)
	}
	if !rectEq(got[0], rects[0]) {
		t.Errorf("kept %+v, want %+v", got[0], rects[0])
	}
}

func TestSanitize_MergesAdjacentOnLine(t *testing.T) {
	rects := []Rect{
		{X: 0, Y: 10, W: 50, H: 12},
		{X: 50.5, Y: 10, W: 40, H: 12}, // same line, touching
	}
	got := Sanitize(rects)
	if len(got) != 1 {
		t.Fatalf("expected merge to 1 rect, got %d: %+v", len(got), got)
	}
	want := Rect{X: 0, Y: 10, W: 90.5, H: 12}
	if !rectEq(got[0], want) {
		t.Errorf("merged = %+v, want %+v", got[0], want)
	}
}

func TestSanitize_KeepsSeparateLines(t *testing.T) {
	rects := []Rect{
		{X: 0, Y: 10, W: 50, H: 12},
		{X: 0, Y: 24, W: 50, H: 12},
	}
	if got := Sanitize(rects); len(got) != 2 {
		t.Errorf("expected 2 rects, got %d: %+v", len(got), got)
	}
}

func TestSanitize_DropsEmpty(t *testing.T) {
	rects := []Rect{{X: 1, Y: 1, W: 0, H: 5}, {X: 2, Y: 2, W: 5, H: 5}}
	got := Sanitize(rects)
	if len(got) != 1 || !rectEq(got[0], rects[1]) {
		t.Errorf("Sanitize() = %+v", got)
	}
}

func TestScaleAndRelativeTo_RoundTrip(t *testing.T) {
	anchor := Rect{X: 100, Y: 200}
	doc := Rect{X: 10, Y: 20, W: 30, H: 40}
	scale := 1.5 * 2.0 // fitRatio * zoom

	viewport := Rect{
		X: doc.X*scale + anchor.X,
		Y: doc.Y*scale + anchor.Y,
		W: doc.W * scale,
		H: doc.H * scale,
	}
	if got := RelativeTo(anchor, viewport, scale); !rectEq(got, doc) {
		t.Errorf("RelativeTo() = %+v, want %+v", got, doc)
	}
	if got := doc.Scale(scale); !rectEq(got, Rect{X: 30, Y: 60, W: 90, H: 120}) {
		t.Errorf("Scale() = %+v", got)
	}
}

func TestRelativeTo_ZeroScale(t *testing.T) {
	// Degenerate scale must not divide by zero.
	got := RelativeTo(Rect{}, Rect{X: 5, Y: 5, W: 5, H: 5}, 0)
	if !rectEq(got, Rect{X: 5, Y: 5, W: 5, H: 5}) {
		t.Errorf("RelativeTo(scale=0) = %+v", got)
	}
}

func TestContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, W: 5, H: 5}
	if !r.Contains(10, 10) {
		t.Error("top-left corner should be inside")
	}
	if r.Contains(15, 15) {
		t.Error("bottom-right corner should be outside")
	}
	if r.Contains(9.9, 12) {
		t.Error("point left of rect should be outside")
	}
}
