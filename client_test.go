package lectern

import (
	"context"
	"strings"
	"testing"

	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/domain/geometry"
)

func TestNew_NoAddress(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no address provided")
	}
}

func TestNew_NoUser(t *testing.T) {
	_, err := New(context.Background(), WithValkey("localhost:6379", ""))
	if err == nil || !strings.Contains(err.Error(), "user identity") {
		t.Fatalf("err = %v", err)
	}
}

func TestNew_NoDocumentRoom(t *testing.T) {
	_, err := New(context.Background(),
		WithValkey("localhost:6379", ""),
		WithUser("@me:lectern.dev", ""),
	)
	if err == nil || !strings.Contains(err.Error(), "document room") {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateStore_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown", addrs: []string{"localhost:1234"}}
	_, err := createStore(cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOptions(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithRedis("localhost:6380", "pw"),
		WithUser("@me:lectern.dev", "laptop"),
		WithDocumentRoom("!doc"),
		WithPDF("/tmp/paper.pdf"),
	} {
		o(cfg)
	}

	if cfg.driver != "redis" || cfg.addrs[0] != "localhost:6380" || cfg.password != "pw" {
		t.Errorf("database config = %+v", cfg)
	}
	if cfg.userID != "@me:lectern.dev" || cfg.deviceID != "laptop" {
		t.Errorf("identity = %q / %q", cfg.userID, cfg.deviceID)
	}
	if cfg.docRoomID != "!doc" || cfg.pdfPath != "/tmp/paper.pdf" {
		t.Errorf("document config = %+v", cfg)
	}
}

func TestAnnotationFromRecord(t *testing.T) {
	rec := annotation.Reconstruct(
		"!a", 4, annotation.KindPindrop, annotation.StatusOpen,
		"@other:lectern.dev", true, "", nil,
		geometry.Rect{X: 1, Y: 2, W: 3, H: 4}, nil,
		0.25, 0.75, 1234, annotation.Unread(2),
	)

	a := annotationFromRecord(&rec)
	if a.ID != "!a" || a.Page != 4 || a.Kind != KindPindrop || a.Status != StatusOpen {
		t.Errorf("annotation = %+v", a)
	}
	if !a.Private || a.Creator != "@other:lectern.dev" {
		t.Errorf("annotation = %+v", a)
	}
	if a.BoundingRect != (Rect{X: 1, Y: 2, Width: 3, Height: 4}) {
		t.Errorf("bounding = %+v", a.BoundingRect)
	}
	if a.X != 0.25 || a.Y != 0.75 || a.Timestamp != 1234 {
		t.Errorf("annotation = %+v", a)
	}
	if a.Unread != 2 || a.UnreadAll {
		t.Errorf("unread = %d / %v", a.Unread, a.UnreadAll)
	}
}

func TestAnnotationFromRecord_UnreadAll(t *testing.T) {
	rec := annotation.Reconstruct(
		"!a", 1, annotation.KindHighlight, annotation.StatusOpen,
		"@me:lectern.dev", false, "", nil,
		geometry.Rect{}, nil, 0, 0, 0, annotation.UnreadAll(),
	)

	a := annotationFromRecord(&rec)
	if !a.UnreadAll {
		t.Error("UnreadAll not carried")
	}
}

func TestRectConversion_RoundTrip(t *testing.T) {
	in := []Rect{{X: 1, Y: 2, Width: 3, Height: 4}, {X: 5, Y: 6, Width: 7, Height: 8}}
	out := rectsFromGeometry(rectsToGeometry(in))
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("round trip = %+v", out)
	}
}
