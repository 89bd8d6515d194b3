package annotation

import (
	"fmt"

	"github.com/lectern-labs/lectern/internal/domain/geometry"
)

// Kind is the annotation variant: a text-range marker or a point marker.
type Kind string

const (
	KindHighlight Kind = "highlight"
	KindPindrop   Kind = "pindrop"
)

// ParseKind maps a wire value to a Kind. Legacy records carry no kind at all,
// so the empty string (and anything unrecognized) resolves to highlight.
func ParseKind(s string) Kind {
	if s == string(KindPindrop) {
		return KindPindrop
	}
	return KindHighlight
}

// Status is the annotation lifecycle stage.
type Status string

const (
	StatusPending Status = "pending"
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
)

// ParseStatus validates a wire value as a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusOpen, StatusClosed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown activity status %q", s)
}

// RootContent is the structured body of an annotation's root message,
// carried for reply/quote context.
type RootContent struct {
	Body string `json:"body"`
}

// Record is one reconciled annotation (immutable value object).
type Record struct {
	id           string
	page         int
	kind         Kind
	status       Status
	creator      string
	private      bool
	selectedText string
	root         *RootContent
	boundingRect geometry.Rect
	clientRects  []geometry.Rect
	x, y         float64
	timestamp    int64
	unread       UnreadCount
}

// New validates and creates a Record. The bounding rect is derived once here,
// as the union of the sanitized client rects, and carried immutably after.
func New(
	id string, page int, kind Kind, status Status, creator string,
	clientRects []geometry.Rect, timestampMs int64,
) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("annotation id is required")
	}
	if page < 1 {
		return Record{}, fmt.Errorf("page number must be >= 1, got %d", page)
	}
	if creator == "" {
		return Record{}, fmt.Errorf("creator is required")
	}
	rects := geometry.Sanitize(clientRects)
	return Record{
		id:           id,
		page:         page,
		kind:         kind,
		status:       status,
		creator:      creator,
		clientRects:  rects,
		boundingRect: geometry.Union(rects),
		timestamp:    timestampMs,
	}, nil
}

// Reconstruct creates a Record without validation (hydration from remote state).
func Reconstruct(
	id string, page int, kind Kind, status Status, creator string, private bool,
	selectedText string, root *RootContent,
	boundingRect geometry.Rect, clientRects []geometry.Rect,
	x, y float64, timestampMs int64, unread UnreadCount,
) Record {
	return Record{
		id: id, page: page, kind: kind, status: status, creator: creator,
		private: private, selectedText: selectedText, root: root,
		boundingRect: boundingRect, clientRects: clientRects,
		x: x, y: y, timestamp: timestampMs, unread: unread,
	}
}

// ID returns the identifier of the annotation's backing discussion room.
func (r *Record) ID() string { return r.id }

// Page returns the 1-based page number.
func (r *Record) Page() int { return r.page }

// Kind returns the annotation variant.
func (r *Record) Kind() Kind { return r.kind }

// Status returns the lifecycle stage.
func (r *Record) Status() Status { return r.status }

// Creator returns the authoring user id.
func (r *Record) Creator() string { return r.creator }

// Private reports whether the annotation is creator-scoped.
func (r *Record) Private() bool { return r.private }

// SelectedText returns the highlighted passage (highlights only).
func (r *Record) SelectedText() string { return r.selectedText }

// Root returns the structured root message body, or nil.
func (r *Record) Root() *RootContent { return r.root }

// BoundingRect returns the union of the client rects, in document space.
func (r *Record) BoundingRect() geometry.Rect { return r.boundingRect }

// ClientRects returns the per-line rects, in document space.
func (r *Record) ClientRects() []geometry.Rect { return r.clientRects }

// Point returns the pindrop coordinates, in document space.
func (r *Record) Point() (x, y float64) { return r.x, r.y }

// Timestamp returns the remote-assigned creation time in ms.
func (r *Record) Timestamp() int64 { return r.timestamp }

// Unread returns the unseen-message count for the viewer.
func (r *Record) Unread() UnreadCount { return r.unread }

// WithUnread returns a copy carrying the given unread count.
func (r Record) WithUnread(u UnreadCount) Record {
	r.unread = u
	return r
}
