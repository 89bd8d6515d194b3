// Package remote defines the contract with the eventually-consistent shared
// state store that backs documents and their annotation discussions. The
// engine consumes these interfaces only; the concrete transport lives in an
// adapter (see redisroom).
package remote

import (
	"context"

	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/domain/geometry"
)

// State event types.
const (
	// AnnotationType is the state event type relating a document room to one
	// annotation's discussion room.
	AnnotationType = "dev.lectern.annotation"
	// LastViewedType is the per-room account data type recording the page a
	// device last viewed.
	LastViewedType = "dev.lectern.last_viewed"
)

// Direction selects a pagination direction along a timeline.
type Direction int

const (
	Backwards Direction = iota
	Forwards
)

// Payload is the versioned annotation payload nested inside state event
// content. Entries missing it are legacy garbage and get dropped during
// reconciliation.
type Payload struct {
	PageNumber     int                     `json:"pageNumber"`
	ActivityStatus string                  `json:"activityStatus"`
	Type           string                  `json:"type,omitempty"`
	Creator        string                  `json:"creator"`
	Private        bool                    `json:"private,omitempty"`
	SelectedText   string                  `json:"selectedText,omitempty"`
	RootContent    *annotation.RootContent `json:"rootContent,omitempty"`
	BoundingRect   *geometry.Rect          `json:"boundingClientRect,omitempty"`
	ClientRects    []geometry.Rect         `json:"clientRects,omitempty"`
	X              float64                 `json:"x,omitempty"`
	Y              float64                 `json:"y,omitempty"`
	RoomID         string                  `json:"roomId"`
}

// Content is annotation state event content. The payload sits under a
// versioned key so schema bumps can coexist in one room's state.
type Content struct {
	Via        []string `json:"via,omitempty"`
	Annotation *Payload `json:"dev.lectern.annotation.v1,omitempty"`
}

// StateEntry is one state event as read back from a room.
type StateEntry struct {
	StateKey  string
	Sender    string
	Timestamp int64 // ms
	Content   Content
}

// RoomConfig describes a discussion room to create.
type RoomConfig struct {
	Name       string
	Topic      string
	Visibility string
	// ParentRoomID links the new discussion back to its document room.
	ParentRoomID string
}

// RoomInfo is the result of room creation.
type RoomInfo struct {
	RoomID string
}

// Room reads one room's current state.
type Room interface {
	ID() string
	// StateEntries returns all state entries of the given type.
	StateEntries(ctx context.Context, eventType string) ([]StateEntry, error)
	// StateEntry returns the entry with the given state key, or nil.
	StateEntry(ctx context.Context, eventType, stateKey string) (*StateEntry, error)
	// MemberPowerLevel reports the viewer's power level in the room.
	MemberPowerLevel(ctx context.Context, userID string) (int, error)
}

// Listener receives change notifications from the state store. Callbacks run
// sequentially; a listener re-deriving state inside one observes no partial
// updates.
type Listener interface {
	OnStateUpdated(roomID, eventType string)
	OnTimelineAppended(roomID string)
	OnAccountDataChanged(roomID, dataType string)
}

// Subscription is a live listener registration. Close unsubscribes; tie it to
// the consuming component's lifetime.
type Subscription interface {
	Close()
}

// TimelineEvent is one message on a discussion timeline.
type TimelineEvent struct {
	ID        string
	Sender    string
	Body      string
	Timestamp int64 // ms
}

// TimelineWindow is a movable window over a room's timeline.
type TimelineWindow interface {
	// Load initializes the window with the most recent events.
	Load(ctx context.Context, initialSize int) error
	// Paginate extends the window, reporting whether anything was fetched.
	Paginate(ctx context.Context, dir Direction, count int) (bool, error)
	CanPaginate(dir Direction) bool
	// Events returns the window contents in timeline order.
	Events() []TimelineEvent
}

// Provider is the remote state store.
type Provider interface {
	// Room resolves a room, or domain.ErrRoomNotFound when it is not (yet)
	// known. Callers poll rather than fail.
	Room(ctx context.Context, roomID string) (Room, error)
	CreateRoom(ctx context.Context, cfg RoomConfig) (RoomInfo, error)
	SendStateEvent(ctx context.Context, roomID, eventType, stateKey string, content Content) error
	// SendMessage appends one message to a room's discussion timeline.
	SendMessage(ctx context.Context, roomID, body string) error
	// MarkRead moves the viewer's read marker to the newest timeline entry,
	// establishing their participation in the discussion.
	MarkRead(ctx context.Context, roomID string) error
	AccountData(ctx context.Context, roomID, dataType string) ([]byte, error)
	SetAccountData(ctx context.Context, roomID, dataType string, data []byte) error
	TimelineWindow(ctx context.Context, roomID string) (TimelineWindow, error)
	Subscribe(l Listener) Subscription
}

// UnreadCalculator derives the viewer's unread count for one annotation's
// discussion. Returns the All sentinel when no detail is available.
type UnreadCalculator interface {
	CalculateUnread(ctx context.Context, annotationID string) (annotation.UnreadCount, error)
}
