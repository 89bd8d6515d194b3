package reconcile

import (
	"context"

	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/remote"
)

// RoomProvider resolves the document room and delivers change notifications.
type RoomProvider interface {
	Room(ctx context.Context, roomID string) (remote.Room, error)
	Subscribe(l remote.Listener) remote.Subscription
}

// UnreadCache supplies cached unread counts and accepts invalidations when a
// discussion timeline moves.
type UnreadCache interface {
	CalculateUnread(ctx context.Context, annotationID string) (annotation.UnreadCount, error)
	Invalidate(annotationID string)
}
