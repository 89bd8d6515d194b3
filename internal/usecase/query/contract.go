package query

import (
	"context"

	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/remote"
)

// Snapshotter supplies the reconciled annotation list (document order).
type Snapshotter interface {
	Snapshot() []annotation.Record
}

// DiscussionStore opens timeline windows for discussion backfill and records
// the viewer's read position.
type DiscussionStore interface {
	TimelineWindow(ctx context.Context, roomID string) (remote.TimelineWindow, error)
	MarkRead(ctx context.Context, roomID string) error
}
