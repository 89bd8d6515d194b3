package annotate

import (
	"context"

	"github.com/lectern-labs/lectern/internal/remote"
)

// Remote is the slice of the state store the write path needs.
type Remote interface {
	Room(ctx context.Context, roomID string) (remote.Room, error)
	CreateRoom(ctx context.Context, cfg remote.RoomConfig) (remote.RoomInfo, error)
	SendStateEvent(ctx context.Context, roomID, eventType, stateKey string, content remote.Content) error
	SendMessage(ctx context.Context, roomID, body string) error
	MarkRead(ctx context.Context, roomID string) error
	AccountData(ctx context.Context, roomID, dataType string) ([]byte, error)
	SetAccountData(ctx context.Context, roomID, dataType string, data []byte) error
}
