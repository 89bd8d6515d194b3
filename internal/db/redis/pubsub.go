package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/lectern-labs/lectern/internal/db"
)

// Publish sends a payload to a channel.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	cmd := s.b().Publish().Channel(channel).Message(string(payload)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPublish, Err: err}
	}
	return nil
}

// Subscribe delivers channel payloads to fn until the stop function is
// called. Delivery runs on a single background goroutine per subscription,
// so fn invocations never overlap.
func (s *Store) Subscribe(ctx context.Context, channel string, fn func(payload []byte)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	cmd := s.b().Subscribe().Channel(channel).Build()

	go func() {
		// Receive blocks until subCtx is canceled or the connection drops.
		_ = s.client.Receive(subCtx, cmd, func(msg rueidis.PubSubMessage) {
			fn([]byte(msg.Message))
		})
	}()

	return cancel, nil
}
