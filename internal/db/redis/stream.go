package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/lectern-labs/lectern/internal/db"
)

// XAdd appends an entry with a server-assigned id and returns that id.
func (s *Store) XAdd(ctx context.Context, key string, fields map[string]string) (string, error) {
	cmd := s.b().Xadd().Key(key).Id("*").FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	id, err := s.do(ctx, cmd.Build()).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}

// XLen returns the number of entries in a stream. A missing stream has
// length zero.
func (s *Store) XLen(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Xlen().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpXLen, Err: err}
	}
	return n, nil
}

// XRevRange returns up to count entries from end down to start, newest first.
func (s *Store) XRevRange(ctx context.Context, key, end, start string, count int) ([]db.StreamEntry, error) {
	cmd := s.b().Xrevrange().Key(key).End(end).Start(start).Count(int64(count)).Build()
	entries, err := s.do(ctx, cmd).AsXRange()
	if err != nil {
		return nil, &db.Error{Op: db.OpXRevRange, Err: err}
	}
	return toStreamEntries(entries), nil
}

// XRange returns up to count entries from start up to end, oldest first.
func (s *Store) XRange(ctx context.Context, key, start, end string, count int) ([]db.StreamEntry, error) {
	cmd := s.b().Xrange().Key(key).Start(start).End(end).Count(int64(count)).Build()
	entries, err := s.do(ctx, cmd).AsXRange()
	if err != nil {
		return nil, &db.Error{Op: db.OpXRange, Err: err}
	}
	return toStreamEntries(entries), nil
}

func toStreamEntries(entries []rueidis.XRangeEntry) []db.StreamEntry {
	out := make([]db.StreamEntry, len(entries))
	for i, e := range entries {
		out[i] = db.StreamEntry{ID: e.ID, Fields: e.FieldValues}
	}
	return out
}
