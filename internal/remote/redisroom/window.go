package redisroom

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lectern-labs/lectern/internal/db"
	"github.com/lectern-labs/lectern/internal/remote"
)

// timelineWindow is a movable window over one timeline stream. It tracks the
// stream ids at both edges and paginates with exclusive range queries, so a
// fetch that races a concurrent append never duplicates entries.
type timelineWindow struct {
	store db.StreamStore
	key   string

	events    []remote.TimelineEvent
	oldestID  string
	newestID  string
	exhausted bool // no more history behind oldestID
}

var _ remote.TimelineWindow = (*timelineWindow)(nil)

// Load fills the window with the newest initialSize entries.
func (w *timelineWindow) Load(ctx context.Context, initialSize int) error {
	if initialSize <= 0 {
		initialSize = 20
	}
	entries, err := w.store.XRevRange(ctx, w.key, "+", "-", initialSize)
	if err != nil {
		return fmt.Errorf("load timeline window: %w", err)
	}
	w.events = w.events[:0]
	for i := len(entries) - 1; i >= 0; i-- {
		w.events = append(w.events, toTimelineEvent(entries[i]))
	}
	if len(entries) > 0 {
		w.newestID = entries[0].ID
		w.oldestID = entries[len(entries)-1].ID
	}
	w.exhausted = len(entries) < initialSize
	return nil
}

// Paginate extends the window in the given direction, reporting whether any
// entries were fetched.
func (w *timelineWindow) Paginate(ctx context.Context, dir remote.Direction, count int) (bool, error) {
	if count <= 0 {
		return false, nil
	}
	switch dir {
	case remote.Backwards:
		if w.exhausted {
			return false, nil
		}
		end := "+"
		if w.oldestID != "" {
			end = "(" + w.oldestID
		}
		entries, err := w.store.XRevRange(ctx, w.key, end, "-", count)
		if err != nil {
			return false, fmt.Errorf("paginate backwards: %w", err)
		}
		if len(entries) < count {
			w.exhausted = true
		}
		if len(entries) == 0 {
			return false, nil
		}
		older := make([]remote.TimelineEvent, 0, len(entries))
		for i := len(entries) - 1; i >= 0; i-- {
			older = append(older, toTimelineEvent(entries[i]))
		}
		w.events = append(older, w.events...)
		w.oldestID = entries[len(entries)-1].ID
		if w.newestID == "" {
			w.newestID = entries[0].ID
		}
		return true, nil

	case remote.Forwards:
		start := "-"
		if w.newestID != "" {
			start = "(" + w.newestID
		}
		entries, err := w.store.XRange(ctx, w.key, start, "+", count)
		if err != nil {
			return false, fmt.Errorf("paginate forwards: %w", err)
		}
		if len(entries) == 0 {
			return false, nil
		}
		for _, e := range entries {
			w.events = append(w.events, toTimelineEvent(e))
		}
		w.newestID = entries[len(entries)-1].ID
		if w.oldestID == "" {
			w.oldestID = entries[0].ID
		}
		return true, nil
	}
	return false, nil
}

// CanPaginate reports whether more entries may exist in the direction.
// Forward pagination is always worth attempting: new entries may have been
// appended since the last fetch.
func (w *timelineWindow) CanPaginate(dir remote.Direction) bool {
	if dir == remote.Backwards {
		return !w.exhausted
	}
	return true
}

// Events returns the window contents in timeline order.
func (w *timelineWindow) Events() []remote.TimelineEvent {
	out := make([]remote.TimelineEvent, len(w.events))
	copy(out, w.events)
	return out
}

func toTimelineEvent(e db.StreamEntry) remote.TimelineEvent {
	ts, _ := strconv.ParseInt(e.Fields["ts"], 10, 64)
	return remote.TimelineEvent{
		ID:        e.ID,
		Sender:    e.Fields["sender"],
		Body:      e.Fields["body"],
		Timestamp: ts,
	}
}
