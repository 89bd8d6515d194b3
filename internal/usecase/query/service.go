// Package query applies the viewer's filter over the reconciled annotation
// list and navigates focus through the filtered order.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/domain/annotation/filter"
)

// Service is the filter and focus engine over one document's annotations.
type Service struct {
	source   Snapshotter
	windows  DiscussionStore
	viewerID string
	logger   *zap.Logger
	nowMs    func() int64

	mu        sync.Mutex
	predicate filter.Predicate
	focusedID string
}

// New creates a query service for the given viewer.
func New(source Snapshotter, windows DiscussionStore, viewerID string, logger *zap.Logger) *Service {
	return &Service{
		source:   source,
		windows:  windows,
		viewerID: viewerID,
		logger:   logger,
		nowMs:    func() int64 { return time.Now().UnixMilli() },
	}
}

// SetFilter parses and installs a raw filter string ("" clears).
func (s *Service) SetFilter(raw string) {
	p := filter.Parse(raw)
	s.mu.Lock()
	s.predicate = p
	s.mu.Unlock()
}

// Filter returns the installed predicate.
func (s *Service) Filter() filter.Predicate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.predicate
}

// Annotations returns the reconciled records matching the current filter, in
// document order. The result is a fresh slice on every call.
func (s *Service) Annotations() []annotation.Record {
	s.mu.Lock()
	p := s.predicate
	s.mu.Unlock()

	all := s.source.Snapshot()
	if p.IsEmpty() {
		return all
	}
	now := s.nowMs()
	matched := make([]annotation.Record, 0, len(all))
	for i := range all {
		if p.Matches(&all[i], s.viewerID, now) {
			matched = append(matched, all[i])
		}
	}
	return matched
}

// Focus sets the focused annotation by id.
func (s *Service) Focus(id string) {
	s.mu.Lock()
	s.focusedID = id
	s.mu.Unlock()
}

// Unfocus clears focus (explicit close or document change).
func (s *Service) Unfocus() {
	s.Focus("")
}

// FocusedID returns the focused annotation id, if any.
func (s *Service) FocusedID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusedID, s.focusedID != ""
}

// Focused returns the focused record from the current filtered list.
func (s *Service) Focused() (annotation.Record, bool) {
	id, ok := s.FocusedID()
	if !ok {
		return annotation.Record{}, false
	}
	for _, rec := range s.Annotations() {
		if rec.ID() == id {
			return rec, true
		}
	}
	return annotation.Record{}, false
}

// FocusNext advances focus through the filtered list. With nothing focused it
// picks the first record; past the end it wraps around to the first.
func (s *Service) FocusNext() (annotation.Record, bool) {
	records := s.Annotations()
	if len(records) == 0 {
		return annotation.Record{}, false
	}
	idx := s.focusedIndex(records)
	next := records[0]
	if idx >= 0 && idx+1 < len(records) {
		next = records[idx+1]
	}
	s.Focus(next.ID())
	return next, true
}

// FocusPrev moves focus backwards through the filtered list. With nothing
// focused it picks the last record. It does not wrap: at the first record
// focus stays where it is.
func (s *Service) FocusPrev() (annotation.Record, bool) {
	records := s.Annotations()
	if len(records) == 0 {
		return annotation.Record{}, false
	}
	idx := s.focusedIndex(records)
	switch {
	case idx < 0:
		last := records[len(records)-1]
		s.Focus(last.ID())
		return last, true
	case idx == 0:
		return records[0], true
	default:
		prev := records[idx-1]
		s.Focus(prev.ID())
		return prev, true
	}
}

func (s *Service) focusedIndex(records []annotation.Record) int {
	id, ok := s.FocusedID()
	if !ok {
		return -1
	}
	for i := range records {
		if records[i].ID() == id {
			return i
		}
	}
	return -1
}

// OpenDiscussion opens a backfillable view over the focused annotation's
// discussion timeline and marks the discussion read for the viewer.
func (s *Service) OpenDiscussion(ctx context.Context) (*Discussion, error) {
	id, ok := s.FocusedID()
	if !ok {
		return nil, fmt.Errorf("no annotation focused")
	}
	w, err := s.windows.TimelineWindow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open discussion %s: %w", id, err)
	}
	d := newDiscussion(id, w, s.logger)
	if err := d.load(ctx); err != nil {
		return nil, err
	}
	if err := s.windows.MarkRead(ctx, id); err != nil {
		// The discussion still opened; the unread count just stays stale.
		s.logger.Warn("read marker not advanced",
			zap.String("annotation", id), zap.Error(err))
	}
	return d, nil
}
