// Package reconcile derives the viewer-specific annotation list for one
// document from shared remote state. Remote state is authoritative and
// eventually consistent; the service re-derives the whole list on every
// trigger instead of patching, so readers never observe partial updates.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/domain"
	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/domain/geometry"
	"github.com/lectern-labs/lectern/internal/remote"
)

// DefaultPollInterval is how often the document room is re-read when no
// notification arrives (and how often a missing room is retried).
const DefaultPollInterval = 500 * time.Millisecond

// Service reconciles one document's annotation state for one viewer.
type Service struct {
	provider     RoomProvider
	unread       UnreadCache
	docRoomID    string
	viewerID     string
	pollInterval time.Duration
	runsTotal    prometheus.Counter
	logger       *zap.Logger

	kick chan struct{}

	mu      sync.Mutex
	records []annotation.Record
	tracked map[string]struct{}
	updates chan struct{}
}

// New creates a reconciler for the given document room and viewer.
// runsTotal counts reconciliation passes, passed explicitly.
func New(
	provider RoomProvider,
	unread UnreadCache,
	docRoomID, viewerID string,
	runsTotal prometheus.Counter,
	logger *zap.Logger,
) *Service {
	return &Service{
		provider:     provider,
		unread:       unread,
		docRoomID:    docRoomID,
		viewerID:     viewerID,
		pollInterval: DefaultPollInterval,
		runsTotal:    runsTotal,
		logger:       logger,
		kick:         make(chan struct{}, 1),
		tracked:      map[string]struct{}{},
		updates:      make(chan struct{}, 1),
	}
}

// WithPollInterval overrides the polling backstop interval.
func (s *Service) WithPollInterval(d time.Duration) *Service {
	if d > 0 {
		s.pollInterval = d
	}
	return s
}

// Run reconciles until the context ends: once immediately, then on every
// provider notification, with interval polling as the consistency backstop
// (and as the retry path while the document room does not exist yet).
func (s *Service) Run(ctx context.Context) error {
	sub := s.provider.Subscribe(&listener{service: s})
	defer sub.Close()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.Reconcile(ctx); err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) {
				s.logger.Debug("document room not available yet",
					zap.String("room", s.docRoomID))
			} else {
				s.logger.Warn("reconciliation failed", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.kick:
		}
	}
}

// Reconcile runs one reconciliation pass against current remote state.
func (s *Service) Reconcile(ctx context.Context) error {
	if s.runsTotal != nil {
		s.runsTotal.Inc()
	}

	room, err := s.provider.Room(ctx, s.docRoomID)
	if err != nil {
		return fmt.Errorf("resolve document room: %w", err)
	}
	entries, err := room.StateEntries(ctx, remote.AnnotationType)
	if err != nil {
		return fmt.Errorf("read annotation state: %w", err)
	}

	records := make([]annotation.Record, 0, len(entries))
	tracked := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		rec, ok := s.reconcileEntry(ctx, entry)
		if !ok {
			continue
		}
		records = append(records, rec)
		tracked[rec.ID()] = struct{}{}
	}

	// Remote hash order is arbitrary; creation time gives the stable
	// document order.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp() < records[j].Timestamp()
	})

	s.mu.Lock()
	s.records = records
	s.tracked = tracked
	s.mu.Unlock()

	select {
	case s.updates <- struct{}{}:
	default:
	}
	return nil
}

// reconcileEntry decides whether one state entry is visible to the viewer and
// hydrates it. Entries without the versioned payload, with an unknown status,
// closed, foreign-pending, or private-without-membership are dropped.
func (s *Service) reconcileEntry(ctx context.Context, entry remote.StateEntry) (annotation.Record, bool) {
	p := entry.Content.Annotation
	if p == nil {
		return annotation.Record{}, false
	}
	status, err := annotation.ParseStatus(p.ActivityStatus)
	if err != nil {
		s.logger.Debug("dropping annotation with unknown status",
			zap.String("annotation", entry.StateKey),
			zap.String("status", p.ActivityStatus))
		return annotation.Record{}, false
	}
	visible := status == annotation.StatusOpen ||
		(status == annotation.StatusPending && p.Creator == s.viewerID)
	if !visible {
		return annotation.Record{}, false
	}

	unread, err := s.unread.CalculateUnread(ctx, entry.StateKey)
	if err != nil {
		s.logger.Warn("unread count unavailable",
			zap.String("annotation", entry.StateKey), zap.Error(err))
		unread = annotation.UnreadAll()
	}
	// The All sentinel doubles as "viewer never joined the discussion";
	// private annotations are only shown to participants.
	if p.Private && unread.IsAll() {
		return annotation.Record{}, false
	}

	rec := annotation.Reconstruct(
		entry.StateKey, p.PageNumber, annotation.ParseKind(p.Type), status,
		p.Creator, p.Private, p.SelectedText, p.RootContent,
		derefRect(p.BoundingRect), p.ClientRects,
		p.X, p.Y, entry.Timestamp, unread,
	)
	return rec, true
}

// Snapshot returns the last published annotation list, newest last. The slice
// is a copy; callers may not see writes after they read.
func (s *Service) Snapshot() []annotation.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]annotation.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Updates signals (coalesced) after each published pass.
func (s *Service) Updates() <-chan struct{} {
	return s.updates
}

func (s *Service) tracks(annotationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tracked[annotationID]
	return ok
}

func (s *Service) trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func derefRect(r *geometry.Rect) geometry.Rect {
	if r == nil {
		return geometry.Rect{}
	}
	return *r
}

// listener adapts provider notifications onto the reconciler.
type listener struct {
	service *Service
}

func (l *listener) OnStateUpdated(roomID, eventType string) {
	if roomID == l.service.docRoomID && eventType == remote.AnnotationType {
		l.service.trigger()
	}
}

func (l *listener) OnTimelineAppended(roomID string) {
	if l.service.tracks(roomID) {
		l.service.unread.Invalidate(roomID)
		l.service.trigger()
	}
}

// OnAccountDataChanged is a no-op: last-viewed markers do not affect which
// annotations are visible.
func (l *listener) OnAccountDataChanged(string, string) {}
