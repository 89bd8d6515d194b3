// Package annotate is the write path: creating highlights and pindrops,
// closing annotations, and tracking the last viewed page. Every mutation goes
// through the remote store first; nothing is applied locally on failure, and
// the reconciler picks up successful writes like anyone else's.
package annotate

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/domain"
	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/domain/geometry"
	"github.com/lectern-labs/lectern/internal/remote"
)

// moderatorPowerLevel is the power level that may close other users'
// annotations. The remote store remains the authority; this guard only saves
// a doomed round trip.
const moderatorPowerLevel = 50

// Service writes annotation state for one document and viewer.
type Service struct {
	remote    Remote
	docRoomID string
	userID    string
	deviceID  string
	logger    *zap.Logger
}

// New creates the write-path service.
func New(r Remote, docRoomID, userID, deviceID string, logger *zap.Logger) *Service {
	return &Service{
		remote:    r,
		docRoomID: docRoomID,
		userID:    userID,
		deviceID:  deviceID,
		logger:    logger,
	}
}

// HighlightInput describes a new highlight in viewport coordinates.
type HighlightInput struct {
	Page         int
	SelectedText string
	// ViewportRects are the selection's rects in viewport space.
	ViewportRects []geometry.Rect
	// PageAnchor is the page's rect in viewport space.
	PageAnchor geometry.Rect
	// Scale is the viewport scale (fit ratio times zoom).
	Scale   float64
	Private bool
}

// CreateHighlight converts the selection to document space, creates the
// discussion room, and publishes the pending annotation entry. The returned
// id is the discussion room id.
func (s *Service) CreateHighlight(ctx context.Context, in HighlightInput) (string, error) {
	if in.Page < 1 {
		return "", fmt.Errorf("%w: page %d", domain.ErrInvalidRequest, in.Page)
	}
	rects := make([]geometry.Rect, 0, len(in.ViewportRects))
	for _, r := range geometry.Sanitize(in.ViewportRects) {
		rects = append(rects, geometry.RelativeTo(in.PageAnchor, r, in.Scale))
	}
	if len(rects) == 0 {
		return "", fmt.Errorf("%w: empty selection", domain.ErrInvalidRequest)
	}
	bounding := geometry.Union(rects)

	payload := &remote.Payload{
		PageNumber:     in.Page,
		ActivityStatus: string(annotation.StatusPending),
		Type:           string(annotation.KindHighlight),
		Creator:        s.userID,
		Private:        in.Private,
		SelectedText:   in.SelectedText,
		BoundingRect:   &bounding,
		ClientRects:    rects,
	}
	return s.create(ctx, in.SelectedText, payload)
}

// PindropInput describes a new point annotation in document coordinates
// (cursor offset and grid snapping are the caller's concern).
type PindropInput struct {
	Page    int
	X, Y    float64
	Private bool
}

// CreatePindrop creates the discussion room and publishes a pending point
// annotation.
func (s *Service) CreatePindrop(ctx context.Context, in PindropInput) (string, error) {
	if in.Page < 1 {
		return "", fmt.Errorf("%w: page %d", domain.ErrInvalidRequest, in.Page)
	}
	payload := &remote.Payload{
		PageNumber:     in.Page,
		ActivityStatus: string(annotation.StatusPending),
		Type:           string(annotation.KindPindrop),
		Creator:        s.userID,
		Private:        in.Private,
		X:              in.X,
		Y:              in.Y,
	}
	return s.create(ctx, "", payload)
}

func (s *Service) create(ctx context.Context, name string, payload *remote.Payload) (string, error) {
	info, err := s.remote.CreateRoom(ctx, remote.RoomConfig{
		Name:         name,
		Visibility:   "public",
		ParentRoomID: s.docRoomID,
	})
	if err != nil {
		return "", fmt.Errorf("create discussion room: %w", err)
	}
	// The creator's read marker doubles as their membership in the
	// discussion; without it a private annotation is invisible even to them.
	if err := s.remote.MarkRead(ctx, info.RoomID); err != nil {
		return "", fmt.Errorf("join discussion room: %w", err)
	}
	payload.RoomID = info.RoomID

	content := remote.Content{Annotation: payload}
	if err := s.remote.SendStateEvent(ctx, s.docRoomID, remote.AnnotationType, info.RoomID, content); err != nil {
		return "", fmt.Errorf("publish annotation: %w", err)
	}
	s.logger.Info("annotation created",
		zap.String("annotation", info.RoomID),
		zap.Int("page", payload.PageNumber),
		zap.String("kind", payload.Type))
	return info.RoomID, nil
}

// Close marks an annotation closed. Only the creator or a member with
// moderator power may close; everyone else gets a PermissionError without a
// write being attempted.
func (s *Service) Close(ctx context.Context, annotationID string) error {
	room, err := s.remote.Room(ctx, s.docRoomID)
	if err != nil {
		return fmt.Errorf("resolve document room: %w", err)
	}
	entry, err := room.StateEntry(ctx, remote.AnnotationType, annotationID)
	if err != nil {
		return fmt.Errorf("read annotation %s: %w", annotationID, err)
	}
	if entry == nil || entry.Content.Annotation == nil {
		return fmt.Errorf("annotation %s: %w", annotationID, domain.ErrAnnotationNotFound)
	}

	if entry.Content.Annotation.Creator != s.userID {
		level, err := room.MemberPowerLevel(ctx, s.userID)
		if err != nil {
			return fmt.Errorf("read power level: %w", err)
		}
		if level < moderatorPowerLevel {
			return domain.NewPermissionError(s.userID, level)
		}
	}

	content := entry.Content
	closed := *content.Annotation
	closed.ActivityStatus = string(annotation.StatusClosed)
	content.Annotation = &closed

	if err := s.remote.SendStateEvent(ctx, s.docRoomID, remote.AnnotationType, annotationID, content); err != nil {
		return fmt.Errorf("close annotation %s: %w", annotationID, err)
	}
	s.logger.Info("annotation closed", zap.String("annotation", annotationID))
	return nil
}

// Reply posts a message to an annotation's discussion timeline and moves the
// sender's read marker past it, so their own reply never counts as unread.
func (s *Service) Reply(ctx context.Context, annotationID, body string) error {
	if body == "" {
		return fmt.Errorf("%w: empty message body", domain.ErrInvalidRequest)
	}
	room, err := s.remote.Room(ctx, s.docRoomID)
	if err != nil {
		return fmt.Errorf("resolve document room: %w", err)
	}
	entry, err := room.StateEntry(ctx, remote.AnnotationType, annotationID)
	if err != nil {
		return fmt.Errorf("read annotation %s: %w", annotationID, err)
	}
	if entry == nil || entry.Content.Annotation == nil {
		return fmt.Errorf("annotation %s: %w", annotationID, domain.ErrAnnotationNotFound)
	}
	if err := s.remote.SendMessage(ctx, annotationID, body); err != nil {
		return fmt.Errorf("post reply to %s: %w", annotationID, err)
	}
	if err := s.remote.MarkRead(ctx, annotationID); err != nil {
		s.logger.Warn("read marker not advanced after reply",
			zap.String("annotation", annotationID), zap.Error(err))
	}
	return nil
}

// LastViewed is the per-document, per-user account data recording where a
// device last was. Another device reading a different page back is the
// "elsewhere" signal.
type LastViewed struct {
	Page     int    `json:"page"`
	DeviceID string `json:"deviceId"`
}

// SetLastViewed stores the page this device currently views.
func (s *Service) SetLastViewed(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("%w: page %d", domain.ErrInvalidRequest, page)
	}
	data, err := json.Marshal(LastViewed{Page: page, DeviceID: s.deviceID})
	if err != nil {
		return fmt.Errorf("marshal last viewed: %w", err)
	}
	if err := s.remote.SetAccountData(ctx, s.docRoomID, remote.LastViewedType, data); err != nil {
		return fmt.Errorf("store last viewed: %w", err)
	}
	return nil
}

// GetLastViewed reads the stored marker, reporting false when none exists.
func (s *Service) GetLastViewed(ctx context.Context) (LastViewed, bool, error) {
	data, err := s.remote.AccountData(ctx, s.docRoomID, remote.LastViewedType)
	if err != nil {
		return LastViewed{}, false, fmt.Errorf("read last viewed: %w", err)
	}
	if len(data) == 0 {
		return LastViewed{}, false, nil
	}
	var lv LastViewed
	if err := json.Unmarshal(data, &lv); err != nil {
		return LastViewed{}, false, fmt.Errorf("parse last viewed: %w", err)
	}
	return lv, true, nil
}
