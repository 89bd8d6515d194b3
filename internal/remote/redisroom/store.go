// Package redisroom implements remote.Provider over a Redis or Valkey
// store: room registries and state events in hashes, discussion timelines in
// streams, and update notifications over pubsub so that engine instances
// converge on the same shared state.
package redisroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/db"
	"github.com/lectern-labs/lectern/internal/domain"
	"github.com/lectern-labs/lectern/internal/domain/annotation"
	"github.com/lectern-labs/lectern/internal/remote"
)

const (
	keyPrefix     = "lectern:"
	eventsChannel = keyPrefix + "events"

	// unreadScanCap bounds how many timeline entries one unread count will
	// walk. Past this the exact number stops being interesting.
	unreadScanCap = 500
)

// store is the consumer interface for the room-state adapter (ISP).
type store interface {
	db.HashStore
	db.KVStore
	db.StreamStore
	db.PubSub
}

// Provider implements remote.Provider and remote.UnreadCalculator.
type Provider struct {
	store      store
	userID     string
	instanceID string
	logger     *zap.Logger

	mu        sync.Mutex
	listeners map[int]remote.Listener
	nextSub   int
	stopSub   func()
}

// Compile-time checks.
var (
	_ remote.Provider         = (*Provider)(nil)
	_ remote.UnreadCalculator = (*Provider)(nil)
)

// New creates a room-state provider acting as the given user.
func New(s store, userID string, logger *zap.Logger) *Provider {
	return &Provider{
		store:      s,
		userID:     userID,
		instanceID: uuid.NewString(),
		logger:     logger,
		listeners:  map[int]remote.Listener{},
	}
}

// Start begins receiving cross-instance notifications. Local writes notify
// local listeners synchronously either way; Start only matters when several
// engine instances share one store.
func (p *Provider) Start(ctx context.Context) error {
	stop, err := p.store.Subscribe(ctx, eventsChannel, p.handleNotification)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", eventsChannel, err)
	}
	p.mu.Lock()
	p.stopSub = stop
	p.mu.Unlock()
	return nil
}

// Stop ends cross-instance notification delivery.
func (p *Provider) Stop() {
	p.mu.Lock()
	stop := p.stopSub
	p.stopSub = nil
	p.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// notification is the pubsub payload between instances.
type notification struct {
	Origin string `json:"origin"`
	Kind   string `json:"kind"` // state | timeline | account
	RoomID string `json:"roomId"`
	Type   string `json:"type,omitempty"`
}

func (p *Provider) handleNotification(payload []byte) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		p.logger.Warn("dropping malformed notification", zap.Error(err))
		return
	}
	if n.Origin == p.instanceID {
		return // already dispatched locally at write time
	}
	p.dispatch(n)
}

func (p *Provider) dispatch(n notification) {
	p.mu.Lock()
	ls := make([]remote.Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
	p.mu.Unlock()

	for _, l := range ls {
		switch n.Kind {
		case "state":
			l.OnStateUpdated(n.RoomID, n.Type)
		case "timeline":
			l.OnTimelineAppended(n.RoomID)
		case "account":
			l.OnAccountDataChanged(n.RoomID, n.Type)
		}
	}
}

func (p *Provider) notify(ctx context.Context, n notification) {
	p.dispatch(n)
	n.Origin = p.instanceID
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := p.store.Publish(ctx, eventsChannel, payload); err != nil {
		p.logger.Warn("publish notification", zap.Error(err))
	}
}

// Subscribe registers a listener until the returned subscription is closed.
func (p *Provider) Subscribe(l remote.Listener) remote.Subscription {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.listeners[id] = l
	p.mu.Unlock()
	return &subscription{provider: p, id: id}
}

type subscription struct {
	provider *Provider
	id       int
	once     sync.Once
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.provider.mu.Lock()
		delete(s.provider.listeners, s.id)
		s.provider.mu.Unlock()
	})
}

func roomKey(roomID string) string  { return keyPrefix + "room:" + roomID }
func powerKey(roomID string) string { return keyPrefix + "power:" + roomID }
func timelineKey(roomID string) string {
	return keyPrefix + "timeline:" + roomID
}
func stateKey(roomID, eventType string) string {
	return keyPrefix + "state:" + roomID + ":" + eventType
}
func accountKey(userID, roomID, dataType string) string {
	return keyPrefix + "account:" + userID + ":" + roomID + ":" + dataType
}
func markerKey(userID, roomID string) string {
	return keyPrefix + "marker:" + userID + ":" + roomID
}

// CreateRoom mints a room id, registers the room, and grants the creator
// full power.
func (p *Provider) CreateRoom(ctx context.Context, cfg remote.RoomConfig) (remote.RoomInfo, error) {
	roomID := "!" + uuid.NewString()
	fields := map[string]string{
		"name":       cfg.Name,
		"topic":      cfg.Topic,
		"visibility": cfg.Visibility,
		"parent":     cfg.ParentRoomID,
		"creator":    p.userID,
		"created_ms": fmt.Sprintf("%d", time.Now().UnixMilli()),
	}
	if err := p.store.HSet(ctx, roomKey(roomID), fields); err != nil {
		return remote.RoomInfo{}, fmt.Errorf("create room: %w", err)
	}
	if err := p.store.HSet(ctx, powerKey(roomID), map[string]string{p.userID: "100"}); err != nil {
		return remote.RoomInfo{}, fmt.Errorf("grant creator power: %w", err)
	}
	return remote.RoomInfo{RoomID: roomID}, nil
}

// Room resolves a room handle, or domain.ErrRoomNotFound.
func (p *Provider) Room(ctx context.Context, roomID string) (remote.Room, error) {
	exists, err := p.store.Exists(ctx, roomKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("room lookup %s: %w", roomID, err)
	}
	if !exists {
		return nil, fmt.Errorf("room %s: %w", roomID, domain.ErrRoomNotFound)
	}
	return &roomHandle{provider: p, id: roomID}, nil
}

// stateRecord is the stored form of one state entry.
type stateRecord struct {
	Sender    string         `json:"sender"`
	Timestamp int64          `json:"ts"`
	Content   remote.Content `json:"content"`
}

// SendStateEvent writes a state entry and notifies listeners.
func (p *Provider) SendStateEvent(
	ctx context.Context, roomID, eventType, key string, content remote.Content,
) error {
	rec := stateRecord{
		Sender:    p.userID,
		Timestamp: time.Now().UnixMilli(),
		Content:   content,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal state event: %w", err)
	}
	if err := p.store.HSet(ctx, stateKey(roomID, eventType), map[string]string{key: string(data)}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteWrite, err)
	}
	p.notify(ctx, notification{Kind: "state", RoomID: roomID, Type: eventType})
	return nil
}

// AccountData reads per-user room account data.
func (p *Provider) AccountData(ctx context.Context, roomID, dataType string) ([]byte, error) {
	data, err := p.store.Get(ctx, accountKey(p.userID, roomID, dataType))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("account data %s: %w", dataType, err)
	}
	return data, nil
}

// SetAccountData writes per-user room account data and notifies listeners.
func (p *Provider) SetAccountData(ctx context.Context, roomID, dataType string, data []byte) error {
	if err := p.store.Set(ctx, accountKey(p.userID, roomID, dataType), data); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteWrite, err)
	}
	p.notify(ctx, notification{Kind: "account", RoomID: roomID, Type: dataType})
	return nil
}

// SendMessage appends a message to a room's discussion timeline. Chat itself
// is out of the engine's scope, but unread counts and backfill need real
// timeline entries.
func (p *Provider) SendMessage(ctx context.Context, roomID, body string) error {
	fields := map[string]string{
		"sender": p.userID,
		"body":   body,
		"ts":     fmt.Sprintf("%d", time.Now().UnixMilli()),
	}
	if _, err := p.store.XAdd(ctx, timelineKey(roomID), fields); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteWrite, err)
	}
	p.notify(ctx, notification{Kind: "timeline", RoomID: roomID})
	return nil
}

// MarkRead stores the newest timeline id as the viewer's read marker. The
// marker move changes this viewer's unread count, which rides the same
// invalidation path as a new message.
func (p *Provider) MarkRead(ctx context.Context, roomID string) error {
	entries, err := p.store.XRevRange(ctx, timelineKey(roomID), "+", "-", 1)
	if err != nil {
		return fmt.Errorf("read newest timeline entry: %w", err)
	}
	marker := "0-0"
	if len(entries) > 0 {
		marker = entries[0].ID
	}
	if err := p.store.Set(ctx, markerKey(p.userID, roomID), []byte(marker)); err != nil {
		return fmt.Errorf("store read marker: %w", err)
	}
	p.notify(ctx, notification{Kind: "timeline", RoomID: roomID})
	return nil
}

// CalculateUnread counts timeline entries past the viewer's read marker.
// A viewer with no marker at all gets the All sentinel: they have never
// opened the discussion, and downstream treats that as a non-membership
// signal.
func (p *Provider) CalculateUnread(ctx context.Context, annotationID string) (annotation.UnreadCount, error) {
	marker, err := p.store.Get(ctx, markerKey(p.userID, annotationID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return annotation.UnreadAll(), nil
		}
		return annotation.UnreadCount{}, fmt.Errorf("read marker: %w", err)
	}
	entries, err := p.store.XRange(ctx, timelineKey(annotationID), "("+string(marker), "+", unreadScanCap)
	if err != nil {
		return annotation.UnreadCount{}, fmt.Errorf("scan timeline: %w", err)
	}
	return annotation.Unread(len(entries)), nil
}

// TimelineWindow opens a pagination window over a room's timeline.
func (p *Provider) TimelineWindow(ctx context.Context, roomID string) (remote.TimelineWindow, error) {
	return &timelineWindow{store: p.store, key: timelineKey(roomID)}, nil
}

// roomHandle reads one room's state.
type roomHandle struct {
	provider *Provider
	id       string
}

func (r *roomHandle) ID() string { return r.id }

func (r *roomHandle) StateEntries(ctx context.Context, eventType string) ([]remote.StateEntry, error) {
	raw, err := r.provider.store.HGetAll(ctx, stateKey(r.id, eventType))
	if err != nil {
		return nil, fmt.Errorf("state entries %s: %w", eventType, err)
	}
	entries := make([]remote.StateEntry, 0, len(raw))
	for key, data := range raw {
		var rec stateRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			// Unparsable state is legacy garbage; reconciliation would drop
			// it anyway.
			r.provider.logger.Debug("skipping malformed state entry",
				zap.String("room", r.id), zap.String("state_key", key))
			continue
		}
		entries = append(entries, remote.StateEntry{
			StateKey:  key,
			Sender:    rec.Sender,
			Timestamp: rec.Timestamp,
			Content:   rec.Content,
		})
	}
	return entries, nil
}

func (r *roomHandle) StateEntry(ctx context.Context, eventType, key string) (*remote.StateEntry, error) {
	data, err := r.provider.store.HGet(ctx, stateKey(r.id, eventType), key)
	if err != nil {
		if errors.Is(err, db.ErrFieldNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("state entry %s/%s: %w", eventType, key, err)
	}
	var rec stateRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, nil
	}
	return &remote.StateEntry{
		StateKey:  key,
		Sender:    rec.Sender,
		Timestamp: rec.Timestamp,
		Content:   rec.Content,
	}, nil
}

func (r *roomHandle) MemberPowerLevel(ctx context.Context, userID string) (int, error) {
	v, err := r.provider.store.HGet(ctx, powerKey(r.id), userID)
	if err != nil {
		if errors.Is(err, db.ErrFieldNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("power level %s: %w", userID, err)
	}
	var level int
	if _, err := fmt.Sscanf(v, "%d", &level); err != nil {
		return 0, nil
	}
	return level, nil
}
