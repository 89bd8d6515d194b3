package annotate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/domain"
	"github.com/lectern-labs/lectern/internal/domain/geometry"
	"github.com/lectern-labs/lectern/internal/remote"
)

type sentState struct {
	roomID    string
	eventType string
	stateKey  string
	content   remote.Content
}

type sentMessage struct {
	roomID string
	body   string
}

type mockRemote struct {
	createdRooms []remote.RoomConfig
	createErr    error
	sent         []sentState
	sendErr      error
	messages     []sentMessage
	messageErr   error
	markedRead   []string
	markReadErr  error
	room         *mockRoom
	roomErr      error
	accountData  map[string][]byte
}

func (m *mockRemote) Room(_ context.Context, _ string) (remote.Room, error) {
	if m.roomErr != nil {
		return nil, m.roomErr
	}
	return m.room, nil
}

func (m *mockRemote) CreateRoom(_ context.Context, cfg remote.RoomConfig) (remote.RoomInfo, error) {
	if m.createErr != nil {
		return remote.RoomInfo{}, m.createErr
	}
	m.createdRooms = append(m.createdRooms, cfg)
	return remote.RoomInfo{RoomID: "!minted"}, nil
}

func (m *mockRemote) SendStateEvent(_ context.Context, roomID, eventType, stateKey string, content remote.Content) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentState{roomID, eventType, stateKey, content})
	return nil
}

func (m *mockRemote) SendMessage(_ context.Context, roomID, body string) error {
	if m.messageErr != nil {
		return m.messageErr
	}
	m.messages = append(m.messages, sentMessage{roomID, body})
	return nil
}

func (m *mockRemote) MarkRead(_ context.Context, roomID string) error {
	if m.markReadErr != nil {
		return m.markReadErr
	}
	m.markedRead = append(m.markedRead, roomID)
	return nil
}

func (m *mockRemote) AccountData(_ context.Context, _, dataType string) ([]byte, error) {
	return m.accountData[dataType], nil
}

func (m *mockRemote) SetAccountData(_ context.Context, _, dataType string, data []byte) error {
	if m.accountData == nil {
		m.accountData = map[string][]byte{}
	}
	m.accountData[dataType] = data
	return nil
}

type mockRoom struct {
	entry *remote.StateEntry
	power int
}

func (m *mockRoom) ID() string { return "!doc" }
func (m *mockRoom) StateEntries(_ context.Context, _ string) ([]remote.StateEntry, error) {
	return nil, nil
}
func (m *mockRoom) StateEntry(_ context.Context, _, _ string) (*remote.StateEntry, error) {
	return m.entry, nil
}
func (m *mockRoom) MemberPowerLevel(_ context.Context, _ string) (int, error) {
	return m.power, nil
}

func newTestAnnotate(m *mockRemote) *Service {
	return New(m, "!doc", "@me:lectern.dev", "device-1", zap.NewNop())
}

func TestCreateHighlight(t *testing.T) {
	m := &mockRemote{}
	s := newTestAnnotate(m)

	id, err := s.CreateHighlight(context.Background(), HighlightInput{
		Page:         3,
		SelectedText: "the passage",
		ViewportRects: []geometry.Rect{
			{X: 120, Y: 240, W: 200, H: 20},
		},
		PageAnchor: geometry.Rect{X: 100, Y: 200, W: 800, H: 1000},
		Scale:      2,
	})
	if err != nil {
		t.Fatalf("CreateHighlight: %v", err)
	}
	if id != "!minted" {
		t.Errorf("id = %q", id)
	}

	if len(m.createdRooms) != 1 {
		t.Fatalf("created %d rooms", len(m.createdRooms))
	}
	cfg := m.createdRooms[0]
	if cfg.ParentRoomID != "!doc" || cfg.Visibility != "public" {
		t.Errorf("room config = %+v", cfg)
	}

	if len(m.sent) != 1 {
		t.Fatalf("sent %d state events", len(m.sent))
	}
	ev := m.sent[0]
	if ev.roomID != "!doc" || ev.eventType != remote.AnnotationType || ev.stateKey != "!minted" {
		t.Errorf("event = %+v", ev)
	}
	p := ev.content.Annotation
	if p == nil {
		t.Fatal("missing versioned payload")
	}
	if p.ActivityStatus != "pending" || p.PageNumber != 3 || p.Creator != "@me:lectern.dev" {
		t.Errorf("payload = %+v", p)
	}
	if p.RoomID != "!minted" {
		t.Errorf("payload room = %q", p.RoomID)
	}
	// Viewport rect converted to document space: ((120-100)/2, (240-200)/2, 200/2, 20/2).
	want := geometry.Rect{X: 10, Y: 20, W: 100, H: 10}
	if len(p.ClientRects) != 1 || p.ClientRects[0] != want {
		t.Errorf("client rects = %+v, want %+v", p.ClientRects, want)
	}
	if p.BoundingRect == nil || *p.BoundingRect != want {
		t.Errorf("bounding = %+v", p.BoundingRect)
	}
	// Creating joins the creator to the discussion. Without the read marker
	// their own private drafts would reconcile to nothing.
	if len(m.markedRead) != 1 || m.markedRead[0] != "!minted" {
		t.Errorf("marked read = %v, want [!minted]", m.markedRead)
	}
}

func TestCreate_JoinFailureAborts(t *testing.T) {
	m := &mockRemote{markReadErr: domain.ErrRemoteWrite}
	s := newTestAnnotate(m)

	_, err := s.CreatePindrop(context.Background(), PindropInput{Page: 1, X: 1, Y: 1})
	if !errors.Is(err, domain.ErrRemoteWrite) {
		t.Fatalf("got %v, want ErrRemoteWrite", err)
	}
	if len(m.sent) != 0 {
		t.Error("annotation must not be published without the creator's marker")
	}
}

func TestCreateHighlight_Invalid(t *testing.T) {
	s := newTestAnnotate(&mockRemote{})

	_, err := s.CreateHighlight(context.Background(), HighlightInput{Page: 0, Scale: 1})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("page 0: got %v", err)
	}

	_, err = s.CreateHighlight(context.Background(), HighlightInput{Page: 1, Scale: 1})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("empty selection: got %v", err)
	}
}

func TestCreateHighlight_RemoteWriteFails(t *testing.T) {
	m := &mockRemote{sendErr: domain.ErrRemoteWrite}
	s := newTestAnnotate(m)

	_, err := s.CreateHighlight(context.Background(), HighlightInput{
		Page:          1,
		ViewportRects: []geometry.Rect{{X: 0, Y: 0, W: 10, H: 10}},
		PageAnchor:    geometry.Rect{W: 100, H: 100},
		Scale:         1,
	})
	if !errors.Is(err, domain.ErrRemoteWrite) {
		t.Errorf("got %v, want ErrRemoteWrite", err)
	}
	if len(m.sent) != 0 {
		t.Error("nothing should be recorded on failure")
	}
}

func TestCreatePindrop(t *testing.T) {
	m := &mockRemote{}
	s := newTestAnnotate(m)

	id, err := s.CreatePindrop(context.Background(), PindropInput{Page: 2, X: 50, Y: 75, Private: true})
	if err != nil {
		t.Fatalf("CreatePindrop: %v", err)
	}
	if id != "!minted" {
		t.Errorf("id = %q", id)
	}
	p := m.sent[0].content.Annotation
	if p.Type != "pindrop" || p.X != 50 || p.Y != 75 || !p.Private {
		t.Errorf("payload = %+v", p)
	}
}

func closableEntry(creator string) *remote.StateEntry {
	return &remote.StateEntry{
		StateKey: "!ann",
		Content: remote.Content{Annotation: &remote.Payload{
			PageNumber:     1,
			ActivityStatus: "open",
			Creator:        creator,
			RoomID:         "!ann",
		}},
	}
}

func TestClose(t *testing.T) {
	tests := []struct {
		name    string
		creator string
		power   int
		wantErr error
	}{
		{name: "creator may close", creator: "@me:lectern.dev", power: 0},
		{name: "moderator may close", creator: "@other:x", power: 50},
		{name: "plain member may not", creator: "@other:x", power: 49, wantErr: domain.ErrNotPermitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockRemote{room: &mockRoom{entry: closableEntry(tt.creator), power: tt.power}}
			s := newTestAnnotate(m)

			err := s.Close(context.Background(), "!ann")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				if len(m.sent) != 0 {
					t.Error("guard rejection must not write")
				}
				return
			}
			if err != nil {
				t.Fatalf("Close: %v", err)
			}
			if len(m.sent) != 1 {
				t.Fatalf("sent %d events", len(m.sent))
			}
			p := m.sent[0].content.Annotation
			if p.ActivityStatus != "closed" {
				t.Errorf("status = %q, want closed", p.ActivityStatus)
			}
		})
	}
}

func TestClose_PermissionErrorDetail(t *testing.T) {
	m := &mockRemote{room: &mockRoom{entry: closableEntry("@other:x"), power: 10}}
	s := newTestAnnotate(m)

	err := s.Close(context.Background(), "!ann")
	var perr *domain.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want PermissionError", err)
	}
	if perr.PowerLevel != 10 || perr.UserID != "@me:lectern.dev" {
		t.Errorf("detail = %+v", perr)
	}
}

func TestClose_NotFound(t *testing.T) {
	m := &mockRemote{room: &mockRoom{}}
	s := newTestAnnotate(m)

	err := s.Close(context.Background(), "!missing")
	if !errors.Is(err, domain.ErrAnnotationNotFound) {
		t.Errorf("got %v, want ErrAnnotationNotFound", err)
	}
}

func TestReply(t *testing.T) {
	m := &mockRemote{room: &mockRoom{entry: closableEntry("@other:x")}}
	s := newTestAnnotate(m)

	if err := s.Reply(context.Background(), "!ann", "agreed, see page 4"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if len(m.messages) != 1 || m.messages[0].roomID != "!ann" || m.messages[0].body != "agreed, see page 4" {
		t.Errorf("messages = %+v", m.messages)
	}
	// The sender's marker moves past their own reply.
	if len(m.markedRead) != 1 || m.markedRead[0] != "!ann" {
		t.Errorf("marked read = %v, want [!ann]", m.markedRead)
	}
}

func TestReply_EmptyBody(t *testing.T) {
	s := newTestAnnotate(&mockRemote{room: &mockRoom{entry: closableEntry("@other:x")}})
	if err := s.Reply(context.Background(), "!ann", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
}

func TestReply_UnknownAnnotation(t *testing.T) {
	m := &mockRemote{room: &mockRoom{}}
	s := newTestAnnotate(m)

	err := s.Reply(context.Background(), "!missing", "hello")
	if !errors.Is(err, domain.ErrAnnotationNotFound) {
		t.Fatalf("got %v, want ErrAnnotationNotFound", err)
	}
	if len(m.messages) != 0 {
		t.Error("nothing should be posted for an unknown annotation")
	}
}

func TestLastViewedRoundTrip(t *testing.T) {
	m := &mockRemote{}
	s := newTestAnnotate(m)
	ctx := context.Background()

	if _, ok, err := s.GetLastViewed(ctx); err != nil || ok {
		t.Fatalf("empty marker = ok %v, err %v", ok, err)
	}

	if err := s.SetLastViewed(ctx, 7); err != nil {
		t.Fatalf("SetLastViewed: %v", err)
	}
	lv, ok, err := s.GetLastViewed(ctx)
	if err != nil || !ok {
		t.Fatalf("GetLastViewed: ok %v, err %v", ok, err)
	}
	if lv.Page != 7 || lv.DeviceID != "device-1" {
		t.Errorf("marker = %+v", lv)
	}

	// Stored wire form carries both fields.
	var raw map[string]any
	if err := json.Unmarshal(m.accountData[remote.LastViewedType], &raw); err != nil {
		t.Fatalf("unmarshal stored marker: %v", err)
	}
	if raw["page"] != float64(7) || raw["deviceId"] != "device-1" {
		t.Errorf("stored = %v", raw)
	}

	if err := s.SetLastViewed(ctx, 0); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("page 0: got %v", err)
	}
}
