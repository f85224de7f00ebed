package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Aklilu27/audiorooms/internal/domain"
	"github.com/Aklilu27/audiorooms/internal/presence"

	"github.com/gorilla/websocket"
)

type fakeConn struct {
	mu   sync.Mutex
	sent []Message
}

func (f *fakeConn) Send(v any) error {
	msg, ok := v.(Message)
	if !ok {
		return errBadOutbound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) messages(typ string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.sent {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) last() (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return Message{}, false
	}
	return f.sent[len(f.sent)-1], true
}

type fakeRooms struct {
	rooms map[string]*domain.Room
}

func (f *fakeRooms) GetRoom(_ context.Context, id string) (*domain.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	system []string
	user   []string
}

func (f *fakeNotifier) SystemMessage(_ context.Context, roomID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system = append(f.system, roomID+": "+text)
}

func (f *fakeNotifier) UserMessage(_ context.Context, roomID, _, username, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = append(f.user, roomID+": "+username+": "+text)
}

func newTestServer(rooms map[string]*domain.Room) (*Server, *presence.Registry, *presence.AccessGate, *fakeNotifier) {
	registry := presence.NewRegistry()
	gate := presence.NewAccessGate()
	notifier := &fakeNotifier{}
	srv := NewServer(registry, gate, &fakeRooms{rooms: rooms}, notifier, 15*time.Second)
	return srv, registry, gate, notifier
}

func join(t *testing.T, srv *Server, conn presence.Conn, roomID, userID, username string) {
	t.Helper()
	srv.handleJoin(context.Background(), conn, JoinRoomPayload{
		RoomID:   roomID,
		UserID:   userID,
		Username: username,
	})
}

func decodePayload[T any](t *testing.T, msg Message) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", msg.Type, err)
	}
	return v
}

func TestJoinUnknownRoomRejected(t *testing.T) {
	srv, registry, _, _ := newTestServer(nil)

	conn := &fakeConn{}
	join(t, srv, conn, "nope", "u1", "alice")

	msg, ok := conn.last()
	if !ok || msg.Type != TypeError {
		t.Fatalf("expected error event, got %+v", msg)
	}
	if got := registry.Snapshot("nope"); len(got) != 0 {
		t.Fatalf("rejected join must not register, snapshot = %v", got)
	}
}

func TestJoinPrivateRoomRequiresGrant(t *testing.T) {
	rooms := map[string]*domain.Room{
		"r1": {ID: "r1", Title: "secret", IsPrivate: true, HostID: "host"},
	}
	srv, registry, gate, _ := newTestServer(rooms)

	conn := &fakeConn{}
	join(t, srv, conn, "r1", "u1", "alice")

	msg, _ := conn.last()
	if msg.Type != TypeError {
		t.Fatalf("ungranted join must fail, got %s", msg.Type)
	}
	if p := decodePayload[ErrorPayload](t, msg); p.Message != "room password required" {
		t.Fatalf("error message = %q", p.Message)
	}
	if len(registry.Snapshot("r1")) != 0 {
		t.Fatal("rejected join must leave the registry untouched")
	}

	gate.Grant("r1", "u1")
	join(t, srv, conn, "r1", "u1", "alice")
	if len(registry.Snapshot("r1")) != 1 {
		t.Fatal("granted user must be admitted")
	}
}

func TestJoinHostBypassesGate(t *testing.T) {
	rooms := map[string]*domain.Room{
		"r1": {ID: "r1", Title: "secret", IsPrivate: true, HostID: "host"},
	}
	srv, registry, gate, _ := newTestServer(rooms)

	conn := &fakeConn{}
	join(t, srv, conn, "r1", "host", "bob")

	if len(registry.Snapshot("r1")) != 1 {
		t.Fatal("host must join a private room without a grant")
	}
	if !gate.HasAccess("r1", "host") {
		t.Fatal("host join must record a grant")
	}
	snap := registry.Snapshot("r1")
	if !snap[0].IsHost {
		t.Fatal("host flag must be derived from room ownership")
	}
}

func TestJoinBroadcastAndRoomState(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, _, _, notifier := newTestServer(rooms)

	a := &fakeConn{}
	b := &fakeConn{}
	join(t, srv, a, "r1", "ua", "alice")
	join(t, srv, b, "r1", "ub", "bob")

	// alice is notified about bob, bob is not notified about himself
	if got := a.messages(TypeUserJoined); len(got) != 1 {
		t.Fatalf("alice got %d user-joined events, want 1", len(got))
	} else if p := decodePayload[PeerEventPayload](t, got[0]); p.UserID != "ub" {
		t.Fatalf("user-joined carries %q, want ub", p.UserID)
	}
	if got := b.messages(TypeUserJoined); len(got) != 0 {
		t.Fatal("joiner must not receive its own user-joined event")
	}

	// the joiner gets the full membership
	states := b.messages(TypeRoomState)
	if len(states) != 1 {
		t.Fatalf("bob got %d room-state events, want 1", len(states))
	}
	state := decodePayload[RoomStatePayload](t, states[0])
	if len(state.Users) != 2 {
		t.Fatalf("room-state has %d users, want 2", len(state.Users))
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.system) != 2 {
		t.Fatalf("expected 2 system messages, got %v", notifier.system)
	}
}

func TestSignalRelayedToTargetOnly(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, _, _, _ := newTestServer(rooms)

	a := &fakeConn{}
	b := &fakeConn{}
	c := &fakeConn{}
	join(t, srv, a, "r1", "ua", "alice")
	join(t, srv, b, "r1", "ub", "bob")
	join(t, srv, c, "r1", "uc", "carol")

	cargo := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	srv.handleSignal(a, SignalPayload{TargetUserID: "ub", Signal: cargo})

	got := b.messages(TypeWebRTCSignal)
	if len(got) != 1 {
		t.Fatalf("target got %d signals, want 1", len(got))
	}
	p := decodePayload[SignalPayload](t, got[0])
	if p.UserID != "ua" || p.Username != "alice" {
		t.Fatalf("relayed signal sender = %q/%q, want ua/alice", p.UserID, p.Username)
	}
	if string(p.Signal) != string(cargo) {
		t.Fatalf("cargo modified in flight: %s", p.Signal)
	}

	if len(a.messages(TypeWebRTCSignal))+len(c.messages(TypeWebRTCSignal)) != 0 {
		t.Fatal("signal must reach exactly one connection")
	}
}

func TestSignalBetweenTabsOfOneAccount(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, registry, _, _ := newTestServer(rooms)

	tabA := &fakeConn{}
	tabB := &fakeConn{}
	srv.handleJoin(context.Background(), tabA, JoinRoomPayload{RoomID: "r1", UserID: "u1", ClientID: "tab-a", Username: "alice"})
	srv.handleJoin(context.Background(), tabB, JoinRoomPayload{RoomID: "r1", UserID: "u1", ClientID: "tab-b", Username: "alice"})

	if len(registry.Snapshot("r1")) != 2 {
		t.Fatal("both tabs must hold separate registry entries")
	}

	cargo := json.RawMessage(`{"type":"offer"}`)
	srv.handleSignal(tabA, SignalPayload{TargetUserID: "tab-b", Signal: cargo})

	got := tabB.messages(TypeWebRTCSignal)
	if len(got) != 1 {
		t.Fatalf("tab-b got %d signals, want 1", len(got))
	}
	p := decodePayload[SignalPayload](t, got[0])
	if p.ParticipantID != "tab-a" {
		t.Fatalf("relayed sender participant = %q, want tab-a", p.ParticipantID)
	}
	if p.UserID != "u1" || p.Username != "alice" {
		t.Fatalf("relayed sender account = %q/%q, want u1/alice", p.UserID, p.Username)
	}
	if len(tabA.messages(TypeWebRTCSignal)) != 0 {
		t.Fatal("signal must not echo to the sending tab")
	}
}

func TestSignalDroppedWhenTargetAbsent(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, _, _, _ := newTestServer(rooms)

	a := &fakeConn{}
	join(t, srv, a, "r1", "ua", "alice")

	srv.handleSignal(a, SignalPayload{TargetUserID: "gone", Signal: json.RawMessage(`{}`)})

	if msgs := a.messages(TypeError); len(msgs) != 0 {
		t.Fatal("a dropped signal must not produce an error event")
	}
}

func TestSignalFromUnregisteredConnIgnored(t *testing.T) {
	srv, _, _, _ := newTestServer(map[string]*domain.Room{"r1": {ID: "r1"}})

	stranger := &fakeConn{}
	srv.handleSignal(stranger, SignalPayload{TargetUserID: "ua", Signal: json.RawMessage(`{}`)})

	if len(stranger.sent) != 0 {
		t.Fatalf("unregistered sender must be ignored, got %v", stranger.sent)
	}
}

func TestLeaveBroadcastsOnce(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, registry, _, _ := newTestServer(rooms)

	a := &fakeConn{}
	b := &fakeConn{}
	join(t, srv, a, "r1", "ua", "alice")
	join(t, srv, b, "r1", "ub", "bob")

	srv.handleLeave(context.Background(), a, LeaveRoomPayload{RoomID: "r1", UserID: "ua"})
	srv.handleDisconnect(context.Background(), a) // transport teardown races the leave

	if got := b.messages(TypeUserLeft); len(got) != 1 {
		t.Fatalf("bob got %d user-left events, want exactly 1", len(got))
	}
	if got := b.messages(TypeUserDisconnected); len(got) != 0 {
		t.Fatal("duplicate departure must not rebroadcast")
	}
	if len(registry.Snapshot("r1")) != 1 {
		t.Fatal("only bob should remain")
	}
}

func TestDisconnectBroadcastsUserDisconnected(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, registry, _, _ := newTestServer(rooms)

	a := &fakeConn{}
	b := &fakeConn{}
	join(t, srv, a, "r1", "ua", "alice")
	join(t, srv, b, "r1", "ub", "bob")

	srv.handleDisconnect(context.Background(), a)

	got := b.messages(TypeUserDisconnected)
	if len(got) != 1 {
		t.Fatalf("bob got %d user-disconnected events, want 1", len(got))
	}
	if p := decodePayload[PeerEventPayload](t, got[0]); p.UserID != "ua" {
		t.Fatalf("departed user = %q, want ua", p.UserID)
	}
	if len(registry.Snapshot("r1")) != 1 {
		t.Fatal("disconnected participant must be deregistered")
	}
}

func TestDisconnectBeforeJoinIsNoop(t *testing.T) {
	srv, _, _, notifier := newTestServer(nil)

	srv.handleDisconnect(context.Background(), &fakeConn{})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.system) != 0 {
		t.Fatal("disconnect without membership must be silent")
	}
}

func TestRaiseHandRoutedToHost(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "uh"}}
	srv, _, _, _ := newTestServer(rooms)

	host := &fakeConn{}
	a := &fakeConn{}
	b := &fakeConn{}
	join(t, srv, host, "r1", "uh", "hana")
	join(t, srv, a, "r1", "ua", "alice")
	join(t, srv, b, "r1", "ub", "bob")

	srv.handleRaiseHand(context.Background(), a, RaiseHandPayload{UserID: "ua", Username: "alice"})

	if got := host.messages(TypeHandRaised); len(got) != 1 {
		t.Fatalf("host got %d hand-raised events, want 1", len(got))
	}
	if len(b.messages(TypeHandRaised)) != 0 {
		t.Fatal("hand-raised must go to the host only")
	}
}

func TestMuteNotifiesTargetAndRoom(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "uh"}}
	srv, _, _, _ := newTestServer(rooms)

	host := &fakeConn{}
	a := &fakeConn{}
	join(t, srv, host, "r1", "uh", "hana")
	join(t, srv, a, "r1", "ua", "alice")

	srv.handleMute(host, MuteUserPayload{TargetUserID: "ua", MutedBy: "hana"})

	if got := a.messages(TypeUserMuted); len(got) != 1 {
		t.Fatalf("target got %d user-muted events, want 1", len(got))
	}
	if got := host.messages(TypeUserWasMuted); len(got) != 1 {
		t.Fatalf("room got %d user-was-muted events, want 1", len(got))
	}
	p := decodePayload[UserMutedPayload](t, host.messages(TypeUserWasMuted)[0])
	if p.TargetUserID != "ua" || p.MutedBy != "hana" {
		t.Fatalf("user-was-muted payload = %+v", p)
	}
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, _, _, notifier := newTestServer(rooms)

	a := &fakeConn{}
	b := &fakeConn{}
	join(t, srv, a, "r1", "ua", "alice")
	join(t, srv, b, "r1", "ub", "bob")

	srv.handleChat(context.Background(), a, ChatPayload{Text: "hello"})

	for name, conn := range map[string]*fakeConn{"alice": a, "bob": b} {
		got := conn.messages(TypeNewMessage)
		if len(got) != 1 {
			t.Fatalf("%s got %d new-message events, want 1", name, len(got))
		}
		p := decodePayload[ChatPayload](t, got[0])
		if p.Username != "alice" || p.Text != "hello" {
			t.Fatalf("new-message payload = %+v", p)
		}
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.user) != 1 {
		t.Fatalf("expected 1 forwarded chat message, got %v", notifier.user)
	}
}

func TestAudioStreamFansOutToOthers(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, _, _, _ := newTestServer(rooms)

	a := &fakeConn{}
	b := &fakeConn{}
	c := &fakeConn{}
	join(t, srv, a, "r1", "ua", "alice")
	join(t, srv, b, "r1", "ub", "bob")
	join(t, srv, c, "r1", "uc", "carol")

	srv.handleAudioStream(a, AudioStreamPayload{AudioData: json.RawMessage(`"b64"`)})

	if len(b.messages(TypeAudioStream)) != 1 || len(c.messages(TypeAudioStream)) != 1 {
		t.Fatal("audio chunk must reach every other member")
	}
	if len(a.messages(TypeAudioStream)) != 0 {
		t.Fatal("audio chunk must not echo to the sender")
	}
}

// Mirrors the full three-party session: joins, pairwise signaling,
// leave, disconnect.
func TestRoomSessionEndToEnd(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "music", HostID: "ua"}}
	srv, registry, _, _ := newTestServer(rooms)

	a := &fakeConn{}
	b := &fakeConn{}
	c := &fakeConn{}
	join(t, srv, a, "r1", "ua", "alice")
	join(t, srv, b, "r1", "ub", "bob")
	join(t, srv, c, "r1", "uc", "carol")

	// carol's room-state must show all three
	states := c.messages(TypeRoomState)
	if len(states) != 1 {
		t.Fatalf("carol got %d room-state events", len(states))
	}
	if state := decodePayload[RoomStatePayload](t, states[0]); len(state.Users) != 3 {
		t.Fatalf("carol sees %d users, want 3", len(state.Users))
	}

	// each earlier member saw carol arrive
	for name, conn := range map[string]*fakeConn{"alice": a, "bob": b} {
		if got := conn.messages(TypeUserJoined); len(got) != 2 && name == "alice" {
			t.Fatalf("alice saw %d arrivals, want 2", len(got))
		}
	}

	// pairwise negotiation: a->b offer, b->a answer
	srv.handleSignal(a, SignalPayload{TargetUserID: "ub", Signal: json.RawMessage(`{"type":"offer"}`)})
	srv.handleSignal(b, SignalPayload{TargetUserID: "ua", Signal: json.RawMessage(`{"type":"answer"}`)})
	if len(b.messages(TypeWebRTCSignal)) != 1 || len(a.messages(TypeWebRTCSignal)) != 1 {
		t.Fatal("offer/answer exchange must be relayed both ways")
	}

	// bob leaves explicitly, carol drops
	srv.handleLeave(context.Background(), b, LeaveRoomPayload{RoomID: "r1", UserID: "ub"})
	srv.handleDisconnect(context.Background(), c)

	if got := a.messages(TypeUserLeft); len(got) != 1 {
		t.Fatalf("alice saw %d explicit leaves, want 1", len(got))
	}
	if got := a.messages(TypeUserDisconnected); len(got) != 1 {
		t.Fatalf("alice saw %d disconnects, want 1", len(got))
	}

	snap := registry.Snapshot("r1")
	if len(snap) != 1 || snap[0].UserID != "ua" {
		t.Fatalf("only alice should remain, snapshot = %v", snap)
	}

	// signaling to departed members is silently dropped
	srv.handleSignal(a, SignalPayload{TargetUserID: "ub", Signal: json.RawMessage(`{}`)})
	if len(a.messages(TypeError)) != 0 {
		t.Fatal("late signal must not surface an error")
	}
}

// Runs the relay over real websocket connections so delivery goes
// through the per-client send queue and write pump, not a test double.
// A burst of signals to one target must arrive in send order.
func TestRelayOrderOverTransport(t *testing.T) {
	rooms := map[string]*domain.Room{"r1": {ID: "r1", Title: "t", HostID: "h"}}
	srv, _, _, _ := newTestServer(rooms)

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	dialAndJoin := func(userID, username string) *websocket.Conn {
		t.Helper()
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		raw, _ := json.Marshal(JoinRoomPayload{RoomID: "r1", UserID: userID, Username: username})
		if err := conn.WriteJSON(Message{Type: TypeJoinRoom, Payload: raw}); err != nil {
			t.Fatalf("join: %v", err)
		}
		return conn
	}

	target := dialAndJoin("ub", "bob")
	defer target.Close()

	// room-state coming back confirms the server registered the target
	_ = target.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first Message
	if err := target.ReadJSON(&first); err != nil {
		t.Fatalf("read room-state: %v", err)
	}
	if first.Type != TypeRoomState {
		t.Fatalf("first event = %s, want room-state", first.Type)
	}

	sender := dialAndJoin("ua", "alice")
	defer sender.Close()

	const burst = 40
	for i := 0; i < burst; i++ {
		cargo, _ := json.Marshal(map[string]int{"seq": i})
		raw, _ := json.Marshal(SignalPayload{TargetUserID: "ub", Signal: cargo})
		if err := sender.WriteJSON(Message{Type: TypeWebRTCSignal, Payload: raw}); err != nil {
			t.Fatalf("send signal %d: %v", i, err)
		}
	}

	next := 0
	for next < burst {
		var msg Message
		if err := target.ReadJSON(&msg); err != nil {
			t.Fatalf("read after %d signals: %v", next, err)
		}
		if msg.Type != TypeWebRTCSignal {
			continue // user-joined announcement for alice
		}
		p := decodePayload[SignalPayload](t, msg)
		var body struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(p.Signal, &body); err != nil {
			t.Fatalf("decode cargo: %v", err)
		}
		if body.Seq != next {
			t.Fatalf("signal %d arrived in position %d", body.Seq, next)
		}
		next++
	}
}

func TestRoomLookupFailureSurfacesGenericError(t *testing.T) {
	srv := NewServer(presence.NewRegistry(), presence.NewAccessGate(), failingRooms{}, nil, time.Second)

	conn := &fakeConn{}
	join(t, srv, conn, "r1", "u1", "alice")

	msg, _ := conn.last()
	if msg.Type != TypeError {
		t.Fatalf("expected error event, got %s", msg.Type)
	}
	if p := decodePayload[ErrorPayload](t, msg); p.Message != "failed to join room" {
		t.Fatalf("storage failures must not leak details, got %q", p.Message)
	}
}

type failingRooms struct{}

func (failingRooms) GetRoom(context.Context, string) (*domain.Room, error) {
	return nil, errors.New("pool exhausted")
}
