package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Aklilu27/audiorooms/internal/domain"
	"github.com/Aklilu27/audiorooms/internal/presence"
	"github.com/Aklilu27/audiorooms/pkg/metrics"

	"github.com/gorilla/websocket"
)

// RoomLookup verifies room existence against durable storage before a
// participant is admitted. The registry itself never touches storage.
type RoomLookup interface {
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
}

// Notifier is the external messaging channel. Calls are fire-and-forget
// and must never fail the signaling path.
type Notifier interface {
	SystemMessage(ctx context.Context, roomID, text string)
	UserMessage(ctx context.Context, roomID, userID, username, text string)
}

type Server struct {
	upgrader websocket.Upgrader

	registry *presence.Registry
	gate     *presence.AccessGate
	rooms    RoomLookup
	notifier Notifier

	pingEvery time.Duration
}

func NewServer(registry *presence.Registry, gate *presence.AccessGate, rooms RoomLookup, notifier Notifier, pingEvery time.Duration) *Server {
	if pingEvery <= 0 {
		pingEvery = 15 * time.Second
	}
	return &Server{
		registry: registry,
		gate:     gate,
		rooms:    rooms,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: pingEvery,
	}
}

// HandleWS upgrades the connection and runs its event loop. Room
// membership is bound to this connection's lifetime: when the loop
// exits for any reason the participant is deregistered.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newClient(conn)
	go c.writePump(s.pingEvery)

	s.readLoop(r.Context(), c)

	s.handleDisconnect(context.WithoutCancel(r.Context()), c)
	_ = c.Close()
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read failed", "err", err)
			}
			return
		}
		s.dispatch(ctx, c, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, c *client, msg Message) {
	switch msg.Type {
	case TypeJoinRoom:
		var p JoinRoomPayload
		if decode(msg.Payload, &p) {
			s.handleJoin(ctx, c, p)
		}
	case TypeLeaveRoom:
		var p LeaveRoomPayload
		if decode(msg.Payload, &p) {
			s.handleLeave(ctx, c, p)
		}
	case TypeWebRTCSignal:
		var p SignalPayload
		if decode(msg.Payload, &p) {
			s.handleSignal(c, p)
		}
	case TypeRaiseHand:
		var p RaiseHandPayload
		if decode(msg.Payload, &p) {
			s.handleRaiseHand(ctx, c, p)
		}
	case TypeMuteUser:
		var p MuteUserPayload
		if decode(msg.Payload, &p) {
			s.handleMute(c, p)
		}
	case TypeChatMessage:
		var p ChatPayload
		if decode(msg.Payload, &p) {
			s.handleChat(ctx, c, p)
		}
	case TypeAudioStream:
		var p AudioStreamPayload
		if decode(msg.Payload, &p) {
			s.handleAudioStream(c, p)
		}
	default:
		// ignore
	}
}

// handleJoin admits the connection to a room: durable lookup, access
// gate check, then one atomic registry mutation. Nothing is registered
// when the join is rejected.
func (s *Server) handleJoin(ctx context.Context, conn presence.Conn, p JoinRoomPayload) {
	participantID := p.ClientID
	if participantID == "" {
		participantID = p.UserID
	}
	if participantID == "" || p.RoomID == "" {
		s.sendError(conn, "failed to join room")
		return
	}

	room, err := s.rooms.GetRoom(ctx, p.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			s.sendError(conn, "room not found")
			return
		}
		slog.Error("ws join room lookup failed", "room", p.RoomID, "err", err)
		s.sendError(conn, "failed to join room")
		return
	}

	isHost := room.HostID != "" && room.HostID == p.UserID
	if isHost {
		// the creator never needs the password
		s.gate.Grant(p.RoomID, p.UserID)
	}
	if room.IsPrivate && !s.gate.HasAccess(p.RoomID, p.UserID) {
		s.sendError(conn, "room password required")
		return
	}

	part := presence.Participant{
		ParticipantID: participantID,
		UserID:        p.UserID,
		Username:      p.Username,
		IsHost:        p.IsHost || isHost,
		JoinedAt:      time.Now(),
		Conn:          conn,
	}
	snapshot := s.registry.Join(p.RoomID, part)
	metrics.JoinsTotal.Inc()

	s.broadcastJoin(p.RoomID, part)

	users := make([]RoomUser, 0, len(snapshot))
	for _, sp := range snapshot {
		users = append(users, RoomUser{
			ParticipantID: sp.ParticipantID,
			UserID:        sp.UserID,
			Username:      sp.Username,
			IsHost:        sp.IsHost,
			IsSpeaking:    sp.IsSpeaking,
			JoinedAt:      sp.JoinedAt,
		})
	}
	_ = conn.Send(newMessage(TypeRoomState, RoomStatePayload{RoomID: p.RoomID, Users: users}))

	if s.notifier != nil {
		s.notifier.SystemMessage(ctx, p.RoomID, p.Username+" joined the room")
	}
	slog.Info("participant joined", "room", p.RoomID, "participant", participantID, "user", p.UserID)
}

func (s *Server) handleLeave(ctx context.Context, conn presence.Conn, p LeaveRoomPayload) {
	participantID := p.ClientID
	if participantID == "" {
		participantID = p.UserID
	}

	departed := s.registry.Leave(p.RoomID, participantID)
	if departed == nil {
		// already handled (disconnect raced the leave); suppress rebroadcast
		return
	}
	metrics.LeavesTotal.Inc()

	s.broadcastLeave(p.RoomID, *departed, TypeUserLeft)
	if s.notifier != nil {
		s.notifier.SystemMessage(ctx, p.RoomID, departed.Username+" left the room")
	}
	slog.Info("participant left", "room", p.RoomID, "participant", participantID)
}

func (s *Server) handleDisconnect(ctx context.Context, conn presence.Conn) {
	roomID, participantID, ok := s.registry.FindByConn(conn)
	if !ok {
		return
	}
	departed := s.registry.Leave(roomID, participantID)
	if departed == nil {
		return
	}
	metrics.DisconnectsTotal.Inc()

	s.broadcastLeave(roomID, *departed, TypeUserDisconnected)
	if s.notifier != nil {
		s.notifier.SystemMessage(ctx, roomID, departed.Username+" left the room")
	}
	slog.Info("participant disconnected", "room", roomID, "participant", participantID)
}

// handleSignal relays opaque negotiation cargo to exactly one target.
// The sender is resolved from its connection, never from the payload.
// A missing target is an expected race, not an error.
func (s *Server) handleSignal(conn presence.Conn, p SignalPayload) {
	roomID, senderID, ok := s.registry.FindByConn(conn)
	if !ok {
		return
	}
	sender, ok := s.registry.Get(roomID, senderID)
	if !ok {
		return
	}

	target, ok := s.findTarget(roomID, p.TargetUserID)
	if !ok {
		metrics.SignalsDropped.Inc()
		slog.Debug("signal target gone", "room", roomID, "target", p.TargetUserID)
		return
	}

	out := SignalPayload{
		ParticipantID: sender.ParticipantID,
		UserID:        sender.UserID,
		Username:      sender.Username,
		Signal:        p.Signal,
	}
	_ = target.Conn.Send(newMessage(TypeWebRTCSignal, out))
	metrics.SignalsRelayed.Inc()
}

// findTarget resolves an addressee by participant id first, then by
// user id. Browser tabs address each other by tab id, simpler clients
// by account id.
func (s *Server) findTarget(roomID, id string) (presence.Participant, bool) {
	if p, ok := s.registry.Get(roomID, id); ok {
		return p, true
	}
	for _, p := range s.registry.Snapshot(roomID) {
		if p.UserID == id {
			return p, true
		}
	}
	return presence.Participant{}, false
}

// handleRaiseHand routes the request to the room's host only.
func (s *Server) handleRaiseHand(ctx context.Context, conn presence.Conn, p RaiseHandPayload) {
	roomID, _, ok := s.registry.FindByConn(conn)
	if !ok {
		return
	}
	for _, member := range s.registry.Snapshot(roomID) {
		if member.IsHost {
			_ = member.Conn.Send(newMessage(TypeHandRaised, RaiseHandPayload{
				RoomID:    roomID,
				UserID:    p.UserID,
				Username:  p.Username,
				Timestamp: time.Now(),
			}))
			break
		}
	}
	if s.notifier != nil {
		s.notifier.SystemMessage(ctx, roomID, p.Username+" raised their hand")
	}
}

func (s *Server) handleMute(conn presence.Conn, p MuteUserPayload) {
	roomID, _, ok := s.registry.FindByConn(conn)
	if !ok {
		return
	}
	target, ok := s.findTarget(roomID, p.TargetUserID)
	if !ok {
		return
	}
	now := time.Now()
	_ = target.Conn.Send(newMessage(TypeUserMuted, UserMutedPayload{MutedBy: p.MutedBy, Timestamp: now}))
	s.broadcastToRoom(roomID, "", newMessage(TypeUserWasMuted, UserMutedPayload{
		TargetUserID: p.TargetUserID,
		Username:     target.Username,
		MutedBy:      p.MutedBy,
		Timestamp:    now,
	}))
}

func (s *Server) handleChat(ctx context.Context, conn presence.Conn, p ChatPayload) {
	roomID, senderID, ok := s.registry.FindByConn(conn)
	if !ok {
		return
	}
	sender, ok := s.registry.Get(roomID, senderID)
	if !ok || p.Text == "" {
		return
	}

	if s.notifier != nil {
		s.notifier.UserMessage(ctx, roomID, sender.UserID, sender.Username, p.Text)
	}
	// everyone, including the sender, sees the same broadcast
	s.broadcastToRoom(roomID, "", newMessage(TypeNewMessage, ChatPayload{
		RoomID:    roomID,
		UserID:    sender.UserID,
		Username:  sender.Username,
		Text:      p.Text,
		Timestamp: time.Now(),
	}))
}

func (s *Server) handleAudioStream(conn presence.Conn, p AudioStreamPayload) {
	roomID, senderID, ok := s.registry.FindByConn(conn)
	if !ok {
		return
	}
	s.broadcastToRoom(roomID, senderID, newMessage(TypeAudioStream, AudioStreamPayload{
		RoomID:    roomID,
		UserID:    senderID,
		AudioData: p.AudioData,
		Timestamp: time.Now().UnixMilli(),
	}))
}

// --- broadcaster ---

func (s *Server) broadcastJoin(roomID string, joined presence.Participant) {
	s.broadcastToRoom(roomID, joined.ParticipantID, newMessage(TypeUserJoined, PeerEventPayload{
		ParticipantID: joined.ParticipantID,
		UserID:        joined.UserID,
		Username:      joined.Username,
		IsHost:        joined.IsHost,
		Timestamp:     time.Now(),
	}))
}

func (s *Server) broadcastLeave(roomID string, departed presence.Participant, eventType string) {
	s.broadcastToRoom(roomID, departed.ParticipantID, newMessage(eventType, PeerEventPayload{
		ParticipantID: departed.ParticipantID,
		UserID:        departed.UserID,
		Username:      departed.Username,
		Timestamp:     time.Now(),
	}))
}

func (s *Server) broadcastToRoom(roomID, excludeParticipantID string, msg Message) {
	for _, member := range s.registry.Snapshot(roomID) {
		if member.ParticipantID == excludeParticipantID {
			continue
		}
		_ = member.Conn.Send(msg) // best-effort
	}
}

func (s *Server) sendError(conn presence.Conn, text string) {
	_ = conn.Send(newMessage(TypeError, ErrorPayload{Message: text}))
}

func decode(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
