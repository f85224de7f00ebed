package ws

import (
	"encoding/json"
	"time"
)

// Event types exchanged over the room WebSocket.
const (
	TypeJoinRoom         = "join-room"
	TypeLeaveRoom        = "leave-room"
	TypeRoomState        = "room-state"
	TypeUserJoined       = "user-joined"
	TypeUserLeft         = "user-left"
	TypeUserDisconnected = "user-disconnected"
	TypeWebRTCSignal     = "webrtc-signal"
	TypeRaiseHand        = "raise-hand"
	TypeHandRaised       = "hand-raised"
	TypeMuteUser         = "mute-user"
	TypeUserMuted        = "user-muted"
	TypeUserWasMuted     = "user-was-muted"
	TypeChatMessage      = "chat-message"
	TypeNewMessage       = "new-message"
	TypeAudioStream      = "audio-stream"
	TypeError            = "error"
)

// Message is the envelope for every event in both directions. Payload
// stays raw so relayed cargo is forwarded byte for byte.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newMessage(typ string, v any) Message {
	raw, _ := json.Marshal(v)
	return Message{Type: typ, Payload: raw}
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	ClientID string `json:"clientId,omitempty"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost,omitempty"`
}

type LeaveRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	ClientID string `json:"clientId,omitempty"`
}

type RoomUser struct {
	ParticipantID string    `json:"participantId"`
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	IsHost        bool      `json:"isHost"`
	IsSpeaking    bool      `json:"isSpeaking"`
	JoinedAt      time.Time `json:"joinedAt"`
}

type RoomStatePayload struct {
	RoomID string     `json:"roomId"`
	Users  []RoomUser `json:"users"`
}

// PeerEventPayload carries user-joined / user-left / user-disconnected.
type PeerEventPayload struct {
	ParticipantID string    `json:"participantId"`
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	IsHost        bool      `json:"isHost,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// SignalPayload is the relay envelope. Signal is opaque negotiation
// cargo (offer, answer or ICE candidate); the server never parses it.
// On relay the server stamps the sender's participantId so the
// receiving tab can route the cargo even when one account has several
// tabs in the room.
type SignalPayload struct {
	RoomID        string          `json:"roomId,omitempty"`
	ParticipantID string          `json:"participantId,omitempty"`
	UserID        string          `json:"userId"`
	Username      string          `json:"username,omitempty"`
	TargetUserID  string          `json:"targetUserId,omitempty"`
	Signal        json.RawMessage `json:"signal"`
}

type RaiseHandPayload struct {
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type MuteUserPayload struct {
	RoomID       string `json:"roomId"`
	TargetUserID string `json:"targetUserId"`
	MutedBy      string `json:"mutedBy"`
}

type UserMutedPayload struct {
	TargetUserID string    `json:"targetUserId,omitempty"`
	Username     string    `json:"username,omitempty"`
	MutedBy      string    `json:"mutedBy"`
	Timestamp    time.Time `json:"timestamp"`
}

type ChatPayload struct {
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type AudioStreamPayload struct {
	RoomID    string          `json:"roomId"`
	UserID    string          `json:"userId"`
	AudioData json.RawMessage `json:"audioData"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
