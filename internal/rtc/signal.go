// Package rtc is the participant side of a room: a signaling client
// speaking the room WebSocket protocol and an orchestrator that keeps
// one peer connection per remote participant.
package rtc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aklilu27/audiorooms/internal/transport/ws"

	"github.com/gorilla/websocket"
)

// Handler receives room events from the signaling connection. Methods
// are called from the read loop, one at a time. Signals are identified
// by the sender's participant id (the per-tab id), never by account.
type Handler interface {
	OnRoomState(ws.RoomStatePayload)
	OnUserJoined(ws.PeerEventPayload)
	OnUserLeft(ws.PeerEventPayload)
	OnSignal(fromParticipantID string, cargo json.RawMessage)
	OnChat(ws.ChatPayload)
	OnServerError(message string)
}

// Client is one participant's signaling connection.
type Client struct {
	url     string
	handler Handler

	mu   sync.Mutex // guards writes
	conn *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(url string, handler Handler) *Client {
	return &Client{
		url:     url,
		handler: handler,
		closed:  make(chan struct{}),
	}
}

// Connect dials the room endpoint and starts the read loop.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn

	go c.readLoop()
	return nil
}

// Join announces this participant to the room.
func (c *Client) Join(roomID, userID, clientID, username string) error {
	return c.send(ws.TypeJoinRoom, ws.JoinRoomPayload{
		RoomID:   roomID,
		UserID:   userID,
		ClientID: clientID,
		Username: username,
	})
}

func (c *Client) Leave(roomID, userID, clientID string) error {
	return c.send(ws.TypeLeaveRoom, ws.LeaveRoomPayload{RoomID: roomID, UserID: userID, ClientID: clientID})
}

// SendSignal relays negotiation cargo to one remote participant.
func (c *Client) SendSignal(targetUserID string, cargo json.RawMessage) error {
	return c.send(ws.TypeWebRTCSignal, ws.SignalPayload{TargetUserID: targetUserID, Signal: cargo})
}

func (c *Client) SendChat(roomID, userID, username, text string) error {
	return c.send(ws.TypeChatMessage, ws.ChatPayload{RoomID: roomID, UserID: userID, Username: username, Text: text})
}

func (c *Client) RaiseHand(roomID, userID, username string) error {
	return c.send(ws.TypeRaiseHand, ws.RaiseHandPayload{RoomID: roomID, UserID: userID, Username: username})
}

func (c *Client) send(typ string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(ws.Message{Type: typ, Payload: raw})
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		var msg ws.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.closed:
			default:
				slog.Debug("signal read failed", "err", err)
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg ws.Message) {
	switch msg.Type {
	case ws.TypeRoomState:
		var p ws.RoomStatePayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			c.handler.OnRoomState(p)
		}
	case ws.TypeUserJoined:
		var p ws.PeerEventPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			c.handler.OnUserJoined(p)
		}
	case ws.TypeUserLeft, ws.TypeUserDisconnected:
		var p ws.PeerEventPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			c.handler.OnUserLeft(p)
		}
	case ws.TypeWebRTCSignal:
		var p ws.SignalPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			from := p.ParticipantID
			if from == "" {
				from = p.UserID
			}
			c.handler.OnSignal(from, p.Signal)
		}
	case ws.TypeNewMessage:
		var p ws.ChatPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			c.handler.OnChat(p)
		}
	case ws.TypeError:
		var p ws.ErrorPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			c.handler.OnServerError(p.Message)
		}
	default:
		// hand-raised, mute and audio events are informational here
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
