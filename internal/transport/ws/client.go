package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
	maxMessageSize = 512 * 1024 // room for SDP offers with many candidates
)

var (
	errConnClosed   = errors.New("ws: connection closed")
	errSlowConsumer = errors.New("ws: send buffer full")
	errBadOutbound  = errors.New("ws: outbound value is not a Message")
)

// client wraps one websocket connection. All writes funnel through the
// send channel and are drained by a single writePump, so delivery to
// this client is FIFO — relayed ICE candidates cannot overtake the
// offer that preceded them.
type client struct {
	conn *websocket.Conn

	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan Message, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send enqueues an outbound message. A full buffer means the client
// stopped draining; the connection is dropped rather than blocking the
// caller or reordering messages.
func (c *client) Send(v any) error {
	msg, ok := v.(Message)
	if !ok {
		return errBadOutbound
	}

	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		_ = c.Close()
		return errSlowConsumer
	}
}

func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// writePump is the single writer for the connection. It drains the
// send queue and keeps the peer alive with pings.
func (c *client) writePump(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}
