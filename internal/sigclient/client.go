// Package sigclient is the client side of the signaling protocol: one
// websocket connection to the relay plus a router that fans the relay's
// events out to typed channels.
package sigclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Meshdrop/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *wire.Message
	outgoing  chan *wire.Message
	done      chan struct{}
	closed    bool
}

// NewClient creates a new signaling client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *wire.Message, 32),
		outgoing:  make(chan *wire.Message, 32),
		done:      make(chan struct{}, 1),
	}
}

// Connect establishes WebSocket connection to the server.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)

	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg wire.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.incoming <- &msg
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// SendMessage queues an envelope for the server.
func (c *Client) SendMessage(msg *wire.Message) {
	c.outgoing <- msg
}

// JoinRoom asks the relay to add this connection to a room.
func (c *Client) JoinRoom(roomID string) {
	c.SendMessage(wire.MustMessage(wire.TypeJoinRoom, wire.RoomPayload{RoomID: roomID}))
}

// LeaveRoom asks the relay to remove this connection from a room.
func (c *Client) LeaveRoom(roomID string) {
	c.SendMessage(wire.MustMessage(wire.TypeLeaveRoom, wire.RoomPayload{RoomID: roomID}))
}

// SendChat sends a room-scoped chat message through the relay.
func (c *Client) SendChat(roomID, body string) {
	c.SendMessage(wire.MustMessage(wire.TypeChat, wire.ChatPayload{RoomID: roomID, Body: body}))
}

// SendSignal sends a negotiation envelope addressed to one peer.
func (c *Client) SendSignal(kind, to string, sdp, candidate json.RawMessage) {
	c.SendMessage(wire.MustMessage(kind, wire.SignalPayload{
		To:        to,
		SDP:       sdp,
		Candidate: candidate,
	}))
}

// Incoming returns the channel for receiving messages.
func (c *Client) Incoming() <-chan *wire.Message {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true

	close(c.done)
}
