package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BioHazard786/Meshdrop/internal/chat"
	"github.com/BioHazard786/Meshdrop/internal/metadata"
	"github.com/BioHazard786/Meshdrop/internal/wire"
)

// How long a participant-counter or chat-store call may take before we give
// up on it. The relay never waits on external services inline.
const storeTimeout = 3 * time.Second

// Inbound is a message received from a client, paired with its sender.
type Inbound struct {
	Client *Client
	Msg    *wire.Message
}

// Hub is the central brain of the signaling server. It manages all active
// rooms and clients, and relays negotiation envelopes between members.
//
// The hub itself keeps no per-negotiation state: everything it knows is room
// membership, so a restart only costs in-flight negotiations.
type Hub struct {
	// registry maps room IDs to member sets.
	registry *Registry

	// clients maps connection IDs to clients, for addressing offer,
	// answer and ice-candidate envelopes by target ID.
	clients map[string]*Client

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Inbound is the channel all client messages funnel into. The run
	// loop handles each message to completion before the next, which is
	// the only serialization the shared state needs.
	Inbound chan *Inbound

	// done stops the run loop.
	done chan struct{}

	meta  metadata.Store
	chats chat.Store
}

// NewHub creates a hub backed by the given participant-counter and chat
// stores.
func NewHub(meta metadata.Store, chats chat.Store) *Hub {
	return &Hub{
		registry:   NewRegistry(),
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Inbound),
		done:       make(chan struct{}),
		meta:       meta,
		chats:      chats,
	}
}

// Run starts the hub's main processing loop. This is the single goroutine
// that owns all state (registry, clients).
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client.ID] = client
			slog.Info("client connected", "conn", client.ID)

			// Raw websocket clients do not know their own connection
			// ID the way Socket.IO clients do, so tell them.
			h.send(client, wire.MustMessage(wire.TypeWelcome, wire.WelcomePayload{PeerID: client.ID}))

		case client := <-h.Unregister:
			h.disconnect(client)

		case in := <-h.Inbound:
			h.dispatch(in.Client, in.Msg)

		case <-h.done:
			return
		}
	}
}

// Stop terminates the run loop. Intended for shutdown and tests.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) dispatch(c *Client, msg *wire.Message) {
	switch {
	case msg.Type == wire.TypeJoinRoom:
		h.handleJoin(c, msg)

	case msg.Type == wire.TypeLeaveRoom:
		h.handleLeave(c, msg)

	case msg.IsSignal():
		h.handleSignal(c, msg)

	case msg.Type == wire.TypeChat:
		h.handleChat(c, msg)

	default:
		slog.Warn("unknown message type", "type", msg.Type, "conn", c.ID)
	}
}

// handleJoin adds the client to the room, replies with the current member
// list (excluding the joiner) and announces the arrival to everyone else.
func (h *Hub) handleJoin(c *Client, msg *wire.Message) {
	var payload wire.RoomPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.RoomID == "" {
		h.sendError(c, "join-room requires a roomId")
		return
	}

	room, joined := h.registry.Join(c, payload.RoomID)

	// The member list the joiner sees must be the true current set at
	// this instant. Self is filtered here so clients never have to
	// special-case their own ID when creating peer links.
	members := room.MemberIDs(c.ID)
	h.send(c, wire.MustMessage(wire.TypeAllMembers, members))

	if !joined {
		// Duplicate join: the authoritative list above is enough. No
		// second peer-joined broadcast, no double-counted participant.
		return
	}

	slog.Info("client joined room", "conn", c.ID, "room", room.ID, "members", len(room.Members))

	announce := wire.MustMessage(wire.TypePeerJoined, wire.PeerPayload{PeerID: c.ID})
	h.broadcast(room, c.ID, announce)

	h.bumpParticipants(room.ID, +1)
}

func (h *Hub) handleLeave(c *Client, msg *wire.Message) {
	var payload wire.RoomPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.RoomID == "" {
		h.sendError(c, "leave-room requires a roomId")
		return
	}

	room := h.registry.Leave(c, payload.RoomID)
	if room == nil {
		return
	}

	slog.Info("client left room", "conn", c.ID, "room", room.ID)
	h.broadcast(room, c.ID, wire.MustMessage(wire.TypePeerLeft, wire.PeerPayload{PeerID: c.ID}))
	h.bumpParticipants(room.ID, -1)
}

// handleSignal forwards an offer, answer or ice-candidate envelope to the
// connection named by "to", stamped with the sender's ID. No membership
// check: the relay trusts the sender to address valid peers. If the target
// is gone the envelope is dropped silently; the sender finds out about a
// missing peer via peer-left, not a send failure.
func (h *Hub) handleSignal(c *Client, msg *wire.Message) {
	var payload wire.SignalPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.To == "" {
		h.sendError(c, msg.Type+" requires a target")
		return
	}

	target, ok := h.clients[payload.To]
	if !ok {
		slog.Debug("dropping signal for unknown target", "type", msg.Type, "from", c.ID, "to", payload.To)
		return
	}

	payload.From = c.ID
	payload.To = ""

	forward, err := wire.NewMessage(msg.Type, payload)
	if err != nil {
		slog.Warn("failed to re-encode signal", "type", msg.Type, "err", err)
		return
	}
	h.send(target, forward)
}

// handleChat persists the message, then broadcasts it to the whole room
// including the sender. Persistence failure is logged, not fatal: the store
// is an external collaborator, not a gate on delivery.
func (h *Hub) handleChat(c *Client, msg *wire.Message) {
	var payload wire.ChatPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.RoomID == "" || payload.Body == "" {
		h.sendError(c, "chat requires a roomId and body")
		return
	}

	if _, member := c.Rooms[payload.RoomID]; !member {
		h.sendError(c, "you must join the room first")
		return
	}

	now := time.Now()
	payload.From = c.ID
	payload.SentAt = now.UnixMilli()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	err := h.chats.Save(ctx, chat.Message{
		RoomID: payload.RoomID,
		From:   c.ID,
		Body:   payload.Body,
		SentAt: now,
	})
	cancel()
	if err != nil {
		slog.Warn("failed to persist chat message", "room", payload.RoomID, "err", err)
	}

	out := wire.MustMessage(wire.TypeChat, payload)
	for _, id := range h.registry.MembersOf(payload.RoomID) {
		if member, ok := h.clients[id]; ok {
			h.send(member, out)
		}
	}
}

// disconnect handles a transport-level disconnect: every room the client
// belonged to is told the peer left, then the client is forgotten.
func (h *Hub) disconnect(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}

	slog.Info("client disconnected", "conn", c.ID)

	for _, room := range h.registry.LeaveAll(c) {
		h.broadcast(room, c.ID, wire.MustMessage(wire.TypePeerLeft, wire.PeerPayload{PeerID: c.ID}))
		h.bumpParticipants(room.ID, -1)
	}

	delete(h.clients, c.ID)
	close(c.Send)
}

// send queues a message for one client. If the client's send buffer is full
// its write pump is wedged; drop the message rather than stall the relay.
func (h *Hub) send(c *Client, msg *wire.Message) {
	select {
	case c.Send <- msg:
	default:
		slog.Warn("send buffer full, dropping message", "conn", c.ID, "type", msg.Type)
	}
}

// broadcast sends a message to every room member except the actor. A client
// never receives its own join/leave announcement as a peer event.
func (h *Hub) broadcast(room *Room, exclude string, msg *wire.Message) {
	for id, member := range room.Members {
		if id == exclude {
			continue
		}
		h.send(member, msg)
	}
}

func (h *Hub) sendError(c *Client, text string) {
	payload, _ := json.Marshal(wire.ErrorPayload{Error: text})
	h.send(c, &wire.Message{Type: wire.TypeError, Payload: payload})
}

// bumpParticipants updates the external room-metadata counter. Fire and
// forget: the relay loop never blocks on the metadata service.
func (h *Hub) bumpParticipants(roomID string, delta int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		var err error
		if delta > 0 {
			_, err = h.meta.Incr(ctx, roomID)
		} else {
			_, err = h.meta.Decr(ctx, roomID)
		}
		if err != nil {
			slog.Warn("participant counter update failed", "room", roomID, "delta", delta, "err", err)
		}
	}()
}
