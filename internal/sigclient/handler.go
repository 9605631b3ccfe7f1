package sigclient

import (
	"encoding/json"
	"log/slog"

	"github.com/BioHazard786/Meshdrop/internal/wire"
)

// Signal is one inbound negotiation envelope, already unwrapped.
type Signal struct {
	Kind      string // wire.TypeOffer, TypeAnswer or TypeICECandidate
	From      string
	SDP       json.RawMessage
	Candidate json.RawMessage
}

// Handler routes incoming signaling messages to appropriate channels.
type Handler struct {
	client     *Client
	Welcome    chan string
	AllMembers chan []string
	PeerJoined chan string
	PeerLeft   chan string
	Signal     chan *Signal
	Chat       chan *wire.ChatPayload
	Error      chan string
	closed     bool
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:     client,
		Welcome:    make(chan string, 1),
		AllMembers: make(chan []string, 1),
		PeerJoined: make(chan string, 8),
		PeerLeft:   make(chan string, 8),
		Signal:     make(chan *Signal, 32),
		Chat:       make(chan *wire.ChatPayload, 32),
		Error:      make(chan string, 1),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the connection closes, after which it closes every event channel.
func (h *Handler) Start() {
	defer h.Close()

	for msg := range h.client.Incoming() {

		switch msg.Type {

		case wire.TypeWelcome:
			var payload wire.WelcomePayload
			if err := msg.DecodePayload(&payload); err == nil {
				h.Welcome <- payload.PeerID
			}

		case wire.TypeAllMembers:
			var members []string
			if err := msg.DecodePayload(&members); err == nil {
				h.AllMembers <- members
			}

		case wire.TypePeerJoined:
			var payload wire.PeerPayload
			if err := msg.DecodePayload(&payload); err == nil {
				h.PeerJoined <- payload.PeerID
			}

		case wire.TypePeerLeft:
			var payload wire.PeerPayload
			if err := msg.DecodePayload(&payload); err == nil {
				h.PeerLeft <- payload.PeerID
			}

		case wire.TypeOffer, wire.TypeAnswer, wire.TypeICECandidate:
			h.handleSignal(msg)

		case wire.TypeChat:
			var payload wire.ChatPayload
			if err := msg.DecodePayload(&payload); err == nil {
				h.Chat <- &payload
			}

		case wire.TypeError:
			h.handleError(msg)

		default:
			slog.Debug("ignoring unknown message type", "type", msg.Type)
		}
	}
}

// handleSignal unwraps a negotiation envelope and sends it on.
func (h *Handler) handleSignal(msg *wire.Message) {
	var payload wire.SignalPayload
	if err := msg.DecodePayload(&payload); err != nil {
		h.Error <- "Failed to parse signal payload"
		return
	}

	h.Signal <- &Signal{
		Kind:      msg.Type,
		From:      payload.From,
		SDP:       payload.SDP,
		Candidate: payload.Candidate,
	}
}

// handleError parses the error message and sends it through the Error channel.
func (h *Handler) handleError(msg *wire.Message) {
	var payload wire.ErrorPayload
	if err := msg.DecodePayload(&payload); err != nil {
		h.Error <- "Unknown error from server"
		return
	}

	h.Error <- payload.Error
}

// Close closes all handler channels.
func (h *Handler) Close() {
	if h.closed {
		return
	}
	h.closed = true

	close(h.Welcome)
	close(h.AllMembers)
	close(h.PeerJoined)
	close(h.PeerLeft)
	close(h.Signal)
	close(h.Chat)
	close(h.Error)
}
