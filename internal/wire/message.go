package wire

import "encoding/json"

// Message is the envelope for all C2S (Client to Server) and S2C
// (Server to Client) websocket messages. Payload shape depends on Type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event type constants.
const (
	// C2S
	TypeJoinRoom  = "join-room"
	TypeLeaveRoom = "leave-room"

	// S2C
	TypeWelcome    = "welcome"
	TypeAllMembers = "all-members"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeError      = "error"

	// Both directions. The client addresses these with "to"; the server
	// stamps "from" and forwards them to the target connection only.
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"

	// Both directions, room-scoped chat on the same transport.
	TypeChat = "chat"
)

// WelcomePayload tells a freshly connected client its assigned connection ID.
type WelcomePayload struct {
	PeerID string `json:"peerId"`
}

// RoomPayload carries the room ID for join-room and leave-room.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// PeerPayload carries the acting peer's ID for peer-joined and peer-left.
type PeerPayload struct {
	PeerID string `json:"peerId"`
}

// SignalPayload is the body of offer, answer and ice-candidate envelopes.
// Exactly one of SDP or Candidate is set, matching the envelope type.
// The SDP and candidate bytes are relayed verbatim; only the server
// interprets To/From.
type SignalPayload struct {
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ChatPayload is a room-scoped chat message. From and SentAt are stamped by
// the server before the message is broadcast.
type ChatPayload struct {
	RoomID string `json:"roomId"`
	From   string `json:"from,omitempty"`
	Body   string `json:"body"`
	SentAt int64  `json:"sentAt,omitempty"`
}

// ErrorPayload reports a server-side rejection to the sending client.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage builds an envelope with a marshaled payload.
func NewMessage(t string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}

// MustMessage is NewMessage for payload types that cannot fail to marshal.
func MustMessage(t string, payload any) *Message {
	msg, err := NewMessage(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// DecodePayload decodes the envelope payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// IsSignal reports whether the message is a point-to-point negotiation
// envelope the relay forwards by target ID.
func (m *Message) IsSignal() bool {
	switch m.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}
