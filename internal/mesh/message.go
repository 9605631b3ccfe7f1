// Package mesh defines the messages peers exchange over their data channels
// once a link is negotiated. Unlike the JSON signaling protocol, these never
// touch the relay.
package mesh

import "github.com/vmihailenco/msgpack/v5"

// Message type constants.
const (
	MessageTypePresence = "presence"
	MessageTypeChat     = "chat"
)

// Message represents all data channel messages between meshed peers.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// PresencePayload is sent once when the channel opens.
type PresencePayload struct {
	DisplayName string `msgpack:"displayName"`
	Version     string `msgpack:"version"`
}

// ChatPayload is a direct peer-to-peer chat line.
type ChatPayload struct {
	Body   string `msgpack:"body"`
	SentAt int64  `msgpack:"sentAt"`
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:    t,
		Payload: b,
	}, nil
}
