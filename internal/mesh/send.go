package mesh

import (
	"errors"
	"strings"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/BioHazard786/Meshdrop/internal/version"
)

var ErrChannelNotOpen = errors.New("channel not open")

// SendMessage writes one mesh message to an open data channel.
func SendMessage(dc *pion.DataChannel, msg Message) error {
	if dc == nil {
		return ErrChannelNotOpen
	}
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return err
	}
	return dc.Send(data)
}

// SendTypedMessage wraps a payload in a Message and sends it.
func SendTypedMessage(dc *pion.DataChannel, msgType string, payload any) error {
	if dc == nil {
		return ErrChannelNotOpen
	}
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return SendMessage(dc, msg)
}

// SendPresence announces who we are when the channel opens.
func SendPresence(dc *pion.DataChannel, displayName string) error {
	return SendTypedMessage(dc, MessageTypePresence, PresencePayload{
		DisplayName: displayName,
		Version:     strings.TrimPrefix(version.Version, "v"),
	})
}

// SendChat sends a chat line directly to the peer.
func SendChat(dc *pion.DataChannel, body string) error {
	return SendTypedMessage(dc, MessageTypeChat, ChatPayload{
		Body:   body,
		SentAt: time.Now().UnixMilli(),
	})
}

// ParseMessage decodes one data channel frame.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
