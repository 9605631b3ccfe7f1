package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Meshdrop/internal/chat"
	"github.com/BioHazard786/Meshdrop/internal/metadata"
	"github.com/BioHazard786/Meshdrop/internal/wire"
)

type hubFixture struct {
	hub   *Hub
	meta  *metadata.MemoryStore
	chats *chat.MemoryStore
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	f := &hubFixture{
		meta:  metadata.NewMemoryStore(),
		chats: chat.NewMemoryStore(),
	}
	f.hub = NewHub(f.meta, f.chats)
	go f.hub.Run()
	t.Cleanup(f.hub.Stop)
	return f
}

// connect registers a client without a real websocket and consumes the
// welcome reply.
func (f *hubFixture) connect(t *testing.T, id string) *Client {
	t.Helper()
	c := &Client{
		ID:    id,
		Hub:   f.hub,
		Rooms: make(map[string]struct{}),
		Send:  make(chan *wire.Message, 32),
	}
	f.hub.Register <- c

	welcome := recv(t, c)
	require.Equal(t, wire.TypeWelcome, welcome.Type)

	var payload wire.WelcomePayload
	require.NoError(t, welcome.DecodePayload(&payload))
	require.Equal(t, id, payload.PeerID)
	return c
}

func (f *hubFixture) join(t *testing.T, c *Client, roomID string) []string {
	t.Helper()
	f.hub.Inbound <- &Inbound{Client: c, Msg: wire.MustMessage(wire.TypeJoinRoom, wire.RoomPayload{RoomID: roomID})}

	reply := recv(t, c)
	require.Equal(t, wire.TypeAllMembers, reply.Type)

	var members []string
	require.NoError(t, reply.DecodePayload(&members))
	return members
}

func recv(t *testing.T, c *Client) *wire.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message: %s", msg.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func peerID(t *testing.T, msg *wire.Message) string {
	t.Helper()
	var payload wire.PeerPayload
	require.NoError(t, msg.DecodePayload(&payload))
	return payload.PeerID
}

func TestJoinEmptyRoomReturnsNoMembers(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")

	members := f.join(t, x, "r1")

	assert.Empty(t, members)
}

func TestJoinRepliesWithMembersAndAnnouncesOnce(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	y := f.connect(t, "Y")

	require.Empty(t, f.join(t, x, "r1"))

	// The joiner sees exactly the members present at that instant,
	// excluding itself; the existing member hears exactly one arrival.
	members := f.join(t, y, "r1")
	assert.Equal(t, []string{"X"}, members)

	announce := recv(t, x)
	require.Equal(t, wire.TypePeerJoined, announce.Type)
	assert.Equal(t, "Y", peerID(t, announce))

	// Never both directions: Y must not also get a peer-joined for X.
	expectSilence(t, y)
	expectSilence(t, x)
}

func TestDuplicateJoinDoesNotReannounce(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	y := f.connect(t, "Y")

	f.join(t, x, "r1")
	f.join(t, y, "r1")
	recv(t, x) // peer-joined Y

	members := f.join(t, y, "r1")
	assert.Equal(t, []string{"X"}, members)
	expectSilence(t, x)

	require.Eventually(t, func() bool {
		return f.meta.Count("r1") == 2
	}, time.Second, 10*time.Millisecond)
}

func TestSignalForwardedToTargetOnly(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	y := f.connect(t, "Y")
	z := f.connect(t, "Z")

	f.join(t, x, "r1")
	f.join(t, y, "r1")
	recv(t, x) // peer-joined Y
	f.join(t, z, "r1")
	recv(t, x) // peer-joined Z
	recv(t, y) // peer-joined Z

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	f.hub.Inbound <- &Inbound{Client: x, Msg: wire.MustMessage(wire.TypeOffer, wire.SignalPayload{To: "Y", SDP: sdp})}

	forwarded := recv(t, y)
	require.Equal(t, wire.TypeOffer, forwarded.Type)

	var payload wire.SignalPayload
	require.NoError(t, forwarded.DecodePayload(&payload))
	assert.Equal(t, "X", payload.From)
	assert.Empty(t, payload.To)
	assert.JSONEq(t, string(sdp), string(payload.SDP))

	// Point-to-point, not broadcast.
	expectSilence(t, z)
	expectSilence(t, x)
}

func TestSignalToUnknownTargetDroppedSilently(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	f.join(t, x, "r1")

	f.hub.Inbound <- &Inbound{Client: x, Msg: wire.MustMessage(wire.TypeICECandidate, wire.SignalPayload{
		To:        "ghost",
		Candidate: json.RawMessage(`{"candidate":"c"}`),
	})}

	// Best-effort forwarding: no failure surfaced to the sender.
	expectSilence(t, x)
}

func TestSignalWithoutTargetRejected(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")

	f.hub.Inbound <- &Inbound{Client: x, Msg: wire.MustMessage(wire.TypeOffer, wire.SignalPayload{})}

	reply := recv(t, x)
	assert.Equal(t, wire.TypeError, reply.Type)
}

func TestLeaveBroadcastsPeerLeft(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	y := f.connect(t, "Y")
	f.join(t, x, "r1")
	f.join(t, y, "r1")
	recv(t, x) // peer-joined Y

	f.hub.Inbound <- &Inbound{Client: y, Msg: wire.MustMessage(wire.TypeLeaveRoom, wire.RoomPayload{RoomID: "r1"})}

	left := recv(t, x)
	require.Equal(t, wire.TypePeerLeft, left.Type)
	assert.Equal(t, "Y", peerID(t, left))

	// The departing client gets no announcement about itself.
	expectSilence(t, y)

	require.Eventually(t, func() bool {
		return f.meta.Count("r1") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnectIsTerminal(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	y := f.connect(t, "Y")
	f.join(t, x, "r1")
	f.join(t, y, "r1")
	recv(t, x) // peer-joined Y

	// Abrupt disconnect, no leave-room sent.
	f.hub.Unregister <- y

	left := recv(t, x)
	require.Equal(t, wire.TypePeerLeft, left.Type)
	assert.Equal(t, "Y", peerID(t, left))

	// Envelopes addressed to the departed connection go nowhere.
	f.hub.Inbound <- &Inbound{Client: x, Msg: wire.MustMessage(wire.TypeOffer, wire.SignalPayload{
		To:  "Y",
		SDP: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})}
	expectSilence(t, x)

	// The hub closed the departed client's send channel.
	_, ok := <-y.Send
	assert.False(t, ok)
}

func TestDisconnectLeavesEveryRoom(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	y := f.connect(t, "Y")
	z := f.connect(t, "Z")
	f.join(t, x, "r1")
	f.join(t, z, "r2")
	f.join(t, y, "r1")
	recv(t, x) // peer-joined Y
	f.join(t, y, "r2")
	recv(t, z) // peer-joined Y

	f.hub.Unregister <- y

	assert.Equal(t, "Y", peerID(t, recv(t, x)))
	assert.Equal(t, "Y", peerID(t, recv(t, z)))
}

func TestChatPersistedThenBroadcast(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	y := f.connect(t, "Y")
	f.join(t, x, "r1")
	f.join(t, y, "r1")
	recv(t, x) // peer-joined Y

	f.hub.Inbound <- &Inbound{Client: x, Msg: wire.MustMessage(wire.TypeChat, wire.ChatPayload{RoomID: "r1", Body: "hello"})}

	// Broadcast reaches the whole room including the sender.
	for _, c := range []*Client{x, y} {
		msg := recv(t, c)
		require.Equal(t, wire.TypeChat, msg.Type)

		var payload wire.ChatPayload
		require.NoError(t, msg.DecodePayload(&payload))
		assert.Equal(t, "X", payload.From)
		assert.Equal(t, "hello", payload.Body)
		assert.NotZero(t, payload.SentAt)
	}

	history := f.chats.History("r1")
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Body)
	assert.Equal(t, "X", history[0].From)
}

func TestChatRequiresMembership(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")

	f.hub.Inbound <- &Inbound{Client: x, Msg: wire.MustMessage(wire.TypeChat, wire.ChatPayload{RoomID: "r1", Body: "hi"})}

	reply := recv(t, x)
	assert.Equal(t, wire.TypeError, reply.Type)
	assert.Empty(t, f.chats.History("r1"))
}

func TestJoinWithoutRoomIDRejected(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")

	f.hub.Inbound <- &Inbound{Client: x, Msg: wire.MustMessage(wire.TypeJoinRoom, wire.RoomPayload{})}

	reply := recv(t, x)
	assert.Equal(t, wire.TypeError, reply.Type)
}

func TestParticipantCounterFollowsOccupancy(t *testing.T) {
	f := newHubFixture(t)
	x := f.connect(t, "X")
	y := f.connect(t, "Y")
	f.join(t, x, "r1")
	f.join(t, y, "r1")
	recv(t, x)

	require.Eventually(t, func() bool {
		return f.meta.Count("r1") == 2
	}, time.Second, 10*time.Millisecond)

	f.hub.Unregister <- y
	recv(t, x) // peer-left Y

	require.Eventually(t, func() bool {
		return f.meta.Count("r1") == 1
	}, time.Second, 10*time.Millisecond)
}
