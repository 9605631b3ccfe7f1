package sigclient

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Meshdrop/internal/wire"
)

// handlerFixture runs a handler against a client whose incoming channel is
// fed directly, no websocket involved.
type handlerFixture struct {
	client  *Client
	handler *Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{client: NewClient("ws://unused")}
	f.handler = NewHandler(f.client)
	go f.handler.Start()
	t.Cleanup(func() { f.finish(t) })
	return f
}

func (f *handlerFixture) inject(t *testing.T, msgType string, payload any) {
	t.Helper()
	f.client.incoming <- wire.MustMessage(msgType, payload)
}

func (f *handlerFixture) finish(t *testing.T) {
	t.Helper()
	select {
	case <-f.client.incoming:
	default:
		close(f.client.incoming)
	}
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func TestHandlerRoutesLifecycleEvents(t *testing.T) {
	f := newHandlerFixture(t)

	f.inject(t, wire.TypeWelcome, wire.WelcomePayload{PeerID: "me"})
	assert.Equal(t, "me", waitFor(t, f.handler.Welcome))

	f.inject(t, wire.TypeAllMembers, []string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, waitFor(t, f.handler.AllMembers))

	f.inject(t, wire.TypePeerJoined, wire.PeerPayload{PeerID: "a"})
	assert.Equal(t, "a", waitFor(t, f.handler.PeerJoined))

	f.inject(t, wire.TypePeerLeft, wire.PeerPayload{PeerID: "a"})
	assert.Equal(t, "a", waitFor(t, f.handler.PeerLeft))
}

func TestHandlerRoutesSignals(t *testing.T) {
	f := newHandlerFixture(t)
	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	f.inject(t, wire.TypeOffer, wire.SignalPayload{From: "a", SDP: sdp})

	sig := waitFor(t, f.handler.Signal)
	assert.Equal(t, wire.TypeOffer, sig.Kind)
	assert.Equal(t, "a", sig.From)
	assert.JSONEq(t, string(sdp), string(sig.SDP))

	cand := json.RawMessage(`{"candidate":"c1"}`)
	f.inject(t, wire.TypeICECandidate, wire.SignalPayload{From: "a", Candidate: cand})

	sig = waitFor(t, f.handler.Signal)
	assert.Equal(t, wire.TypeICECandidate, sig.Kind)
	assert.JSONEq(t, string(cand), string(sig.Candidate))
}

func TestHandlerRoutesChatAndErrors(t *testing.T) {
	f := newHandlerFixture(t)

	f.inject(t, wire.TypeChat, wire.ChatPayload{RoomID: "r1", From: "a", Body: "hi"})
	msg := waitFor(t, f.handler.Chat)
	assert.Equal(t, "hi", msg.Body)
	assert.Equal(t, "a", msg.From)

	f.inject(t, wire.TypeError, wire.ErrorPayload{Error: "boom"})
	assert.Equal(t, "boom", waitFor(t, f.handler.Error))
}

func TestHandlerIgnoresUnknownTypes(t *testing.T) {
	f := newHandlerFixture(t)

	f.inject(t, "mystery", map[string]string{"x": "y"})
	f.inject(t, wire.TypeWelcome, wire.WelcomePayload{PeerID: "me"})

	// The unknown envelope is skipped; routing continues.
	assert.Equal(t, "me", waitFor(t, f.handler.Welcome))
}

func TestHandlerClosesChannelsWhenConnectionDrops(t *testing.T) {
	f := newHandlerFixture(t)

	close(f.client.incoming)

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-f.handler.Signal:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	_, ok := <-f.handler.Welcome
	assert.False(t, ok)
}
