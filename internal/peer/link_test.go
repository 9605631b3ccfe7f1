package peer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConn records every native-connection call in order so tests can assert
// exactly what happened and when.
type mockConn struct {
	ops []string

	offerErr     error
	answerErr    error
	setLocalErr  error
	setRemoteErr error
	candidateErr error
	closed       bool
}

func (m *mockConn) CreateOffer() (webrtc.SessionDescription, error) {
	m.ops = append(m.ops, "create-offer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "local-offer"}, m.offerErr
}

func (m *mockConn) CreateAnswer() (webrtc.SessionDescription, error) {
	m.ops = append(m.ops, "create-answer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "local-answer"}, m.answerErr
}

func (m *mockConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	m.ops = append(m.ops, "set-local:"+desc.Type.String())
	return m.setLocalErr
}

func (m *mockConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	m.ops = append(m.ops, "set-remote:"+desc.Type.String())
	return m.setRemoteErr
}

func (m *mockConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	m.ops = append(m.ops, "add-candidate:"+candidate.Candidate)
	return m.candidateErr
}

func (m *mockConn) Close() error {
	m.closed = true
	m.ops = append(m.ops, "close")
	return nil
}

func candidate(n int) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: fmt.Sprintf("cand-%d", n)}
}

func remoteOffer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote-offer"}
}

func remoteAnswer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "remote-answer"}
}

func TestNegotiateCreatesAndAppliesOffer(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, true)

	offer, err := link.Negotiate()

	require.NoError(t, err)
	require.NotNil(t, offer)
	assert.Equal(t, "local-offer", offer.SDP)
	assert.Equal(t, LinkAwaitingRemoteAnswer, link.State())
	assert.Equal(t, []string{"create-offer", "set-local:offer"}, conn.ops)
}

func TestNegotiateRefusedMidNegotiation(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, true)

	_, err := link.Negotiate()
	require.NoError(t, err)

	_, err = link.Negotiate()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestHandleOfferAnswersWhenAtRest(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, false)

	answer, err := link.HandleOffer(remoteOffer())

	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, "local-answer", answer.SDP)
	assert.Equal(t, LinkStable, link.State())
	assert.Equal(t, []string{"set-remote:offer", "create-answer", "set-local:answer"}, conn.ops)
}

func TestHandleOfferIgnoredWhileNegotiating(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, true)
	_, err := link.Negotiate()
	require.NoError(t, err)
	before := len(conn.ops)

	// Collision policy: the offer is dropped, not applied and not an error.
	answer, err := link.HandleOffer(remoteOffer())

	assert.NoError(t, err)
	assert.Nil(t, answer)
	assert.Equal(t, before, len(conn.ops))
	assert.Equal(t, LinkAwaitingRemoteAnswer, link.State())
}

func TestHandleOfferAcceptedForRenegotiation(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, false)

	_, err := link.HandleOffer(remoteOffer())
	require.NoError(t, err)
	require.Equal(t, LinkStable, link.State())

	// A renegotiation offer from stable must cycle cleanly.
	answer, err := link.HandleOffer(remoteOffer())
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, LinkStable, link.State())
}

func TestHandleAnswerCompletesNegotiation(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, true)
	_, err := link.Negotiate()
	require.NoError(t, err)

	require.NoError(t, link.HandleAnswer(remoteAnswer()))
	assert.Equal(t, LinkStable, link.State())
}

func TestCandidatesQueuedUntilRemoteDescription(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, true)
	_, err := link.Negotiate()
	require.NoError(t, err)

	link.AddCandidate(candidate(1))
	link.AddCandidate(candidate(2))
	link.AddCandidate(candidate(3))

	// Nothing applied before the remote description.
	assert.NotContains(t, conn.ops, "add-candidate:cand-1")

	require.NoError(t, link.HandleAnswer(remoteAnswer()))

	// All three applied, in arrival order, exactly once.
	assert.Equal(t, []string{
		"create-offer", "set-local:offer",
		"set-remote:answer",
		"add-candidate:cand-1", "add-candidate:cand-2", "add-candidate:cand-3",
	}, conn.ops)

	// Later candidates bypass the (now gone) queue.
	link.AddCandidate(candidate(4))
	assert.Equal(t, "add-candidate:cand-4", conn.ops[len(conn.ops)-1])
}

func TestFlushHappensBeforeAnswerCreation(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, false)

	link.AddCandidate(candidate(1))
	link.AddCandidate(candidate(2))

	_, err := link.HandleOffer(remoteOffer())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"set-remote:offer",
		"add-candidate:cand-1", "add-candidate:cand-2",
		"create-answer", "set-local:answer",
	}, conn.ops)
}

func TestDuplicateAnswerSwallowedWithoutReflush(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, true)
	_, err := link.Negotiate()
	require.NoError(t, err)

	link.AddCandidate(candidate(1))
	require.NoError(t, link.HandleAnswer(remoteAnswer()))
	opsAfterFirst := len(conn.ops)

	// The second answer arrives late; the native connection rejects it.
	conn.setRemoteErr = errors.New("called in wrong state: stable")
	err = link.HandleAnswer(remoteAnswer())

	assert.ErrorIs(t, err, ErrStaleSignal)
	assert.Equal(t, LinkStable, link.State())

	// The queue was emptied by the first flush; nothing is re-applied.
	assert.Equal(t, opsAfterFirst+1, len(conn.ops)) // only the failed set-remote
	assert.Equal(t, "set-remote:answer", conn.ops[len(conn.ops)-1])
}

func TestFailedCandidateLoggedNotFatal(t *testing.T) {
	conn := &mockConn{candidateErr: errors.New("bad candidate")}
	link := newLink("peer", conn, false)

	_, err := link.HandleOffer(remoteOffer())
	require.NoError(t, err)

	// Applies directly, error absorbed.
	link.AddCandidate(candidate(1))
	assert.Equal(t, LinkStable, link.State())
}

func TestCloseDiscardsQueue(t *testing.T) {
	conn := &mockConn{}
	link := newLink("peer", conn, true)
	link.AddCandidate(candidate(1))

	require.NoError(t, link.Close())

	assert.True(t, conn.closed)
	assert.Nil(t, link.pending)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, LinkIdle.canTransition(LinkAwaitingLocalAnswer))
	assert.True(t, LinkIdle.canTransition(LinkAwaitingRemoteAnswer))
	assert.True(t, LinkAwaitingLocalAnswer.canTransition(LinkStable))
	assert.True(t, LinkAwaitingRemoteAnswer.canTransition(LinkStable))
	assert.True(t, LinkStable.canTransition(LinkAwaitingRemoteAnswer))

	assert.False(t, LinkIdle.canTransition(LinkStable))
	assert.False(t, LinkAwaitingLocalAnswer.canTransition(LinkAwaitingRemoteAnswer))
	assert.False(t, LinkStable.canTransition(LinkIdle))
}
