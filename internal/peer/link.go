package peer

import (
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// LinkState is the negotiation state of one peer link.
type LinkState int

const (
	// LinkIdle: no negotiation has happened yet.
	LinkIdle LinkState = iota

	// LinkAwaitingLocalAnswer: a remote offer has been applied and our
	// answer has not been sent yet.
	LinkAwaitingLocalAnswer

	// LinkAwaitingRemoteAnswer: our offer has been sent and the remote
	// answer has not arrived yet.
	LinkAwaitingRemoteAnswer

	// LinkStable: a full offer/answer exchange has completed.
	LinkStable
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkAwaitingLocalAnswer:
		return "awaiting-local-answer"
	case LinkAwaitingRemoteAnswer:
		return "awaiting-remote-answer"
	case LinkStable:
		return "stable"
	}
	return "unknown"
}

// validTransitions is the negotiation state machine. Offers are only
// accepted at rest (idle or stable); renegotiation loops back through the
// same states without corrupting them.
var validTransitions = map[LinkState][]LinkState{
	LinkIdle:                 {LinkAwaitingLocalAnswer, LinkAwaitingRemoteAnswer},
	LinkAwaitingLocalAnswer:  {LinkStable},
	LinkAwaitingRemoteAnswer: {LinkStable},
	LinkStable:               {LinkAwaitingLocalAnswer, LinkAwaitingRemoteAnswer},
}

func (s LinkState) canTransition(to LinkState) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// atRest reports whether the link can accept a new offer.
func (s LinkState) atRest() bool {
	return s == LinkIdle || s == LinkStable
}

// Conn is the slice of a native peer connection the link needs. The
// production implementation wraps pion; tests substitute a recording mock.
type Conn interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// Link tracks negotiation with exactly one remote peer: the native
// connection, an explicit negotiation state, and the queue of ICE candidates
// that arrived before the remote description.
//
// A link is owned by the manager's event goroutine; none of its methods are
// safe for concurrent use.
type Link struct {
	// Remote is the remote connection ID.
	Remote string

	// Initiator is true when this side opens the negotiation (the joiner
	// offers to every existing member).
	Initiator bool

	conn  Conn
	state LinkState

	// pending holds remote candidates in arrival order until the remote
	// description is set. Flushed exactly once, then nil.
	pending   []webrtc.ICECandidateInit
	remoteSet bool
}

func newLink(remote string, conn Conn, initiator bool) *Link {
	return &Link{
		Remote:    remote,
		Initiator: initiator,
		conn:      conn,
		state:     LinkIdle,
	}
}

// State returns the current negotiation state.
func (l *Link) State() LinkState {
	return l.state
}

func (l *Link) transition(to LinkState) error {
	if !l.state.canTransition(to) {
		return newError("transition to "+to.String(), l.Remote, ErrInvalidState)
	}
	l.state = to
	return nil
}

// Negotiate creates and applies a local offer and returns it for relaying.
// Only valid when the link is at rest.
func (l *Link) Negotiate() (*webrtc.SessionDescription, error) {
	if !l.state.atRest() {
		return nil, newError("negotiate", l.Remote, ErrInvalidState)
	}

	offer, err := l.conn.CreateOffer()
	if err != nil {
		return nil, newError("create offer", l.Remote, err)
	}
	if err := l.conn.SetLocalDescription(offer); err != nil {
		return nil, newError("set local description", l.Remote, err)
	}
	if err := l.transition(LinkAwaitingRemoteAnswer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// HandleOffer applies a remote offer and returns the answer to relay back.
// An offer arriving mid-negotiation is ignored, not an error: the collision
// policy is that the remote retries once the current negotiation settles.
// A (nil, nil) return means the offer was dropped by that policy.
func (l *Link) HandleOffer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if !l.state.atRest() {
		slog.Debug("ignoring offer while negotiating", "peer", l.Remote, "state", l.state)
		return nil, nil
	}

	if err := l.conn.SetRemoteDescription(offer); err != nil {
		return nil, newError("set remote offer", l.Remote, err)
	}
	l.markRemoteSet()

	// Only answer if the state actually advanced to "have a pending
	// remote offer"; anything else means a raced or stale read.
	if err := l.transition(LinkAwaitingLocalAnswer); err != nil {
		return nil, err
	}

	answer, err := l.conn.CreateAnswer()
	if err != nil {
		return nil, newError("create answer", l.Remote, err)
	}
	if err := l.conn.SetLocalDescription(answer); err != nil {
		return nil, newError("set local description", l.Remote, err)
	}
	if err := l.transition(LinkStable); err != nil {
		return nil, err
	}
	return &answer, nil
}

// HandleAnswer applies a remote answer. A failure here is expected noise
// (late or duplicate answers after the link already advanced): the error is
// returned for logging, the link is left intact, and the candidate queue is
// still flushed so an almost-negotiated link is never starved of candidates.
func (l *Link) HandleAnswer(answer webrtc.SessionDescription) error {
	err := l.conn.SetRemoteDescription(answer)
	if err == nil {
		l.markRemoteSet()
		if l.state == LinkAwaitingRemoteAnswer {
			l.state = LinkStable
		}
	} else {
		l.flushCandidates()
	}
	if err != nil {
		return newError("set remote answer", l.Remote, ErrStaleSignal)
	}
	return nil
}

// AddCandidate applies a remote ICE candidate, or queues it if the remote
// description is not set yet. Queued candidates keep arrival order.
func (l *Link) AddCandidate(candidate webrtc.ICECandidateInit) {
	if !l.remoteSet {
		l.pending = append(l.pending, candidate)
		return
	}
	if err := l.conn.AddICECandidate(candidate); err != nil {
		slog.Warn("failed to add ICE candidate", "peer", l.Remote, "err", err)
	}
}

// markRemoteSet records the remote description and flushes the queue. The
// flush happens exactly once per description: afterwards the queue is nil
// and later candidates are applied directly.
func (l *Link) markRemoteSet() {
	l.remoteSet = true
	l.flushCandidates()
}

func (l *Link) flushCandidates() {
	for _, candidate := range l.pending {
		if err := l.conn.AddICECandidate(candidate); err != nil {
			slog.Warn("failed to flush ICE candidate", "peer", l.Remote, "err", err)
		}
	}
	l.pending = nil
}

// Close tears the link down. The candidate queue is discarded; nothing is
// allowed to finish after a leave.
func (l *Link) Close() error {
	l.pending = nil
	return l.conn.Close()
}
