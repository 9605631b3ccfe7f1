package peer

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Meshdrop/internal/sigclient"
	"github.com/BioHazard786/Meshdrop/internal/wire"
)

// Sender relays negotiation envelopes to one peer. *sigclient.Client
// satisfies it.
type Sender interface {
	SendSignal(kind, to string, sdp, candidate json.RawMessage)
}

// ConnFactory creates the native connection for a new link. Initiator links
// must come back ready to produce an offer that opens the mesh data channel;
// responder links must be ready to accept one.
type ConnFactory func(remote string, initiator bool) (Conn, error)

// Manager owns one Link per remote peer in the room and drives every link
// from the signaling events it is fed. All methods must be called from a
// single goroutine; links never share mutable state with each other.
type Manager struct {
	selfID  string
	sender  Sender
	newConn ConnFactory
	links   map[string]*Link

	// OnPeerUp and OnPeerDown report link creation and teardown, for the
	// room view. Optional.
	OnPeerUp   func(remote string)
	OnPeerDown func(remote string)
}

// NewManager creates a manager for the local connection ID.
func NewManager(selfID string, sender Sender, factory ConnFactory) *Manager {
	return &Manager{
		selfID:  selfID,
		sender:  sender,
		newConn: factory,
		links:   make(map[string]*Link),
	}
}

// HandleMembers reacts to the all-members reply at join time. The joiner is
// the initiator towards every existing member: each link immediately offers.
// Existing members do nothing until our offers arrive, which is what keeps
// two sides from ever offering to each other at once.
func (m *Manager) HandleMembers(members []string) {
	for _, remote := range members {
		if remote == m.selfID {
			// The relay filters self from the reply; skip anyway in
			// case an older server does not.
			continue
		}

		link, err := m.ensureLink(remote, true)
		if err != nil {
			slog.Error("failed to create peer link", "peer", remote, "err", err)
			continue
		}

		offer, err := link.Negotiate()
		if err != nil {
			slog.Error("failed to create offer", "peer", remote, "err", err)
			continue
		}
		m.sendDescription(wire.TypeOffer, remote, offer)
	}
}

// HandlePeerJoined reacts to a peer-joined broadcast: the new arrival will
// offer to us, so the link is created in responder mode and waits. A
// duplicate notification for a known peer creates nothing.
func (m *Manager) HandlePeerJoined(remote string) {
	if remote == m.selfID {
		return
	}
	if _, exists := m.links[remote]; exists {
		slog.Debug("duplicate peer-joined ignored", "peer", remote)
		return
	}
	if _, err := m.ensureLink(remote, false); err != nil {
		slog.Error("failed to create peer link", "peer", remote, "err", err)
	}
}

// HandlePeerLeft tears down the link to a departed peer.
func (m *Manager) HandlePeerLeft(remote string) {
	link, ok := m.links[remote]
	if !ok {
		return
	}
	delete(m.links, remote)
	if err := link.Close(); err != nil {
		slog.Debug("error closing peer connection", "peer", remote, "err", err)
	}
	if m.OnPeerDown != nil {
		m.OnPeerDown(remote)
	}
}

// HandleSignal routes one inbound negotiation envelope to its link.
func (m *Manager) HandleSignal(sig *sigclient.Signal) {
	switch sig.Kind {
	case wire.TypeOffer:
		m.handleOffer(sig)
	case wire.TypeAnswer:
		m.handleAnswer(sig)
	case wire.TypeICECandidate:
		m.handleCandidate(sig)
	default:
		slog.Debug("ignoring unknown signal kind", "kind", sig.Kind)
	}
}

func (m *Manager) handleOffer(sig *sigclient.Signal) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(sig.SDP, &offer); err != nil {
		slog.Warn("malformed offer", "peer", sig.From, "err", newError("decode offer", sig.From, ErrBadDescription))
		return
	}

	// An offer can beat the peer-joined broadcast when both race through
	// the relay; create the responder link on demand.
	link, err := m.ensureLink(sig.From, false)
	if err != nil {
		slog.Error("failed to create peer link", "peer", sig.From, "err", err)
		return
	}

	answer, err := link.HandleOffer(offer)
	if err != nil {
		slog.Warn("failed to apply offer", "peer", sig.From, "err", err)
		return
	}
	if answer == nil {
		// Collision policy: mid-negotiation offers are dropped.
		return
	}
	m.sendDescription(wire.TypeAnswer, sig.From, answer)
}

func (m *Manager) handleAnswer(sig *sigclient.Signal) {
	link, ok := m.links[sig.From]
	if !ok {
		slog.Debug("answer for unknown peer dropped", "peer", sig.From)
		return
	}

	var answer webrtc.SessionDescription
	if err := json.Unmarshal(sig.SDP, &answer); err != nil {
		slog.Warn("malformed answer", "peer", sig.From, "err", newError("decode answer", sig.From, ErrBadDescription))
		return
	}

	// Late and duplicate answers are operational noise, never fatal.
	if err := link.HandleAnswer(answer); err != nil {
		slog.Debug("stale answer ignored", "peer", sig.From, "err", err)
	}
}

func (m *Manager) handleCandidate(sig *sigclient.Signal) {
	link, ok := m.links[sig.From]
	if !ok {
		// The peer may have left already; best-effort signaling drops it.
		slog.Debug("candidate for unknown peer dropped", "peer", sig.From)
		return
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(sig.Candidate, &candidate); err != nil {
		slog.Warn("malformed ICE candidate", "peer", sig.From, "err", newError("decode candidate", sig.From, ErrBadCandidate))
		return
	}
	link.AddCandidate(candidate)
}

// SendCandidate relays a locally gathered candidate to one peer. Wired to
// the native connection's candidate callback.
func (m *Manager) SendCandidate(remote string, candidate webrtc.ICECandidateInit) {
	b, err := json.Marshal(candidate)
	if err != nil {
		slog.Warn("failed to encode ICE candidate", "peer", remote, "err", err)
		return
	}
	m.sender.SendSignal(wire.TypeICECandidate, remote, nil, b)
}

// Link returns the link for a remote peer, if any.
func (m *Manager) Link(remote string) (*Link, bool) {
	link, ok := m.links[remote]
	return link, ok
}

// Peers returns the remote IDs with an active link, sorted for stable
// display.
func (m *Manager) Peers() []string {
	peers := make([]string, 0, len(m.links))
	for remote := range m.links {
		peers = append(peers, remote)
	}
	sort.Strings(peers)
	return peers
}

// CloseAll tears down every link. Used on leave, disconnect and before a
// reconnect rebuilds the mesh from a fresh member list.
func (m *Manager) CloseAll() {
	for remote, link := range m.links {
		delete(m.links, remote)
		if err := link.Close(); err != nil {
			slog.Debug("error closing peer connection", "peer", remote, "err", err)
		}
		if m.OnPeerDown != nil {
			m.OnPeerDown(remote)
		}
	}
}

func (m *Manager) ensureLink(remote string, initiator bool) (*Link, error) {
	if link, ok := m.links[remote]; ok {
		return link, nil
	}

	conn, err := m.newConn(remote, initiator)
	if err != nil {
		return nil, newError("create peer connection", remote, err)
	}

	link := newLink(remote, conn, initiator)
	m.links[remote] = link
	if m.OnPeerUp != nil {
		m.OnPeerUp(remote)
	}
	return link, nil
}

func (m *Manager) sendDescription(kind, remote string, desc *webrtc.SessionDescription) {
	b, err := json.Marshal(desc)
	if err != nil {
		slog.Warn("failed to encode session description", "peer", remote, "err", err)
		return
	}
	m.sender.SendSignal(kind, remote, b, nil)
}
