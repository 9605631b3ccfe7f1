package peer

import (
	"github.com/BioHazard786/Meshdrop/internal/config"
	"github.com/pion/webrtc/v4"
)

// DataChannelLabel is the label of the mesh channel every link carries.
const DataChannelLabel = "mesh"

// NewRTCConfiguration builds the pion configuration from our STUN/TURN
// settings.
func NewRTCConfiguration(cfg *config.Config) webrtc.Configuration {
	iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && cfg.ForceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// PionFactory builds pion-backed connections for the manager and surfaces
// their asynchronous callbacks.
type PionFactory struct {
	Config webrtc.Configuration

	// OnCandidate receives locally gathered candidates for relaying.
	OnCandidate func(remote string, candidate webrtc.ICECandidateInit)

	// OnDataChannel receives the mesh channel once it exists: at creation
	// time on the initiator side, on arrival on the responder side.
	OnDataChannel func(remote string, dc *webrtc.DataChannel)

	// OnStateChange receives native connection state transitions.
	OnStateChange func(remote string, state webrtc.PeerConnectionState)
}

// New creates a connection for one remote peer. Initiators open the mesh
// data channel before offering so it rides the first negotiation; responders
// wait for it to arrive with the offer.
func (f *PionFactory) New(remote string, initiator bool) (Conn, error) {
	pc, err := webrtc.NewPeerConnection(f.Config)
	if err != nil {
		return nil, err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || f.OnCandidate == nil {
			return
		}
		f.OnCandidate(remote, c.ToJSON())
	})

	if f.OnStateChange != nil {
		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			f.OnStateChange(remote, state)
		})
	}

	if initiator {
		ordered := true
		dc, err := pc.CreateDataChannel(DataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			pc.Close()
			return nil, err
		}
		if f.OnDataChannel != nil {
			f.OnDataChannel(remote, dc)
		}
	} else if f.OnDataChannel != nil {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			f.OnDataChannel(remote, dc)
		})
	}

	return &pionConn{pc: pc}, nil
}

// pionConn adapts *webrtc.PeerConnection to the Conn interface.
type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}
