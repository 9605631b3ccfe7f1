package cmd

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Meshdrop/internal/config"
	"github.com/BioHazard786/Meshdrop/internal/mesh"
	"github.com/BioHazard786/Meshdrop/internal/peer"
	"github.com/BioHazard786/Meshdrop/internal/sigclient"
	"github.com/BioHazard786/Meshdrop/internal/ui"
)

const (
	welcomeTimeout = 10 * time.Second
	reconnectDelay = 2 * time.Second
	maxReconnects  = 5
)

var errTransportLost = errors.New("connection to relay lost")

// roomSession ties one room membership together: the signaling connection,
// the peer manager, the mesh channels and the live view. It survives
// transport drops by reconnecting and re-joining, which rebuilds the whole
// mesh from a fresh member list.
type roomSession struct {
	cfg         *config.Config
	serverURL   string
	roomID      string
	displayName string

	view *ui.RoomUI
	quit chan struct{}

	// Guards the per-connection state the view's input callback touches.
	mu       sync.Mutex
	client   *sigclient.Client
	channels *mesh.ChannelTable
	selfID   string
}

func newRoomSession(cfg *config.Config, serverURL, roomID, displayName string) *roomSession {
	return &roomSession{
		cfg:         cfg,
		serverURL:   serverURL,
		roomID:      roomID,
		displayName: displayName,
		quit:        make(chan struct{}),
	}
}

// run joins the room and keeps the session alive until the user leaves,
// reconnecting on transport drops.
func (s *roomSession) run() error {
	attempts := 0
	for {
		err := s.runOnce(attempts == 0)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errTransportLost) || attempts >= maxReconnects {
			if s.view != nil {
				s.view.Stop()
			}
			return err
		}

		attempts++
		if s.view != nil {
			s.view.SetStatus(fmt.Sprintf("Connection lost, reconnecting (%d/%d)...", attempts, maxReconnects))
		}
		select {
		case <-s.quit:
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// runOnce runs one transport connection's lifetime: connect, join, relay
// events to the peer manager until the user quits or the transport drops.
func (s *roomSession) runOnce(first bool) error {
	var stopSpinner func()
	if first {
		fmt.Println()
		stopSpinner = ui.RunConnectionSpinner("Connecting to relay...")
	}

	client := sigclient.NewClient(s.serverURL)
	if err := client.Connect(); err != nil {
		if stopSpinner != nil {
			stopSpinner()
		}
		return fmt.Errorf("connect to relay: %w (%w)", err, errTransportLost)
	}

	handler := sigclient.NewHandler(client)
	go handler.Start()

	selfID, err := s.awaitWelcome(handler)
	if err != nil {
		if stopSpinner != nil {
			stopSpinner()
		}
		client.Close()
		return err
	}
	if stopSpinner != nil {
		stopSpinner()
	}

	channels := mesh.NewChannelTable()

	if s.view == nil {
		fmt.Println((&ui.RoomBanner{RoomID: s.roomID, SelfID: selfID}).View())
		fmt.Println()
		s.view = ui.NewRoomUI(s.roomID, selfID, s.handleInput)
		s.view.Start()
		go func() {
			s.view.Wait()
			close(s.quit)
		}()
	}

	var mgr *peer.Manager
	factory := &peer.PionFactory{
		Config: peer.NewRTCConfiguration(s.cfg),
		OnCandidate: func(remote string, candidate pion.ICECandidateInit) {
			mgr.SendCandidate(remote, candidate)
		},
		OnDataChannel: func(remote string, dc *pion.DataChannel) {
			s.bindChannel(channels, remote, dc)
		},
		OnStateChange: func(remote string, state pion.PeerConnectionState) {
			s.view.SetPeerState(remote, state.String())
		},
	}

	mgr = peer.NewManager(selfID, client, factory.New)
	mgr.OnPeerUp = s.view.PeerUp
	mgr.OnPeerDown = func(remote string) {
		channels.Delete(remote)
		s.view.PeerDown(remote)
	}

	s.mu.Lock()
	s.client = client
	s.channels = channels
	s.selfID = selfID
	s.mu.Unlock()

	client.JoinRoom(s.roomID)
	s.view.SetStatus("In the room. Messages go to everyone; /dm <peer> <text> goes direct.")

	return s.eventLoop(client, handler, mgr, channels)
}

// eventLoop feeds signaling events to the peer manager from a single
// goroutine, so every message is handled to completion before the next.
func (s *roomSession) eventLoop(client *sigclient.Client, handler *sigclient.Handler, mgr *peer.Manager, channels *mesh.ChannelTable) error {
	lost := func() error {
		mgr.CloseAll()
		channels.Clear()
		client.Close()
		return errTransportLost
	}

	for {
		select {
		case <-s.quit:
			client.LeaveRoom(s.roomID)
			mgr.CloseAll()
			channels.Clear()
			// Give the write pump a moment to flush the leave.
			time.Sleep(200 * time.Millisecond)
			client.Close()
			return nil

		case members, ok := <-handler.AllMembers:
			if !ok {
				return lost()
			}
			mgr.HandleMembers(members)

		case remote, ok := <-handler.PeerJoined:
			if !ok {
				return lost()
			}
			mgr.HandlePeerJoined(remote)

		case remote, ok := <-handler.PeerLeft:
			if !ok {
				return lost()
			}
			mgr.HandlePeerLeft(remote)

		case sig, ok := <-handler.Signal:
			if !ok {
				return lost()
			}
			mgr.HandleSignal(sig)

		case msg, ok := <-handler.Chat:
			if !ok {
				return lost()
			}
			s.view.AddChat(s.chatLabel(msg.From), msg.Body)

		case errText, ok := <-handler.Error:
			if !ok {
				return lost()
			}
			s.view.SetStatus(ui.IconWarning + " " + errText)
		}
	}
}

func (s *roomSession) awaitWelcome(handler *sigclient.Handler) (string, error) {
	select {
	case selfID, ok := <-handler.Welcome:
		if !ok {
			return "", errTransportLost
		}
		return selfID, nil
	case <-time.After(welcomeTimeout):
		return "", fmt.Errorf("relay did not assign a connection ID (%w)", errTransportLost)
	case <-s.quit:
		return "", errTransportLost
	}
}

// bindChannel wires a freshly negotiated mesh channel: announce ourselves
// when it opens, surface presence and direct messages when they arrive.
func (s *roomSession) bindChannel(channels *mesh.ChannelTable, remote string, dc *pion.DataChannel) {
	channels.Put(remote, dc)

	dc.OnOpen(func() {
		mesh.SendPresence(dc, s.displayName)
		s.view.SetPeerState(remote, "connected")
	})

	dc.OnMessage(func(raw pion.DataChannelMessage) {
		msg, err := mesh.ParseMessage(raw.Data)
		if err != nil {
			return
		}

		switch msg.Type {
		case mesh.MessageTypePresence:
			var p mesh.PresencePayload
			if err := msg.DecodePayload(&p); err == nil {
				s.view.SetPeerName(remote, p.DisplayName)
			}

		case mesh.MessageTypeChat:
			var c mesh.ChatPayload
			if err := msg.DecodePayload(&c); err == nil {
				s.view.AddChat(s.chatLabel(remote)+" (dm)", c.Body)
			}
		}
	})
}

// handleInput runs on the view's goroutine for every submitted line.
func (s *roomSession) handleInput(body string) {
	s.mu.Lock()
	client := s.client
	channels := s.channels
	s.mu.Unlock()

	if client == nil {
		return
	}

	if rest, ok := strings.CutPrefix(body, "/dm "); ok {
		s.sendDirect(channels, rest)
		return
	}

	client.SendChat(s.roomID, body)
}

func (s *roomSession) sendDirect(channels *mesh.ChannelTable, rest string) {
	target, text, found := strings.Cut(strings.TrimSpace(rest), " ")
	if !found || text == "" {
		s.view.SetStatus("usage: /dm <peer> <text>")
		return
	}

	remote, dc, ok := channels.Find(target)
	if !ok {
		s.view.SetStatus(fmt.Sprintf("no connected peer matching %q", target))
		return
	}

	if err := mesh.SendChat(dc, text); err != nil {
		s.view.SetStatus(fmt.Sprintf("direct message failed: %v", err))
		return
	}
	s.view.AddChat("you → "+s.chatLabel(remote), text)
}

// chatLabel shortens a connection ID for display, marking our own.
func (s *roomSession) chatLabel(id string) string {
	s.mu.Lock()
	self := s.selfID
	s.mu.Unlock()

	if id == self {
		return "you"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
