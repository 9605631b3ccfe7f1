package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const chatHistoryLines = 12

type updateKind int

const (
	updatePeerUp updateKind = iota
	updatePeerDown
	updatePeerName
	updatePeerState
	updateChat
	updateStatus
)

type roomUpdate struct {
	kind  updateKind
	peer  string
	value string
	body  string
}

// RoomUI provides a simple interface for driving the live room view from
// the peer manager's event loop.
type RoomUI struct {
	program *tea.Program
	model   *roomModel
	updates chan roomUpdate
	wg      sync.WaitGroup
}

// NewRoomUI creates the live room view. onInput is invoked with each chat
// line the user submits.
func NewRoomUI(roomID, selfID string, onInput func(body string)) *RoomUI {
	updates := make(chan roomUpdate, 100)

	input := textinput.New()
	input.Placeholder = "Type a message and press enter"
	input.CharLimit = 512
	input.Focus()

	model := &roomModel{
		roomID:  roomID,
		selfID:  selfID,
		peers:   make(map[string]*peerRow),
		input:   input,
		status:  "Waiting for peers...",
		updates: updates,
		onInput: onInput,
	}

	return &RoomUI{
		program: tea.NewProgram(model),
		model:   model,
		updates: updates,
	}
}

// Start runs the view until the user quits or Stop is called.
func (ui *RoomUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		ui.program.Run()
	}()
}

// Wait blocks until the view has exited.
func (ui *RoomUI) Wait() {
	ui.wg.Wait()
}

// Stop asks the view to exit.
func (ui *RoomUI) Stop() {
	ui.program.Quit()
	ui.wg.Wait()
}

func (ui *RoomUI) PeerUp(peer string) {
	ui.updates <- roomUpdate{kind: updatePeerUp, peer: peer}
}

func (ui *RoomUI) PeerDown(peer string) {
	ui.updates <- roomUpdate{kind: updatePeerDown, peer: peer}
}

func (ui *RoomUI) SetPeerName(peer, name string) {
	ui.updates <- roomUpdate{kind: updatePeerName, peer: peer, value: name}
}

func (ui *RoomUI) SetPeerState(peer, state string) {
	ui.updates <- roomUpdate{kind: updatePeerState, peer: peer, value: state}
}

func (ui *RoomUI) AddChat(from, body string) {
	ui.updates <- roomUpdate{kind: updateChat, peer: from, body: body}
}

func (ui *RoomUI) SetStatus(status string) {
	ui.updates <- roomUpdate{kind: updateStatus, value: status}
}

type peerRow struct {
	id    string
	name  string
	state string
}

type chatLine struct {
	from string
	body string
}

// roomModel is the internal Bubble Tea model for the live room view
type roomModel struct {
	roomID  string
	selfID  string
	peers   map[string]*peerRow
	chat    []chatLine
	input   textinput.Model
	status  string
	updates chan roomUpdate
	onInput func(string)
	mu      sync.RWMutex
	quit    bool
}

func (m *roomModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listenForUpdates())
}

func (m *roomModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *roomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quit = true
			return m, tea.Quit
		case tea.KeyEnter:
			body := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if body != "" && m.onInput != nil {
				m.onInput(body)
			}
			return m, nil
		}

	case roomUpdate:
		m.apply(msg)
		return m, m.listenForUpdates()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *roomModel) apply(u roomUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch u.kind {
	case updatePeerUp:
		if _, ok := m.peers[u.peer]; !ok {
			m.peers[u.peer] = &peerRow{id: u.peer, state: "negotiating"}
		}
	case updatePeerDown:
		delete(m.peers, u.peer)
	case updatePeerName:
		if row, ok := m.peers[u.peer]; ok {
			row.name = u.value
		}
	case updatePeerState:
		if row, ok := m.peers[u.peer]; ok {
			row.state = u.value
		}
	case updateChat:
		m.chat = append(m.chat, chatLine{from: u.peer, body: u.body})
		if len(m.chat) > chatHistoryLines {
			m.chat = m.chat[len(m.chat)-chatHistoryLines:]
		}
	case updateStatus:
		m.status = u.value
	}
}

func (m *roomModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.quit {
		return ""
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s Room %s", IconRoom, m.roomID)))
	b.WriteString("\n")

	items := make([]PeerTableItem, 0, len(m.peers))
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		row := m.peers[id]
		items = append(items, PeerTableItem{Index: i + 1, ID: row.id, Name: row.name, State: row.state})
	}
	b.WriteString(NewPeerTable(items).View())
	b.WriteString("\n\n")

	if len(m.chat) == 0 {
		b.WriteString(MutedStyle.Render("No messages yet"))
		b.WriteString("\n")
	} else {
		for _, line := range m.chat {
			from := BoldStyle.Foreground(Secondary).Render(truncate(line.from, 12))
			b.WriteString(fmt.Sprintf("%s %s %s\n", IconChat, from, line.body))
		}
	}

	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(m.status))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("esc to leave"))
	b.WriteString("\n")

	return b.String()
}
