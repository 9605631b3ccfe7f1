package mesh

import (
	"strings"
	"sync"

	pion "github.com/pion/webrtc/v4"
)

// ChannelTable tracks the open mesh channel per remote peer. Pion fires
// channel callbacks on its own goroutines, so access is locked.
type ChannelTable struct {
	mu       sync.Mutex
	channels map[string]*pion.DataChannel
}

// NewChannelTable creates an empty table.
func NewChannelTable() *ChannelTable {
	return &ChannelTable{channels: make(map[string]*pion.DataChannel)}
}

// Put registers the channel for a peer, replacing any previous one.
func (t *ChannelTable) Put(remote string, dc *pion.DataChannel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channels[remote] = dc
}

// Get returns the channel for a peer, if any.
func (t *ChannelTable) Get(remote string) (*pion.DataChannel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dc, ok := t.channels[remote]
	return dc, ok
}

// Find returns the first channel whose peer ID starts with prefix.
func (t *ChannelTable) Find(prefix string) (string, *pion.DataChannel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for remote, dc := range t.channels {
		if strings.HasPrefix(remote, prefix) {
			return remote, dc, true
		}
	}
	return "", nil, false
}

// Delete forgets and closes the channel for a peer.
func (t *ChannelTable) Delete(remote string) {
	t.mu.Lock()
	dc := t.channels[remote]
	delete(t.channels, remote)
	t.mu.Unlock()

	if dc != nil {
		dc.Close()
	}
}

// Clear closes and forgets every channel.
func (t *ChannelTable) Clear() {
	t.mu.Lock()
	channels := t.channels
	t.channels = make(map[string]*pion.DataChannel)
	t.mu.Unlock()

	for _, dc := range channels {
		dc.Close()
	}
}
