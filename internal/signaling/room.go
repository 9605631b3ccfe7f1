package signaling

// Room is a named rendezvous point for any number of connections. Members
// mesh-negotiate peer links with each other; the room itself only tracks
// who is present.
type Room struct {
	// ID is the caller-chosen identifier for the room.
	ID string

	// Members maps connection IDs to their clients.
	Members map[string]*Client
}

// Registry owns the mapping from room IDs to rooms. It is mutated only by
// the hub's run loop, so it needs no locking of its own.
type Registry struct {
	rooms map[string]*Room
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Join adds the client to the room, creating the room if it does not exist
// yet. The returned room reflects the new membership immediately. Joining a
// room the client is already in is a no-op; the second return reports
// whether the membership actually changed.
func (r *Registry) Join(c *Client, roomID string) (*Room, bool) {
	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, Members: make(map[string]*Client)}
		r.rooms[roomID] = room
	}

	if _, member := room.Members[c.ID]; member {
		return room, false
	}

	room.Members[c.ID] = c
	c.Rooms[roomID] = struct{}{}
	return room, true
}

// Leave removes the client from the room and returns the room so the caller
// can notify the remaining members. Returns nil if the client was not a
// member. A room left empty is dropped from the registry; it holds no state
// and joining it again recreates it.
func (r *Registry) Leave(c *Client, roomID string) *Room {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	if _, member := room.Members[c.ID]; !member {
		return nil
	}

	delete(room.Members, c.ID)
	delete(c.Rooms, roomID)

	if len(room.Members) == 0 {
		delete(r.rooms, roomID)
	}
	return room
}

// LeaveAll removes the client from every room it is a member of and returns
// the departed rooms, each already reflecting the removal.
func (r *Registry) LeaveAll(c *Client) []*Room {
	var rooms []*Room
	for roomID := range c.Rooms {
		if room := r.Leave(c, roomID); room != nil {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// MembersOf returns the connection IDs currently in the room. Querying an
// unknown or empty room returns an empty slice, never an error.
func (r *Registry) MembersOf(roomID string) []string {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room.Members))
	for id := range room.Members {
		ids = append(ids, id)
	}
	return ids
}

// MemberIDs returns the room's member connection IDs, optionally excluding
// one connection (the acting client, when broadcasting join/leave events).
func (room *Room) MemberIDs(exclude string) []string {
	ids := make([]string, 0, len(room.Members))
	for id := range room.Members {
		if id == exclude {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
