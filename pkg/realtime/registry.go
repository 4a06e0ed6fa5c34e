package realtime

import "sync"

// Registry is the process-wide map between live connections and broadcast
// rooms. Room IDs are user IDs (identity rooms) or chat IDs (chat rooms);
// the registry itself does not distinguish them and performs no
// authorization.
//
// A single mutex guards all membership state so that a broadcast sees a
// consistent snapshot: no frame reaches a connection that already left the
// room, and none is missed by one that finished joining.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Join adds the connection to a room. Joining a room it already belongs to
// is a no-op.
func (r *Registry) Join(c *Client, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[*Client]struct{})
	}
	r.rooms[roomID][c] = struct{}{}

	if r.joined[c] == nil {
		r.joined[c] = make(map[string]struct{})
	}
	r.joined[c][roomID] = struct{}{}
}

// Leave removes the connection from a room. Leaving a room it does not
// belong to is a no-op.
func (r *Registry) Leave(c *Client, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, roomID)
}

func (r *Registry) leaveLocked(c *Client, roomID string) {
	if members, ok := r.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if rooms, ok := r.joined[c]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joined, c)
		}
	}
}

// Broadcast frames the event once and queues it for every member of the
// room except the optionally excluded connection. An empty room is a silent
// no-op. Enqueueing is non-blocking, so holding the lock across the loop is
// what gives each broadcast its consistent membership snapshot.
func (r *Registry) Broadcast(roomID, event string, payload any, exclude *Client) error {
	data, err := EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.rooms[roomID] {
		if c == exclude {
			continue
		}
		c.enqueue(data)
	}
	return nil
}

// DropClient removes the connection from every room it belonged to. Cost is
// proportional to the rooms the connection joined.
func (r *Registry) DropClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.joined[c] {
		r.leaveLocked(c, roomID)
	}
}

// InRoom reports current membership.
func (r *Registry) InRoom(c *Client, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID][c]
	return ok
}

// RoomSize returns the number of connections currently in the room.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}

// Drain closes every registered connection and empties the registry. Called
// once at process shutdown.
func (r *Registry) Drain() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.joined))
	for c := range r.joined {
		clients = append(clients, c)
	}
	r.rooms = make(map[string]map[*Client]struct{})
	r.joined = make(map[*Client]map[string]struct{})
	r.mu.Unlock()

	// Close outside the lock: close hooks call back into DropClient.
	for _, c := range clients {
		c.Close()
	}
}
