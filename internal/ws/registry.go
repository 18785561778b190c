package ws

import "sync"

// PresenceListener is notified synchronously when a user's connection
// refcount crosses zero in either direction.
type PresenceListener interface {
	UserOnline(userID int)
	UserOffline(userID int)
}

// Registry maps users to their live connections. Each registered connection
// joins the room of exactly one user; the per-user connection count derives
// the online/offline transitions. The registry is process-local: a user with
// connections on another server instance is invisible here.
type Registry struct {
	mu       sync.Mutex
	rooms    map[int]map[Sender]struct{}
	bound    map[Sender]int
	counts   map[int]int
	listener PresenceListener
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[int]map[Sender]struct{}),
		bound:  make(map[Sender]int),
		counts: make(map[int]int),
	}
}

// SetPresenceListener wires the presence publisher. Set once at composition
// time, before any connection registers.
func (r *Registry) SetPresenceListener(l PresenceListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = l
}

// Register binds conn to userID's room. Registering the same binding twice is
// a no-op; a connection bound to a different user is unbound from the old
// room first. A 0→1 count transition notifies the presence listener.
func (r *Registry) Register(conn Sender, userID int) {
	r.mu.Lock()
	cameOffline, cameOnline := -1, -1

	if prev, ok := r.bound[conn]; ok {
		if prev == userID {
			r.mu.Unlock()
			return
		}
		if r.leaveLocked(conn, prev) {
			cameOffline = prev
		}
	}

	r.bound[conn] = userID
	room, ok := r.rooms[userID]
	if !ok {
		room = make(map[Sender]struct{})
		r.rooms[userID] = room
	}
	room[conn] = struct{}{}

	r.counts[userID]++
	if r.counts[userID] == 1 {
		cameOnline = userID
	}
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		if cameOffline >= 0 {
			listener.UserOffline(cameOffline)
		}
		if cameOnline >= 0 {
			listener.UserOnline(cameOnline)
		}
	}
}

// Unregister removes conn from its user's room. Unknown connections are a
// no-op, so teardown is safe to run multiple times. A 1→0 count transition
// notifies the presence listener.
func (r *Registry) Unregister(conn Sender) {
	r.mu.Lock()
	userID, ok := r.bound[conn]
	if !ok {
		r.mu.Unlock()
		return
	}
	wentOffline := r.leaveLocked(conn, userID)
	listener := r.listener
	r.mu.Unlock()

	if wentOffline && listener != nil {
		listener.UserOffline(userID)
	}
}

// leaveLocked removes the binding and reports whether the user's count
// reached zero. Caller holds r.mu.
func (r *Registry) leaveLocked(conn Sender, userID int) bool {
	delete(r.bound, conn)
	if room, ok := r.rooms[userID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(r.rooms, userID)
		}
	}
	r.counts[userID]--
	if r.counts[userID] <= 0 {
		delete(r.counts, userID)
		return true
	}
	return false
}

// Room returns a snapshot of the user's live connections.
func (r *Registry) Room(userID int) []Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[userID]
	conns := make([]Sender, 0, len(room))
	for conn := range room {
		conns = append(conns, conn)
	}
	return conns
}

// AllConnections returns a snapshot of every registered connection.
func (r *Registry) AllConnections() []Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]Sender, 0, len(r.bound))
	for conn := range r.bound {
		conns = append(conns, conn)
	}
	return conns
}

// Connections reports the user's current connection count.
func (r *Registry) Connections(userID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[userID]
}
