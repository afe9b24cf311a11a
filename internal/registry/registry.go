// Package registry tracks live client connections and their session attributes.
//
// A Registry is not safe for concurrent use; the hub's event loop owns it.
package registry

// Peer is the transport side of a connection.
type Peer interface {
	ID() string
	// Send queues an encoded frame without blocking. It reports false when the
	// peer cannot accept more data.
	Send(frame []byte) bool
	Close()
}

// State of a connection's session.
type State int

const (
	Connected State = iota
	Joined
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Joined:
		return "joined"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection is the session record of one live connection. Room and DisplayName
// are only meaningful once State is Joined.
type Connection struct {
	ID          string
	DisplayName string
	Room        string
	State       State
	Peer        Peer
}

type Registry struct {
	conns map[string]*Connection
}

func New() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register records a new connection in the Connected state and returns its id.
// Registering an id twice replaces the previous record.
func (r *Registry) Register(peer Peer) string {
	id := peer.ID()
	r.conns[id] = &Connection{ID: id, State: Connected, Peer: peer}
	return id
}

// Unregister forgets a connection. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	delete(r.conns, id)
}

func (r *Registry) Lookup(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	return len(r.conns)
}

// Each calls fn for every registered connection.
func (r *Registry) Each(fn func(*Connection)) {
	for _, c := range r.conns {
		fn(c)
	}
}
