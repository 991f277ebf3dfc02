package presence

import (
	"errors"
	"net"
	"sync"

	"github.com/gofrs/uuid"
)

var (
	// ErrNicknameOnline means the nickname is already bound to a live session.
	ErrNicknameOnline = errors.New("nickname already online")
	// ErrConnBound means this session already logged somebody in.
	ErrConnBound = errors.New("connection already bound")
)

// Registry tracks who is online. It holds two indexes over the same set of
// sessions: connection handle to nickname, and nickname to the UDP endpoint
// where match invitations are delivered.
// Thread-safe for concurrent access; both indexes move under one lock, so a
// user is either fully online (present in both) or fully offline.
type Registry struct {
	mu     sync.RWMutex
	byConn map[uuid.UUID]string    // conn handle -> nickname
	byNick map[string]*net.UDPAddr // nickname -> invite endpoint
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[uuid.UUID]string, 64),
		byNick: make(map[string]*net.UDPAddr, 64),
	}
}

// Bind marks nickname online on the given connection, reachable for
// invitations at endpoint. On error neither index changes.
func (r *Registry) Bind(conn uuid.UUID, nickname string, endpoint *net.UDPAddr) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byNick[nickname]; ok {
		return ErrNicknameOnline
	}
	if _, ok := r.byConn[conn]; ok {
		return ErrConnBound
	}

	r.byConn[conn] = nickname
	r.byNick[nickname] = endpoint
	return nil
}

// Unbind removes whatever user the connection logged in, returning the
// nickname. ok is false when the connection never bound anyone, which is
// normal for a session that dropped before login.
func (r *Registry) Unbind(conn uuid.UUID) (nickname string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nickname, ok = r.byConn[conn]
	if !ok {
		return "", false
	}

	delete(r.byConn, conn)
	delete(r.byNick, nickname)
	return nickname, true
}

// Nickname returns the user logged in on the connection.
func (r *Registry) Nickname(conn uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nick, ok := r.byConn[conn]
	return nick, ok
}

// Endpoint returns the UDP invitation endpoint of an online user.
func (r *Registry) Endpoint(nickname string) (*net.UDPAddr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ep, ok := r.byNick[nickname]
	return ep, ok
}

// Online reports whether the user has a live session.
func (r *Registry) Online(nickname string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byNick[nickname]
	return ok
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byConn)
}
