package server

import (
	"fmt"
	"net"

	"github.com/gofrs/uuid"

	"github.com/udisondev/wordquizzle/internal/protocol"
)

// Session is one accepted client connection. The uuid handle is the
// connection's identity everywhere else in the server; nothing downstream
// ever keys on the remote address.
type Session struct {
	id   uuid.UUID
	conn net.Conn
	ip   net.IP
}

// NewSession wraps an accepted connection with a fresh handle.
func NewSession(conn net.Conn) (*Session, error) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return nil, fmt.Errorf("splitting remote addr %v: %w", conn.RemoteAddr(), err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("unparsable remote host %q", host)
	}

	return &Session{
		id:   uuid.Must(uuid.NewV4()),
		conn: conn,
		ip:   ip,
	}, nil
}

// ID returns the opaque connection handle.
func (s *Session) ID() uuid.UUID { return s.id }

// IP returns the remote address of the session. Combined with the UDP port
// declared at login it forms the user's invitation endpoint.
func (s *Session) IP() net.IP { return s.ip }

// Conn exposes the underlying connection for the match orchestrator, which
// writes invitation outcomes itself.
func (s *Session) Conn() net.Conn { return s.conn }

// Reply sends one newline-terminated line back to the client.
func (s *Session) Reply(line string) error {
	return protocol.WriteLine(s.conn, line)
}
