package client

import (
	"fmt"
	"net"
	"sort"

	"github.com/udisondev/wordquizzle/internal/protocol"
)

// invite is one pending match invitation.
type invite struct {
	challenger string
	port       int
	from       *net.UDPAddr
}

// listenInvites consumes the invitation socket until it is closed on logout.
// Challenge datagrams land in the pending table, expiry notices evict their
// entry, everything else is dropped.
func (c *Client) listenInvites(sock *net.UDPConn) {
	buf := make([]byte, 256)
	for {
		n, from, err := sock.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if challenger, ok := protocol.ParseInviteTimeout(buf[:n]); ok {
			c.invMu.Lock()
			delete(c.invites, challenger)
			c.invMu.Unlock()
			continue
		}
		challenger, port, err := protocol.ParseInvite(buf[:n])
		if err != nil {
			continue
		}
		c.invMu.Lock()
		c.invites[challenger] = invite{challenger: challenger, port: port, from: from}
		c.invMu.Unlock()
	}
}

// Pending lists the challengers with an open invitation, sorted by name.
func (c *Client) Pending() []string {
	c.invMu.Lock()
	defer c.invMu.Unlock()
	challengers := make([]string, 0, len(c.invites))
	for challenger := range c.invites {
		challengers = append(challengers, challenger)
	}
	sort.Strings(challengers)
	return challengers
}

// Accept answers the invitation from challenger with an accept, refuses every
// other pending invitation and dials the duel endpoint. The pending table is
// cleared either way.
func (c *Client) Accept(challenger string) (*Duel, error) {
	c.mu.Lock()
	sock := c.udp
	c.mu.Unlock()
	if sock == nil {
		return nil, ErrNotLoggedIn
	}

	c.invMu.Lock()
	chosen, ok := c.invites[challenger]
	var others []invite
	for _, inv := range c.invites {
		if inv.challenger != challenger {
			others = append(others, inv)
		}
	}
	clear(c.invites)
	c.invMu.Unlock()

	for _, inv := range others {
		_, _ = sock.WriteToUDP([]byte(protocol.InviteRefuse), inv.from)
	}
	if !ok {
		return nil, fmt.Errorf("no pending invitation from %s", challenger)
	}
	if _, err := sock.WriteToUDP([]byte(protocol.InviteAccept), chosen.from); err != nil {
		return nil, fmt.Errorf("answering invitation: %w", err)
	}

	return c.dialDuel(chosen.from.IP.String(), chosen.port)
}
