package match

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/udisondev/wordquizzle/internal/protocol"
)

// errInviteExpired means the challenged player never answered the invitation.
var errInviteExpired = errors.New("invitation expired")

// invite delivers the challenge datagram to the challenged player's declared
// UDP endpoint and waits for the verdict. Datagrams from other hosts are
// dropped. On expiry the challenged side gets a TIMEOUT notice so it can
// evict the stale invitation, and invite returns errInviteExpired.
func (o *Orchestrator) invite(challenger string, endpoint *net.UDPAddr, duelPort int) (bool, error) {
	sock, err := net.ListenUDP("udp", nil)
	if err != nil {
		return false, fmt.Errorf("opening invite socket: %w", err)
	}
	defer sock.Close()

	if err := sock.SetReadDeadline(time.Now().Add(time.Duration(o.rules.InviteTimeout))); err != nil {
		return false, fmt.Errorf("arming invite deadline: %w", err)
	}
	if _, err := sock.WriteToUDP(protocol.FormatInvite(challenger, duelPort), endpoint); err != nil {
		return false, fmt.Errorf("sending invite: %w", err)
	}

	buf := make([]byte, 64)
	for {
		n, from, err := sock.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				_ = sock.SetWriteDeadline(time.Now().Add(time.Second))
				_, _ = sock.WriteToUDP(protocol.FormatInviteTimeout(challenger), endpoint)
				return false, errInviteExpired
			}
			return false, fmt.Errorf("awaiting invite reply: %w", err)
		}
		if !from.IP.Equal(endpoint.IP) {
			continue
		}
		return protocol.Accepted(buf[:n]), nil
	}
}
