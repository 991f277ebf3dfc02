package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Invite datagram replies. The challenged client answers an invitation with
// a single byte; anything that isn't an accept counts as a refusal.
const (
	InviteAccept = "Y"
	InviteRefuse = "N"

	timeoutPrefix = "TIMEOUT/"
)

// FormatInvite builds the invitation datagram: the challenger's nickname and
// the TCP port where the duel will take place.
func FormatInvite(challenger string, duelPort int) []byte {
	return []byte(challenger + "/" + strconv.Itoa(duelPort))
}

// ParseInvite decodes an invitation datagram on the challenged side.
func ParseInvite(data []byte) (challenger string, duelPort int, err error) {
	payload := string(data)
	i := strings.LastIndexByte(payload, '/')
	if i <= 0 {
		return "", 0, fmt.Errorf("%w: invite %q", ErrMalformed, payload)
	}
	port, err := strconv.Atoi(payload[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: invite port %q", ErrMalformed, payload[i+1:])
	}
	return payload[:i], port, nil
}

// FormatInviteTimeout builds the datagram telling the challenged player that
// the invitation from challenger expired.
func FormatInviteTimeout(challenger string) []byte {
	return []byte(timeoutPrefix + challenger)
}

// ParseInviteTimeout reports whether the datagram is an expiry notice and,
// if so, whose invitation expired.
func ParseInviteTimeout(data []byte) (challenger string, ok bool) {
	payload := string(data)
	if !strings.HasPrefix(payload, timeoutPrefix) {
		return "", false
	}
	return payload[len(timeoutPrefix):], true
}

// Accepted reports whether an invitation reply is an accept.
func Accepted(reply []byte) bool {
	return string(reply) == InviteAccept
}
