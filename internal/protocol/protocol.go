// Package protocol defines the wire format spoken between Word Quizzle
// clients and the server: plain ASCII requests with a numeric opcode,
// newline-terminated replies, and the small payloads used for UDP match
// invitations and duel exchanges.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op identifies a session request.
type Op int

const (
	OpLogin Op = iota
	OpLogout
	OpAddFriend
	OpFriendList
	OpScore
	OpScoreboard
	OpMatch
)

// String returns the human-readable command name.
func (op Op) String() string {
	switch op {
	case OpLogin:
		return "login"
	case OpLogout:
		return "logout"
	case OpAddFriend:
		return "add_friend"
	case OpFriendList:
		return "friend_list"
	case OpScore:
		return "score"
	case OpScoreboard:
		return "scoreboard"
	case OpMatch:
		return "match"
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// ErrMalformed means the request bytes don't parse into a known command.
var ErrMalformed = errors.New("malformed request")

// argc is the exact argument count each opcode expects.
var argc = map[Op]int{
	OpLogin:      3, // nickname password udpPort
	OpLogout:     0,
	OpAddFriend:  1, // friend
	OpFriendList: 0,
	OpScore:      0,
	OpScoreboard: 0,
	OpMatch:      1, // friend
}

// Request is one parsed client command.
type Request struct {
	Op   Op
	Args []string
}

// ParseRequest decodes a request frame: space-separated fields, the first
// being the numeric opcode. Argument counts are strict.
func ParseRequest(data []byte) (Request, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return Request{}, fmt.Errorf("%w: empty frame", ErrMalformed)
	}

	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return Request{}, fmt.Errorf("%w: bad opcode %q", ErrMalformed, fields[0])
	}

	op := Op(code)
	want, ok := argc[op]
	if !ok {
		return Request{}, fmt.Errorf("%w: unknown opcode %d", ErrMalformed, code)
	}
	if got := len(fields) - 1; got != want {
		return Request{}, fmt.Errorf("%w: %s takes %d args, got %d", ErrMalformed, op, want, got)
	}

	return Request{Op: op, Args: fields[1:]}, nil
}

// FormatRequest encodes a request the way clients send it: opcode first,
// arguments space-separated, no terminator.
func FormatRequest(op Op, args ...string) []byte {
	parts := append([]string{strconv.Itoa(int(op))}, args...)
	return []byte(strings.Join(parts, " "))
}
