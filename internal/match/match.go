// Package match runs the duel lifecycle on behalf of a challenger:
// invitation → rendezvous → duel → scoring. The whole exchange executes
// inside the single worker task that picked up the match command, so the
// challenger's session stays quiet until the outcome is decided.
package match

import "net"

// State tracks where a match is in its lifecycle.
type State int32

const (
	StateInvited       State = iota // invitation sent, awaiting the UDP reply
	StateRefused                    // challenged player declined
	StateInviteTimeout              // challenged player never answered
	StateRendezvous                 // accepted, waiting for both duel connections
	StateDueling                    // words are flowing
	StateScored                     // finished inside the time limit
	StateExpired                    // wall clock cut the duel short
	StateAborted                    // setup failure or server shutdown
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateInvited:
		return "invited"
	case StateRefused:
		return "refused"
	case StateInviteTimeout:
		return "invite_timeout"
	case StateRendezvous:
		return "rendezvous"
	case StateDueling:
		return "dueling"
	case StateScored:
		return "scored"
	case StateExpired:
		return "expired"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// player is one side of a duel. Everything here is touched only by the
// match task, never concurrently.
type player struct {
	nick       string
	conn       *duelConn // nil until the player opens with START
	cursor     int       // 1+index of the next word to send; 0 before START
	answers    []string
	eliminated bool
}

// finished reports whether this player's part of the duel is over: they
// answered every word or their connection is gone.
func (p *player) finished(words int) bool {
	return p.eliminated || p.cursor > words
}

// duelConn is an accepted duel connection. Identity is unknown until the
// first payload binds it to a player.
type duelConn struct {
	conn  net.Conn
	bound *player
	dead  bool
}

// Match is the mutable state of one running match.
type Match struct {
	players [2]*player // challenger first
	conns   []*duelConn
	state   State
}

func newMatch(challenger, challenged string, words int) *Match {
	return &Match{
		players: [2]*player{
			{nick: challenger, answers: make([]string, words)},
			{nick: challenged, answers: make([]string, words)},
		},
		state: StateInvited,
	}
}

func (m *Match) challenger() *player { return m.players[0] }
func (m *Match) challenged() *player { return m.players[1] }

func (m *Match) playerByNick(nick string) *player {
	for _, p := range m.players {
		if p.nick == nick {
			return p
		}
	}
	return nil
}

// resolveUnbound eliminates players that can no longer identify themselves:
// once every connection is either bound or dead, an unbound player has no
// socket left to send their START from.
func (m *Match) resolveUnbound(words int) {
	alive := 0
	for _, dc := range m.conns {
		if dc.bound == nil && !dc.dead {
			alive++
		}
	}
	if alive > 0 {
		return
	}
	for _, p := range m.players {
		if p.conn == nil && !p.eliminated {
			eliminate(p, words)
		}
	}
}

// eliminate takes a player out of the duel: every unanswered word becomes a
// blank and their cursor jumps past the end. The answer slot the player was
// working on counts as unanswered too.
func eliminate(p *player, words int) {
	start := p.cursor - 1
	if start < 0 {
		start = 0
	}
	for i := start; i < words; i++ {
		p.answers[i] = ""
	}
	p.cursor = words + 1
	p.eliminated = true
}
