package match

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/udisondev/wordquizzle/internal/protocol"
	"github.com/udisondev/wordquizzle/internal/words"
)

// duelEvent is one read off a duel connection, delivered to the match task.
type duelEvent struct {
	src     *duelConn
	payload []byte
	err     error
}

// rendezvous accepts the two duel connections. Who is who stays unknown
// until the opening START payload; the accept gate only turns away hosts
// neither player logged in from.
func (o *Orchestrator) rendezvous(m *Match, ln *net.TCPListener, deadline time.Time, allowed []net.IP) {
	if err := ln.SetDeadline(deadline); err != nil {
		slog.Error("arming rendezvous deadline", "err", err)
		return
	}
	for len(m.conns) < 2 {
		conn, err := ln.AcceptTCP()
		if err != nil {
			return
		}
		ip := remoteIP(conn)
		if ip == nil || !ipAllowed(ip, allowed) {
			conn.Close()
			continue
		}
		m.conns = append(m.conns, &duelConn{conn: conn})
	}
}

func remoteIP(conn net.Conn) net.IP {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return nil
	}
	return addr.IP
}

func ipAllowed(ip net.IP, allowed []net.IP) bool {
	for _, a := range allowed {
		if ip.Equal(a) {
			return true
		}
	}
	return false
}

// pump reads duel payloads off one connection and feeds them to the match
// task. Payloads are copied before crossing the channel, буфер остаётся у
// горутины.
func pump(dc *duelConn, events chan<- duelEvent, done <-chan struct{}) {
	buf := make([]byte, 256)
	for {
		data, err := protocol.ReadFrame(dc.conn, buf)
		ev := duelEvent{src: dc, err: err}
		if err == nil {
			ev.payload = append([]byte(nil), data...)
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// duel drives the word exchange until both players are done or time runs
// out. Match state is mutated only here, on the single match task.
func (o *Orchestrator) duel(ctx context.Context, m *Match, challenges []words.Challenge, deadline time.Time) (timedOut bool) {
	events := make(chan duelEvent, 4)
	done := make(chan struct{})
	defer close(done)

	for _, dc := range m.conns {
		go pump(dc, events, done)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for !m.challenger().finished(len(challenges)) || !m.challenged().finished(len(challenges)) {
		select {
		case <-ctx.Done():
			m.state = StateAborted
			return true
		case <-timer.C:
			return true
		case ev := <-events:
			o.apply(m, ev, challenges)
		}
	}
	return false
}

// apply folds one connection event into the match.
func (o *Orchestrator) apply(m *Match, ev duelEvent, challenges []words.Challenge) {
	dc := ev.src
	if ev.err != nil {
		dc.dead = true
		if dc.bound != nil && !dc.bound.eliminated {
			slog.Info("duel connection lost", "nickname", dc.bound.nick)
			eliminate(dc.bound, len(challenges))
		}
		m.resolveUnbound(len(challenges))
		return
	}

	text, nick, err := protocol.ParseDuelPayload(ev.payload)
	if err != nil {
		return
	}
	p := m.playerByNick(nick)
	if p == nil {
		return
	}

	if text == protocol.StartText {
		if dc.bound != nil || p.conn != nil {
			return
		}
		dc.bound = p
		p.conn = dc
		p.cursor = 1
		m.resolveUnbound(len(challenges))
		o.sendWord(p, challenges[0].Word)
		return
	}

	// Answers count only from the connection the player started on.
	if p.conn != dc || p.eliminated || p.cursor == 0 || p.cursor > len(challenges) {
		return
	}
	p.answers[p.cursor-1] = text
	p.cursor++
	if p.cursor <= len(challenges) {
		o.sendWord(p, challenges[p.cursor-1].Word)
	}
}

// sendWord pushes the next word as its own line. A write failure counts the
// same as a lost connection.
func (o *Orchestrator) sendWord(p *player, word string) {
	if err := protocol.WriteLine(p.conn.conn, word); err != nil {
		slog.Info("duel connection lost", "nickname", p.nick, "err", err)
		p.conn.dead = true
		eliminate(p, len(p.answers))
	}
}
