package match

import (
	"log/slog"

	"github.com/udisondev/wordquizzle/internal/protocol"
	"github.com/udisondev/wordquizzle/internal/words"
)

// Points per answered word. The strict winner collects winnerBonus on top.
const (
	correctPoints = 2
	wrongPoints   = -1
	winnerBonus   = 3
)

// rawScore sums a player's answers: верный перевод в плюс, пропуск в ноль,
// ошибка в минус. Words past the cursor were never shown and count nothing.
func rawScore(p *player, challenges []words.Challenge) int {
	total := 0
	last := p.cursor - 1
	if last > len(challenges) {
		last = len(challenges)
	}
	for i := 0; i < last; i++ {
		answer := p.answers[i]
		switch {
		case challenges[i].Accepts(answer):
			total += correctPoints
		case answer == "":
		default:
			total += wrongPoints
		}
	}
	return total
}

// settle applies the winner bonus and assigns verdicts.
func settle(scoreA, scoreB int) (int, int, protocol.Verdict, protocol.Verdict) {
	switch {
	case scoreA > scoreB:
		return scoreA + winnerBonus, scoreB, protocol.VerdictWon, protocol.VerdictLost
	case scoreB > scoreA:
		return scoreA, scoreB + winnerBonus, protocol.VerdictLost, protocol.VerdictWon
	default:
		return scoreA, scoreB, protocol.VerdictDrew, protocol.VerdictDrew
	}
}

// finish scores the duel, tells both players how it went and persists the
// deltas. Both deltas land in the store in every terminal state; a crashed
// or absent player simply banks zero.
func (o *Orchestrator) finish(m *Match, challenges []words.Challenge, timedOut bool) {
	a, b := m.challenger(), m.challenged()
	scoreA, scoreB, verdictA, verdictB := settle(rawScore(a, challenges), rawScore(b, challenges))

	o.sendEnd(a, scoreA, verdictA, timedOut)
	o.sendEnd(b, scoreB, verdictB, timedOut)

	for _, outcome := range []struct {
		nick  string
		delta int
	}{{a.nick, scoreA}, {b.nick, scoreB}} {
		if err := o.store.AdjustScore(outcome.nick, outcome.delta); err != nil {
			slog.Error("persisting match score", "nickname", outcome.nick, "delta", outcome.delta, "err", err)
		}
	}

	if m.state != StateAborted {
		if timedOut {
			m.state = StateExpired
		} else {
			m.state = StateScored
		}
	}
	slog.Info("match finished",
		"challenger", a.nick,
		"challenged", b.nick,
		"state", m.state,
		"challenger_score", scoreA,
		"challenged_score", scoreB)
}

// sendEnd delivers the final result line to a player that still has a live
// duel connection.
func (o *Orchestrator) sendEnd(p *player, score int, v protocol.Verdict, timedOut bool) {
	if p.conn == nil || p.conn.dead {
		return
	}
	if err := protocol.WriteLine(p.conn.conn, protocol.FormatEnd(score, v, timedOut)); err != nil {
		slog.Debug("sending duel result", "nickname", p.nick, "err", err)
	}
}
