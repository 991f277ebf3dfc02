package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// StartText opens a duel: the first payload each player sends on the duel
// connection is StartText tagged with their own nickname.
const StartText = "START"

const (
	endPrefix        = "END/"
	endScoredText    = "You have scored: "
	endTimeoutScored = "Time out: you have scored: "
)

// Verdict is the outcome of a duel from one player's point of view.
type Verdict string

const (
	VerdictWon  Verdict = "won"
	VerdictLost Verdict = "lost"
	VerdictDrew Verdict = "drew"
)

// FormatDuelPayload tags a duel message with the sender's nickname.
// Used for both the opening StartText and every answer.
func FormatDuelPayload(text, nickname string) []byte {
	return []byte(text + "/" + nickname)
}

// ParseDuelPayload splits a duel message into text and sender nickname.
// The split happens at the last separator, so answers containing '/' keep
// their attribution intact.
func ParseDuelPayload(data []byte) (text, nickname string, err error) {
	payload := string(data)
	i := strings.LastIndexByte(payload, '/')
	if i < 0 {
		return "", "", fmt.Errorf("%w: duel payload %q", ErrMalformed, payload)
	}
	return payload[:i], payload[i+1:], nil
}

// End is a decoded duel result line.
type End struct {
	Score    int
	Verdict  Verdict
	TimedOut bool
}

// FormatEnd builds the final line of a duel. The score already includes the
// winner bonus when one applies.
func FormatEnd(score int, v Verdict, timedOut bool) string {
	if timedOut {
		return fmt.Sprintf("%s%s%d points. You %s.", endPrefix, endTimeoutScored, score, v)
	}
	return fmt.Sprintf("%s%s%d points. You %s.", endPrefix, endScoredText, score, v)
}

// IsEnd reports whether a duel line is the final result.
func IsEnd(line string) bool {
	return strings.HasPrefix(line, endPrefix)
}

// ParseEnd decodes a final duel line produced by FormatEnd.
func ParseEnd(line string) (End, error) {
	if !IsEnd(line) {
		return End{}, fmt.Errorf("%w: not an end line %q", ErrMalformed, line)
	}
	rest := line[len(endPrefix):]

	var end End
	switch {
	case strings.HasPrefix(rest, endTimeoutScored):
		end.TimedOut = true
		rest = rest[len(endTimeoutScored):]
	case strings.HasPrefix(rest, endScoredText):
		rest = rest[len(endScoredText):]
	default:
		return End{}, fmt.Errorf("%w: end line %q", ErrMalformed, line)
	}

	points, verdict, ok := strings.Cut(rest, " points. You ")
	if !ok {
		return End{}, fmt.Errorf("%w: end line %q", ErrMalformed, line)
	}
	score, err := strconv.Atoi(points)
	if err != nil {
		return End{}, fmt.Errorf("%w: end score %q", ErrMalformed, points)
	}
	end.Score = score
	end.Verdict = Verdict(strings.TrimSuffix(verdict, "."))

	return end, nil
}
