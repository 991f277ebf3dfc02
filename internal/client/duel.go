package client

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/udisondev/wordquizzle/internal/protocol"
)

// Duel is one player's side of a live duel connection. Words come back one
// per call; the final Answer returns the result instead of a word.
type Duel struct {
	nickname string
	conn     net.Conn
	r        *bufio.Reader
}

// Start opens the duel and returns the first word to translate.
func (d *Duel) Start() (string, error) {
	if _, err := d.conn.Write(protocol.FormatDuelPayload(protocol.StartText, d.nickname)); err != nil {
		return "", fmt.Errorf("starting duel: %w", err)
	}
	word, end, err := d.readLine()
	if err != nil {
		return "", err
	}
	if end != nil {
		return "", fmt.Errorf("duel over before the first word: scored %d points", end.Score)
	}
	return word, nil
}

// Answer submits the translation of the current word. It returns the next
// word, or the final result once the duel is over. Waiting for the result
// can take a while: the server holds it until the opponent finishes or the
// clock runs out.
func (d *Duel) Answer(text string) (next string, end *protocol.End, err error) {
	if _, err := d.conn.Write(protocol.FormatDuelPayload(text, d.nickname)); err != nil {
		return "", nil, fmt.Errorf("sending answer: %w", err)
	}
	return d.readLine()
}

// readLine reads one duel line, recognizing the result line when it comes.
func (d *Duel) readLine() (string, *protocol.End, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		return "", nil, fmt.Errorf("reading duel line: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")

	if protocol.IsEnd(line) {
		end, err := protocol.ParseEnd(line)
		if err != nil {
			return "", nil, err
		}
		return "", &end, nil
	}
	return line, nil, nil
}

// Close releases the duel connection.
func (d *Duel) Close() error {
	return d.conn.Close()
}
