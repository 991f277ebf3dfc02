package protocol

import (
	"fmt"
	"io"
)

// ReadFrame pulls one request off the connection with a single Read call.
// Clients send each command in one packet without a terminator, so whatever
// arrives in one wakeup is one frame. Returns io.EOF unwrapped when the peer
// closed the connection.
func ReadFrame(r io.Reader, buf []byte) ([]byte, error) {
	n, err := r.Read(buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	return buf[:n], nil
}

// WriteLine sends one newline-terminated reply.
func WriteLine(w io.Writer, s string) error {
	if _, err := w.Write([]byte(s + "\n")); err != nil {
		return fmt.Errorf("writing reply: %w", err)
	}
	return nil
}
