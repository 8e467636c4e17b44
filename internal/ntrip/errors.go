package ntrip

import (
	"errors"
	"fmt"
)

// ErrStreamOpen is returned by Client.Stream while a previous stream is still open.
var ErrStreamOpen = errors.New("ntrip: stream already open")

// HandshakeError is a terminal handshake failure: a non-200 status, a peer close before
// the end of the response header, or a malformed status line. Rejected is set when the
// caster answered with a status other than 200; Code and Reason then hold that status.
type HandshakeError struct {
	Rejected bool
	Code     int
	Reason   string
	Msg      string
	Err      error
}

func (e *HandshakeError) Error() string {
	if e.Rejected {
		if e.Reason == "" {
			return fmt.Sprintf("ntrip handshake: caster responded with %d", e.Code)
		}
		return fmt.Sprintf("ntrip handshake: caster responded with %d %s", e.Code, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("ntrip handshake: %s: %v", e.Msg, e.Err)
	}
	return "ntrip handshake: " + e.Msg
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// StreamError wraps a read failure after a successful handshake.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return "ntrip stream: " + e.Err.Error() }
func (e *StreamError) Unwrap() error { return e.Err }
