// Package wire implements the length-prefixed framing protocol shared by
// the server and client engines: strings, scalars, arrays and lists, each
// carried as a big-endian length-prefixed blob over a TCP stream.
package wire

import (
	"errors"
	"fmt"
)

// ErrEOF is returned when a peer closes mid-frame (a short read on a
// length prefix or a frame body). It is a distinct sentinel from io.EOF,
// not a wrapper around it — match it with errors.Is(err, wire.ErrEOF).
var ErrEOF = errors.New("wire: peer closed mid-frame")

// ProtocolError reports a malformed frame: a negative or oversized length
// prefix, or a type/kind tag the codec does not recognize.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "wire: protocol error: " + e.Reason }

func newProtocolError(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports a fatal setup failure, such as a bind error
// or an invalid port.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "wire: configuration error: " + e.Reason }

// UnknownCommandError marks a command name outside the well-known
// vocabulary. The server dispatcher does not construct it: it hands
// unknown names straight to the extension hook and treats them as no
// failure.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string { return "wire: unknown command: " + e.Name }
