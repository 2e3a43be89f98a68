package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncomplete means the buffer ends mid-frame. It is not a failure;
	// the caller should read more bytes and try again.
	ErrIncomplete = errors.New("incomplete frame")

	ErrMalformed       = errors.New("malformed frame")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrInvalidReply = errors.New("invalid reply")
)

const maxNameInError = 128

// ProtocolError is a recoverable decode failure. Kind is one of
// ErrMalformed, ErrUnknownCommand or ErrInvalidArgument; Msg is the
// client-facing reason.
type ProtocolError struct {
	Kind error
	Msg  string
}

func (e *ProtocolError) Error() string {
	return e.Msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Kind
}

func protoErr(kind error, format string, args ...any) error {
	return &ProtocolError{Kind: kind, Msg: oneLine(fmt.Sprintf(format, args...))}
}

func malformed(format string, args ...any) error {
	return protoErr(ErrMalformed, "Protocol error: "+format, args...)
}

func unknownCommand(name string) error {
	if len(name) > maxNameInError {
		name = name[:maxNameInError]
	}
	return protoErr(ErrUnknownCommand, "unknown command '%s'", name)
}

func wrongArity(t CmdType) error {
	return protoErr(ErrUnknownCommand, "wrong number of arguments for '%s' command", strings.ToLower(t.String()))
}

func invalidArgument(msg string) error {
	return protoErr(ErrInvalidArgument, "%s", msg)
}

func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
}
