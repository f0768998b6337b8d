package imap

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// Error taxonomy. Kinds are sentinel values created with
// eris.New and tested with eris.Is; they are never compared by type.
var (
	// ErrProtocol reports a grammar mismatch surfaced by the response
	// parser. It poisons the owning Connection.
	ErrProtocol = eris.New("imap: protocol parse error")

	// ErrCommand wraps a tagged NO/BAD (or a missing tagged done). It is
	// recoverable: folder/connection state invariants remain valid.
	ErrCommand = eris.New("imap: command error")

	// ErrIllegalState reports that an operation requires a different
	// folder or connection state than the one currently held.
	ErrIllegalState = eris.New("imap: illegal state")

	ErrFolderNotFound    = eris.New("imap: folder not found")
	ErrMessageNotFound   = eris.New("imap: message not found")
	ErrInvalidFolderName = eris.New("imap: invalid folder name")
	ErrFolderAlreadyOpen = eris.New("imap: folder already open")
	ErrAlreadyConnected  = eris.New("imap: already connected")
	ErrNotConnected      = eris.New("imap: not connected")
	ErrNotSupported      = eris.New("imap: operation not supported")
	ErrTimedOut          = eris.New("imap: operation timed out")
	ErrInvalidArgument   = eris.New("imap: invalid argument")
)

// CommandError carries the verb and server text behind ErrCommand.
type CommandError struct {
	Verb   string
	Status string // "NO" or "BAD"
	Text   string
}

func (e *CommandError) Error() string {
	return e.Verb + ": " + e.Status + " " + e.Text
}

func (e *CommandError) Unwrap() error { return ErrCommand }

func newCommandError(verb, status, text string) error {
	return eris.Wrapf(&CommandError{Verb: verb, Status: status, Text: text}, "command %s failed", verb)
}

// ProtocolError carries the offending line and cursor behind
// ErrProtocol.
type ProtocolError struct {
	Line   string
	Cursor int
	Reason string
}

func (e *ProtocolError) Error() string {
	return "invalid response at " + strconv.Itoa(e.Cursor) + " in " + e.Line + ": " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }
