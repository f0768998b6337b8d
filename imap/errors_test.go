package imap

import (
	"testing"

	"github.com/rotisserie/eris"
)

func TestCommandErrorUnwrapsToErrCommand(t *testing.T) {
	err := newCommandError("SELECT", "NO", "[NONEXISTENT] no such mailbox")
	if !eris.Is(err, ErrCommand) {
		t.Errorf("newCommandError does not unwrap to ErrCommand")
	}

	var ce *CommandError
	if !eris.As(err, &ce) {
		t.Fatalf("eris.As failed to extract *CommandError")
	}
	if ce.Verb != "SELECT" || ce.Status != "NO" {
		t.Errorf("CommandError fields = %+v", ce)
	}
}

func TestCommandErrorMessage(t *testing.T) {
	ce := &CommandError{Verb: "LOGIN", Status: "NO", Text: "invalid credentials"}
	if ce.Error() != "LOGIN: NO invalid credentials" {
		t.Errorf("Error() = %q", ce.Error())
	}
}

func TestProtocolErrorMessage(t *testing.T) {
	pe := &ProtocolError{Line: "* BAD wat", Cursor: 2, Reason: "unexpected token"}
	want := "invalid response at 2 in * BAD wat: unexpected token"
	if pe.Error() != want {
		t.Errorf("Error() = %q, want %q", pe.Error(), want)
	}
	if !eris.Is(pe, ErrProtocol) {
		t.Errorf("ProtocolError does not unwrap to ErrProtocol")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrProtocol, ErrCommand, ErrIllegalState, ErrFolderNotFound,
		ErrMessageNotFound, ErrInvalidFolderName, ErrFolderAlreadyOpen,
		ErrAlreadyConnected, ErrNotConnected, ErrNotSupported,
		ErrTimedOut, ErrInvalidArgument,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if eris.Is(a, b) {
				t.Errorf("sentinel %d unexpectedly matches sentinel %d", i, j)
			}
		}
	}
}
