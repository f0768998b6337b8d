// Package imapauth implements the Authenticator collaborator contract
// and its LOGIN, PLAIN, and XOAUTH2 mechanisms.
package imapauth

import (
	"context"
	"encoding/base64"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
)

// Conn is the minimal surface an Authenticator needs from a
// Connection: send a command and read its tagged result, or answer a
// continuation request with a base64 line.
type Conn interface {
	SendCommand(ctx context.Context, verb string, args ...string) (status, text string, err error)
	SendContinuation(ctx context.Context, line string) (status, text string, err error)
}

// Authenticator supplies credentials and drives one login exchange
// over a Conn.
type Authenticator interface {
	Authenticate(ctx context.Context, conn Conn) error
}

var ErrRejected = eris.New("imap: authentication rejected")

// Login implements the plain LOGIN command.
type Login struct {
	User     string
	Password string
}

func (l Login) Authenticate(ctx context.Context, conn Conn) error {
	status, text, err := conn.SendCommand(ctx, "LOGIN", l.User, l.Password)
	if err != nil {
		return err
	}
	if status != "OK" {
		return eris.Wrapf(ErrRejected, "LOGIN: %s %s", status, text)
	}
	return nil
}

// SASLPlain implements AUTHENTICATE PLAIN (RFC-4616): a single
// continuation response carrying "authzid\0authcid\0password".
type SASLPlain struct {
	AuthzID  string
	User     string
	Password string
}

func (s SASLPlain) Authenticate(ctx context.Context, conn Conn) error {
	status, text, err := conn.SendCommand(ctx, "AUTHENTICATE", "PLAIN")
	if err != nil {
		return err
	}
	if status != "+" {
		return eris.Wrapf(ErrRejected, "AUTHENTICATE PLAIN: %s %s", status, text)
	}
	resp := s.AuthzID + "\x00" + s.User + "\x00" + s.Password
	status, text, err = conn.SendContinuation(ctx, base64.StdEncoding.EncodeToString([]byte(resp)))
	if err != nil {
		return err
	}
	if status != "OK" {
		return eris.Wrapf(ErrRejected, "AUTHENTICATE PLAIN: %s %s", status, text)
	}
	return nil
}

// XOAUTH2 implements AUTHENTICATE XOAUTH2 (Google/Microsoft OAuth2
// bridge), sourcing its access token from an oauth2.TokenSource so it
// composes with the refresh-token flows in golang.org/x/oauth2.
type XOAUTH2 struct {
	User   string
	Tokens oauth2.TokenSource
}

func (x XOAUTH2) Authenticate(ctx context.Context, conn Conn) error {
	tok, err := x.Tokens.Token()
	if err != nil {
		return eris.Wrapf(err, "imap: oauth2 token")
	}
	status, text, err := conn.SendCommand(ctx, "AUTHENTICATE", "XOAUTH2")
	if err != nil {
		return err
	}
	if status != "+" {
		return eris.Wrapf(ErrRejected, "AUTHENTICATE XOAUTH2: %s %s", status, text)
	}
	line := "user=" + x.User + "\x01auth=Bearer " + tok.AccessToken + "\x01\x01"
	status, text, err = conn.SendContinuation(ctx, base64.StdEncoding.EncodeToString([]byte(line)))
	if err != nil {
		return err
	}
	if status != "OK" {
		// A failed XOAUTH2 attempt returns a JSON error as a
		// continuation that must be acknowledged with an empty line
		// before the tagged NO arrives.
		if status == "+" {
			conn.SendContinuation(ctx, "")
		}
		return eris.Wrapf(ErrRejected, "AUTHENTICATE XOAUTH2: %s %s", status, text)
	}
	return nil
}
