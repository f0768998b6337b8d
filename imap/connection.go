// Package imap implements an IMAP4rev1 client engine: tagged command
// construction, the incremental response parser, and the folder/
// message/structure object model built on top of it.
package imap

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailkit/imap/imapauth"
	"github.com/eslider/mailkit/imap/imaptag"
	"github.com/eslider/mailkit/imap/imaptransport"
	"github.com/eslider/mailkit/imap/imapwire"
)

// socketReader adapts imaptransport.Socket.Receive to io.Reader so it
// can back a bufio.Reader/imapwire.Scanner.
type socketReader struct{ s imaptransport.Socket }

func (r socketReader) Read(p []byte) (int, error) { return r.s.Receive(p) }

// socketWriter adapts imaptransport.Socket.Send to io.Writer, for
// streaming an APPEND literal body with io.CopyN.
type socketWriter struct{ s imaptransport.Socket }

func (w socketWriter) Write(p []byte) (int, error) { return w.s.Send(p) }

// ConnState is the connection's authentication/selection state.
type ConnState int

const (
	StateNone ConnState = iota
	StateNonAuthenticated
	StateAuthenticated
	StateSelected
	StateLogout
)

func (s ConnState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateNonAuthenticated:
		return "NON_AUTHENTICATED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateSelected:
		return "SELECTED"
	case StateLogout:
		return "LOGOUT"
	default:
		return "UNKNOWN"
	}
}

// TimeoutPolicy is consulted between blocking socket reads.
// It may extend the read deadline or instruct abort.
type TimeoutPolicy interface {
	// Deadline returns the next read deadline for conn, given the
	// operation's start time.
	Deadline(start time.Time) time.Time
}

// FixedTimeout is the simplest TimeoutPolicy: every read gets the same
// deadline measured from the read's own start.
type FixedTimeout struct {
	Timeout time.Duration
}

func (f FixedTimeout) Deadline(start time.Time) time.Time {
	if f.Timeout <= 0 {
		return time.Time{}
	}
	return start.Add(f.Timeout)
}

// TraceFunc receives the redacted trace text of every command sent and
// the tagged completion line of every response read, for diagnostic
// logging. Untagged and continuation lines are not traced.
type TraceFunc func(direction string, text string)

// Connection owns one socket, its tag generator, and the capability
// and hierarchy-separator state shared by every command sent over it.
type Connection struct {
	mu sync.Mutex

	conn    imaptransport.Socket
	br      *bufio.Reader
	scanner *imapwire.Scanner

	state   ConnState
	tags    *imaptag.Generator
	sepOnce sync.Once
	sep     byte

	capabilities map[string]bool
	noModSeq     bool

	timeout TimeoutPolicy
	trace   TraceFunc

	poisoned error
}

// DialOptions configures Connect.
type DialOptions struct {
	TLS     bool
	TLSConf *tls.Config
	Timeout TimeoutPolicy
	Trace   TraceFunc
}

// Connect opens a TCP (or TLS) connection to addr, reads the greeting,
// and returns a Connection in StateNonAuthenticated (or
// StateAuthenticated if the server PREAUTHs).
func Connect(ctx context.Context, addr string, opts DialOptions) (*Connection, error) {
	var (
		sock imaptransport.Socket
		err  error
	)
	if opts.TLS {
		tlsConf := opts.TLSConf
		if tlsConf == nil {
			tlsConf = &tls.Config{}
		}
		sock, err = imaptransport.DialTLS(ctx, addr, tlsConf)
	} else {
		sock, err = imaptransport.DialTCP(ctx, addr)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "imap: dial %s", addr)
	}

	c := &Connection{
		conn:         sock,
		tags:         imaptag.New(0),
		capabilities: map[string]bool{},
		timeout:      opts.Timeout,
		trace:        opts.Trace,
	}
	c.br = bufio.NewReaderSize(socketReader{c.conn}, 8192)
	c.scanner = imapwire.NewScanner(c.br)

	g, err := imapwire.ReadGreeting(c.scanner)
	if err != nil {
		c.conn.Close()
		return nil, eris.Wrapf(err, "imap: read greeting")
	}
	switch g.Status {
	case "OK":
		c.state = StateNonAuthenticated
	case "PREAUTH":
		c.state = StateAuthenticated
	case "BYE":
		c.conn.Close()
		return nil, eris.Wrapf(ErrNotConnected, "imap: server greeted BYE: %s", g.Text)
	}
	if g.Code != nil && strings.EqualFold(g.Code.Name, "CAPABILITY") {
		c.setCapabilities(g.Code.Args)
	}
	return c, nil
}

func (c *Connection) setCapabilities(caps []string) {
	c.capabilities = make(map[string]bool, len(caps))
	for _, name := range caps {
		c.capabilities[strings.ToUpper(name)] = true
	}
}

// HasCapability reports whether name was last advertised by the server.
func (c *Connection) HasCapability(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capabilities[strings.ToUpper(name)]
}

// State returns the connection's current protocol state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HierarchySeparator returns the mailbox hierarchy separator, fetching
// it via `LIST "" ""` on first use.
func (c *Connection) HierarchySeparator(ctx context.Context) (byte, error) {
	var outerErr error
	c.sepOnce.Do(func() {
		resp, err := c.exchange(ctx, buildList("LIST", "", "", 0))
		if err != nil {
			outerErr = err
			return
		}
		for _, u := range resp.Untagged {
			if u.Kind == "LIST" {
				c.sep = u.HierarchyChar
				return
			}
		}
		c.sep = '/'
	})
	if outerErr != nil {
		return 0, outerErr
	}
	return c.sep, nil
}

// poison marks the connection unusable after a protocol-level failure:
// once set, every subsequent call fails fast instead of writing to a
// socket that may be mid-response.
func (c *Connection) poison(err error) error {
	c.mu.Lock()
	c.poisoned = err
	c.mu.Unlock()
	return err
}

func (c *Connection) checkPoisoned() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poisoned != nil {
		return eris.Wrapf(ErrIllegalState, "imap: connection poisoned: %v", c.poisoned)
	}
	return nil
}

// send serializes tag+verb+args+CRLF and writes it to the socket,
// returning the tag that the matching tagged response must carry.
func (c *Connection) send(ctx context.Context, cmd command) (string, error) {
	if err := c.checkPoisoned(); err != nil {
		return "", err
	}
	tag := c.tags.Next()
	line := tag + " " + cmd.text + "\r\n"
	if c.trace != nil {
		c.trace("C", tag+" "+cmd.trace)
	}
	c.setWriteDeadline(ctx)
	if _, err := c.conn.Send([]byte(line)); err != nil {
		return "", c.poison(eris.Wrapf(err, "imap: write command"))
	}
	return tag, nil
}

func (c *Connection) setWriteDeadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(dl)
		return
	}
	if c.timeout != nil {
		c.conn.SetWriteDeadline(c.timeout.Deadline(time.Now()))
	}
}

// readResponse reads one response and, once a tagged done or
// continuation arrives, returns it. literalHandler may be nil.
func (c *Connection) readResponse(ctx context.Context, lh imapwire.LiteralHandler) (*imapwire.Response, error) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(dl)
	} else if c.timeout != nil {
		c.conn.SetReadDeadline(c.timeout.Deadline(time.Now()))
	}
	resp, err := imapwire.ReadResponse(c.scanner, lh)
	if err != nil {
		if isTimeout(err) {
			return resp, ErrTimedOut
		}
		return resp, c.poison(eris.Wrapf(ErrProtocol, "imap: %v", err))
	}
	if c.trace != nil && resp.Done != nil {
		c.trace("S", resp.Done.Tag+" "+resp.Done.Status+" "+resp.Done.Text)
	}
	return resp, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// exchange sends cmd and reads responses until the matching tagged
// done, asserting tag equality and translating NO/BAD into
// ErrCommand.
func (c *Connection) exchange(ctx context.Context, cmd command) (*imapwire.Response, error) {
	return c.exchangeWithLiteral(ctx, cmd, nil)
}

func (c *Connection) exchangeWithLiteral(ctx context.Context, cmd command, lh imapwire.LiteralHandler) (*imapwire.Response, error) {
	tag, err := c.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	full := &imapwire.Response{}
	for {
		resp, err := c.readResponse(ctx, lh)
		if err != nil {
			return full, err
		}
		full.Untagged = append(full.Untagged, resp.Untagged...)
		if resp.Done != nil {
			if resp.Done.Tag != tag {
				return full, c.poison(eris.Wrapf(ErrProtocol, "imap: tag mismatch: sent %s, got %s", tag, resp.Done.Tag))
			}
			full.Done = resp.Done
			if resp.Done.Status != "OK" {
				return full, newCommandError(cmd.verb, resp.Done.Status, resp.Done.Text)
			}
			return full, nil
		}
		if resp.Continuation != nil {
			full.Continuation = resp.Continuation
			return full, nil
		}
	}
}

// Authenticate runs auth against this connection and transitions to
// StateAuthenticated on success. Any prior capability set is
// invalidated.
func (c *Connection) Authenticate(ctx context.Context, auth imapauth.Authenticator) error {
	if err := auth.Authenticate(ctx, (*authConn)(c)); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = StateAuthenticated
	c.capabilities = map[string]bool{}
	c.mu.Unlock()
	return nil
}

// authConn adapts *Connection to imapauth.Conn without exporting raw
// wire access on Connection itself. It always routes through the
// package's own command builders (buildLogin, buildAuthenticate) so
// every mechanism gets the same trace redaction LOGIN already has.
type authConn Connection

func (a *authConn) SendCommand(ctx context.Context, verb string, args ...string) (string, string, error) {
	c := (*Connection)(a)
	var cmd command
	switch verb {
	case "LOGIN":
		if len(args) != 2 {
			return "", "", eris.Wrapf(ErrInvalidArgument, "imap: LOGIN takes a user and a password")
		}
		cmd = buildLogin(args[0], args[1])
	case "AUTHENTICATE":
		if len(args) != 1 {
			return "", "", eris.Wrapf(ErrInvalidArgument, "imap: AUTHENTICATE takes a mechanism name")
		}
		cmd = buildAuthenticate(args[0])
	default:
		return "", "", eris.Wrapf(ErrInvalidArgument, "imap: unsupported auth command %q", verb)
	}
	resp, err := c.exchangeWithLiteral(ctx, cmd, nil)
	if err != nil && !eris.Is(err, ErrCommand) {
		return "", "", err
	}
	if resp.Continuation != nil {
		return "+", *resp.Continuation, nil
	}
	if resp.Done != nil {
		return resp.Done.Status, resp.Done.Text, nil
	}
	return "", "", err
}

// SendContinuation answers a "+" continuation with a base64 SASL
// response line. The line carries credentials (a bearer token, a
// PLAIN triple), so it traces as "{...}" rather than verbatim.
func (a *authConn) SendContinuation(ctx context.Context, line string) (string, string, error) {
	c := (*Connection)(a)
	if c.trace != nil {
		c.trace("C", "{...}")
	}
	c.setWriteDeadline(ctx)
	if _, err := c.conn.Send([]byte(line + "\r\n")); err != nil {
		return "", "", c.poison(eris.Wrapf(err, "imap: write continuation"))
	}
	resp, err := c.readResponse(ctx, nil)
	if err != nil {
		return "", "", err
	}
	if resp.Continuation != nil {
		return "+", *resp.Continuation, nil
	}
	status, text := "OK", ""
	if resp.Done != nil {
		status, text = resp.Done.Status, resp.Done.Text
	}
	return status, text, nil
}

// StartTLS upgrades a plaintext connection via STARTTLS.
func (c *Connection) StartTLS(ctx context.Context, conf *tls.Config) error {
	if _, err := c.exchange(ctx, buildStartTLS()); err != nil {
		return err
	}
	tlsConn := tls.Client(c.conn.Unwrap(), conf)
	c.conn = imaptransport.Wrap(tlsConn, c.conn.BlockSize())
	c.br = bufio.NewReaderSize(socketReader{c.conn}, 8192)
	c.scanner = imapwire.NewScanner(c.br)
	c.mu.Lock()
	c.capabilities = map[string]bool{}
	c.mu.Unlock()
	return nil
}

// RefreshCapabilities re-reads the capability set via CAPABILITY.
func (c *Connection) RefreshCapabilities(ctx context.Context) error {
	resp, err := c.exchange(ctx, buildCapability())
	if err != nil {
		return err
	}
	for _, u := range resp.Untagged {
		if u.Kind == "CAPABILITY" {
			c.setCapabilities(u.Capabilities)
		}
	}
	return nil
}

// Logout sends LOGOUT, reads the BYE and tagged OK, then closes the
// socket. Errors from the protocol exchange are ignored
// apart from ensuring the socket is closed, mirroring the "destructor
// path closes silently" rule.
func (c *Connection) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLogout
	c.mu.Unlock()
	_, _ = c.exchange(ctx, buildLogout())
	return c.conn.Close()
}

// Close closes the underlying socket without sending LOGOUT.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// literalWriter returns an io.Writer over the raw socket, for streaming
// an APPEND literal body directly.
func (c *Connection) literalWriter() io.Writer {
	return socketWriter{c.conn}
}
