// Package imaptransport defines the Socket collaborator contract
// and timeout-aware helpers shared by Connection dialers.
package imaptransport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Socket is the minimal transport contract the core depends on:
// send, receive (which may return a partial read),
// preferred block size, and whether the channel is already
// TLS-secured. Upgrade reuses the underlying net.Conn via Unwrap, so
// a STARTTLS caller can rewrap it with tls.Client and re-Wrap the
// result.
type Socket interface {
	Send(p []byte) (int, error)
	Receive(buf []byte) (int, error)
	BlockSize() int
	IsSecured() bool
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Unwrap() net.Conn
	Close() error
}

// netSocket adapts a net.Conn to Socket.
type netSocket struct {
	net.Conn
	secured   bool
	blockSize int
}

func (s *netSocket) Send(p []byte) (int, error)      { return s.Write(p) }
func (s *netSocket) Receive(buf []byte) (int, error) { return s.Read(buf) }
func (s *netSocket) BlockSize() int                  { return s.blockSize }
func (s *netSocket) IsSecured() bool                 { return s.secured }
func (s *netSocket) Unwrap() net.Conn                { return s.Conn }

// Wrap adapts conn to Socket, recording whether it is a *tls.Conn.
func Wrap(conn net.Conn, blockSize int) Socket {
	if blockSize <= 0 {
		blockSize = 8192
	}
	_, secured := conn.(*tls.Conn)
	return &netSocket{Conn: conn, secured: secured, blockSize: blockSize}
}

// DialTCP opens a plaintext TCP socket with ctx's deadline applied to
// the dial itself.
func DialTCP(ctx context.Context, addr string) (Socket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return Wrap(conn, 8192), nil
}

// DialTLS opens a TLS socket.
func DialTLS(ctx context.Context, addr string, conf *tls.Config) (Socket, error) {
	var d tls.Dialer
	d.Config = conf
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return Wrap(conn, 8192), nil
}
