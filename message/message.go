// Package message defines the external collaborator contracts the
// imap engine delegates RFC-822/MIME work to: parsing a fetched header
// blob into structured fields, and generating the octet stream APPEND
// writes to the server.
package message

import (
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Header holds the subset of RFC-822 header fields callers typically
// need without re-parsing ENVELOPE/BODYSTRUCTURE themselves.
type Header struct {
	Subject    string
	From       string
	To         string
	Cc         string
	MessageID  string
	InReplyTo  string
	Date       time.Time
	RawHeaders mail.Header
}

// HeaderParser decodes a raw RFC-822 header block (as returned by a
// BODY[HEADER] or BODY[HEADER.FIELDS (...)] fetch) into a Header.
// Implementations must apply RFC-2047 MIME-word decoding.
type HeaderParser interface {
	ParseHeader(raw []byte) (Header, error)
}

// MessageGenerator produces the literal body an APPEND command writes
// to the server, alongside its exact octet length: RFC-3501 §6.3.11
// requires the length up front for the `{size}` literal marker.
type MessageGenerator interface {
	// Generate returns a reader over the full RFC-822 message and its
	// length in octets. Callers must read exactly Size bytes from r.
	Generate() (r io.Reader, size int64, err error)
}

// wordDecoder resolves RFC-2047 encoded words via golang.org/x/text's
// charset registry, falling back to the raw bytes for charsets the
// registry doesn't recognize.
var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		cs := strings.ToLower(strings.TrimSpace(charset))
		if cs == "utf-8" || cs == "us-ascii" || cs == "ascii" {
			return input, nil
		}
		enc, err := htmlindex.Get(cs)
		if err != nil {
			return input, nil
		}
		return transform.NewReader(input, enc.NewDecoder()), nil
	},
}

func decodeWords(raw string) string {
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// netMailParser implements HeaderParser on top of net/mail's header
// grammar, wrapped to parse a standalone header block instead of a
// full message.
type netMailParser struct{}

// NewHeaderParser returns the default HeaderParser.
func NewHeaderParser() HeaderParser { return netMailParser{} }

func (netMailParser) ParseHeader(raw []byte) (Header, error) {
	msg, err := mail.ReadMessage(newHeaderOnlyReader(raw))
	if err != nil {
		return Header{}, err
	}
	h := Header{RawHeaders: mail.Header(msg.Header)}
	h.Subject = decodeWords(msg.Header.Get("Subject"))
	h.From = decodeWords(msg.Header.Get("From"))
	h.To = decodeWords(msg.Header.Get("To"))
	h.Cc = decodeWords(msg.Header.Get("Cc"))
	h.MessageID = strings.TrimSpace(msg.Header.Get("Message-Id"))
	h.InReplyTo = strings.TrimSpace(msg.Header.Get("In-Reply-To"))
	if d, err := msg.Header.Date(); err == nil {
		h.Date = d
	}
	return h, nil
}

// newHeaderOnlyReader appends the blank line net/mail requires to
// separate headers from a (here, empty) body.
func newHeaderOnlyReader(raw []byte) io.Reader {
	if !strings.HasSuffix(string(raw), "\r\n\r\n") {
		raw = append(append([]byte(nil), raw...), []byte("\r\n\r\n")...)
	}
	return strings.NewReader(string(raw))
}
