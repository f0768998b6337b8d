package imap

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailkit/imap/imapwire"
)

// Flag is one of the seven IMAP system flags. RECENT is
// read-only and server-maintained.
type Flag int

const (
	FlagSeen Flag = 1 << iota
	FlagRecent
	FlagDeleted
	FlagAnswered
	FlagFlagged
	FlagDraft
	FlagPassed
)

var flagNames = map[Flag]string{
	FlagSeen:     `\Seen`,
	FlagRecent:   `\Recent`,
	FlagDeleted:  `\Deleted`,
	FlagAnswered: `\Answered`,
	FlagFlagged:  `\Flagged`,
	FlagDraft:    `\Draft`,
	FlagPassed:   `\Passed`,
}

var namesToFlag = func() map[string]Flag {
	m := make(map[string]Flag, len(flagNames))
	for f, n := range flagNames {
		m[n] = f
	}
	return m
}()

func flagSetToStrings(set Flag) []string {
	var out []string
	for f, n := range flagNames {
		if set&f != 0 {
			out = append(out, n)
		}
	}
	return out
}

func parseFlagSet(names []string) Flag {
	var set Flag
	for _, n := range names {
		if f, ok := namesToFlag[n]; ok {
			set |= f
		}
	}
	return set
}

// Message is a caller-facing handle to one message in an open Folder.
// Its number becomes invalid once the message is expunged
// or the folder closes; its UID remains valid for equality.
type Message struct {
	folder *Folder // non-owning back reference

	number uint32
	uid    uint32
	hasUID bool

	hasSize bool
	size    uint64

	hasFlags bool
	flags    Flag

	hasModSeq bool
	modSeq    uint64

	hasInternalDate bool
	internalDate    time.Time

	envelope  *imapwire.Envelope
	structure *Structure

	expunged bool
}

// Number returns the message's current sequence number. It is
// meaningless once Expunged reports true.
func (m *Message) Number() uint32 { return m.number }

// UID returns the message's UID and whether it has been fetched.
func (m *Message) UID() (uint32, bool) { return m.uid, m.hasUID }

// Size returns RFC822.SIZE, if fetched.
func (m *Message) Size() (uint64, bool) { return m.size, m.hasSize }

// Flags returns the flag bitset, if fetched.
func (m *Message) Flags() (Flag, bool) { return m.flags, m.hasFlags }

// ModSeq returns the CONDSTORE mod-sequence, if fetched.
func (m *Message) ModSeq() (uint64, bool) { return m.modSeq, m.hasModSeq }

// InternalDate returns the server-assigned internal date, if fetched.
func (m *Message) InternalDate() (time.Time, bool) { return m.internalDate, m.hasInternalDate }

// Envelope returns the parsed ENVELOPE, if fetched.
func (m *Message) Envelope() *imapwire.Envelope { return m.envelope }

// Structure returns the parsed BODYSTRUCTURE, if fetched.
func (m *Message) Structure() *Structure { return m.structure }

// Expunged reports whether the server has removed this message.
func (m *Message) Expunged() bool { return m.expunged }

// ExtractOptions controls Message.Extract.
type ExtractOptions struct {
	// Path is the 0-based part index path; nil means the message root.
	Path []int
	// Sub selects which sub-element of the part to extract: "" for the
	// whole part/root body, "HEADER"/"TEXT" for the root's header or
	// text, or "MIME" for a sub-part's MIME header.
	Sub string
	// Peek requests BODY.PEEK[...] so the SEEN flag is not set.
	Peek bool
	// Offset/Length, when Length > 0, request a <start.length>
	// partial range.
	Offset, Length uint32

	Sink     imapwire.LiteralTarget
	Progress imapwire.ProgressFunc
}

// Extract fetches one BODY[section]<range> (or BODY.PEEK[...]) item
// and streams the literal to opts.Sink when set.
func (m *Message) Extract(ctx context.Context, opts ExtractOptions) ([]byte, error) {
	if m.folder == nil {
		return nil, eris.Wrapf(ErrIllegalState, "imap: message detached from its folder")
	}
	section := SectionFor(opts.Path)
	if opts.Sub != "" {
		if section == "" {
			section = opts.Sub
		} else {
			section = section + "." + opts.Sub
		}
	}
	verb := "BODY"
	if opts.Peek {
		verb = "BODY.PEEK"
	}
	item := fmt.Sprintf("%s[%s]", verb, section)
	if opts.Length > 0 {
		item += fmt.Sprintf("<%d.%d>", opts.Offset, opts.Length)
	}
	return m.folder.fetchOneSection(ctx, m, item, opts.Sink, opts.Progress)
}
