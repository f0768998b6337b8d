package imap

import (
	"fmt"
	"strings"
	"time"

	"github.com/eslider/mailkit/imap/imapwire"
	"github.com/eslider/mailkit/imap/msgset"
	"github.com/eslider/mailkit/imap/utf7"
)

// StoreMode selects the STORE verb prefix.
type StoreMode int

const (
	StoreReplace StoreMode = iota
	StoreAdd
	StoreRemove
)

// command holds a built verb line plus its redacted trace form:
// passwords become "{password}" and AUTHENTICATE
// responses become "{...}".
type command struct {
	verb  string
	text  string
	trace string
}

func newCommandBuilder(verb string) *commandBuilder {
	return &commandBuilder{verb: verb}
}

// commandBuilder accumulates space-separated arguments for one verb,
// tracking a parallel redacted form for tracing.
type commandBuilder struct {
	verb  string
	parts []string
	trace []string
}

func (b *commandBuilder) arg(s string) *commandBuilder {
	b.parts = append(b.parts, s)
	b.trace = append(b.trace, s)
	return b
}

func (b *commandBuilder) redactedArg(s, redacted string) *commandBuilder {
	b.parts = append(b.parts, s)
	b.trace = append(b.trace, redacted)
	return b
}

func (b *commandBuilder) mailbox(path string, sep byte) *commandBuilder {
	return b.arg(imapwire.Quote(utf7.Encode(path, sep)))
}

func (b *commandBuilder) set(s *msgset.Set) *commandBuilder {
	return b.arg(s.Sequence())
}

func (b *commandBuilder) paren(items ...string) *commandBuilder {
	return b.arg("(" + strings.Join(items, " ") + ")")
}

func (b *commandBuilder) build() command {
	text := b.verb
	if len(b.parts) > 0 {
		text += " " + strings.Join(b.parts, " ")
	}
	trace := b.verb
	if len(b.trace) > 0 {
		trace += " " + strings.Join(b.trace, " ")
	}
	return command{verb: b.verb, text: text, trace: trace}
}

func buildSelect(path string, sep byte, examine, condstore bool) command {
	verb := "SELECT"
	if examine {
		verb = "EXAMINE"
	}
	b := newCommandBuilder(verb).mailbox(path, sep)
	if condstore {
		b.arg("(CONDSTORE)")
	}
	return b.build()
}

func buildCreate(path string, sep byte, specialUse string) command {
	b := newCommandBuilder("CREATE").mailbox(path, sep)
	if specialUse != "" {
		b.paren("USE", "("+specialUse+")")
	}
	return b.build()
}

func buildDelete(path string, sep byte) command {
	return newCommandBuilder("DELETE").mailbox(path, sep).build()
}

func buildRename(oldPath, newPath string, sep byte) command {
	return newCommandBuilder("RENAME").mailbox(oldPath, sep).mailbox(newPath, sep).build()
}

func buildList(verb, refPath, pattern string, sep byte) command {
	b := newCommandBuilder(verb).mailbox(refPath, sep)
	return b.arg(imapwire.Quote(utf7.Encode(pattern, sep))).build()
}

func buildStatus(path string, sep byte, items []string) command {
	return newCommandBuilder("STATUS").mailbox(path, sep).paren(items...).build()
}

func buildFetch(uidMode bool, set *msgset.Set, items string) command {
	b := newCommandBuilder(verbFor(uidMode, "FETCH")).set(set)
	return b.arg(items).build()
}

func buildUIDFetchUID(set *msgset.Set) command {
	return newCommandBuilder("UID FETCH").set(set).arg("UID").build()
}

func buildStore(uidMode bool, set *msgset.Set, mode StoreMode, flags []string) command {
	prefix := "FLAGS"
	switch mode {
	case StoreAdd:
		prefix = "+FLAGS"
	case StoreRemove:
		prefix = "-FLAGS"
	}
	return newCommandBuilder(verbFor(uidMode, "STORE")).set(set).
		arg(prefix).paren(flags...).build()
}

func buildCopy(uidMode bool, set *msgset.Set, dest string, sep byte) command {
	return newCommandBuilder(verbFor(uidMode, "COPY")).set(set).mailbox(dest, sep).build()
}

func buildExpunge() command { return newCommandBuilder("EXPUNGE").build() }
func buildClose() command   { return newCommandBuilder("CLOSE").build() }
func buildNoop() command    { return newCommandBuilder("NOOP").build() }
func buildLogout() command  { return newCommandBuilder("LOGOUT").build() }
func buildCapability() command {
	return newCommandBuilder("CAPABILITY").build()
}

func buildSearch(uidMode bool, charset string, keys string) command {
	b := newCommandBuilder(verbFor(uidMode, "SEARCH"))
	if charset != "" {
		b.arg("CHARSET").arg(charset)
	}
	return b.arg(keys).build()
}

func buildAppend(path string, sep byte, flags []string, date *time.Time, size int) command {
	b := newCommandBuilder("APPEND").mailbox(path, sep)
	if len(flags) > 0 {
		b.paren(flags...)
	}
	if date != nil {
		b.arg(imapwire.Quote(imapwire.FormatInternalDate(*date)))
	}
	return b.arg(fmt.Sprintf("{%d}", size)).build()
}

func buildLogin(user, password string) command {
	b := newCommandBuilder("LOGIN")
	b.redactedArg(imapwire.Quote(user), imapwire.Quote(user))
	b.redactedArg(imapwire.Quote(password), "{password}")
	return b.build()
}

func buildAuthenticate(mechanism string) command {
	return newCommandBuilder("AUTHENTICATE").arg(mechanism).build()
}

func buildStartTLS() command { return newCommandBuilder("STARTTLS").build() }

func verbFor(uidMode bool, verb string) string {
	if uidMode {
		return "UID " + verb
	}
	return verb
}
