package imap

import (
	"strconv"
	"strings"

	"github.com/eslider/mailkit/imap/imapwire"
)

// applyUntagged drains the post-response status-update pass:
// resp-text-codes, EXISTS/RECENT/STATUS/LIST counts and
// attributes, FETCH application, and EXPUNGE renumbering.
func (f *Folder) applyUntagged(items []*imapwire.Untagged) {
	preCount := f.status.MessageCount
	var removed []uint32
	var added []uint32

	for _, u := range items {
		f.applyRespTextCode(u.Code)
		switch u.Kind {
		case "FLAGS":
			// Permitted flags list; not recorded on the folder.
		case "EXISTS":
			if uint64(u.Number) > f.status.MessageCount {
				for n := f.status.MessageCount + 1; n <= uint64(u.Number); n++ {
					added = append(added, uint32(n))
				}
			}
			f.status.MessageCount = uint64(u.Number)
		case "RECENT":
			f.status.Recent = uint64(u.Number)
		case "STATUS":
			applyStatusAttrs(&f.status, u.StatusAttrs)
		case "LIST":
			if strings.EqualFold(u.Mailbox, f.path) {
				f.attrs = deriveFolderAttributes(u.MailboxFlags, f.childrenCapability())
			}
		case "FETCH":
			if u.Fetch != nil {
				f.applyFetch(u)
			}
		case "EXPUNGE":
			removed = append(removed, u.Number)
			f.applyExpunge(u.Number)
		}
	}

	if len(removed) > 0 {
		f.sink.count(MessageCountEvent{Kind: MessagesRemoved, Numbers: removed})
	}
	if len(added) > 0 {
		f.sink.count(MessageCountEvent{Kind: MessagesAdded, Numbers: added})
	}
	_ = preCount
}

func (f *Folder) childrenCapability() bool {
	return f.conn != nil && f.conn.HasCapability("CHILDREN")
}

// applyRespTextCode updates folder status from a resp-text-code that
// may appear on either a tagged or untagged line.
func (f *Folder) applyRespTextCode(code *imapwire.RespTextCode) {
	if code == nil {
		return
	}
	switch strings.ToUpper(code.Name) {
	case "UIDVALIDITY":
		if len(code.Args) > 0 {
			if v, err := strconv.ParseUint(code.Args[0], 10, 64); err == nil {
				f.status.UIDValidity = v
			}
		}
	case "UIDNEXT":
		if len(code.Args) > 0 {
			if v, err := strconv.ParseUint(code.Args[0], 10, 64); err == nil {
				f.status.UIDNext = v
			}
		}
	case "HIGHESTMODSEQ":
		if len(code.Args) > 0 {
			if v, err := strconv.ParseUint(code.Args[0], 10, 64); err == nil {
				f.status.HighestModSeq = v
			}
		}
	case "NOMODSEQ":
		f.noModSeq = true
		f.status.HighestModSeq = 0
	case "PERMANENTFLAGS":
		// Not recorded: neither Status nor Attributes() exposes this
		// set, and the core engine does not restrict STORE by it.
	}
}

// applyFetch applies one untagged FETCH's items to the matching
// Message, emitting a FLAGS changed event when the flag set differs.
func (f *Folder) applyFetch(u *imapwire.Untagged) {
	fd := u.Fetch
	m := f.messageAt(u.Number)
	changed := false

	if fd.HasUID {
		f.bindUID(m, fd.UID)
	}
	if fd.HasFlags {
		newFlags := parseFlagSet(fd.Flags)
		if !m.hasFlags || m.flags != newFlags {
			changed = true
		}
		m.flags = newFlags
		m.hasFlags = true
	}
	if fd.HasSize {
		m.size = fd.Size
		m.hasSize = true
	}
	if fd.HasInternalDate {
		m.internalDate = fd.InternalDate
		m.hasInternalDate = true
	}
	if fd.HasModSeq {
		m.modSeq = fd.ModSeq
		m.hasModSeq = true
	}
	if fd.Envelope != nil {
		m.envelope = fd.Envelope
	}
	if fd.BodyStructure != nil {
		m.structure = NewStructure(fd.BodyStructure)
	}

	if changed {
		f.sink.changed(MessageChangedEvent{Numbers: []uint32{m.number}})
	}
}

// applyExpunge renumbers every message with number > n down by one
// and marks the message at n as expunged.
func (f *Folder) applyExpunge(n uint32) {
	for _, m := range f.messages {
		switch {
		case m.number == n:
			m.expunged = true
			if m.hasUID {
				delete(f.byUID, m.uid)
			}
		case m.number > n:
			m.number--
		}
	}
	if f.status.MessageCount > 0 {
		f.status.MessageCount--
	}
}
