package imap

import (
	"testing"

	"github.com/eslider/mailkit/imap/imapwire"
)

func newTestFolder() *Folder {
	return &Folder{
		path:    "INBOX",
		sep:     '/',
		byUID:   map[uint32]*Message{},
		sink:    EventSink{},
	}
}

func TestApplyUntaggedExistsGrowthEmitsAdded(t *testing.T) {
	f := newTestFolder()
	f.status.MessageCount = 3

	var addedEvents []MessageCountEvent
	f.sink = EventSink{OnMessageCount: func(e MessageCountEvent) { addedEvents = append(addedEvents, e) }}

	f.applyUntagged([]*imapwire.Untagged{{Kind: "EXISTS", Number: 5}})

	if f.status.MessageCount != 5 {
		t.Errorf("MessageCount = %d, want 5", f.status.MessageCount)
	}
	if len(addedEvents) != 1 || len(addedEvents[0].Numbers) != 2 {
		t.Fatalf("expected one added-event with 2 numbers, got %+v", addedEvents)
	}
	if addedEvents[0].Numbers[0] != 4 || addedEvents[0].Numbers[1] != 5 {
		t.Errorf("added numbers = %v, want [4 5]", addedEvents[0].Numbers)
	}
}

func TestApplyUntaggedRecentAndStatus(t *testing.T) {
	f := newTestFolder()
	f.applyUntagged([]*imapwire.Untagged{
		{Kind: "RECENT", Number: 2},
		{Kind: "STATUS", StatusAttrs: map[string]uint64{"MESSAGES": 10, "UNSEEN": 4}},
	})
	if f.status.Recent != 2 {
		t.Errorf("Recent = %d, want 2", f.status.Recent)
	}
	if f.status.MessageCount != 10 || f.status.Unseen != 4 {
		t.Errorf("status = %+v", f.status)
	}
}

func TestApplyUntaggedExpungeRenumbersAndRemovesUID(t *testing.T) {
	f := newTestFolder()
	f.status.MessageCount = 3
	m1 := &Message{folder: f, number: 1, uid: 101, hasUID: true}
	m2 := &Message{folder: f, number: 2, uid: 102, hasUID: true}
	m3 := &Message{folder: f, number: 3, uid: 103, hasUID: true}
	f.messages = []*Message{m1, m2, m3}
	f.byUID[101] = m1
	f.byUID[102] = m2
	f.byUID[103] = m3

	var removed []MessageCountEvent
	f.sink = EventSink{OnMessageCount: func(e MessageCountEvent) { removed = append(removed, e) }}

	f.applyUntagged([]*imapwire.Untagged{{Kind: "EXPUNGE", Number: 2}})

	if !m2.expunged {
		t.Errorf("message 2 should be marked expunged")
	}
	if _, ok := f.byUID[102]; ok {
		t.Errorf("expunged message's UID should be dropped from byUID")
	}
	if m3.number != 2 {
		t.Errorf("message after the expunged slot should renumber to 2, got %d", m3.number)
	}
	if m1.number != 1 {
		t.Errorf("message before the expunged slot should keep its number, got %d", m1.number)
	}
	if f.status.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", f.status.MessageCount)
	}
	if len(removed) != 1 || removed[0].Numbers[0] != 2 {
		t.Errorf("expected one removed-event for number 2, got %+v", removed)
	}
}

func TestApplyRespTextCodeParsesKnownCodes(t *testing.T) {
	f := newTestFolder()
	f.applyRespTextCode(&imapwire.RespTextCode{Name: "UIDVALIDITY", Args: []string{"12345"}})
	f.applyRespTextCode(&imapwire.RespTextCode{Name: "UIDNEXT", Args: []string{"42"}})
	f.applyRespTextCode(&imapwire.RespTextCode{Name: "HIGHESTMODSEQ", Args: []string{"999"}})

	if f.status.UIDValidity != 12345 || f.status.UIDNext != 42 || f.status.HighestModSeq != 999 {
		t.Errorf("status = %+v", f.status)
	}
}

func TestApplyRespTextCodeNoModSeqClearsHighestModSeq(t *testing.T) {
	f := newTestFolder()
	f.status.HighestModSeq = 500
	f.applyRespTextCode(&imapwire.RespTextCode{Name: "NOMODSEQ"})

	if !f.noModSeq {
		t.Errorf("noModSeq should be set")
	}
	if f.status.HighestModSeq != 0 {
		t.Errorf("HighestModSeq should reset to 0, got %d", f.status.HighestModSeq)
	}
}

func TestApplyRespTextCodeNilIsNoop(t *testing.T) {
	f := newTestFolder()
	f.applyRespTextCode(nil) // must not panic
}

func TestApplyFetchBindsUIDAndFlagsAndEmitsChangeOnlyWhenDifferent(t *testing.T) {
	f := newTestFolder()

	var changes []MessageChangedEvent
	f.sink = EventSink{OnMessageChanged: func(e MessageChangedEvent) { changes = append(changes, e) }}

	f.applyUntagged([]*imapwire.Untagged{{
		Kind:   "FETCH",
		Number: 1,
		Fetch:  &imapwire.FetchData{HasUID: true, UID: 55, HasFlags: true, Flags: []string{`\Seen`}},
	}})

	m := f.messageAt(1)
	uid, ok := m.UID()
	if !ok || uid != 55 {
		t.Fatalf("UID not bound: %v %v", uid, ok)
	}
	if m.flags != FlagSeen {
		t.Errorf("flags = %v, want FlagSeen", m.flags)
	}
	if len(changes) != 1 {
		t.Fatalf("expected one changed event on first flags fetch, got %d", len(changes))
	}

	// Re-applying the same flags must not emit a second changed event.
	f.applyUntagged([]*imapwire.Untagged{{
		Kind:   "FETCH",
		Number: 1,
		Fetch:  &imapwire.FetchData{HasFlags: true, Flags: []string{`\Seen`}},
	}})
	if len(changes) != 1 {
		t.Errorf("unchanged flags should not emit a new event, got %d total", len(changes))
	}
}

func TestApplyStatusAttrsMissingKeysLeaveFieldsUntouched(t *testing.T) {
	s := FolderStatus{MessageCount: 7, UIDNext: 100}
	applyStatusAttrs(&s, map[string]uint64{"UNSEEN": 2})
	if s.MessageCount != 7 || s.UIDNext != 100 {
		t.Errorf("fields absent from attrs must stay unchanged: %+v", s)
	}
	if s.Unseen != 2 {
		t.Errorf("Unseen = %d, want 2", s.Unseen)
	}
}
