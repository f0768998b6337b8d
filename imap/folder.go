package imap

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailkit/imap/imapwire"
	"github.com/eslider/mailkit/imap/msgset"
	"github.com/eslider/mailkit/imap/utf7"
)

// FolderState is a Folder's local open/close state.
type FolderState int

const (
	FolderClosed FolderState = iota
	FolderOpenRO
	FolderOpenRW
)

// FolderType and the FolderAttributes flag bits.
type FolderType int

const (
	ContainsMessages FolderType = iota
	ContainsFolders
)

type FolderFlag int

const (
	FlagHasChildren FolderFlag = 1 << iota
	FlagNoOpen
)

type SpecialUse int

const (
	UseNone SpecialUse = iota
	UseAll
	UseArchive
	UseDrafts
	UseFlagged
	UseJunk
	UseSent
	UseTrash
	UseImportant
)

// FolderAttributes is derived from a LIST/LSUB mailbox-flag-list.
type FolderAttributes struct {
	Type       FolderType
	Flags      FolderFlag
	SpecialUse SpecialUse
}

func deriveFolderAttributes(mailboxFlags []string, childrenCapability bool) FolderAttributes {
	a := FolderAttributes{Type: ContainsMessages}
	if childrenCapability {
		// HAS_CHILDREN stays unset until a flag proves otherwise.
	} else {
		a.Flags |= FlagHasChildren
	}
	for _, f := range mailboxFlags {
		switch strings.ToLower(f) {
		case `\noselect`:
			a.Type = ContainsFolders
			a.Flags |= FlagNoOpen
		case `\noinferiors`, `\hasnochildren`:
			a.Flags &^= FlagHasChildren
		case `\haschildren`:
			a.Flags |= FlagHasChildren
		case `\all`:
			a.SpecialUse = UseAll
		case `\archive`:
			a.SpecialUse = UseArchive
		case `\drafts`:
			a.SpecialUse = UseDrafts
		case `\flagged`:
			a.SpecialUse = UseFlagged
		case `\junk`:
			a.SpecialUse = UseJunk
		case `\sent`:
			a.SpecialUse = UseSent
		case `\trash`:
			a.SpecialUse = UseTrash
		case `\important`:
			a.SpecialUse = UseImportant
		}
	}
	return a
}

// FolderStatus is the monotonically-updated status snapshot.
type FolderStatus struct {
	MessageCount  uint64
	Unseen        uint64
	Recent        uint64
	UIDValidity   uint64
	UIDNext       uint64
	HighestModSeq uint64
}

// Folder is a handle to one mailbox path, owned by a Store.
type Folder struct {
	store *Store // non-owning back reference
	path  string
	sep   byte

	conn  *Connection
	state FolderState
	mode  FolderState // achieved mode while open

	attrs  FolderAttributes
	status FolderStatus

	noModSeq  bool
	condstore bool

	messages []*Message
	byUID    map[uint32]*Message

	sink EventSink
}

// Path returns this folder's path.
func (f *Folder) Path() string { return f.path }

// State returns the folder's local open/close state.
func (f *Folder) State() FolderState { return f.state }

// Status returns the current status snapshot.
func (f *Folder) Status() FolderStatus { return f.status }

// Attributes returns the folder's LIST-derived attributes, if known.
func (f *Folder) Attributes() FolderAttributes { return f.attrs }

// Open opens a fresh connection for this folder and SELECTs (or
// EXAMINEs) it. failIfModeIsNotAvailable enforces RW when
// requested.
func (f *Folder) Open(ctx context.Context, rw, failIfModeIsNotAvailable bool) error {
	if f.state != FolderClosed {
		return eris.Wrapf(ErrFolderAlreadyOpen, "imap: folder %q already open", f.path)
	}
	conn, err := f.store.dialFolderConn(ctx)
	if err != nil {
		return err
	}
	condstore := conn.HasCapability("CONDSTORE")
	cmd := buildSelect(f.path, f.sep, !rw, condstore)
	resp, err := conn.exchange(ctx, cmd)
	if err != nil {
		conn.Close()
		return err
	}
	f.conn = conn
	f.condstore = condstore
	f.messages = nil
	f.byUID = map[uint32]*Message{}
	f.applyUntagged(resp.Untagged)
	f.applyRespTextCode(resp.Done.Code)

	achievedRW := resp.Done.Code != nil && strings.EqualFold(resp.Done.Code.Name, "READ-WRITE")
	achievedRO := resp.Done.Code != nil && strings.EqualFold(resp.Done.Code.Name, "READ-ONLY")
	if rw && achievedRO && failIfModeIsNotAvailable {
		f.conn.Close()
		f.state = FolderClosed
		return eris.Wrapf(ErrNotSupported, "imap: folder %q opened read-only", f.path)
	}
	if rw && !achievedRO {
		f.state = FolderOpenRW
	} else if achievedRW {
		f.state = FolderOpenRW
	} else {
		f.state = FolderOpenRO
	}
	return nil
}

// Close sends CLOSE when expunge is requested on a read-write folder;
// otherwise it simply drops the connection.
func (f *Folder) Close(ctx context.Context, expunge bool) error {
	if f.state == FolderClosed {
		return nil
	}
	var err error
	if expunge && f.state == FolderOpenRW {
		_, err = f.conn.exchange(ctx, buildClose())
	}
	f.conn.Close()
	f.conn = nil
	f.state = FolderClosed
	for _, m := range f.messages {
		m.folder = nil
	}
	f.messages = nil
	f.byUID = nil
	return err
}

func (f *Folder) requireOpen() error {
	if f.state == FolderClosed {
		return eris.Wrapf(ErrIllegalState, "imap: folder %q not open", f.path)
	}
	return nil
}

func (f *Folder) requireRW() error {
	if f.state != FolderOpenRW {
		return eris.Wrapf(ErrIllegalState, "imap: folder %q not open read-write", f.path)
	}
	return nil
}

// Create sends CREATE, quoting the path and appending USE (...) when
// specialUse is non-empty.
func (f *Folder) Create(ctx context.Context, specialUse string) error {
	if f.path == "INBOX" || f.path == "" {
		return eris.Wrapf(ErrInvalidFolderName, "imap: cannot create %q", f.path)
	}
	_, err := f.store.conn().exchange(ctx, buildCreate(f.path, f.sep, specialUse))
	if err == nil {
		f.sink.folder(FolderEvent{Kind: FolderCreated, NewPath: f.path})
	}
	return err
}

// Destroy sends DELETE. INBOX and the root path may not be destroyed.
func (f *Folder) Destroy(ctx context.Context) error {
	if f.path == "INBOX" || f.path == "" {
		return eris.Wrapf(ErrInvalidFolderName, "imap: cannot delete %q", f.path)
	}
	_, err := f.store.conn().exchange(ctx, buildDelete(f.path, f.sep))
	if err == nil {
		f.sink.folder(FolderEvent{Kind: FolderDeleted, OldPath: f.path})
	}
	return err
}

// Rename sends RENAME and cascades the path prefix of every other
// folder handle the Store holds.
func (f *Folder) Rename(ctx context.Context, newPath string) error {
	if f.path == "INBOX" || f.path == "" {
		return eris.Wrapf(ErrInvalidFolderName, "imap: cannot rename %q", f.path)
	}
	_, err := f.store.conn().exchange(ctx, buildRename(f.path, newPath, f.sep))
	if err != nil {
		return err
	}
	f.store.cascadeRename(f.path, newPath)
	return nil
}

// GetMessages builds Message handles for set without fetching
// attributes. A UID set issues UID FETCH set UID to learn the
// sequence numbers.
func (f *Folder) GetMessages(ctx context.Context, set *msgset.Set) ([]*Message, error) {
	if err := f.requireOpen(); err != nil {
		return nil, err
	}
	if set.IsNumberSet() {
		var out []*Message
		for _, n := range set.Numbers() {
			out = append(out, f.messageAt(n))
		}
		return out, nil
	}
	resp, err := f.conn.exchange(ctx, buildUIDFetchUID(set))
	if err != nil {
		return nil, err
	}
	var out []*Message
	for _, u := range resp.Untagged {
		if u.Kind == "FETCH" && u.Fetch != nil && u.Fetch.HasUID {
			m := f.messageAt(u.Number)
			f.bindUID(m, u.Fetch.UID)
			out = append(out, m)
		}
	}
	f.applyUntagged(resp.Untagged)
	return out, nil
}

func (f *Folder) messageAt(number uint32) *Message {
	for _, m := range f.messages {
		if m.number == number {
			return m
		}
	}
	m := &Message{folder: f, number: number}
	f.messages = append(f.messages, m)
	return m
}

func (f *Folder) bindUID(m *Message, uid uint32) {
	m.uid = uid
	m.hasUID = true
	f.byUID[uid] = m
}

// FetchMessages sends one FETCH for msgs with the items derived from
// attribs and applies the responses.
func (f *Folder) FetchMessages(ctx context.Context, msgs []*Message, attribs FetchAttributes, progress func(*Message)) error {
	if err := f.requireOpen(); err != nil {
		return err
	}
	set := msgset.Empty()
	for _, m := range msgs {
		set.AddNumber(m.number)
	}
	items := buildFetchItems(attribs, f.condstore && !f.noModSeq)
	resp, err := f.conn.exchange(ctx, buildFetch(false, set, items))
	if err != nil {
		return err
	}
	f.applyUntagged(resp.Untagged)
	if progress != nil {
		for _, u := range resp.Untagged {
			if u.Kind == "FETCH" {
				if m := f.findByNumber(u.Number); m != nil {
					progress(m)
				}
			}
		}
	}
	return nil
}

func (f *Folder) findByNumber(number uint32) *Message {
	for _, m := range f.messages {
		if m.number == number {
			return m
		}
	}
	return nil
}

// SetMessageFlags emits STORE with the prefix matching mode. Local
// flags are refreshed strictly from the echoed FETCH response, not
// from locally applying mode, so server canonicalization wins.
func (f *Folder) SetMessageFlags(ctx context.Context, set *msgset.Set, flags Flag, mode StoreMode) error {
	if err := f.requireOpen(); err != nil {
		return err
	}
	resp, err := f.conn.exchange(ctx, buildStore(set.IsUIDSet(), set, mode, flagSetToStrings(flags)))
	if err != nil {
		return err
	}
	f.applyUntagged(resp.Untagged)
	return nil
}

// AddMessage emits APPEND, waits for the continuation, streams exactly
// size bytes from body, then reads the tagged done. When
// the server advertises UIDPLUS and returns APPENDUID, the returned
// set identifies the new message.
func (f *Folder) AddMessage(ctx context.Context, body io.Reader, size int, flags Flag, date *time.Time) (*msgset.Set, error) {
	conn := f.store.conn()
	cmd := buildAppend(f.path, f.sep, flagSetToStrings(flags), date, size)
	tag, err := conn.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	resp, err := conn.readResponse(ctx, nil)
	if err != nil {
		return nil, err
	}
	if resp.Continuation == nil {
		return nil, eris.Wrapf(ErrProtocol, "imap: APPEND: server did not request a continuation")
	}
	conn.setWriteDeadline(ctx)
	// Read and send the body at most one socket block at a time.
	buf := make([]byte, conn.conn.BlockSize())
	n, err := io.CopyBuffer(conn.literalWriter(), io.LimitReader(body, int64(size)), buf)
	if err == nil && n < int64(size) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, conn.poison(eris.Wrapf(err, "imap: APPEND: write literal"))
	}
	if _, err := conn.literalWriter().Write([]byte("\r\n")); err != nil {
		return nil, conn.poison(eris.Wrapf(err, "imap: APPEND: write trailing CRLF"))
	}
	final := &imapwire.Response{}
	for {
		resp, err := conn.readResponse(ctx, nil)
		if err != nil {
			return nil, err
		}
		final.Untagged = append(final.Untagged, resp.Untagged...)
		if resp.Done != nil {
			if resp.Done.Tag != tag {
				return nil, conn.poison(eris.Wrapf(ErrProtocol, "imap: tag mismatch on APPEND"))
			}
			if resp.Done.Status != "OK" {
				return nil, newCommandError("APPEND", resp.Done.Status, resp.Done.Text)
			}
			return parseAppendUID(resp.Done.Code), nil
		}
	}
}

func parseAppendUID(code *imapwire.RespTextCode) *msgset.Set {
	if code == nil || !strings.EqualFold(code.Name, "APPENDUID") || len(code.Args) < 2 {
		return nil
	}
	uid, err := strconv.ParseUint(code.Args[1], 10, 32)
	if err != nil {
		return nil
	}
	return msgset.ByUID(uint32(uid))
}

// CopyMessages emits (UID) COPY; when the server returns COPYUID, the
// returned set identifies the new UIDs in dest.
func (f *Folder) CopyMessages(ctx context.Context, set *msgset.Set, dest string) (*msgset.Set, error) {
	if err := f.requireOpen(); err != nil {
		return nil, err
	}
	resp, err := f.conn.exchange(ctx, buildCopy(set.IsUIDSet(), set, dest, f.sep))
	if err != nil {
		return nil, err
	}
	f.applyUntagged(resp.Untagged)
	return parseCopyUID(resp.Done.Code), nil
}

func parseCopyUID(code *imapwire.RespTextCode) *msgset.Set {
	if code == nil || !strings.EqualFold(code.Name, "COPYUID") || len(code.Args) < 3 {
		return nil
	}
	s, err := msgset.Parse(msgset.KindUID, code.Args[2])
	if err != nil {
		return nil
	}
	return s
}

// Expunge emits EXPUNGE; applyUntagged handles the renumbering.
func (f *Folder) Expunge(ctx context.Context) error {
	if err := f.requireRW(); err != nil {
		return err
	}
	resp, err := f.conn.exchange(ctx, buildExpunge())
	if err != nil {
		return err
	}
	f.applyUntagged(resp.Untagged)
	return nil
}

// StatusSnapshot emits STATUS and returns a freshly populated snapshot
// without mutating this folder's own Status.
func (f *Folder) StatusSnapshot(ctx context.Context) (FolderStatus, error) {
	items := []string{"MESSAGES", "UNSEEN", "UIDNEXT", "UIDVALIDITY"}
	if f.store.defaultConn != nil && f.store.defaultConn.HasCapability("CONDSTORE") {
		items = append(items, "HIGHESTMODSEQ")
	}
	resp, err := f.store.conn().exchange(ctx, buildStatus(f.path, f.sep, items))
	if err != nil {
		return FolderStatus{}, err
	}
	wantMailbox, err := utf7.Decode(utf7.Encode(f.path, f.sep))
	if err != nil {
		wantMailbox = f.path
	}
	var snap FolderStatus
	for _, u := range resp.Untagged {
		if u.Kind == "STATUS" && strings.EqualFold(u.Mailbox, wantMailbox) {
			applyStatusAttrs(&snap, u.StatusAttrs)
		}
	}
	return snap, nil
}

func applyStatusAttrs(s *FolderStatus, attrs map[string]uint64) {
	if v, ok := attrs["MESSAGES"]; ok {
		s.MessageCount = v
	}
	if v, ok := attrs["UNSEEN"]; ok {
		s.Unseen = v
	}
	if v, ok := attrs["UIDNEXT"]; ok {
		s.UIDNext = v
	}
	if v, ok := attrs["UIDVALIDITY"]; ok {
		s.UIDValidity = v
	}
	if v, ok := attrs["HIGHESTMODSEQ"]; ok {
		s.HighestModSeq = v
	}
}

// Noop emits NOOP and drains any unsolicited updates.
func (f *Folder) Noop(ctx context.Context) error {
	if err := f.requireOpen(); err != nil {
		return err
	}
	resp, err := f.conn.exchange(ctx, buildNoop())
	if err != nil {
		return err
	}
	f.applyUntagged(resp.Untagged)
	return nil
}

// GetMessageNumbersStartingOnUID emits SEARCH UID uid:*.
func (f *Folder) GetMessageNumbersStartingOnUID(ctx context.Context, uid uint32) ([]uint32, error) {
	if err := f.requireOpen(); err != nil {
		return nil, err
	}
	keys := "UID " + strconv.FormatUint(uint64(uid), 10) + ":" + "*"
	resp, err := f.conn.exchange(ctx, buildSearch(false, "", keys))
	if err != nil {
		return nil, err
	}
	f.applyUntagged(resp.Untagged)
	for _, u := range resp.Untagged {
		if u.Kind == "SEARCH" {
			return u.SearchNumbers, nil
		}
	}
	return nil, nil
}

func (f *Folder) fetchOneSection(ctx context.Context, m *Message, item string, sink imapwire.LiteralTarget, progress imapwire.ProgressFunc) ([]byte, error) {
	if err := f.requireOpen(); err != nil {
		return nil, err
	}
	set := msgset.ByNumber(m.number)
	lh := sectionLiteralHandler{target: sink, progress: progress}
	resp, err := f.conn.exchangeWithLiteral(ctx, buildFetch(false, set, item), lh)
	if err != nil {
		return nil, err
	}
	f.applyUntagged(resp.Untagged)
	for _, u := range resp.Untagged {
		if u.Kind == "FETCH" && u.Number == m.number && u.Fetch != nil && len(u.Fetch.Sections) > 0 {
			return u.Fetch.Sections[0].Data, nil
		}
	}
	return nil, nil
}

type sectionLiteralHandler struct {
	target   imapwire.LiteralTarget
	progress imapwire.ProgressFunc
}

func (h sectionLiteralHandler) TargetFor(component string, n int) (imapwire.LiteralTarget, imapwire.ProgressFunc) {
	return h.target, h.progress
}
