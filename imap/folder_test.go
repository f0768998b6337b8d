package imap

import (
	"bufio"
	"context"
	"net"
	"testing"

	"github.com/eslider/mailkit/imap/imapwire"
	"github.com/eslider/mailkit/imap/msgset"
)

func TestFolderOpenSelectsAndRecordsStatus(t *testing.T) {
	addr := startFakeIMAPServer(t,
		func(t *testing.T, conn net.Conn) { // Store's default connection
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r) // LIST "" "" (hierarchy separator probe)
			conn.Write([]byte("* LIST (\\Noselect) \"/\" \"\"\r\nA001 OK Completed\r\n"))
		},
		func(t *testing.T, conn net.Conn) { // Folder's dedicated connection
			greet(conn)
			r := bufio.NewReader(conn)
			line := readLine(t, r)
			if line != "A001 SELECT INBOX" {
				t.Errorf("server saw %q, want A001 SELECT INBOX", line)
			}
			conn.Write([]byte(
				"* 3 EXISTS\r\n" +
					"* 0 RECENT\r\n" +
					"* OK [UIDVALIDITY 7] UIDs valid\r\n" +
					"* OK [UIDNEXT 9] Predicted\r\n" +
					"A001 OK [READ-WRITE] SELECT completed\r\n"))
		},
	)

	store, err := NewStore(context.Background(), StoreOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	f, err := store.Folder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("Folder: %v", err)
	}

	if err := f.Open(context.Background(), true, true); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.State() != FolderOpenRW {
		t.Errorf("state = %v, want FolderOpenRW", f.State())
	}
	st := f.Status()
	if st.MessageCount != 3 || st.UIDValidity != 7 || st.UIDNext != 9 {
		t.Errorf("status = %+v", st)
	}
}

func TestFolderOpenFailsWhenRWRequiredButServerGivesReadOnly(t *testing.T) {
	addr := startFakeIMAPServer(t,
		func(t *testing.T, conn net.Conn) {
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r)
			conn.Write([]byte("* LIST (\\Noselect) \"/\" \"\"\r\nA001 OK Completed\r\n"))
		},
		func(t *testing.T, conn net.Conn) {
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r)
			conn.Write([]byte("* 1 EXISTS\r\nA001 OK [READ-ONLY] SELECT completed\r\n"))
		},
	)

	store, err := NewStore(context.Background(), StoreOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	f, err := store.Folder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("Folder: %v", err)
	}

	err = f.Open(context.Background(), true, true)
	if err == nil {
		t.Fatal("expected an error when RW is required but the server grants READ-ONLY")
	}
	if f.State() != FolderClosed {
		t.Errorf("state = %v, want FolderClosed after a failed RW open", f.State())
	}
}

func TestFolderOpenTwiceFails(t *testing.T) {
	addr := startFakeIMAPServer(t,
		func(t *testing.T, conn net.Conn) {
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r)
			conn.Write([]byte("* LIST (\\Noselect) \"/\" \"\"\r\nA001 OK Completed\r\n"))
		},
		func(t *testing.T, conn net.Conn) {
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r)
			conn.Write([]byte("* 0 EXISTS\r\nA001 OK [READ-WRITE] SELECT completed\r\n"))
		},
	)

	store, err := NewStore(context.Background(), StoreOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	f, err := store.Folder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("Folder: %v", err)
	}
	if err := f.Open(context.Background(), true, false); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Open(context.Background(), true, false); err == nil {
		t.Error("expected an error opening an already-open folder")
	}
}

func TestFolderGetMessagesByNumberDoesNotTouchTheWire(t *testing.T) {
	addr := startFakeIMAPServer(t,
		func(t *testing.T, conn net.Conn) {
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r)
			conn.Write([]byte("* LIST (\\Noselect) \"/\" \"\"\r\nA001 OK Completed\r\n"))
		},
		func(t *testing.T, conn net.Conn) {
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r) // SELECT
			conn.Write([]byte("* 2 EXISTS\r\nA001 OK [READ-WRITE] SELECT completed\r\n"))
			// No further command is expected: a number-set GetMessages
			// call is purely local bookkeeping.
		},
	)

	store, _ := NewStore(context.Background(), StoreOptions{Addr: addr})
	f, _ := store.Folder(context.Background(), "INBOX")
	if err := f.Open(context.Background(), true, false); err != nil {
		t.Fatalf("Open: %v", err)
	}

	set := msgset.Empty()
	set.AddNumber(1)
	set.AddNumber(2)
	msgs, err := f.GetMessages(context.Background(), set)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Number() != 1 || msgs[1].Number() != 2 {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestFolderCloseSendsCloseOnlyWhenExpungingRW(t *testing.T) {
	addr := startFakeIMAPServer(t,
		func(t *testing.T, conn net.Conn) {
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r)
			conn.Write([]byte("* LIST (\\Noselect) \"/\" \"\"\r\nA001 OK Completed\r\n"))
		},
		func(t *testing.T, conn net.Conn) {
			greet(conn)
			r := bufio.NewReader(conn)
			readLine(t, r) // SELECT
			conn.Write([]byte("* 1 EXISTS\r\nA001 OK [READ-WRITE] SELECT completed\r\n"))
			line := readLine(t, r) // CLOSE
			if line != "A002 CLOSE" {
				t.Errorf("server saw %q, want A002 CLOSE", line)
			}
			conn.Write([]byte("A002 OK Completed\r\n"))
		},
	)

	store, _ := NewStore(context.Background(), StoreOptions{Addr: addr})
	f, _ := store.Folder(context.Background(), "INBOX")
	if err := f.Open(context.Background(), true, false); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Close(context.Background(), true); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.State() != FolderClosed {
		t.Errorf("state = %v, want FolderClosed", f.State())
	}
}

func TestFolderCreateRejectsInboxAndRoot(t *testing.T) {
	f := &Folder{path: "INBOX"}
	if err := f.Create(context.Background(), ""); err == nil {
		t.Error("expected an error creating INBOX")
	}
	f2 := &Folder{path: ""}
	if err := f2.Destroy(context.Background()); err == nil {
		t.Error("expected an error destroying the root path")
	}
	if err := f2.Rename(context.Background(), "x"); err == nil {
		t.Error("expected an error renaming the root path")
	}
}

func TestFolderRequireOpenAndRequireRW(t *testing.T) {
	f := &Folder{path: "INBOX", state: FolderClosed}
	if err := f.requireOpen(); err == nil {
		t.Error("requireOpen should fail on a closed folder")
	}
	if err := f.requireRW(); err == nil {
		t.Error("requireRW should fail on a closed folder")
	}

	f.state = FolderOpenRO
	if err := f.requireOpen(); err != nil {
		t.Errorf("requireOpen should pass when open read-only: %v", err)
	}
	if err := f.requireRW(); err == nil {
		t.Error("requireRW should fail when only open read-only")
	}

	f.state = FolderOpenRW
	if err := f.requireRW(); err != nil {
		t.Errorf("requireRW should pass when open read-write: %v", err)
	}
}

func TestParseAppendUIDAndCopyUID(t *testing.T) {
	if s := parseAppendUID(nil); s != nil {
		t.Error("nil code should yield a nil set")
	}

	code := &imapwire.RespTextCode{Name: "APPENDUID", Args: []string{"7", "42"}}
	s := parseAppendUID(code)
	if s == nil {
		t.Fatal("expected a parsed APPENDUID set")
	}
	if !s.IsUIDSet() || s.Sequence() != "42" {
		t.Errorf("parsed set = %+v (%q), want a UID-set of 42", s, s.Sequence())
	}

	if s := parseCopyUID(nil); s != nil {
		t.Error("nil code should yield a nil set for COPYUID too")
	}
	cc := &imapwire.RespTextCode{Name: "COPYUID", Args: []string{"7", "1:2", "10:11"}}
	parsed := parseCopyUID(cc)
	if parsed == nil || parsed.Sequence() != "10:11" {
		t.Errorf("parsed COPYUID set = %v, want 10:11", parsed)
	}
}
