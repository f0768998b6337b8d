package imap

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
)

// startFakeIMAPServer listens on loopback and hands each accepted
// connection to the next handler in order, letting a test script a
// multi-connection exchange (one per Connect call a Store makes).
func startFakeIMAPServer(t *testing.T, handlers ...func(t *testing.T, conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for _, h := range handlers {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(h func(*testing.T, net.Conn), conn net.Conn) {
				defer conn.Close()
				h(t, conn)
			}(h, conn)
		}
	}()
	return ln.Addr().String()
}

func greet(conn net.Conn) {
	conn.Write([]byte("* OK [CAPABILITY IMAP4rev1] ready\r\n"))
}

func TestStoreNewStoreReadsGreeting(t *testing.T) {
	addr := startFakeIMAPServer(t, func(t *testing.T, conn net.Conn) {
		greet(conn)
	})

	store, err := NewStore(context.Background(), StoreOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.conn().State() != StateNonAuthenticated {
		t.Errorf("state = %v, want StateNonAuthenticated", store.conn().State())
	}
}

func TestStoreListFolders(t *testing.T) {
	addr := startFakeIMAPServer(t, func(t *testing.T, conn net.Conn) {
		greet(conn)
		r := bufio.NewReader(conn)

		line := readLine(t, r)
		if line != `A001 LIST "" ""` {
			t.Errorf("server saw %q, want the hierarchy-separator probe", line)
		}
		conn.Write([]byte("* LIST (\\Noselect) \"/\" \"\"\r\nA001 OK Completed\r\n"))

		line = readLine(t, r)
		if !strings.HasPrefix(line, `A002 LIST "" `) {
			t.Errorf("server saw %q, want an A002 LIST", line)
		}
		conn.Write([]byte(
			"* LIST (\\HasNoChildren) \"/\" INBOX\r\n" +
				"* LIST (\\HasNoChildren \\Sent) \"/\" Sent\r\n" +
				"A002 OK Completed\r\n"))
	})

	store, err := NewStore(context.Background(), StoreOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	folders, err := store.ListFolders(context.Background(), "", "*")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("got %d folders, want 2: %+v", folders, folders)
	}
	if folders[0].Path != "INBOX" || folders[1].Path != "Sent" {
		t.Errorf("paths = %q, %q", folders[0].Path, folders[1].Path)
	}
	if folders[1].Attrs.SpecialUse != UseSent {
		t.Errorf("Sent folder should derive UseSent, got %v", folders[1].Attrs.SpecialUse)
	}
}

func TestStoreFolderReturnsSameHandleForSamePath(t *testing.T) {
	addr := startFakeIMAPServer(t, func(t *testing.T, conn net.Conn) {
		greet(conn)
		r := bufio.NewReader(conn)
		readLine(t, r) // LIST "" ""
		conn.Write([]byte("* LIST (\\Noselect) \"/\" \"\"\r\nA001 OK Completed\r\n"))
	})

	store, err := NewStore(context.Background(), StoreOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	f1, err := store.Folder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("Folder: %v", err)
	}
	f2, err := store.Folder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("Folder (again): %v", err)
	}
	if f1 != f2 {
		t.Error("Folder should return the cached handle for a repeated path")
	}
}

func TestStoreFolderRejectsEmptyPath(t *testing.T) {
	addr := startFakeIMAPServer(t, func(t *testing.T, conn net.Conn) { greet(conn) })
	store, err := NewStore(context.Background(), StoreOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Folder(context.Background(), ""); err == nil {
		t.Error("expected an error for an empty folder path")
	}
}
