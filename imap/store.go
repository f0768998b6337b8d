package imap

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailkit/imap/imapauth"
	"github.com/eslider/mailkit/imap/utf7"
)

// StoreOptions configures a Store's shared connection.
type StoreOptions struct {
	Addr   string
	Dial   DialOptions
	Auth   imapauth.Authenticator
	Events EventSink
}

// Store holds a pool of Folder handles sharing one "default"
// connection used for unselected work (LIST, STATUS, CREATE, ...); a
// Folder acquires its own Connection when opened.
type Store struct {
	mu sync.Mutex

	opts        StoreOptions
	defaultConn *Connection
	folders     map[string]*Folder
}

// NewStore dials the shared connection and authenticates it.
func NewStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	conn, err := Connect(ctx, opts.Addr, opts.Dial)
	if err != nil {
		return nil, err
	}
	if opts.Auth != nil {
		if err := conn.Authenticate(ctx, opts.Auth); err != nil {
			conn.Close()
			return nil, err
		}
		if err := conn.RefreshCapabilities(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return &Store{opts: opts, defaultConn: conn, folders: map[string]*Folder{}}, nil
}

func (s *Store) conn() *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultConn
}

// dialFolderConn opens and authenticates a fresh Connection dedicated
// to one Folder's selected-state commands.
func (s *Store) dialFolderConn(ctx context.Context) (*Connection, error) {
	conn, err := Connect(ctx, s.opts.Addr, s.opts.Dial)
	if err != nil {
		return nil, err
	}
	if s.opts.Auth != nil {
		if err := conn.Authenticate(ctx, s.opts.Auth); err != nil {
			conn.Close()
			return nil, err
		}
		if err := conn.RefreshCapabilities(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// Folder returns (creating if necessary) the handle for path. Folders
// sharing a path receive duplicated events.
func (s *Store) Folder(ctx context.Context, path string) (*Folder, error) {
	if path == "" {
		return nil, eris.Wrapf(ErrInvalidFolderName, "imap: empty folder path")
	}
	s.mu.Lock()
	if f, ok := s.folders[path]; ok {
		s.mu.Unlock()
		return f, nil
	}
	conn := s.defaultConn
	s.mu.Unlock()

	sep, err := conn.HierarchySeparator(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[path]; ok {
		return f, nil
	}
	f := &Folder{store: s, path: path, sep: sep, sink: s.opts.Events}
	s.folders[path] = f
	return f, nil
}

// ListedFolder is one mailbox reported by ListFolders.
type ListedFolder struct {
	Path  string
	Attrs FolderAttributes
}

// ListFolders runs LIST refPath pattern on the shared connection and
// returns every matching mailbox with its derived attributes.
func (s *Store) ListFolders(ctx context.Context, refPath, pattern string) ([]ListedFolder, error) {
	conn := s.conn()
	sep, err := conn.HierarchySeparator(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := conn.exchange(ctx, buildList("LIST", refPath, pattern, sep))
	if err != nil {
		return nil, err
	}
	children := conn.HasCapability("CHILDREN")
	var out []ListedFolder
	for _, u := range resp.Untagged {
		if u.Kind != "LIST" {
			continue
		}
		path := u.Mailbox
		if decoded, err := utf7.Decode(path); err == nil {
			path = decoded
		}
		out = append(out, ListedFolder{
			Path:  path,
			Attrs: deriveFolderAttributes(u.MailboxFlags, children),
		})
	}
	return out, nil
}

// cascadeRename updates the path of every handle whose path has
// oldPath as a prefix, emitting a FolderRenamed event per affected
// handle.
func (s *Store) cascadeRename(oldPath, newPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, f := range s.folders {
		if path != oldPath && !strings.HasPrefix(path, oldPath+string(f.sep)) {
			continue
		}
		renamed := newPath + strings.TrimPrefix(path, oldPath)
		delete(s.folders, path)
		prev := f.path
		f.path = renamed
		s.folders[renamed] = f
		f.sink.folder(FolderEvent{Kind: FolderRenamed, OldPath: prev, NewPath: renamed})
	}
}

// Disconnect logs out the shared connection and notifies every folder
// handle, which drops its store back reference.
func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	folders := make([]*Folder, 0, len(s.folders))
	for _, f := range s.folders {
		folders = append(folders, f)
	}
	conn := s.defaultConn
	s.defaultConn = nil
	s.mu.Unlock()

	for _, f := range folders {
		if f.state != FolderClosed {
			f.Close(ctx, false)
		}
		f.store = nil
	}
	if conn == nil {
		return nil
	}
	return conn.Logout(ctx)
}
