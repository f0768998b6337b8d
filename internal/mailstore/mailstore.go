// Package mailstore adapts the demo app's blob store into the
// literal-sink and message-source contracts the imap engine streams
// FETCH and APPEND bodies through.
package mailstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/eslider/mailkit/internal/storage"
)

// Store writes fetched literals and reads APPEND sources through a
// storage.BlobStore keyed by account/folder/message.
type Store struct {
	blobs storage.BlobStore
}

// New wraps an existing BlobStore.
func New(blobs storage.BlobStore) *Store {
	return &Store{blobs: blobs}
}

// Key returns the blob key a message's raw body is stored under.
func Key(accountID, folderPath string, uid uint32) string {
	return fmt.Sprintf("%s/%s/%d.eml", accountID, folderPath, uid)
}

// Sink is an imapwire.LiteralTarget that buffers a streamed literal in
// memory, then persists it to the blob store on Close. Used as the
// target handed back from a LiteralHandler.TargetFor call for a
// BODY[]/RFC822 fetch item so the engine never buffers the whole
// message inside the response tree.
type Sink struct {
	store *Store
	key   string
	buf   bytes.Buffer
}

// NewSink returns a Sink that will persist under key once Close runs.
func (s *Store) NewSink(key string) *Sink {
	return &Sink{store: s, key: key}
}

func (s *Sink) Write(p []byte) (int, error) { return s.buf.Write(p) }

// Close flushes the buffered literal to the blob store.
func (s *Sink) Close(ctx context.Context) error {
	return s.store.blobs.Write(ctx, s.key, s.buf.Bytes())
}

// Bytes returns what has been written so far, without flushing.
func (s *Sink) Bytes() []byte { return s.buf.Bytes() }

// Source implements message.MessageGenerator by reading a previously
// stored raw message back out for APPEND (e.g. copying a message
// between accounts that do not share a server).
type Source struct {
	ctx   context.Context
	store *Store
	key   string
}

// NewSource returns a MessageGenerator that reads key from the store
// under ctx.
func (s *Store) NewSource(ctx context.Context, key string) *Source {
	return &Source{ctx: ctx, store: s, key: key}
}

// Generate satisfies message.MessageGenerator.
func (src *Source) Generate() (io.Reader, int64, error) {
	data, err := src.store.blobs.Read(src.ctx, src.key)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
