// Package imap drives one account's IMAP sync on top of the
// imap engine: connect, walk its folders, pull UIDs not yet recorded
// in the local sync state, and save each message as .eml on disk.
// Messages are NEVER deleted or flagged on the server.
package imap

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	coreimap "github.com/eslider/mailkit/imap"
	"github.com/eslider/mailkit/imap/imapauth"
	"github.com/eslider/mailkit/imap/msgset"
	"github.com/eslider/mailkit/internal/model"
)

// SyncState abstracts the sync state storage (implemented by sync.StateDB).
type SyncState interface {
	IsUIDSynced(accountID, folder, uid string) bool
	MarkUIDSynced(accountID, folder, uid string) error
}

// ProgressFunc is called with human-readable progress updates during sync.
type ProgressFunc func(msg string)

// Sync downloads new emails from an IMAP account.
func Sync(acct model.EmailAccount, emailDir string, state SyncState) (int, error) {
	return SyncWithContext(context.Background(), acct, emailDir, state, nil)
}

// SyncWithContext downloads new emails with cancellation and progress
// reporting, driving the engine's Store/Folder/Message API instead of
// talking wire protocol directly.
func SyncWithContext(ctx context.Context, acct model.EmailAccount, emailDir string, state SyncState, onProgress ProgressFunc) (int, error) {
	if onProgress == nil {
		onProgress = func(string) {}
	}

	addr := net.JoinHostPort(acct.Host, fmt.Sprintf("%d", acct.Port))
	log.Printf("IMAP: connecting to %s as %s", addr, acct.Email)
	onProgress("connecting to " + acct.Host)

	store, err := coreimap.NewStore(ctx, coreimap.StoreOptions{
		Addr: addr,
		Dial: coreimap.DialOptions{
			TLS:     acct.SSL,
			TLSConf: &tls.Config{ServerName: acct.Host},
			Timeout: coreimap.FixedTimeout{Timeout: 2 * time.Minute},
		},
		Auth: imapauth.Login{User: acct.Email, Password: acct.Password},
	})
	if err != nil {
		return 0, fmt.Errorf("imap connect %s: %w", addr, err)
	}
	defer store.Disconnect(ctx)
	log.Printf("IMAP: logged in to %s", acct.Host)
	onProgress("logged in, listing folders")

	folders, err := listFolders(ctx, store, acct.Folders)
	if err != nil {
		return 0, fmt.Errorf("list folders: %w", err)
	}
	log.Printf("IMAP: %d folders to sync", len(folders))

	totalNew := 0
	for fi, folderName := range folders {
		select {
		case <-ctx.Done():
			log.Printf("IMAP: sync cancelled for %s after %d folders, %d messages", acct.Email, fi, totalNew)
			return totalNew, ctx.Err()
		default:
		}

		onProgress(fmt.Sprintf("folder %d/%d: %s", fi+1, len(folders), folderName))
		n, err := syncFolderWithContext(ctx, store, acct, folderName, emailDir, state)
		if err != nil {
			if ctx.Err() != nil {
				return totalNew, ctx.Err()
			}
			log.Printf("WARN: IMAP folder %q: %v", folderName, err)
			continue
		}
		totalNew += n
	}

	log.Printf("IMAP: %s downloaded %d new messages", acct.Email, totalNew)
	return totalNew, nil
}

const fetchBatchSize = 50

// listFolders returns the folder names to sync: the configured list,
// or every selectable mailbox when acct.Folders is "all".
func listFolders(ctx context.Context, store *coreimap.Store, foldersCfg string) ([]string, error) {
	if foldersCfg != "all" {
		return strings.Split(foldersCfg, ","), nil
	}
	listed, err := store.ListFolders(ctx, "", "*")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, lf := range listed {
		if lf.Attrs.Flags&coreimap.FlagNoOpen != 0 {
			continue
		}
		names = append(names, lf.Path)
	}
	return names, nil
}

func syncFolderWithContext(ctx context.Context, store *coreimap.Store, acct model.EmailAccount, folderName, emailDir string, state SyncState) (int, error) {
	folderPath := imapFolderToPath(folderName)
	dir := filepath.Join(emailDir, folderPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	f, err := store.Folder(ctx, folderName)
	if err != nil {
		return 0, err
	}
	if err := f.Open(ctx, false, false); err != nil {
		return 0, err
	}
	defer f.Close(ctx, false)

	status, err := f.StatusSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	if status.MessageCount == 0 {
		return 0, nil
	}

	all := msgset.ByNumber(1, uint32(status.MessageCount))
	msgs, err := f.GetMessages(ctx, all)
	if err != nil {
		return 0, err
	}
	if err := f.FetchMessages(ctx, msgs, coreimap.FetchAttributes{Attrs: coreimap.FetchUID}, nil); err != nil {
		return 0, err
	}

	var toFetch []*coreimap.Message
	for _, m := range msgs {
		uid, ok := m.UID()
		if !ok {
			toFetch = append(toFetch, m)
			continue
		}
		if !state.IsUIDSynced(acct.ID, folderName, fmt.Sprintf("%d", uid)) {
			toFetch = append(toFetch, m)
		}
	}
	if len(toFetch) == 0 {
		return 0, nil
	}
	log.Printf("IMAP: folder %q: %d new of %d total", folderName, len(toFetch), len(msgs))

	newCount := 0
	for i := 0; i < len(toFetch); i += fetchBatchSize {
		select {
		case <-ctx.Done():
			return newCount, ctx.Err()
		default:
		}
		end := i + fetchBatchSize
		if end > len(toFetch) {
			end = len(toFetch)
		}
		for _, m := range toFetch[i:end] {
			raw, err := m.Extract(ctx, coreimap.ExtractOptions{Peek: true})
			if err != nil {
				log.Printf("WARN: fetch message %d: %v", m.Number(), err)
				continue
			}
			uid, _ := m.UID()
			if saveEmail(dir, uid, raw, acct.ID, folderName, state) {
				newCount++
			}
		}
	}
	return newCount, nil
}

func saveEmail(dir string, uid uint32, raw []byte, accountID, folder string, state SyncState) bool {
	if len(raw) == 0 {
		return false
	}
	checksum := contentChecksum(raw)
	filename := fmt.Sprintf("%s-%d.eml", checksum, uid)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		log.Printf("WARN: write %s: %v", path, err)
		return false
	}

	setFileMtime(path, raw)
	state.MarkUIDSynced(accountID, folder, fmt.Sprintf("%d", uid))
	return true
}

// contentChecksum returns the first 16 hex chars of SHA-256.
func contentChecksum(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// setFileMtime sets the file's modification time from the email Date header.
func setFileMtime(path string, raw []byte) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return
	}
	date, _ := msg.Header.Date()
	if date.IsZero() {
		date = parseDateFuzzy(msg.Header.Get("Date"))
	}
	if date.IsZero() {
		date = parseReceivedDate(msg.Header)
	}
	if date.IsZero() {
		return
	}
	os.Chtimes(path, date, date)
}

// parseDateFuzzy tries multiple date layouts for non-standard Date headers.
func parseDateFuzzy(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05",
		"2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05",
		time.RFC822Z,
		time.RFC822,
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseReceivedDate extracts the date from the first Received header.
func parseReceivedDate(h mail.Header) time.Time {
	received := h.Get("Received")
	if received == "" {
		return time.Time{}
	}
	idx := strings.LastIndex(received, ";")
	if idx < 0 {
		return time.Time{}
	}
	dateStr := strings.TrimSpace(received[idx+1:])
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
		time.RFC822Z,
		time.RFC822,
	} {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- IMAP folder name to filesystem path mapping ---

var imapFolderMap = map[string]string{
	"inbox":                    "inbox",
	"[gmail]/sent mail":        "gmail/sent",
	"[gmail]/sent":             "gmail/sent",
	"[gmail]/gesendet":         "gmail/sent",
	"[google mail]/sent mail":  "gmail/sent",
	"[gmail]/drafts":           "gmail/draft",
	"[gmail]/draft":            "gmail/draft",
	"[google mail]/drafts":     "gmail/draft",
	"[gmail]/trash":            "gmail/trash",
	"[gmail]/papierkorb":       "gmail/trash",
	"[google mail]/trash":      "gmail/trash",
	"[gmail]/spam":             "gmail/spam",
	"[google mail]/spam":       "gmail/spam",
	"[gmail]/all mail":         "gmail/allmail",
	"[gmail]/alle nachrichten": "gmail/allmail",
	"[google mail]/all mail":   "gmail/allmail",
	"[gmail]/marked":           "gmail/marked",
	"[gmail]/markiert":         "gmail/marked",
	"[gmail]/important":        "gmail/important",
	"[gmail]/wichtig":          "gmail/important",
}

var reSlugUnsafe = regexp.MustCompile(`[^\w\s\-.]`)
var reSlugSep = regexp.MustCompile(`[.\s_\-]+`)

func slugifyPart(name string) string {
	name = strings.ReplaceAll(name, "[", "")
	name = strings.ReplaceAll(name, "]", "")
	name = strings.TrimSpace(strings.ToLower(name))
	name = reSlugUnsafe.ReplaceAllString(name, "")
	name = reSlugSep.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "other"
	}
	if len(name) > 40 {
		name = name[:40]
	}
	return name
}

func imapFolderToPath(folderName string) string {
	key := strings.TrimSpace(strings.ToLower(folderName))
	if mapped, ok := imapFolderMap[key]; ok {
		return mapped
	}

	parts := strings.Split(strings.ReplaceAll(folderName, "\\", "/"), "/")
	var slugs []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			slugs = append(slugs, slugifyPart(s))
		}
	}
	if len(slugs) > 0 && (slugs[0] == "gmail" || slugs[0] == "google_mail") {
		slugs[0] = "gmail"
	}
	if len(slugs) == 0 {
		return "other"
	}
	return strings.Join(slugs, "/")
}
