// Package pstimport adapts Outlook PST/OST extraction into a stream of
// RFC-822 messages ready for imap.Folder.AddMessage, instead of the
// write-.eml-to-disk pipeline it started from.
package pstimport

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mooijtech/go-pst/v6/pkg"
	"github.com/mooijtech/go-pst/v6/pkg/properties"
	"github.com/rotisserie/eris"

	charsets "github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding"
)

// StreamUpload copies an uploaded PST/OST file to a temp path with
// progress callbacks, so Walk can later open it from disk.
func StreamUpload(r io.Reader, size int64, onProgress ProgressFunc) (string, error) {
	tmp, err := os.CreateTemp("", "pst-upload-*.pst")
	if err != nil {
		return "", eris.Wrapf(err, "pstimport: create temp")
	}

	var written int64
	buf := make([]byte, 256*1024)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, wErr := tmp.Write(buf[:n]); wErr != nil {
				tmp.Close()
				os.Remove(tmp.Name())
				return "", eris.Wrapf(wErr, "pstimport: write temp")
			}
			written += int64(n)
			if size > 0 {
				onProgress("uploading", int(written))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", eris.Wrapf(readErr, "pstimport: read upload")
		}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", eris.Wrapf(err, "pstimport: close temp")
	}
	return tmp.Name(), nil
}

func init() {
	pst.ExtendCharsets(func(name string, enc encoding.Encoding) {
		charsets.RegisterEncoding(name, enc)
	})
}

// Item is one extracted message, sized and dated for AddMessage.
type Item struct {
	FolderPath string
	Body       []byte
	Date       time.Time
}

// Size returns the octet length AddMessage's literal marker needs.
func (it Item) Size() int { return len(it.Body) }

// Reader returns a fresh reader over Body for a single APPEND.
func (it Item) Reader() *bytes.Reader { return bytes.NewReader(it.Body) }

// ProgressFunc receives import progress as items are walked.
type ProgressFunc func(folderPath string, current int)

// ItemFunc is called once per extracted item; returning an error stops
// the walk and is propagated from Walk.
type ItemFunc func(Item) error

// Walk opens pstPath and calls fn for every message item found,
// skipping non-message items (appointments, contacts, ...) the same
// way the original extractor did.
func Walk(pstPath string, fn ItemFunc, onProgress ProgressFunc) (extracted, skipped int, err error) {
	if onProgress == nil {
		onProgress = func(string, int) {}
	}
	osFile, err := os.Open(pstPath)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "pstimport: open %s", pstPath)
	}
	defer osFile.Close()

	pstFile, err := pst.New(osFile)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "pstimport: parse %s", pstPath)
	}
	defer pstFile.Cleanup()

	err = pstFile.WalkFolders(func(folder *pst.Folder) error {
		folderPath := sanitizeFolderPath(folder.Name)
		iter, ferr := folder.GetMessageIterator()
		if eris.Is(ferr, pst.ErrMessagesNotFound) {
			return nil
		} else if ferr != nil {
			return nil
		}
		for iter.Next() {
			body, date, ok := messageToRFC822(iter.Value())
			if !ok {
				skipped++
				continue
			}
			if err := fn(Item{FolderPath: folderPath, Body: body, Date: date}); err != nil {
				return err
			}
			extracted++
			if extracted%100 == 0 {
				onProgress(folderPath, extracted)
			}
		}
		return iter.Err()
	})
	if err != nil {
		return extracted, skipped, eris.Wrapf(err, "pstimport: walk %s", pstPath)
	}
	onProgress("done", extracted)
	return extracted, skipped, nil
}

func sanitizeFolderPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "-")
	if name == "" {
		return "Imported"
	}
	return name
}

// messageToRFC822 renders one PST message as a minimal RFC-822
// document in memory, returning the encoded bytes directly instead of
// writing a file.
func messageToRFC822(msg *pst.Message) ([]byte, time.Time, bool) {
	p, ok := msg.Properties.(*properties.Message)
	if !ok {
		return nil, time.Time{}, false
	}

	from := formatSender(p.GetSenderName(), p.GetSenderEmailAddress())
	to := p.GetDisplayTo()
	subject := p.GetSubject()
	body := p.GetBody()

	var date time.Time
	if ct := p.GetClientSubmitTime(); ct > 0 {
		date = time.Unix(ct, 0)
	} else if dt := p.GetMessageDeliveryTime(); dt > 0 {
		date = time.Unix(dt, 0)
	}
	if date.IsZero() {
		date = time.Now()
	}

	var sb strings.Builder
	sb.WriteString("From: " + escapeHeader(from) + "\r\n")
	sb.WriteString("To: " + escapeHeader(to) + "\r\n")
	sb.WriteString("Subject: " + escapeHeader(subject) + "\r\n")
	sb.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	sb.WriteString("X-Imported-From: PST\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String()), date, true
}

func formatSender(name, email string) string {
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case email != "":
		return email
	default:
		return name
	}
}

func escapeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}
