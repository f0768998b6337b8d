package imapwire

import (
	"fmt"
	"strings"
	"time"
)

var months = []string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// FormatInternalDate renders t as the IMAP internal-date string without
// the surrounding quotes (callers pass it through Quote), e.g.
// ` 1-Jan-2026 09:04:05 +0000` with the day space-padded to two
// characters and the zone rendered as the local-to-UTC offset.
func FormatInternalDate(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	hh := offset / 3600
	mm := (offset % 3600) / 60
	return fmt.Sprintf("%2d-%s-%04d %02d:%02d:%02d %c%02d%02d",
		t.Day(), months[t.Month()-1], t.Year(),
		t.Hour(), t.Minute(), t.Second(), sign, hh, mm)
}

// ParseInternalDate parses an IMAP internal-date string (quotes
// optional) back into a time.Time.
func ParseInternalDate(s string) (time.Time, error) {
	s = strings.Trim(s, `"`)
	// Normalize the space-padded day ("_2-Mon-2006" format spec).
	return time.Parse("_2-Jan-2006 15:04:05 -0700", s)
}
