package imap

import (
	"strings"
	"testing"
	"time"

	"github.com/eslider/mailkit/imap/msgset"
)

func TestBuildSelectExamine(t *testing.T) {
	cmd := buildSelect("INBOX", '/', false, false)
	if cmd.text != `SELECT INBOX` {
		t.Errorf("text = %q", cmd.text)
	}

	cmd = buildSelect("INBOX", '/', true, false)
	if !strings.HasPrefix(cmd.text, "EXAMINE ") {
		t.Errorf("examine verb not used: %q", cmd.text)
	}

	cmd = buildSelect("INBOX", '/', false, true)
	if !strings.HasSuffix(cmd.text, "(CONDSTORE)") {
		t.Errorf("CONDSTORE suffix missing: %q", cmd.text)
	}
}

func TestBuildSelectQuotesUnsafeMailboxName(t *testing.T) {
	cmd := buildSelect("My Folder", '/', false, false)
	if cmd.text != `SELECT "My Folder"` {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestBuildCreateSpecialUse(t *testing.T) {
	cmd := buildCreate("Archive", '/', "\\Archive")
	want := `CREATE Archive (USE (\Archive))`
	if cmd.text != want {
		t.Errorf("text = %q, want %q", cmd.text, want)
	}
}

func TestBuildRename(t *testing.T) {
	cmd := buildRename("Old", "New", '/')
	if cmd.text != "RENAME Old New" {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestBuildList(t *testing.T) {
	cmd := buildList("LIST", "", "*", '/')
	if cmd.text != `LIST "" "*"` {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestBuildStatus(t *testing.T) {
	cmd := buildStatus("INBOX", '/', []string{"MESSAGES", "UIDNEXT"})
	if cmd.text != "STATUS INBOX (MESSAGES UIDNEXT)" {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestBuildFetchUIDMode(t *testing.T) {
	set := msgset.ByNumber(1, 5)
	cmd := buildFetch(false, set, "(FLAGS UID)")
	if cmd.text != "FETCH 1:5 (FLAGS UID)" {
		t.Errorf("text = %q", cmd.text)
	}

	uidSet := msgset.ByUID(100, 200)
	cmd = buildFetch(true, uidSet, "(UID)")
	if cmd.text != "UID FETCH 100:200 (UID)" {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestBuildStoreModes(t *testing.T) {
	set := msgset.ByNumber(1)
	cases := []struct {
		mode StoreMode
		want string
	}{
		{StoreReplace, "STORE 1 FLAGS (\\Seen)"},
		{StoreAdd, "STORE 1 +FLAGS (\\Seen)"},
		{StoreRemove, "STORE 1 -FLAGS (\\Seen)"},
	}
	for _, c := range cases {
		cmd := buildStore(false, set, c.mode, []string{`\Seen`})
		if cmd.text != c.want {
			t.Errorf("mode %v: text = %q, want %q", c.mode, cmd.text, c.want)
		}
	}
}

func TestBuildCopy(t *testing.T) {
	set := msgset.ByUID(1, 10)
	cmd := buildCopy(true, set, "Archive", '/')
	if cmd.text != "UID COPY 1:10 Archive" {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestBuildSearchWithCharset(t *testing.T) {
	cmd := buildSearch(false, "UTF-8", `SUBJECT "foo"`)
	if cmd.text != `SEARCH CHARSET UTF-8 SUBJECT "foo"` {
		t.Errorf("text = %q", cmd.text)
	}

	cmd = buildSearch(true, "", "ALL")
	if cmd.text != "UID SEARCH ALL" {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestBuildAppendWithDateAndFlags(t *testing.T) {
	date := time.Date(2026, 1, 15, 9, 4, 5, 0, time.UTC)
	cmd := buildAppend("INBOX", '/', []string{`\Seen`, `\Flagged`}, &date, 128)
	if !strings.Contains(cmd.text, "(\\Seen \\Flagged)") {
		t.Errorf("flags missing: %q", cmd.text)
	}
	if !strings.HasSuffix(cmd.text, "{128}") {
		t.Errorf("literal size missing: %q", cmd.text)
	}
	if !strings.Contains(cmd.text, `"15-Jan-2026`) {
		t.Errorf("internal date missing: %q", cmd.text)
	}
}

func TestBuildAppendWithoutDateOrFlags(t *testing.T) {
	cmd := buildAppend("INBOX", '/', nil, nil, 42)
	if cmd.text != "APPEND INBOX {42}" {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestBuildLoginRedactsPasswordInTrace(t *testing.T) {
	cmd := buildLogin("alice", "hunter2")
	if !strings.Contains(cmd.text, "hunter2") {
		t.Errorf("actual command text should carry the real password: %q", cmd.text)
	}
	if strings.Contains(cmd.trace, "hunter2") {
		t.Errorf("trace form leaked the password: %q", cmd.trace)
	}
	if !strings.Contains(cmd.trace, "{password}") {
		t.Errorf("trace form missing redaction marker: %q", cmd.trace)
	}
}

func TestBuildAuthenticate(t *testing.T) {
	cmd := buildAuthenticate("XOAUTH2")
	if cmd.text != "AUTHENTICATE XOAUTH2" {
		t.Errorf("text = %q", cmd.text)
	}
}

func TestNoArgCommands(t *testing.T) {
	cases := map[string]command{
		"EXPUNGE":    buildExpunge(),
		"CLOSE":      buildClose(),
		"NOOP":       buildNoop(),
		"LOGOUT":     buildLogout(),
		"CAPABILITY": buildCapability(),
		"STARTTLS":   buildStartTLS(),
	}
	for want, cmd := range cases {
		if cmd.text != want {
			t.Errorf("text = %q, want %q", cmd.text, want)
		}
	}
}

func TestVerbForUIDMode(t *testing.T) {
	if got := verbFor(false, "FETCH"); got != "FETCH" {
		t.Errorf("verbFor(false) = %q", got)
	}
	if got := verbFor(true, "FETCH"); got != "UID FETCH" {
		t.Errorf("verbFor(true) = %q", got)
	}
}
