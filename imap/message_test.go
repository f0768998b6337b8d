package imap

import "testing"

func TestFlagSetToStringsAndBack(t *testing.T) {
	set := FlagSeen | FlagFlagged | FlagDeleted
	strs := flagSetToStrings(set)
	if len(strs) != 3 {
		t.Fatalf("expected 3 flag strings, got %v", strs)
	}

	roundTripped := parseFlagSet(strs)
	if roundTripped != set {
		t.Errorf("round trip = %v, want %v", roundTripped, set)
	}
}

func TestParseFlagSetIgnoresUnknownNames(t *testing.T) {
	got := parseFlagSet([]string{`\Seen`, `\Unknown`, `\Answered`})
	want := FlagSeen | FlagAnswered
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseFlagSetEmpty(t *testing.T) {
	if got := parseFlagSet(nil); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestMessageAccessorsReportUnsetBeforeFetch(t *testing.T) {
	m := &Message{number: 7}
	if m.Number() != 7 {
		t.Errorf("Number() = %d, want 7", m.Number())
	}
	if _, ok := m.UID(); ok {
		t.Errorf("UID should be unset before a UID fetch")
	}
	if _, ok := m.Size(); ok {
		t.Errorf("Size should be unset before fetch")
	}
	if _, ok := m.Flags(); ok {
		t.Errorf("Flags should be unset before fetch")
	}
	if m.Expunged() {
		t.Errorf("Expunged should default false")
	}
	if m.Structure() != nil {
		t.Errorf("Structure should be nil before fetch")
	}
}

func TestMessageExtractOnDetachedMessageFails(t *testing.T) {
	m := &Message{number: 1}
	if _, err := m.Extract(nil, ExtractOptions{}); err == nil {
		t.Errorf("Extract on a folder-less message should fail")
	}
}
