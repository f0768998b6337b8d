package utf7

import "testing"

func TestEncodeSpecExample(t *testing.T) {
	got := Encode("Hi Mum ☺!", '/')
	want := "Hi Mum &Jjo-!"
	if got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}

func TestDecodeSpecExample(t *testing.T) {
	got, err := Decode("&ZeVnLIqe-")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := "日本語"
	if got != want {
		t.Fatalf("Decode() = %q, want %q", got, want)
	}
}

func TestAmpersandRoundTrip(t *testing.T) {
	s := "Q&A"
	enc := Encode(s, '/')
	if enc != "Q&-A" {
		t.Fatalf("Encode(%q) = %q, want Q&-A", s, enc)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec != s {
		t.Fatalf("round trip %q -> %q -> %q", s, enc, dec)
	}
}

func TestRoundTripArbitraryStrings(t *testing.T) {
	cases := []string{
		"", "INBOX", "Sent Items", "日本語", "Hi Mum ☺!",
		"a/b/c", "&", "&&&", "foo&bar/baz",
	}
	for _, c := range cases {
		enc := Encode(c, '/')
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(Encode(%q)): %v", c, err)
		}
		if dec != c {
			t.Fatalf("round trip failed: %q -> %q -> %q", c, enc, dec)
		}
	}
}

func TestHierarchySeparatorForcedIntoBase64Run(t *testing.T) {
	enc := Encode("a/b", '/')
	if dec, err := Decode(enc); err != nil || dec != "a/b" {
		t.Fatalf("Decode(%q) = %q, %v, want a/b", enc, dec, err)
	}
	for i := 0; i < len(enc); i++ {
		if enc[i] == '/' {
			t.Fatalf("encoded form %q contains bare separator", enc)
		}
	}
}
