package imap

import "testing"

func TestBuildFetchItemsSingleItemUnparenthesized(t *testing.T) {
	got := buildFetchItems(FetchAttributes{Attrs: FetchUID}, false)
	if got != "UID" {
		t.Errorf("got %q, want %q", got, "UID")
	}
}

func TestBuildFetchItemsUIDWithCondstoreAddsModseq(t *testing.T) {
	got := buildFetchItems(FetchAttributes{Attrs: FetchUID}, true)
	if got != "(UID MODSEQ)" {
		t.Errorf("got %q", got)
	}

	got = buildFetchItems(FetchAttributes{Attrs: FetchFlags}, true)
	if got != "FLAGS" {
		t.Errorf("MODSEQ should only attach to UID: got %q", got)
	}
}

func TestBuildFetchItemsCombinesMultiple(t *testing.T) {
	got := buildFetchItems(FetchAttributes{Attrs: FetchUID | FetchFlags | FetchSize}, false)
	want := "(UID FLAGS RFC822.SIZE)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildFetchItemsFullHeaderSkipsFieldList(t *testing.T) {
	got := buildFetchItems(FetchAttributes{
		Attrs:        FetchFullHeader | FetchContentInfo,
		HeaderFields: []string{"X-Custom"},
	}, false)
	if got != "RFC822.HEADER" {
		t.Errorf("full header should suppress BODY[HEADER.FIELDS]: got %q", got)
	}
}

func TestBuildFetchItemsHeaderFieldsList(t *testing.T) {
	got := buildFetchItems(FetchAttributes{
		Attrs:        FetchContentInfo | FetchImportance,
		HeaderFields: []string{"X-Custom", "References"},
	}, false)
	want := "BODY[HEADER.FIELDS (CONTENT_TYPE IMPORTANCE X-PRIORITY X-Custom References)]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildFetchItemsEmptyWhenNoAttrs(t *testing.T) {
	got := buildFetchItems(FetchAttributes{}, false)
	if got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestFetchAttributesHas(t *testing.T) {
	a := FetchAttributes{Attrs: FetchUID | FetchFlags}
	if !a.has(FetchUID) || !a.has(FetchFlags) {
		t.Errorf("expected FetchUID and FetchFlags set")
	}
	if a.has(FetchSize) {
		t.Errorf("FetchSize should not be set")
	}
}
