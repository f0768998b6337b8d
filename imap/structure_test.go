package imap

import (
	"testing"

	"github.com/eslider/mailkit/imap/imapwire"
)

func multipartTree() *imapwire.BodyPart {
	return &imapwire.BodyPart{
		MultipartSubtype: "MIXED",
		Children: []*imapwire.BodyPart{
			{Type: "TEXT", Subtype: "PLAIN"},
			{
				MultipartSubtype: "ALTERNATIVE",
				Children: []*imapwire.BodyPart{
					{Type: "TEXT", Subtype: "HTML"},
					{Type: "IMAGE", Subtype: "PNG"},
				},
			},
		},
	}
}

func TestStructureRoot(t *testing.T) {
	root := multipartTree()
	s := NewStructure(root)
	if s.Root() != root {
		t.Errorf("Root() did not return the wrapped tree")
	}
}

func TestStructurePartNavigatesNestedMultipart(t *testing.T) {
	s := NewStructure(multipartTree())

	p := s.Part(nil)
	if p == nil || !p.IsMultipart() {
		t.Fatalf("empty path should return the multipart root")
	}

	leaf := s.Part([]int{0})
	if leaf == nil || leaf.Subtype != "PLAIN" {
		t.Fatalf("Part([]int{0}) = %+v, want TEXT/PLAIN leaf", leaf)
	}

	nested := s.Part([]int{1, 1})
	if nested == nil || nested.Subtype != "PNG" {
		t.Fatalf("Part([]int{1,1}) = %+v, want IMAGE/PNG leaf", nested)
	}
}

func TestStructurePartOutOfRangeReturnsNil(t *testing.T) {
	s := NewStructure(multipartTree())
	if p := s.Part([]int{5}); p != nil {
		t.Errorf("out-of-range index should return nil, got %+v", p)
	}
	if p := s.Part([]int{0, 0}); p != nil {
		t.Errorf("descending into a leaf should return nil, got %+v", p)
	}
	if p := s.Part([]int{-1}); p != nil {
		t.Errorf("negative index should return nil, got %+v", p)
	}
}

func TestSectionFor(t *testing.T) {
	cases := []struct {
		path []int
		want string
	}{
		{nil, ""},
		{[]int{0}, "1"},
		{[]int{0, 1}, "1.2"},
		{[]int{1, 1, 0}, "2.2.1"},
	}
	for _, c := range cases {
		if got := SectionFor(c.path); got != c.want {
			t.Errorf("SectionFor(%v) = %q, want %q", c.path, got, c.want)
		}
	}
}
