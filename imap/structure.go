package imap

import (
	"strconv"
	"strings"

	"github.com/eslider/mailkit/imap/imapwire"
)

// Structure is a tree of message parts built from a parsed
// BODYSTRUCTURE response. Part numbers are 0-based
// internally and rendered 1-based on the wire.
type Structure struct {
	root *imapwire.BodyPart
}

// NewStructure wraps a parsed BODYSTRUCTURE tree.
func NewStructure(root *imapwire.BodyPart) *Structure {
	return &Structure{root: root}
}

// Root returns the top-level part.
func (s *Structure) Root() *imapwire.BodyPart { return s.root }

// Part navigates to the part at the given 0-based index path (e.g.
// []int{0, 1} is the wire section "1.2"). An empty path returns the
// root part.
func (s *Structure) Part(path []int) *imapwire.BodyPart {
	p := s.root
	for _, idx := range path {
		if p == nil || !p.IsMultipart() || idx < 0 || idx >= len(p.Children) {
			return nil
		}
		p = p.Children[idx]
	}
	return p
}

// SectionFor renders path to its dotted 1-based wire section
// identifier, e.g. []int{0, 1} → "1.2". An empty path renders as "".
func SectionFor(path []int) string {
	if len(path) == 0 {
		return ""
	}
	parts := make([]string, len(path))
	for i, idx := range path {
		parts[i] = strconv.Itoa(idx + 1)
	}
	return strings.Join(parts, ".")
}
