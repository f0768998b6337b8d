package imap

import "strings"

// FetchAttr is a bit in a FetchAttributes selector.
type FetchAttr uint32

const (
	FetchUID FetchAttr = 1 << iota
	FetchFlags
	FetchSize
	FetchStructure
	FetchEnvelope
	FetchContentInfo
	FetchImportance
	FetchFullHeader
)

// FetchAttributes selects which message-data items a FETCH request
// asks for, plus an explicit list of caller-supplied header field
// names.
type FetchAttributes struct {
	Attrs        FetchAttr
	HeaderFields []string
}

func (a FetchAttributes) has(attr FetchAttr) bool { return a.Attrs&attr != 0 }

// buildFetchItems renders a FetchAttributes into the space-separated
// FETCH item list (without the surrounding parentheses), applying
// MODSEQ tracking only when condstore is enabled.
func buildFetchItems(a FetchAttributes, condstore bool) string {
	var items []string
	if a.has(FetchUID) {
		items = append(items, "UID")
		if condstore {
			items = append(items, "MODSEQ")
		}
	}
	if a.has(FetchFlags) {
		items = append(items, "FLAGS")
	}
	if a.has(FetchSize) {
		items = append(items, "RFC822.SIZE")
	}
	if a.has(FetchStructure) {
		items = append(items, "BODYSTRUCTURE")
	}
	if a.has(FetchEnvelope) {
		items = append(items, "ENVELOPE")
	}
	if a.has(FetchFullHeader) {
		items = append(items, "RFC822.HEADER")
	} else {
		var fields []string
		if a.has(FetchContentInfo) {
			fields = append(fields, "CONTENT_TYPE")
		}
		if a.has(FetchImportance) {
			fields = append(fields, "IMPORTANCE", "X-PRIORITY")
		}
		fields = append(fields, a.HeaderFields...)
		if len(fields) > 0 {
			items = append(items, "BODY[HEADER.FIELDS ("+strings.Join(fields, " ")+")]")
		}
	}
	if len(items) == 0 {
		return ""
	}
	if len(items) == 1 {
		return items[0]
	}
	return "(" + strings.Join(items, " ") + ")"
}
