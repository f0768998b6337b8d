// Package imapwire implements IMAP4rev1 command serialization and the
// incremental recursive-descent response grammar.
package imapwire

import (
	"strconv"
	"strings"
)

// ReadGreeting reads the server's initial banner.
func ReadGreeting(s *Scanner) (*Greeting, error) {
	if err := expectByte(s, '*'); err != nil {
		return nil, err
	}
	s.skipSpace()
	status, err := s.ReadAtom()
	if err != nil {
		return nil, err
	}
	status = strings.ToUpper(status)
	s.skipSpace()
	code, text, err := parseRespText(s)
	if err != nil {
		return nil, err
	}
	if err := s.ReadLineEnd(); err != nil {
		return nil, err
	}
	return &Greeting{Status: status, Code: code, Text: text}, nil
}

// ReadResponse reads lines until a tagged response (or a continuation
// request) closes the exchange. literalHandler may be nil,
// in which case all literals are buffered.
func ReadResponse(s *Scanner, literalHandler LiteralHandler) (*Response, error) {
	if literalHandler == nil {
		literalHandler = NoLiteralHandler{}
	}
	resp := &Response{}
	for {
		b, err := s.peekByte()
		if err != nil {
			return resp, err
		}
		switch b {
		case '+':
			s.readByte()
			s.skipSpace()
			text, err := s.ReadRestOfLine()
			if err != nil {
				return resp, err
			}
			if err := s.ReadLineEnd(); err != nil {
				return resp, err
			}
			resp.Continuation = &text
			return resp, nil

		case '*':
			s.readByte()
			s.skipSpace()
			u, err := parseUntagged(s, literalHandler)
			if err != nil {
				return resp, err
			}
			resp.Untagged = append(resp.Untagged, u)

		default:
			tag, err := s.ReadAtom()
			if err != nil {
				return resp, err
			}
			s.skipSpace()
			status, err := s.ReadAtom()
			if err != nil {
				return resp, err
			}
			status = strings.ToUpper(status)
			s.skipSpace()
			code, text, err := parseRespText(s)
			if err != nil {
				return resp, err
			}
			if err := s.ReadLineEnd(); err != nil {
				return resp, err
			}
			resp.Done = &Done{Tag: tag, Status: status, Code: code, Text: text}
			return resp, nil
		}
	}
}

func expectByte(s *Scanner, want byte) error {
	c, err := s.readByte()
	if err != nil {
		return err
	}
	if c != want {
		return s.fail("expected '" + string(want) + "'")
	}
	return nil
}

// parseRespText parses an optional "[code]" followed by free-form text,
// running to (not including) the line terminator.
func parseRespText(s *Scanner) (*RespTextCode, string, error) {
	b, err := s.peekByte()
	if err != nil {
		return nil, "", err
	}
	var code *RespTextCode
	if b == '[' {
		s.readByte()
		name, err := s.ReadAtom()
		if err != nil {
			return nil, "", err
		}
		// ReadAtom does not stop at ']', so a bare code ("[READ-WRITE]")
		// or a final atom argument ("[UIDNEXT 9]") arrives with the
		// closing bracket attached.
		closed := strings.HasSuffix(name, "]")
		name = strings.TrimSuffix(name, "]")
		var args []string
		for !closed {
			b, err := s.peekByte()
			if err != nil {
				return nil, "", err
			}
			if b == ']' {
				s.readByte()
				break
			}
			s.skipSpace()
			b, err = s.peekByte()
			if err != nil {
				return nil, "", err
			}
			if b == ']' {
				s.readByte()
				break
			}
			if b == '(' {
				arg, err := s.ReadBalancedList()
				if err != nil {
					return nil, "", err
				}
				args = append(args, arg)
				continue
			}
			arg, err := s.ReadAtom()
			if err != nil {
				return nil, "", err
			}
			if strings.HasSuffix(arg, "]") {
				closed = true
				arg = strings.TrimSuffix(arg, "]")
			}
			args = append(args, arg)
		}
		code = &RespTextCode{Name: strings.ToUpper(name), Args: args}
		s.skipSpace()
	}
	text, err := s.ReadRestOfLine()
	if err != nil {
		return nil, "", err
	}
	return code, text, nil
}

func parseUntagged(s *Scanner, lh LiteralHandler) (*Untagged, error) {
	first, err := s.ReadAtom()
	if err != nil {
		return nil, err
	}
	if n, ok := parseUint(first); ok {
		s.skipSpace()
		kw, err := s.ReadAtom()
		if err != nil {
			return nil, err
		}
		kw = strings.ToUpper(kw)
		switch kw {
		case "EXISTS", "RECENT", "EXPUNGE":
			if err := s.ReadLineEnd(); err != nil {
				return nil, err
			}
			return &Untagged{Kind: kw, Number: uint32(n)}, nil
		case "FETCH":
			s.skipSpace()
			fd, err := parseFetchData(s, lh)
			if err != nil {
				return nil, err
			}
			fd.Seq = uint32(n)
			if err := s.ReadLineEnd(); err != nil {
				return nil, err
			}
			return &Untagged{Kind: "FETCH", Number: uint32(n), Fetch: fd}, nil
		default:
			text, err := s.ReadRestOfLine()
			if err != nil {
				return nil, err
			}
			if err := s.ReadLineEnd(); err != nil {
				return nil, err
			}
			return &Untagged{Kind: kw, Number: uint32(n), Text: text}, nil
		}
	}

	kw := strings.ToUpper(first)
	switch kw {
	case "OK", "NO", "BAD", "BYE", "PREAUTH":
		s.skipSpace()
		code, text, err := parseRespText(s)
		if err != nil {
			return nil, err
		}
		if err := s.ReadLineEnd(); err != nil {
			return nil, err
		}
		return &Untagged{Kind: kw, Code: code, Text: text}, nil

	case "FLAGS":
		s.skipSpace()
		flags, err := parseFlagList(s)
		if err != nil {
			return nil, err
		}
		if err := s.ReadLineEnd(); err != nil {
			return nil, err
		}
		return &Untagged{Kind: "FLAGS", Flags: flags}, nil

	case "LIST", "LSUB":
		s.skipSpace()
		u, err := parseMailboxList(s, kw)
		if err != nil {
			return nil, err
		}
		if err := s.ReadLineEnd(); err != nil {
			return nil, err
		}
		return u, nil

	case "STATUS":
		s.skipSpace()
		u, err := parseStatus(s)
		if err != nil {
			return nil, err
		}
		if err := s.ReadLineEnd(); err != nil {
			return nil, err
		}
		return u, nil

	case "SEARCH":
		var nums []uint32
		for {
			s.skipSpace()
			if s.atCRLF() {
				break
			}
			tok, err := s.ReadAtom()
			if err != nil {
				return nil, err
			}
			n, ok := parseUint(tok)
			if !ok {
				break
			}
			nums = append(nums, uint32(n))
		}
		if err := s.ReadLineEnd(); err != nil {
			return nil, err
		}
		return &Untagged{Kind: "SEARCH", SearchNumbers: nums}, nil

	case "CAPABILITY":
		var caps []string
		for {
			s.skipSpace()
			if s.atCRLF() {
				break
			}
			tok, err := s.ReadAtom()
			if err != nil {
				return nil, err
			}
			caps = append(caps, tok)
		}
		if err := s.ReadLineEnd(); err != nil {
			return nil, err
		}
		return &Untagged{Kind: "CAPABILITY", Capabilities: caps}, nil

	default:
		text, err := s.ReadRestOfLine()
		if err != nil {
			return nil, err
		}
		if err := s.ReadLineEnd(); err != nil {
			return nil, err
		}
		return &Untagged{Kind: kw, Text: text}, nil
	}
}

func parseUint(tok string) (uint64, bool) {
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseFlagList(s *Scanner) ([]string, error) {
	if err := s.OpenList(); err != nil {
		return nil, err
	}
	var flags []string
	for {
		if s.AtListEnd() {
			break
		}
		tok, err := s.ReadAtom()
		if err != nil {
			return nil, err
		}
		flags = append(flags, tok)
		s.skipSpace()
	}
	if err := s.CloseList(); err != nil {
		return nil, err
	}
	return flags, nil
}

func parseMailboxList(s *Scanner, kind string) (*Untagged, error) {
	flags, err := parseFlagList(s)
	if err != nil {
		return nil, err
	}
	s.skipSpace()
	u := &Untagged{Kind: kind, MailboxFlags: flags}
	sep, ok, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	if ok && len(sep) > 0 {
		u.HierarchyChar = sep[0]
	}
	s.skipSpace()
	mbox, _, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	u.Mailbox = Unquote(mbox)
	return u, nil
}

func parseStatus(s *Scanner) (*Untagged, error) {
	mbox, _, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	s.skipSpace()
	if err := s.OpenList(); err != nil {
		return nil, err
	}
	attrs := map[string]uint64{}
	for {
		if s.AtListEnd() {
			break
		}
		name, err := s.ReadAtom()
		if err != nil {
			return nil, err
		}
		s.skipSpace()
		val, err := s.ReadNumber()
		if err != nil {
			return nil, err
		}
		attrs[strings.ToUpper(name)] = val
		s.skipSpace()
	}
	if err := s.CloseList(); err != nil {
		return nil, err
	}
	return &Untagged{Kind: "STATUS", Mailbox: Unquote(mbox), StatusAttrs: attrs}, nil
}
