package imapwire

import (
	"strconv"
	"strings"
)

// parseFetchData parses the parenthesized message-data-item list of one
// untagged FETCH response. s must be positioned at
// the opening '(' of the item list.
func parseFetchData(s *Scanner, lh LiteralHandler) (*FetchData, error) {
	fd := &FetchData{}
	if err := s.OpenList(); err != nil {
		return nil, err
	}
	for {
		if s.AtListEnd() {
			break
		}
		tok, err := s.ReadFetchItemToken()
		if err != nil {
			return nil, err
		}
		name := strings.ToUpper(tok)
		s.skipSpace()
		switch {
		case name == "UID":
			n, err := s.ReadNumber()
			if err != nil {
				return nil, err
			}
			fd.HasUID = true
			fd.UID = uint32(n)

		case name == "FLAGS":
			flags, err := parseFlagList(s)
			if err != nil {
				return nil, err
			}
			fd.HasFlags = true
			fd.Flags = flags

		case name == "RFC822.SIZE":
			n, err := s.ReadNumber()
			if err != nil {
				return nil, err
			}
			fd.HasSize = true
			fd.Size = n

		case name == "INTERNALDATE":
			v, _, err := s.ReadString()
			if err != nil {
				return nil, err
			}
			t, err := ParseInternalDate(v)
			if err != nil {
				return nil, err
			}
			fd.HasInternalDate = true
			fd.InternalDate = t

		case name == "MODSEQ":
			if err := s.OpenList(); err != nil {
				return nil, err
			}
			n, err := s.ReadNumber()
			if err != nil {
				return nil, err
			}
			if err := s.CloseList(); err != nil {
				return nil, err
			}
			fd.HasModSeq = true
			fd.ModSeq = n

		case name == "ENVELOPE":
			env, err := parseEnvelope(s)
			if err != nil {
				return nil, err
			}
			fd.Envelope = env

		case name == "BODYSTRUCTURE" || name == "BODY":
			bp, err := parseBodyPart(s)
			if err != nil {
				return nil, err
			}
			fd.BodyStructure = bp

		case strings.HasPrefix(name, "BODY[") || strings.HasPrefix(name, "BODY.PEEK["):
			section, partial, offset := splitFetchSectionToken(tok)
			component := "BODY[" + section + "]"
			data, streamed, err := readSectionValue(s, component, lh)
			if err != nil {
				return nil, err
			}
			fd.Sections = append(fd.Sections, FetchSection{
				Section:  section,
				Partial:  partial,
				Offset:   offset,
				Data:     data,
				Streamed: streamed,
			})

		case name == "RFC822" || name == "RFC822.HEADER" || name == "RFC822.TEXT":
			data, streamed, err := readSectionValue(s, name, lh)
			if err != nil {
				return nil, err
			}
			fd.Sections = append(fd.Sections, FetchSection{Section: name, Data: data, Streamed: streamed})

		default:
			// Unknown item: best-effort skip of a single following value.
			if _, _, err := s.ReadString(); err != nil {
				return nil, err
			}
		}
		s.skipSpace()
	}
	if err := s.CloseList(); err != nil {
		return nil, err
	}
	return fd, nil
}

// splitFetchSectionToken splits a raw fetch-item token such as
// `BODY[HEADER.FIELDS (CONTENT_TYPE IMPORTANCE)]<0.200>` or
// `BODY.PEEK[1.TEXT]` into its section spec and optional partial offset.
func splitFetchSectionToken(tok string) (section string, partial bool, offset uint32) {
	open := strings.IndexByte(tok, '[')
	end := strings.LastIndexByte(tok, ']')
	if open < 0 || end < 0 || end < open {
		return "", false, 0
	}
	section = tok[open+1 : end]
	rest := tok[end+1:]
	if strings.HasPrefix(rest, "<") {
		end := strings.IndexByte(rest, '>')
		if end > 0 {
			numStr := rest[1:end]
			if dot := strings.IndexByte(numStr, '.'); dot >= 0 {
				numStr = numStr[:dot]
			}
			if n, err := strconv.ParseUint(numStr, 10, 32); err == nil {
				partial = true
				offset = uint32(n)
			}
		}
	}
	return section, partial, offset
}

// readSectionValue reads the string/literal value following a BODY[...]
// or RFC822[.HEADER|.TEXT] item, consulting lh for the literal case.
func readSectionValue(s *Scanner, component string, lh LiteralHandler) (data []byte, streamed bool, err error) {
	b, err := s.peekByte()
	if err != nil {
		return nil, false, err
	}
	switch b {
	case '{':
		n, _, err := s.ReadLiteralSize()
		if err != nil {
			return nil, false, err
		}
		target, progress := lh.TargetFor(component, n)
		data, err := s.ReadLiteralData(n, component, target, progress)
		if err != nil {
			return nil, false, err
		}
		return data, target != nil, nil
	case '"':
		v, err := s.ReadQuoted()
		if err != nil {
			return nil, false, err
		}
		return []byte(v), false, nil
	default:
		tok, err := s.ReadAtom()
		if err != nil {
			return nil, false, err
		}
		if tok == "NIL" {
			return nil, false, nil
		}
		return []byte(tok), false, nil
	}
}

// parseEnvelope parses an ENVELOPE structure (RFC-3501 §7.4.2).
func parseEnvelope(s *Scanner) (*Envelope, error) {
	if err := s.OpenList(); err != nil {
		return nil, err
	}
	env := &Envelope{}
	env.Date = envString(s)
	s.skipSpace()
	env.Subject = envString(s)
	s.skipSpace()
	var err error
	if env.From, err = parseAddressList(s); err != nil {
		return nil, err
	}
	s.skipSpace()
	if env.Sender, err = parseAddressList(s); err != nil {
		return nil, err
	}
	s.skipSpace()
	if env.ReplyTo, err = parseAddressList(s); err != nil {
		return nil, err
	}
	s.skipSpace()
	if env.To, err = parseAddressList(s); err != nil {
		return nil, err
	}
	s.skipSpace()
	if env.Cc, err = parseAddressList(s); err != nil {
		return nil, err
	}
	s.skipSpace()
	if env.Bcc, err = parseAddressList(s); err != nil {
		return nil, err
	}
	s.skipSpace()
	env.InReplyTo = envString(s)
	s.skipSpace()
	env.MessageID = envString(s)
	if err := s.CloseList(); err != nil {
		return nil, err
	}
	return env, nil
}

// envString reads one ENVELOPE string field (NIL, quoted, or literal),
// swallowing the error by returning "" — malformed fields are rare
// enough in practice that callers treat an empty string as absent.
func envString(s *Scanner) string {
	v, _, err := s.ReadString()
	if err != nil {
		return ""
	}
	return v
}

func parseAddressList(s *Scanner) ([]Address, error) {
	b, err := s.peekByte()
	if err != nil {
		return nil, err
	}
	if b != '(' {
		// NIL
		if _, _, err := s.ReadString(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := s.OpenList(); err != nil {
		return nil, err
	}
	var addrs []Address
	for {
		if s.AtListEnd() {
			break
		}
		a, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
		s.skipSpace()
	}
	if err := s.CloseList(); err != nil {
		return nil, err
	}
	return addrs, nil
}

func parseAddress(s *Scanner) (Address, error) {
	if err := s.OpenList(); err != nil {
		return Address{}, err
	}
	a := Address{}
	a.Name = envString(s)
	s.skipSpace()
	a.ADL = envString(s)
	s.skipSpace()
	a.Mailbox = envString(s)
	s.skipSpace()
	a.Host = envString(s)
	if err := s.CloseList(); err != nil {
		return Address{}, err
	}
	return a, nil
}

// parseBodyPart parses a BODY/BODYSTRUCTURE tree node (RFC-3501 §7.4.2),
// dispatching on whether the first element is itself a list (mpart) or
// an atom/quoted (1-part leaf).
func parseBodyPart(s *Scanner) (*BodyPart, error) {
	if err := s.OpenList(); err != nil {
		return nil, err
	}
	part := &BodyPart{}
	if s.AtListStart() {
		// Multipart: one or more body parts followed by the subtype.
		for s.AtListStart() {
			child, err := parseBodyPart(s)
			if err != nil {
				return nil, err
			}
			part.Children = append(part.Children, child)
			s.skipSpace()
		}
		subtype := envString(s)
		part.MultipartSubtype = strings.ToUpper(subtype)
	} else {
		typ := envString(s)
		s.skipSpace()
		subtype := envString(s)
		part.Type = strings.ToUpper(typ)
		part.Subtype = strings.ToUpper(subtype)
		s.skipSpace()
		params, err := parseBodyParams(s)
		if err != nil {
			return nil, err
		}
		part.Params = params
		s.skipSpace()
		part.ID = envString(s)
		s.skipSpace()
		part.Description = envString(s)
		s.skipSpace()
		part.Encoding = envString(s)
		s.skipSpace()
		size, err := s.ReadNumber()
		if err != nil {
			return nil, err
		}
		part.Size = uint32(size)

		if part.Type == "TEXT" {
			s.skipSpace()
			lines, err := s.ReadNumber()
			if err != nil {
				return nil, err
			}
			part.Lines = uint32(lines)
		} else if part.Type == "MESSAGE" && part.Subtype == "RFC822" {
			s.skipSpace()
			env, err := parseEnvelope(s)
			if err != nil {
				return nil, err
			}
			part.NestedEnvelope = env
			s.skipSpace()
			nested, err := parseBodyPart(s)
			if err != nil {
				return nil, err
			}
			part.Nested = nested
			s.skipSpace()
			lines, err := s.ReadNumber()
			if err != nil {
				return nil, err
			}
			part.Lines = uint32(lines)
		}
	}
	// Extension data (MD5, disposition, language, location, ...) is
	// optional and not used by this client; skip whatever remains
	// before the closing paren.
	for !s.AtListEnd() {
		s.skipSpace()
		if s.AtListEnd() {
			break
		}
		if s.AtListStart() {
			if _, err := s.ReadBalancedList(); err != nil {
				return nil, err
			}
			continue
		}
		if _, _, err := s.ReadString(); err != nil {
			return nil, err
		}
	}
	if err := s.CloseList(); err != nil {
		return nil, err
	}
	return part, nil
}

func parseBodyParams(s *Scanner) (map[string]string, error) {
	b, err := s.peekByte()
	if err != nil {
		return nil, err
	}
	if b != '(' {
		if _, _, err := s.ReadString(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := s.OpenList(); err != nil {
		return nil, err
	}
	params := map[string]string{}
	for {
		if s.AtListEnd() {
			break
		}
		key := envString(s)
		s.skipSpace()
		val := envString(s)
		params[strings.ToUpper(key)] = val
		s.skipSpace()
	}
	if err := s.CloseList(); err != nil {
		return nil, err
	}
	return params, nil
}
