package wire

import (
	"strings"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// Scanner is the parse-status cursor of §4.C: it walks a separator-tokenised
// string one token at a time. Separators are any of the bytes in Separators
// (by default space and tab, matching MX_RECORD_FIELD_SEPARATORS). A token
// beginning with '"' is read as a double-quoted string with '\\'/'"' escapes
// and is returned with the quotes and escaping removed.
type Scanner struct {
	src        string
	pos        int
	separators string
}

// DefaultSeparators matches the original MX_RECORD_FIELD_SEPARATORS.
const DefaultSeparators = " \t"

// NewScanner returns a Scanner positioned at the start of src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: src, separators: DefaultSeparators}
}

// Remaining reports whether any non-separator input remains.
func (s *Scanner) Remaining() bool {
	return s.peekNonSeparator() < len(s.src)
}

func (s *Scanner) peekNonSeparator() int {
	i := s.pos
	for i < len(s.src) && strings.ContainsRune(s.separators, rune(s.src[i])) {
		i++
	}
	return i
}

// skipSeparators advances past leading separator bytes.
func (s *Scanner) skipSeparators() {
	s.pos = s.peekNonSeparator()
}

// NextRaw returns the next raw token without any quote interpretation; used
// for structural tokens "(" and ")".
func (s *Scanner) NextRaw() (string, error) {
	s.skipSeparators()
	if s.pos >= len(s.src) {
		return "", mxerr.New("wire", mxerr.UnparseableString, "unexpected end of input")
	}
	if s.src[s.pos] == '(' || s.src[s.pos] == ')' {
		tok := string(s.src[s.pos])
		s.pos++
		return tok, nil
	}
	start := s.pos
	for s.pos < len(s.src) &&
		!strings.ContainsRune(s.separators, rune(s.src[s.pos])) &&
		s.src[s.pos] != '(' && s.src[s.pos] != ')' {
		s.pos++
	}
	return s.src[start:s.pos], nil
}

// PeekRaw returns the next raw token (as NextRaw would) without consuming it.
func (s *Scanner) PeekRaw() (string, error) {
	save := s.pos
	tok, err := s.NextRaw()
	s.pos = save
	return tok, err
}

// NextToken consumes and returns the next token, honouring double-quoted
// string escaping. maxStringLen, if > 0, truncates an over-long quoted
// string rather than erroring, matching the original's fixed-size token
// buffers.
func (s *Scanner) NextToken(maxStringLen int) (string, error) {
	s.skipSeparators()
	if s.pos >= len(s.src) {
		return "", mxerr.New("wire", mxerr.UnparseableString, "unexpected end of input")
	}

	if s.src[s.pos] != '"' {
		return s.NextRaw()
	}

	var b strings.Builder
	i := s.pos + 1
	closed := false
	for i < len(s.src) {
		c := s.src[i]
		if c == '\\' && i+1 < len(s.src) {
			next := s.src[i+1]
			if next == '"' || next == '\\' {
				b.WriteByte(next)
				i += 2
				continue
			}
		}
		if c == '"' {
			closed = true
			i++
			break
		}
		b.WriteByte(c)
		i++
	}
	if !closed {
		return "", mxerr.New("wire", mxerr.UnparseableString, "unterminated quoted string")
	}
	s.pos = i

	out := b.String()
	if maxStringLen > 0 && len(out) > maxStringLen {
		out = out[:maxStringLen]
	}
	return out, nil
}

// Expect consumes the next raw token and errors unless it equals want.
func (s *Scanner) Expect(want string) error {
	got, err := s.NextRaw()
	if err != nil {
		return err
	}
	if got != want {
		return mxerr.Newf("wire", mxerr.UnparseableString, "expected %q, got %q", want, got)
	}
	return nil
}
