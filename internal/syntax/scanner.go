package syntax

import (
	"strconv"
	"strings"
)

// Scanner performs lexical analysis on kale source code.
type Scanner struct {
	source // embedded character reader

	// Current token info
	tok    Token   // token type
	lit    string  // token literal (identifier name, number text, string content)
	num    float64 // numeric value (only valid when tok == _Number)
	tokPos Pos     // token start position

	// Literal accumulation
	litBuf strings.Builder
}

// NewScanner creates a new Scanner reading from buf. Columns advance to the
// next multiple of tabWidth on a tab; a non-positive width selects
// DefaultTabWidth.
// The errh function is called for each lexical error; if nil, errors are silently ignored.
func NewScanner(filename string, buf *Buffer, tabWidth int, errh func(line, col uint32, msg string)) *Scanner {
	return &Scanner{
		source: *newSource(filename, buf, tabWidth, errh),
	}
}

// Next advances to the next token. At end of input it keeps returning _EOF.
func (s *Scanner) Next() {
redo:
	s.skipWhitespace()

	s.tokPos = s.pos()

	switch {
	case s.ch < 0:
		s.tok = _EOF
		s.lit = ""

	case isLetter(s.ch):
		s.scanIdent()

	case isDigit(s.ch) || s.ch == '.':
		s.scanNumber()

	case s.ch == '"':
		s.scanString()

	case s.ch == '#':
		s.skipLineComment()
		goto redo

	case s.ch == '\'' && s.peekIs("''"):
		s.skipBlockComment()
		goto redo

	default:
		s.tok = Token(s.ch)
		s.lit = string([]byte{byte(s.ch)})
		s.nextch()
	}
}

// Token returns the current token type.
func (s *Scanner) Token() Token {
	return s.tok
}

// Literal returns the current token's literal text.
func (s *Scanner) Literal() string {
	return s.lit
}

// Number returns the value of the current _Number token.
func (s *Scanner) Number() float64 {
	return s.num
}

// Pos returns the current token's start position.
func (s *Scanner) Pos() Pos {
	return s.tokPos
}

// skipWhitespace skips spaces, tabs and newlines.
func (s *Scanner) skipWhitespace() {
	for isWhitespace(s.ch) {
		s.nextch()
	}
}

// startLit begins accumulating a literal.
func (s *Scanner) startLit() {
	s.litBuf.Reset()
	s.litBuf.WriteByte(byte(s.ch))
}

// continueLit adds the current character to the literal being accumulated.
func (s *Scanner) continueLit() {
	s.litBuf.WriteByte(byte(s.ch))
}

// stopLit ends literal accumulation and returns the accumulated string.
func (s *Scanner) stopLit() string {
	return s.litBuf.String()
}

// scanIdent scans an identifier or keyword.
func (s *Scanner) scanIdent() {
	s.startLit()
	s.nextch()

	for isLetter(s.ch) || isDigit(s.ch) {
		s.continueLit()
		s.nextch()
	}

	s.lit = s.stopLit()
	s.tok = LookupKeyword(s.lit)
}

// scanNumber scans a maximal run of digits and dots.
func (s *Scanner) scanNumber() {
	s.startLit()
	s.nextch()

	for isDigit(s.ch) || s.ch == '.' {
		s.continueLit()
		s.nextch()
	}

	s.lit = s.stopLit()
	s.num = parseNumber(s.lit)
	s.tok = _Number
}

// parseNumber converts the longest prefix of lit that forms a decimal
// number, the way strtod does. Extra dots end the number; "." is 0.
func parseNumber(lit string) float64 {
	end := 0
	dot := false
	for end < len(lit) {
		if lit[end] == '.' {
			if dot {
				break
			}
			dot = true
		}
		end++
	}

	v, err := strconv.ParseFloat(lit[:end], 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v
		}
		return 0
	}
	return v
}

// scanString scans a string literal. The content is taken verbatim; there
// are no escape sequences.
func (s *Scanner) scanString() {
	s.nextch() // skip opening "
	s.litBuf.Reset()

	for {
		switch {
		case s.ch == '"':
			s.nextch()
			s.lit = s.litBuf.String()
			s.tok = _String
			return

		case s.ch < 0:
			s.errorAt(s.tokPos, "string not terminated")
			s.lit = s.litBuf.String()
			s.tok = _String
			return

		default:
			s.continueLit()
			s.nextch()
		}
	}
}

// skipLineComment skips a comment from # to the end of the line.
func (s *Scanner) skipLineComment() {
	for s.ch != '\n' && s.ch != '\r' && s.ch >= 0 {
		s.nextch()
	}
}

// skipBlockComment skips a ''' ... ''' comment. An unterminated comment is
// reported and scanning resumes at end of input.
func (s *Scanner) skipBlockComment() {
	start := s.pos()
	s.nextch()
	s.nextch()
	s.nextch() // past the opening '''

	for s.ch >= 0 {
		if s.ch == '\'' && s.peekIs("''") {
			s.nextch()
			s.nextch()
			s.nextch()
			return
		}
		s.nextch()
	}
	s.errorAt(start, "unterminated block comment")
}
