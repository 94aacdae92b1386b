package syntax

// EOFByte marks the end of a source buffer. It never occurs in valid UTF-8
// text, so it cannot collide with program text.
const EOFByte = 0xFF

// DefaultTabWidth is the distance between tab stops used for column tracking.
const DefaultTabWidth = 4

// Buffer is the mutable text a compilation reads from. Callers append text
// and then Terminate it; the scanner consumes bytes from the front and clears
// the buffer once it has been read to the end.
type Buffer struct {
	data []byte
	offs int
}

// NewBuffer returns a buffer holding text. The buffer is not terminated.
func NewBuffer(text string) *Buffer {
	b := &Buffer{}
	b.Append(text)
	return b
}

// Append adds text to the end of the buffer.
func (b *Buffer) Append(text string) {
	b.data = append(b.data, text...)
}

// Terminate appends the end-of-file sentinel.
func (b *Buffer) Terminate() {
	b.data = append(b.data, EOFByte)
}

// Len returns the number of bytes not yet consumed.
func (b *Buffer) Len() int {
	return len(b.data) - b.offs
}

// Reset discards all content.
func (b *Buffer) Reset() {
	b.data = nil
	b.offs = 0
}

// read consumes one byte. It reports false when the buffer is exhausted or
// the sentinel is reached.
func (b *Buffer) read() (byte, bool) {
	if b.offs >= len(b.data) {
		b.Reset()
		return 0, false
	}
	c := b.data[b.offs]
	b.offs++
	if b.offs == len(b.data) {
		b.Reset()
	}
	if c == EOFByte {
		b.Reset()
		return 0, false
	}
	return c, true
}

// peek returns the i-th unconsumed byte without consuming it.
func (b *Buffer) peek(i int) (byte, bool) {
	if b.offs+i >= len(b.data) || b.data[b.offs+i] == EOFByte {
		return 0, false
	}
	return b.data[b.offs+i], true
}

// source is a character reader with position tracking.
// Characters are bytes; anything outside ASCII is handed to the scanner as
// a raw character code.
type source struct {
	buf *Buffer

	// Position tracking
	filename string
	tabWidth uint32
	line     uint32 // current line number (1-based)
	col      uint32 // current column number (1-based)

	ch  rune // current character, -1 for EOF
	eof bool // EOF has been reached; nothing more is read

	errh func(line, col uint32, msg string)
}

// newSource creates a source reading from buf.
// The errh function is called for each error; if nil, errors are silently ignored.
func newSource(filename string, buf *Buffer, tabWidth int, errh func(line, col uint32, msg string)) *source {
	if tabWidth <= 0 {
		tabWidth = DefaultTabWidth
	}
	s := &source{
		buf:      buf,
		filename: filename,
		tabWidth: uint32(tabWidth),
		line:     1,
		col:      0,  // incremented to 1 by the first nextch()
		ch:       -1, // "before first char": no position update
		errh:     errh,
	}
	s.nextch()
	return s
}

// nextch reads the next character and updates the position.
//
// (line, col) always refers to the position of s.ch after nextch returns.
// A tab moves the following character to the next tab stop.
func (s *source) nextch() {
	if s.eof {
		return
	}

	switch s.ch {
	case '\n':
		s.line++
		s.col = 1
	case '\t':
		s.col = (s.col-1)/s.tabWidth*s.tabWidth + s.tabWidth + 1
	default:
		s.col++
	}

	c, ok := s.buf.read()
	if !ok {
		s.ch = -1
		s.eof = true
		return
	}
	s.ch = rune(c)
}

// peekIs reports whether the unread bytes start with lit.
func (s *source) peekIs(lit string) bool {
	for i := 0; i < len(lit); i++ {
		c, ok := s.buf.peek(i)
		if !ok || c != lit[i] {
			return false
		}
	}
	return true
}

// pos returns the current position (position of current character).
func (s *source) pos() Pos {
	return NewPos(s.filename, s.line, s.col)
}

// error reports a lexical error at the current position.
func (s *source) error(msg string) {
	s.errorAt(s.pos(), msg)
}

func (s *source) errorAt(pos Pos, msg string) {
	if s.errh != nil {
		s.errh(pos.line, pos.col, msg)
	}
}

// Character classification helpers

// isLetter reports whether r is a letter (a-z, A-Z, or _).
func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_'
}

// isDigit reports whether r is a decimal digit (0-9).
func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// isWhitespace reports whether r is a whitespace character, newlines included.
func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
