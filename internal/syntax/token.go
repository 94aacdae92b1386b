// Package syntax implements lexical and syntactic analysis for the kale language.
package syntax

import "fmt"

// Token represents the type of a lexical token.
//
// Values below 256 are raw character tokens: the token is the character
// code itself. Operators and punctuation are never given names of their own,
// which is what lets user code define new operators.
type Token int

const (
	// Special tokens
	_EOF Token = 256 + iota // end of input

	// Literals
	_Name   // identifier: foo, printd
	_Number // 1.5, 42
	_String // "hello"

	// Keywords
	_Def
	_Extern
	_If
	_Then
	_Else
	_For
	_In
	_Binary
	_Unary
	_Var
	_Double  // double (parameter type)
	_StringT // string (parameter type)

	tokenEnd
)

// tokenNames maps tokens to their string representation.
var tokenNames = [...]string{
	_EOF - _EOF:     "EOF",
	_Name - _EOF:    "NAME",
	_Number - _EOF:  "NUMBER",
	_String - _EOF:  "STRING",
	_Def - _EOF:     "def",
	_Extern - _EOF:  "extern",
	_If - _EOF:      "if",
	_Then - _EOF:    "then",
	_Else - _EOF:    "else",
	_For - _EOF:     "for",
	_In - _EOF:      "in",
	_Binary - _EOF:  "binary",
	_Unary - _EOF:   "unary",
	_Var - _EOF:     "var",
	_Double - _EOF:  "double",
	_StringT - _EOF: "string",
}

// String returns the string representation of the token.
func (t Token) String() string {
	switch {
	case t.IsChar():
		if t > ' ' && t < 0x7f {
			return string(rune(t))
		}
		return fmt.Sprintf("char(0x%02x)", int(t))
	case t >= _EOF && t < tokenEnd:
		return tokenNames[t-_EOF]
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// IsChar reports whether t is a raw character token.
func (t Token) IsChar() bool {
	return t >= 0 && t < 256
}

// IsKeyword reports whether t is a keyword token.
func (t Token) IsKeyword() bool {
	return t >= _Def && t <= _StringT
}

// IsEOF reports whether t is the EOF token.
func (t Token) IsEOF() bool {
	return t == _EOF
}

// keywords maps keyword strings to their token type.
var keywords = map[string]Token{
	"def":    _Def,
	"extern": _Extern,
	"if":     _If,
	"then":   _Then,
	"else":   _Else,
	"for":    _For,
	"in":     _In,
	"binary": _Binary,
	"unary":  _Unary,
	"var":    _Var,
	"double": _Double,
	"string": _StringT,
}

// LookupKeyword returns the token for the given identifier string.
// If the identifier is a keyword, returns the keyword token.
// Otherwise, returns _Name.
func LookupKeyword(ident string) Token {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return _Name
}
