package driver

import (
	"fmt"

	"github.com/you-not-fish/kale/internal/syntax"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Diagnostic is one entry of the session log.
type Diagnostic struct {
	Pos      syntax.Pos
	Msg      string
	Severity Severity
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", d.Pos, d.Msg)
	}
	return d.Msg
}

// State is the state of a Session.
type State int

const (
	StateIdle State = iota
	StatePrimed
	StateParsing
	StateFinalized
	StateExecuted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:      "Idle",
	StatePrimed:    "Primed",
	StateParsing:   "Parsing",
	StateFinalized: "Finalized",
	StateExecuted:  "Executed",
	StateFailed:    "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// report appends a diagnostic to the log and passes it to the sink.
func (s *Session) report(pos syntax.Pos, msg string, sev Severity) {
	d := Diagnostic{Pos: pos, Msg: msg, Severity: sev}
	s.log = append(s.log, d)
	if s.cfg.Diag != nil {
		s.cfg.Diag(d.String(), sev)
	}
}

// lexError reports a scanner error. Scanning continues.
func (s *Session) lexError(line, col uint32, msg string) {
	s.report(syntax.NewPos(s.cfg.Filename, line, col), msg, Error)
}

// parseError reports a syntax error. The item is skipped but the unit
// may still compile.
func (s *Session) parseError(pos syntax.Pos, msg string) {
	s.report(pos, msg, Error)
}

// codegenError reports a code generation error, which fails the unit.
func (s *Session) codegenError(pos syntax.Pos, msg string) {
	s.report(pos, msg, Error)
	s.compiled = false
}

// Log returns the diagnostics of the current unit.
func (s *Session) Log() []Diagnostic { return s.log }

// Errors returns the number of Error diagnostics in the log.
func (s *Session) Errors() int {
	n := 0
	for _, d := range s.log {
		if d.Severity == Error {
			n++
		}
	}
	return n
}
