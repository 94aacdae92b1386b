package host

import (
	"fmt"
	"io"
	"sync"
)

// Presenter makes commands visible.
type Presenter interface {
	Print(text string)
	Clear()
	Draw(c Command)
}

// TextPresenter writes one line per command.
type TextPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextPresenter returns a presenter writing to w.
func NewTextPresenter(w io.Writer) *TextPresenter {
	return &TextPresenter{w: w}
}

func (p *TextPresenter) Print(text string) { p.line(text) }
func (p *TextPresenter) Clear()            { p.line("clear") }
func (p *TextPresenter) Draw(c Command)    { p.line(c.String()) }

func (p *TextPresenter) line(s string) {
	p.mu.Lock()
	fmt.Fprintln(p.w, s)
	p.mu.Unlock()
}
