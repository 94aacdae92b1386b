// Package host is the environment compiled programs run in: the routines
// they may call, the queue their effects travel through, the frame loop
// that applies those effects, and the worker that compiles and runs
// programs on request.
package host

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommandKind identifies what a Command asks the host to do.
type CommandKind uint8

const (
	CmdPrint CommandKind = iota
	CmdClear
	CmdSleep
	CmdRectangle
	CmdSprite
	CmdSetPosition
	CmdModel
)

var commandNames = [...]string{
	CmdPrint:       "print",
	CmdClear:       "clear",
	CmdSleep:       "sleep",
	CmdRectangle:   "rectangle",
	CmdSprite:      "sprite",
	CmdSetPosition: "set_position",
	CmdModel:       "model3d",
}

func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return "CommandKind(" + strconv.Itoa(int(k)) + ")"
}

// Command is one effect requested by a running program.
type Command struct {
	Kind  CommandKind
	Shape int           // shape id for Rectangle, Sprite and SetPosition
	Text  string        // Print text, Sprite and Model path
	Args  []float64     // geometry
	Sleep time.Duration // Sleep length
}

func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Kind.String())
	switch c.Kind {
	case CmdPrint:
		return c.Text
	case CmdSleep:
		fmt.Fprintf(&b, " %v", c.Sleep)
		return b.String()
	case CmdRectangle, CmdSprite, CmdSetPosition:
		fmt.Fprintf(&b, " %d", c.Shape)
	}
	if c.Text != "" {
		fmt.Fprintf(&b, " %q", c.Text)
	}
	if len(c.Args) > 0 {
		fmt.Fprintf(&b, " %v", c.Args)
	}
	return b.String()
}
