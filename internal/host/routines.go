package host

import (
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/you-not-fish/kale/internal/jit"
	"github.com/you-not-fish/kale/internal/syntax"
)

const (
	num = syntax.TypeDouble
	str = syntax.TypeString
)

// routines implements the standard library on top of a task queue.
type routines struct {
	q       *TaskQueue
	console io.Writer

	mu    sync.Mutex
	shape int // last shape id handed out
}

// Standard returns a registry with the standard routines. putchard writes
// to console at once; every other routine pushes a command to q. Shape
// constructors return the id of the new shape, everything else 0.
func Standard(q *TaskQueue, console io.Writer) *Registry {
	rs := &routines{q: q, console: console}
	r := NewRegistry()
	for _, rt := range []Routine{
		{"putchard", []syntax.ParamType{num}, rs.putchard},
		{"printd", []syntax.ParamType{num}, rs.printd},
		{"printcl", []syntax.ParamType{str}, rs.printcl},
		{"string_test", []syntax.ParamType{str}, rs.printcl},
		{"clear", nil, rs.clear},
		{"sleep_s", []syntax.ParamType{num}, rs.sleep},
		{"rectangle0", []syntax.ParamType{num, num, num, num}, rs.rectangle},
		{"rectangle1", []syntax.ParamType{num, num, num, num, num, num}, rs.rectangle},
		{"sprite0", []syntax.ParamType{str, num, num, num, num}, rs.sprite},
		{"sprite1", []syntax.ParamType{str, num, num, num, num, num}, rs.sprite},
		{"sprite2", []syntax.ParamType{str, num, num, num, num, num, num, num}, rs.sprite},
		{"set_position", []syntax.ParamType{num, num, num}, rs.setPosition},
		{"model3d", []syntax.ParamType{str, num, num, num, num}, rs.model},
	} {
		if err := r.Register(rt); err != nil {
			panic(err)
		}
	}
	return r
}

func (rs *routines) putchard(args []jit.Arg) (float64, error) {
	if rs.console != nil {
		if _, err := rs.console.Write([]byte{byte(args[0].Num)}); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// printd prints the integer part of its argument.
func (rs *routines) printd(args []jit.Arg) (float64, error) {
	rs.q.Push(Command{Kind: CmdPrint, Text: strconv.FormatInt(int64(args[0].Num), 10)})
	return 0, nil
}

func (rs *routines) printcl(args []jit.Arg) (float64, error) {
	rs.q.Push(Command{Kind: CmdPrint, Text: args[0].Str})
	return 0, nil
}

func (rs *routines) clear([]jit.Arg) (float64, error) {
	rs.mu.Lock()
	rs.shape = 0
	rs.mu.Unlock()
	rs.q.Push(Command{Kind: CmdClear})
	return 0, nil
}

func (rs *routines) sleep(args []jit.Arg) (float64, error) {
	d := time.Duration(args[0].Num * float64(time.Second))
	rs.q.Push(Command{Kind: CmdSleep, Sleep: d})
	return 0, nil
}

func (rs *routines) newShape() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.shape++
	return rs.shape
}

func (rs *routines) rectangle(args []jit.Arg) (float64, error) {
	id := rs.newShape()
	rs.q.Push(Command{Kind: CmdRectangle, Shape: id, Args: nums(args)})
	return float64(id), nil
}

func (rs *routines) sprite(args []jit.Arg) (float64, error) {
	id := rs.newShape()
	rs.q.Push(Command{Kind: CmdSprite, Shape: id, Text: args[0].Str, Args: nums(args[1:])})
	return float64(id), nil
}

func (rs *routines) setPosition(args []jit.Arg) (float64, error) {
	rs.q.Push(Command{Kind: CmdSetPosition, Shape: int(args[0].Num), Args: nums(args[1:])})
	return 0, nil
}

func (rs *routines) model(args []jit.Arg) (float64, error) {
	rs.q.Push(Command{Kind: CmdModel, Text: args[0].Str, Args: nums(args[1:])})
	return 0, nil
}

func nums(args []jit.Arg) []float64 {
	xs := make([]float64, len(args))
	for i, a := range args {
		xs[i] = a.Num
	}
	return xs
}
