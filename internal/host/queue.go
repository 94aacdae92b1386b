package host

import "sync"

// TaskQueue is a FIFO of commands shared between the program, which
// pushes, and the frame loop, which pops.
type TaskQueue struct {
	mu   sync.Mutex
	cmds []Command
}

// Push appends c.
func (q *TaskQueue) Push(c Command) {
	q.mu.Lock()
	q.cmds = append(q.cmds, c)
	q.mu.Unlock()
}

// Pop removes and returns the oldest command.
func (q *TaskQueue) Pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.cmds) == 0 {
		return Command{}, false
	}
	c := q.cmds[0]
	q.cmds[0] = Command{}
	q.cmds = q.cmds[1:]
	return c, true
}

// Len returns the number of queued commands.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cmds)
}

// Reset drops every queued command.
func (q *TaskQueue) Reset() {
	q.mu.Lock()
	q.cmds = nil
	q.mu.Unlock()
}
