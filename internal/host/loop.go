package host

import (
	"context"
	"sync"
	"time"
)

// Loop applies the effects of a finished program a frame at a time. It is
// the only consumer of its queue.
type Loop struct {
	q      *TaskQueue
	p      Presenter
	budget int // commands per frame; 0 for no limit

	mu     sync.Mutex
	active bool
	wake   time.Time // end of the current sleep, zero if not sleeping
	done   func()
}

// NewLoop returns a loop draining q into p, at most budget commands per
// frame.
func NewLoop(q *TaskQueue, p Presenter, budget int) *Loop {
	return &Loop{q: q, p: p, budget: budget}
}

// Queue returns the queue the loop drains.
func (l *Loop) Queue() *TaskQueue { return l.q }

// Start begins draining the effects of a program. done is called from
// Frame once every command has been applied and the last sleep has
// expired.
func (l *Loop) Start(done func()) {
	l.mu.Lock()
	l.active = true
	l.wake = time.Time{}
	l.done = done
	l.mu.Unlock()
}

// Discard drops all pending effects without applying them.
func (l *Loop) Discard() {
	l.mu.Lock()
	l.q.Reset()
	l.active = false
	l.wake = time.Time{}
	l.done = nil
	l.mu.Unlock()
}

// Active reports whether a program's effects are still being applied.
func (l *Loop) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Sleeping reports whether draining is paused by a sleep command.
func (l *Loop) Sleeping() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.wake.IsZero()
}

// Frame applies queued commands in order and returns how many it
// applied. It never blocks: a sleep command pauses draining until a frame
// at or after its deadline.
func (l *Loop) Frame(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return 0
	}
	if !l.wake.IsZero() {
		if now.Before(l.wake) {
			return 0
		}
		l.wake = time.Time{}
	}

	n := 0
	for l.budget <= 0 || n < l.budget {
		c, ok := l.q.Pop()
		if !ok {
			break
		}
		n++
		l.apply(c, now)
		if !l.wake.IsZero() {
			return n
		}
	}

	if l.q.Len() == 0 {
		l.active = false
		done := l.done
		l.done = nil
		if done != nil {
			done()
		}
	}
	return n
}

func (l *Loop) apply(c Command, now time.Time) {
	switch c.Kind {
	case CmdPrint:
		l.p.Print(c.Text)
	case CmdClear:
		l.p.Clear()
	case CmdSleep:
		l.wake = now.Add(c.Sleep)
	default:
		l.p.Draw(c)
	}
}

// Run calls Frame every interval until ctx is done.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			l.Frame(now)
		}
	}
}
