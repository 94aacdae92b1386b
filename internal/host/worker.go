package host

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/you-not-fish/kale/internal/driver"
	"github.com/you-not-fish/kale/internal/syntax"
)

// ErrBusy is returned by Submit while a program is compiling, running or
// still having its effects applied.
var ErrBusy = errors.New("host: a program is already running")

// Result is the outcome of one compile request.
type Result struct {
	Value float64
	Err   error
	Log   []driver.Diagnostic
}

// Worker compiles and runs one program at a time.
type Worker struct {
	cfg     driver.Config
	loop    *Loop
	reqs    chan string
	results chan Result
	busy    atomic.Bool
}

// NewWorker returns a worker compiling with cfg and handing the effects
// of each successful run to loop.
func NewWorker(cfg driver.Config, loop *Loop) *Worker {
	return &Worker{
		cfg:     cfg,
		loop:    loop,
		reqs:    make(chan string, 1),
		results: make(chan Result, 1),
	}
}

// Submit hands src to the worker. It fails with ErrBusy, and reports a
// warning, unless the previous program has been fully processed.
func (w *Worker) Submit(src string) error {
	if !w.busy.CompareAndSwap(false, true) {
		if w.cfg.Diag != nil {
			w.cfg.Diag("compile request rejected: a program is still running", driver.Warning)
		}
		return ErrBusy
	}
	w.reqs <- src
	return nil
}

// Busy reports whether a submitted program has not been fully processed.
func (w *Worker) Busy() bool { return w.busy.Load() }

// Results delivers the outcome of every request. The worker waits for
// each result to be received before taking the next request.
func (w *Worker) Results() <-chan Result { return w.results }

// Run serves requests until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case src := <-w.reqs:
			res := w.run(ctx, src)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// run compiles and executes src in a fresh session.
func (w *Worker) run(ctx context.Context, src string) Result {
	w.loop.Discard()
	s := driver.NewSession(w.cfg)
	v, err := s.Run(ctx, src)
	res := Result{Value: v, Err: err, Log: s.Log()}
	if err != nil {
		w.loop.Discard()
		w.busy.Store(false)
		return res
	}
	w.loop.Start(func() { w.busy.Store(false) })
	return res
}

// Configure returns cfg with every routine of r declared and r as the
// resolver.
func Configure(cfg driver.Config, r *Registry) driver.Config {
	cfg.Externs = append(append([]*syntax.Prototype(nil), cfg.Externs...), r.Prototypes()...)
	cfg.Resolver = r
	return cfg
}

// Serve runs the worker and a loop calling Frame every interval until
// ctx is done or either fails.
func Serve(ctx context.Context, w *Worker, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })
	g.Go(func() error { return w.loop.Run(ctx, interval) })
	return g.Wait()
}
