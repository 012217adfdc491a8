package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/logging"
)

// Ticker is the part of time.Ticker the runner uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

const (
	DefaultTickInterval     = time.Second
	DefaultAutosaveInterval = 30 * time.Second
)

// Runner drives the two periodic tasks of a live session: the one-second
// clock and the coarser autosave. Both read the engine through its lock.
// Cancelling the context passed to Run stops both.
type Runner struct {
	Engine *Engine
	Writer Writer

	TickInterval     time.Duration
	AutosaveInterval time.Duration
	NewTicker        TickerFunc
	Retry            RetryPolicy

	// OnError receives every *PersistError. It must not block.
	OnError func(error)
	// OnFinish is called once the final result is written (or given up on).
	OnFinish func(exam.Result)
	Log      logging.Logger

	mu    sync.Mutex
	saved bool // final result written for the current run
}

func (r *Runner) defaults() {
	if r.TickInterval <= 0 {
		r.TickInterval = DefaultTickInterval
	}
	if r.AutosaveInterval <= 0 {
		r.AutosaveInterval = DefaultAutosaveInterval
	}
	if r.NewTicker == nil {
		r.NewTicker = NewRealTicker
	}
	if r.Retry.Attempts == 0 {
		r.Retry = DefaultRetry
	}
	if r.Log == nil {
		r.Log = logging.Nop()
	}
}

// Run blocks until the session finishes or ctx is cancelled. On finish it
// writes the final result; on teardown it flushes one last progress snapshot.
// The returned error is a *PersistError from that final write, if any.
func (r *Runner) Run(ctx context.Context) error {
	r.defaults()
	r.mu.Lock()
	r.saved = false
	r.mu.Unlock()

	r.Engine.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.clock(gctx) })
	g.Go(func() error { return r.autosave(gctx) })
	_ = g.Wait()

	// both tasks have stopped; finish the write even if ctx is already gone
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if r.Engine.State() == Finished {
		return r.SaveResult(fctx)
	}
	return r.SaveProgress(fctx)
}

func (r *Runner) clock(ctx context.Context) error {
	t := r.NewTicker(r.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.Engine.Done(): // re-read: a restart opens a new channel
			return nil
		case <-t.C():
			if r.Engine.Tick() {
				r.Log.Info("time expired, session finalized")
			}
		}
	}
}

func (r *Runner) autosave(ctx context.Context) error {
	t := r.NewTicker(r.AutosaveInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.Engine.Done():
			return nil
		case <-t.C():
			_ = r.SaveProgress(ctx)
		}
	}
}

// SaveProgress writes the current snapshot if the session is still running.
func (r *Runner) SaveProgress(ctx context.Context) error {
	r.defaults()
	p, ok := r.Engine.SnapshotIfRunning()
	if !ok {
		return nil
	}
	err := r.Retry.do(ctx, "progress", func(ctx context.Context) error {
		return r.Writer.SaveProgress(ctx, p)
	})
	if err != nil {
		r.report(err)
		return err
	}
	r.Log.Debug("progress saved", "question", p.CurrentQuestion, "answered", len(p.SelectedAnswers))
	return nil
}

// SaveResult writes the final result once per run.
func (r *Runner) SaveResult(ctx context.Context) error {
	r.defaults()
	res, ok := r.Engine.FinalResult()
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved {
		return nil
	}
	err := r.Retry.do(ctx, "result", func(ctx context.Context) error {
		return r.Writer.SaveResult(ctx, res)
	})
	if errors.Is(err, exam.ErrFinished) {
		// the store already holds a final result for this session
		err = nil
	}
	if err != nil {
		r.report(err)
		if pe, ok := err.(*PersistError); ok && pe.Recoverable() {
			return err
		}
	}
	r.saved = true
	if err == nil {
		r.Log.Info("result saved", "all_or_nothing", res.AllOrNothing, "partial", res.Partial, "partial_negative", res.PartialNegative)
	}
	if r.OnFinish != nil {
		r.OnFinish(res)
	}
	return err
}

// Saved reports whether the final result of the current run was written.
func (r *Runner) Saved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}

func (r *Runner) report(err error) {
	r.Log.Warn("save failed", "err", err)
	if r.OnError != nil {
		r.OnError(err)
	}
}
