package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
)

// Writer persists one session's snapshots. Implementations talk to the
// remote store; the engine never calls them.
type Writer interface {
	SaveProgress(ctx context.Context, p exam.Progress) error
	SaveResult(ctx context.Context, r exam.Result) error
}

// StoreWriter binds an exam.Store to a session id.
type StoreWriter struct {
	Store     exam.Store
	SessionID string
}

func (w StoreWriter) SaveProgress(ctx context.Context, p exam.Progress) error {
	return w.Store.SaveProgress(ctx, w.SessionID, p)
}

func (w StoreWriter) SaveResult(ctx context.Context, r exam.Result) error {
	return w.Store.SaveResult(ctx, w.SessionID, r)
}

var ErrPersistence = errors.New("persistence failed")

// PersistError reports a write that failed after retries. In-memory state is
// untouched, so the caller may retry later.
type PersistError struct {
	Op       string // "progress" or "result"
	Attempts int
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("save %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == ErrPersistence }

// Recoverable is false when retrying cannot help: the session is gone or
// already holds a final result.
func (e *PersistError) Recoverable() bool {
	return !errors.Is(e.Err, exam.ErrNotFound) && !errors.Is(e.Err, exam.ErrFinished)
}

// RetryPolicy bounds how hard a single save tries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration // doubled after each failure
}

var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 250 * time.Millisecond}

func (p RetryPolicy) do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	wait := p.Backoff
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		pe := &PersistError{Op: op, Attempts: i, Err: err}
		if !pe.Recoverable() || i == attempts {
			return pe
		}
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return &PersistError{Op: op, Attempts: i, Err: err}
			case <-t.C:
			}
			wait *= 2
		}
	}
	return &PersistError{Op: op, Attempts: attempts, Err: err}
}
