package session

import (
	"sort"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
)

// Snapshot captures everything needed to resume: pointer, selections, clock
// and, in practice sessions, which questions were revealed. Scores are not
// stored since they derive from the selections.
func (e *Engine) Snapshot() exam.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// SnapshotIfRunning returns a snapshot only while the session is in
// progress. The state check and the copy happen under one lock.
func (e *Engine) SnapshotIfRunning() (exam.Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != InProgress {
		return exam.Progress{}, false
	}
	return e.snapshotLocked(), true
}

func (e *Engine) snapshotLocked() exam.Progress {
	p := exam.Progress{
		CurrentQuestion: e.current,
		SelectedAnswers: copySelections(e.selected),
		TimeLeft:        e.timeLeft,
		Elapsed:         e.elapsed,
		SavedAt:         e.now(),
	}
	for i := range e.revealed {
		p.Revealed = append(p.Revealed, i)
	}
	sort.Ints(p.Revealed)
	return p
}

// Restore rebuilds an in-progress engine from a snapshot. Selections for
// unknown questions or unpopulated options are dropped; the pointer is clamped.
// A timed exam snapshot with no time left restores as already finished.
func Restore(questions []exam.Question, p exam.Progress, opts ...Option) (*Engine, error) {
	e, err := New(questions, opts...)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = InProgress
	e.current = clamp(p.CurrentQuestion, len(e.questions))
	e.selected = sanitize(e.questions, p.SelectedAnswers)
	if e.flow == FlowExam && e.duration > 0 {
		e.timeLeft = p.TimeLeft
		if e.timeLeft > e.duration {
			e.timeLeft = e.duration
		}
		if e.timeLeft <= 0 {
			e.timeLeft = 0
			e.finalizeLocked()
			return e, nil
		}
	}
	if p.Elapsed > 0 {
		e.elapsed = p.Elapsed
	}
	if e.flow == FlowPractice {
		for _, i := range p.Revealed {
			if i < 0 || i >= len(e.questions) || e.revealed[i] {
				continue
			}
			e.revealed[i] = true
			e.running.Add(e.gradeLocked(i))
		}
	}
	return e, nil
}

// RestoreFinished rebuilds an engine holding a final result.
func RestoreFinished(questions []exam.Question, r exam.Result, opts ...Option) (*Engine, error) {
	e, err := New(questions, opts...)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = sanitize(e.questions, r.SelectedAnswers)
	r.Finished = true
	r.SelectedAnswers = copySelections(e.selected)
	e.result = &r
	e.state = Finished
	close(e.done)
	return e, nil
}

// FromSession picks the flow and duration from the stored document and
// resumes from its result or progress, if any. Caller options win.
func FromSession(s exam.Session, opts ...Option) (*Engine, error) {
	base := []Option{WithFlow(FlowFor(s.Kind))}
	if s.DurationSec > 0 {
		base = append(base, WithDuration(time.Duration(s.DurationSec)*time.Second))
	}
	opts = append(base, opts...)
	switch {
	case s.Result != nil:
		return RestoreFinished(s.Questions, *s.Result, opts...)
	case s.Progress != nil:
		return Restore(s.Questions, *s.Progress, opts...)
	default:
		return New(s.Questions, opts...)
	}
}

func sanitize(qs []exam.Question, in map[int]exam.Selection) map[int]exam.Selection {
	out := make(map[int]exam.Selection, len(in))
	for i, sel := range in {
		if i < 0 || i >= len(qs) {
			continue
		}
		kept := make([]exam.Label, 0, len(sel))
		for _, l := range sel {
			if qs[i].HasOption(l) {
				kept = append(kept, l)
			}
		}
		if len(kept) > 0 {
			out[i] = exam.NewSelection(kept...)
		}
	}
	return out
}
