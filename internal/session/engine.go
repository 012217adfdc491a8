package session

import (
	"sync"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

type State int

const (
	NotStarted State = iota
	InProgress
	Finished
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	default:
		return "not_started"
	}
}

// Flow selects how answers are locked and scored.
type Flow string

const (
	// FlowExam lets the learner edit any answer until the session is submitted
	// or the countdown expires; scores are only computed at the end.
	FlowExam Flow = "exam"
	// FlowPractice reveals each question on demand, locking it and adding its
	// credit to the running totals.
	FlowPractice Flow = "practice"
)

// FlowFor maps a stored session kind to its flow.
func FlowFor(k exam.Kind) Flow {
	if k == exam.KindExam {
		return FlowExam
	}
	return FlowPractice
}

type Option func(*Engine)

func WithFlow(f Flow) Option                { return func(e *Engine) { e.flow = f } }
func WithGrader(g *grading.Grader) Option   { return func(e *Engine) { e.grader = g } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithDuration(d time.Duration) Option {
	return func(e *Engine) { e.duration = int(d / time.Second) }
}

// Engine is the single state container of one learner session. Every method
// takes the lock, so timer callbacks and learner actions always observe the
// latest committed pointer and selections together.
type Engine struct {
	mu sync.Mutex

	questions []exam.Question
	flow      Flow
	duration  int // seconds, 0 = untimed
	grader    *grading.Grader
	now       func() time.Time

	state    State
	current  int
	selected map[int]exam.Selection
	revealed map[int]bool
	running  grading.Tally
	timeLeft int
	elapsed  int
	paused   bool
	pending  Action
	result   *exam.Result
	done     chan struct{}
}

// New validates the questions and returns an engine in NotStarted.
func New(questions []exam.Question, opts ...Option) (*Engine, error) {
	if err := exam.ValidateQuestions(questions); err != nil {
		return nil, err
	}
	e := &Engine{
		questions: append([]exam.Question(nil), questions...),
		flow:      FlowExam,
		grader:    grading.NewGrader(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.duration < 0 {
		e.duration = 0
	}
	e.reset()
	e.state = NotStarted
	return e, nil
}

func (e *Engine) reset() {
	e.state = InProgress
	e.current = 0
	e.selected = map[int]exam.Selection{}
	e.revealed = map[int]bool{}
	e.running = grading.Tally{}
	e.timeLeft = e.duration
	e.elapsed = 0
	e.paused = false
	e.pending = ActionNone
	e.result = nil
	e.done = make(chan struct{})
}

// Start moves a fresh engine to InProgress. It reports false if already started.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != NotStarted {
		return false
	}
	e.state = InProgress
	return true
}

// Answer toggles label on the current question. Illegal calls are ignored
// and report false: not in progress, empty session, unknown label, or a
// question already revealed.
func (e *Engine) Answer(l exam.Label) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != InProgress || len(e.questions) == 0 {
		return false
	}
	if e.revealed[e.current] || !e.questions[e.current].HasOption(l) {
		return false
	}
	sel := e.selected[e.current].Toggle(l)
	if len(sel) == 0 {
		delete(e.selected, e.current)
	} else {
		e.selected[e.current] = sel
	}
	return true
}

// Reveal locks the current question and folds its credit into the running
// totals. Only the practice flow reveals; a question is counted once.
func (e *Engine) Reveal() (grading.Contribution, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flow != FlowPractice || e.state != InProgress || len(e.questions) == 0 || e.revealed[e.current] {
		return grading.Contribution{}, false
	}
	c := e.gradeLocked(e.current)
	e.revealed[e.current] = true
	e.running.Add(c)
	return c, true
}

// Next advances the pointer; on the last question it finalizes instead and
// reports true.
func (e *Engine) Next() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != InProgress {
		return false
	}
	if e.current >= len(e.questions)-1 {
		e.finalizeLocked()
		return true
	}
	e.current++
	return false
}

func (e *Engine) Prev() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == InProgress && e.current > 0 {
		e.current--
	}
}

// GoTo jumps to question i, clamped to the session.
func (e *Engine) GoTo(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != InProgress {
		return
	}
	e.current = clamp(i, len(e.questions))
}

// Tick advances the session clock by one second. In a timed exam it counts
// down and finalizes on expiry, reporting true; otherwise it counts up.
// Paused engines ignore ticks.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != InProgress || e.paused {
		return false
	}
	if e.flow == FlowExam && e.duration > 0 {
		e.timeLeft--
		if e.timeLeft <= 0 {
			e.timeLeft = 0
			e.finalizeLocked()
			return true
		}
		return false
	}
	e.elapsed++
	return false
}

func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

func (e *Engine) finalizeLocked() {
	if e.state == Finished {
		return
	}
	if e.state == NotStarted {
		e.state = InProgress
	}
	e.result = &exam.Result{
		Finished:        true,
		Tuple:           exam.Score(e.grader, e.questions, e.selected),
		SelectedAnswers: copySelections(e.selected),
		UpdatedAt:       e.now(),
	}
	e.state = Finished
	e.pending = ActionNone
	close(e.done)
}

// Done is closed when the current run finalizes. Restart opens a new one.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Scores recomputes the full tuple from the current selections.
func (e *Engine) Scores() grading.Tuple {
	e.mu.Lock()
	defer e.mu.Unlock()
	return exam.Score(e.grader, e.questions, e.selected)
}

// Running normalizes the revealed questions' totals over the whole session.
func (e *Engine) Running() grading.Tuple {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grader.Normalize(e.running, len(e.questions))
}

// FinalResult returns the final snapshot once finished.
func (e *Engine) FinalResult() (exam.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return exam.Result{}, false
	}
	r := *e.result
	r.SelectedAnswers = copySelections(r.SelectedAnswers)
	return r, true
}

// View is a consistent read of the navigation state.
type View struct {
	State     State
	Flow      Flow
	Current   int
	Total     int
	Question  *exam.Question
	Selection exam.Selection
	Revealed  bool
	Answered  int
	TimeLeft  int
	Elapsed   int
	Paused    bool
	Pending   Action
}

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := View{
		State:    e.state,
		Flow:     e.flow,
		Current:  e.current,
		Total:    len(e.questions),
		Revealed: e.revealed[e.current],
		Answered: len(e.selected),
		TimeLeft: e.timeLeft,
		Elapsed:  e.elapsed,
		Paused:   e.paused,
		Pending:  e.pending,
	}
	if len(e.questions) > 0 {
		q := e.questions[e.current]
		v.Question = &q
		v.Selection = append(exam.Selection(nil), e.selected[e.current]...)
	}
	return v
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) Selection(i int) exam.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(exam.Selection(nil), e.selected[i]...)
}

func (e *Engine) Len() int { return len(e.questions) }

func (e *Engine) gradeLocked(i int) grading.Contribution {
	q := e.questions[i]
	return e.grader.Grade(grading.Item{Correct: q.CorrectAnswer.Strings(), Selected: e.selected[i].Strings()})
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func copySelections(in map[int]exam.Selection) map[int]exam.Selection {
	out := make(map[int]exam.Selection, len(in))
	for k, v := range in {
		out[k] = append(exam.Selection(nil), v...)
	}
	return out
}
