package session

import "errors"

// Action is a destructive transition that needs an affirmative step.
type Action int

const (
	ActionNone Action = iota
	ActionFinish
	ActionRestart
)

func (a Action) String() string {
	switch a {
	case ActionFinish:
		return "finish"
	case ActionRestart:
		return "restart"
	default:
		return "none"
	}
}

var (
	ErrNothingPending = errors.New("no action awaiting confirmation")
	ErrNotAllowed     = errors.New("action not allowed in current state")
)

// Request parks a destructive action until Confirm or Cancel. A new request
// replaces any earlier one.
func (e *Engine) Request(a Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case a == ActionFinish && e.state == InProgress:
	case a == ActionRestart && e.state != NotStarted:
	default:
		return ErrNotAllowed
	}
	e.pending = a
	return nil
}

// Pending reports the action awaiting confirmation, if any.
func (e *Engine) Pending() Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Confirm performs the pending action and returns it.
func (e *Engine) Confirm() (Action, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.pending
	e.pending = ActionNone
	switch a {
	case ActionFinish:
		if e.state != InProgress {
			return a, ErrNotAllowed
		}
		e.finalizeLocked()
	case ActionRestart:
		e.reset()
	default:
		return ActionNone, ErrNothingPending
	}
	return a, nil
}

// Cancel drops the pending action.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.pending = ActionNone
	e.mu.Unlock()
}
