package exam

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedQuestion = errors.New("malformed question")
	ErrNotFound          = errors.New("session not found")
	ErrFinished          = errors.New("session already finished")
)

// FieldError is used to indicate an error with a specific question field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError collects every problem found in a question set.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return ErrMalformedQuestion.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrMalformedQuestion }

// ValidateQuestions rejects questions that cannot be scored. An empty set is valid.
func ValidateQuestions(qs []Question) error {
	var fields []FieldError
	add := func(i int, field, msg string) {
		fields = append(fields, FieldError{Field: fmt.Sprintf("questions[%d].%s", i, field), Error: msg})
	}
	for i, q := range qs {
		for l := range q.Options {
			if !l.Valid() {
				add(i, "options", fmt.Sprintf("unknown label %q", l))
			}
		}
		if len(q.OptionLabels()) == 0 {
			add(i, "options", "no populated option")
		}
		if len(q.CorrectAnswer) == 0 {
			add(i, "correct_answer", "empty")
			continue
		}
		seen := map[Label]bool{}
		for _, l := range q.CorrectAnswer {
			switch {
			case seen[l]:
				add(i, "correct_answer", fmt.Sprintf("duplicate label %q", l))
			case !l.Valid():
				add(i, "correct_answer", fmt.Sprintf("unknown label %q", l))
			case !q.HasOption(l):
				add(i, "correct_answer", fmt.Sprintf("label %q is not a populated option", l))
			}
			seen[l] = true
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
