package exam

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

// Label identifies an option within a question.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
	LabelD Label = "D"
	LabelE Label = "E"
)

// Labels lists every label a question may populate, in display order.
var Labels = []Label{LabelA, LabelB, LabelC, LabelD, LabelE}

func (l Label) Valid() bool {
	for _, x := range Labels {
		if l == x {
			return true
		}
	}
	return false
}

// ParseLabel accepts "a", " B " etc.
func ParseLabel(s string) (Label, bool) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.Valid()
}

// AnswerKey is the set of correct labels. Documents store it either as a
// single label ("B") or as a list (["A","C"]); both decode to the same value.
type AnswerKey []Label

func (k AnswerKey) MarshalJSON() ([]byte, error) {
	if len(k) == 1 {
		return json.Marshal(string(k[0]))
	}
	return json.Marshal([]Label(k))
}

func (k *AnswerKey) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*k = keyFromStrings([]string{one})
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("correct_answer must be a label or a list of labels: %w", err)
	}
	*k = keyFromStrings(many)
	return nil
}

func (k *AnswerKey) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*k = keyFromStrings([]string{value.Value})
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*k = keyFromStrings(many)
		return nil
	default:
		return errors.New("correct_answer must be a label or a list of labels")
	}
}

func keyFromStrings(in []string) AnswerKey {
	out := make(AnswerKey, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		out = append(out, Label(s))
	}
	return out
}

// Question is one item of a session. Its identifier is its position.
type Question struct {
	Text               string           `json:"text" yaml:"text"`
	Options            map[Label]string `json:"options" yaml:"options"`
	CorrectAnswer      AnswerKey        `json:"correct_answer" yaml:"correct_answer"`
	Source             string           `json:"source,omitempty" yaml:"source,omitempty"`
	Image              string           `json:"image,omitempty" yaml:"image,omitempty"`
	Justification      string           `json:"justification,omitempty" yaml:"justification,omitempty"`
	JustificationImage string           `json:"justification_image,omitempty" yaml:"justification_image,omitempty"`
}

// HasOption reports whether l is a populated option.
func (q Question) HasOption(l Label) bool {
	return strings.TrimSpace(q.Options[l]) != ""
}

// OptionLabels returns the populated labels in display order.
func (q Question) OptionLabels() []Label {
	out := make([]Label, 0, len(q.Options))
	for _, l := range Labels {
		if q.HasOption(l) {
			out = append(out, l)
		}
	}
	return out
}

func (q Question) IsMulti() bool { return len(q.CorrectAnswer) > 1 }

// Selection is the set of labels a learner picked for one question, kept
// sorted and de-duplicated. Empty means unanswered.
type Selection []Label

func NewSelection(labels ...Label) Selection {
	seen := make(map[Label]bool, len(labels))
	out := make(Selection, 0, len(labels))
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Selection) Contains(l Label) bool {
	for _, x := range s {
		if x == l {
			return true
		}
	}
	return false
}

// Toggle returns a copy of s with l added or removed.
func (s Selection) Toggle(l Label) Selection {
	if s.Contains(l) {
		out := make(Selection, 0, len(s))
		for _, x := range s {
			if x != l {
				out = append(out, x)
			}
		}
		return out
	}
	return NewSelection(append(append(Selection{}, s...), l)...)
}

func (s Selection) Strings() []string {
	out := make([]string, len(s))
	for i, l := range s {
		out[i] = string(l)
	}
	return out
}

type Kind string

const (
	KindQuiz Kind = "quiz"
	KindExam Kind = "exam"
	KindTD   Kind = "td"
)

func (k Kind) Valid() bool {
	switch k {
	case KindQuiz, KindExam, KindTD:
		return true
	}
	return false
}

// Session is the stored document: a fixed question set plus the learner's
// progress or final result.
type Session struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Kind        Kind       `json:"kind"`
	DurationSec int        `json:"duration_sec,omitempty"` // exam only
	Questions   []Question `json:"questions"`
	Finished    bool       `json:"finished"`
	Progress    *Progress  `json:"progress,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	CreatedAt   int64      `json:"created_at,omitempty"`
	UpdatedAt   int64      `json:"updated_at,omitempty"`
}

// SessionSummary is a list row without the question bodies.
type SessionSummary struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Kind          Kind    `json:"kind"`
	QuestionCount int     `json:"question_count"`
	Finished      bool    `json:"finished"`
	ScorePartial  float64 `json:"score_partial,omitempty"`
	UpdatedAt     int64   `json:"updated_at,omitempty"`
}

// Progress is the resumable snapshot of an in-progress session.
// TimeLeft counts down in exam sessions; Elapsed counts up otherwise.
type Progress struct {
	CurrentQuestion int               `json:"currentQuestion"`
	SelectedAnswers map[int]Selection `json:"selectedAnswers"`
	TimeLeft        int               `json:"timeLeft"`
	Elapsed         int               `json:"elapsed,omitempty"`
	Revealed        []int             `json:"revealed,omitempty"`
	SavedAt         time.Time         `json:"savedAt"`
}

// Result is the immutable snapshot written once a session finishes.
type Result struct {
	Finished bool `json:"finished"`
	grading.Tuple
	SelectedAnswers map[int]Selection `json:"selectedAnswers,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Note is a learner's free-text note attached to a question.
type Note struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Question  int    `json:"question"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// Report flags a question as wrong or unclear.
type Report struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Question  int    `json:"question"`
	Reason    string `json:"reason"`
	CreatedAt int64  `json:"created_at"`
}
