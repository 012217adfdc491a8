package grading

import (
	"fmt"
	"math"
	"strings"
)

// Item is the minimal view of a question needed for scoring.
// Keep this decoupled from the exam models so hosts can score raw payloads.
type Item struct {
	Correct  []string
	Selected []string
}

// Contribution is one question's credit under each scheme.
// Exact and Partial are in [0,1]; Penalized is in [0,1] unless the grader
// floors only the aggregate, in which case it may be negative.
type Contribution struct {
	Exact      float64 `json:"exact"`
	Partial    float64 `json:"partial"`
	Penalized  float64 `json:"penalized"`
	NumCorrect int     `json:"num_correct"`
	NumWrong   int     `json:"num_wrong"`
}

// Answered reports whether the learner picked anything for the question.
func (c Contribution) Answered() bool { return c.NumCorrect+c.NumWrong > 0 }

// Tuple is the three scores normalized to the grader's scale.
type Tuple struct {
	AllOrNothing    float64 `json:"score_all_or_nothing"`
	Partial         float64 `json:"score_partial"`
	PartialNegative float64 `json:"score_partial_negative"`
}

// Floor selects where the penalized scheme is clamped at zero.
type Floor int

const (
	// FloorPerQuestion clamps every question's penalized credit at zero before summing.
	FloorPerQuestion Floor = iota
	// FloorAggregate lets wrong picks on one question eat into credit earned on
	// others and clamps only the final sum.
	FloorAggregate
)

func (f Floor) String() string {
	if f == FloorAggregate {
		return "aggregate"
	}
	return "question"
}

// ParseFloor accepts "question" or "aggregate" (case-insensitive).
func ParseFloor(s string) (Floor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "question", "per_question":
		return FloorPerQuestion, nil
	case "aggregate", "total":
		return FloorAggregate, nil
	default:
		return FloorPerQuestion, fmt.Errorf("unknown penalty floor %q", s)
	}
}

const (
	DefaultPenalty = 0.25
	DefaultScale   = 20.0
)

// Engine options

type Option func(*config)

type config struct {
	Penalty float64 // subtracted per wrong pick, as a fraction of the question's credit
	Scale   float64 // scores are reported on [0, Scale]
	Floor   Floor
}

func WithPenalty(p float64) Option { return func(c *config) { c.Penalty = p } }
func WithScale(s float64) Option   { return func(c *config) { c.Scale = s } }
func WithFloor(f Floor) Option     { return func(c *config) { c.Floor = f } }

// Grader computes per-question contributions and normalized score tuples.
type Grader struct {
	cfg config
}

// NewGrader returns a grader with a 0.25 penalty, a 0–20 scale and
// per-question flooring unless overridden.
func NewGrader(opts ...Option) *Grader {
	cfg := config{
		Penalty: DefaultPenalty,
		Scale:   DefaultScale,
		Floor:   FloorPerQuestion,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Penalty < 0 {
		cfg.Penalty = 0
	}
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultScale
	}
	return &Grader{cfg: cfg}
}

// Scale is the top of the reported range.
func (g *Grader) Scale() float64 { return g.cfg.Scale }

// Grade scores a single question. An empty selection or an empty answer key
// contributes nothing.
func (g *Grader) Grade(it Item) Contribution {
	correct := toSet(it.Correct)
	picked := toSet(it.Selected)
	if len(correct) == 0 || len(picked) == 0 {
		return Contribution{}
	}

	var c Contribution
	for k := range picked {
		if _, ok := correct[k]; ok {
			c.NumCorrect++
		} else {
			c.NumWrong++
		}
	}
	if setEqual(correct, picked) {
		c.Exact = 1
	}
	c.Partial = float64(c.NumCorrect) / float64(len(correct))
	c.Penalized = c.Partial - g.cfg.Penalty*float64(c.NumWrong)
	if g.cfg.Floor == FloorPerQuestion && c.Penalized < 0 {
		c.Penalized = 0
	}
	return c
}

// Score grades every item and normalizes the sums over len(items).
func (g *Grader) Score(items []Item) Tuple {
	var t Tally
	for _, it := range items {
		t.Add(g.Grade(it))
	}
	return g.Normalize(t, len(items))
}

// Normalize turns raw sums into a Tuple over n questions. n <= 0 yields zeros.
func (g *Grader) Normalize(t Tally, n int) Tuple {
	if n <= 0 {
		return Tuple{}
	}
	pen := t.Penalized
	if pen < 0 {
		pen = 0
	}
	return Tuple{
		AllOrNothing:    round2(t.Exact / float64(n) * g.cfg.Scale),
		Partial:         round2(t.Partial / float64(n) * g.cfg.Scale),
		PartialNegative: round2(pen / float64(n) * g.cfg.Scale),
	}
}

// Tally accumulates raw contributions, e.g. the running totals of revealed questions.
type Tally struct {
	Exact     float64 `json:"exact"`
	Partial   float64 `json:"partial"`
	Penalized float64 `json:"penalized"`
	Graded    int     `json:"graded"`
}

func (t *Tally) Add(c Contribution) {
	t.Exact += c.Exact
	t.Partial += c.Partial
	t.Penalized += c.Penalized
	t.Graded++
}

// helpers

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
