package exam

import "github.com/mind-engage/mindengage-quiz/internal/grading"

func (k AnswerKey) Strings() []string {
	out := make([]string, len(k))
	for i, l := range k {
		out[i] = string(l)
	}
	return out
}

// Items pairs every question with the learner's selection for it.
func Items(qs []Question, selected map[int]Selection) []grading.Item {
	items := make([]grading.Item, len(qs))
	for i, q := range qs {
		items[i] = grading.Item{Correct: q.CorrectAnswer.Strings(), Selected: selected[i].Strings()}
	}
	return items
}

// Score computes the score tuple of a selection map with g, or with the
// default grader when g is nil.
func Score(g *grading.Grader, qs []Question, selected map[int]Selection) grading.Tuple {
	if g == nil {
		g = grading.NewGrader()
	}
	return g.Score(Items(qs, selected))
}
